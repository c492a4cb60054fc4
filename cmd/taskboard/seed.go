package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tgienger/taskboard/internal/seed"
)

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture users, projects and tasks into the database",
		Long: `Load a YAML fixture into the database. Without --file the built-in
demo team is loaded; its users sign in with the password "demo123".
Loading is idempotent: rows are replaced by id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				f   *seed.Fixture
				err error
			)
			if file == "" {
				f, err = seed.Demo()
			} else {
				f, err = seed.ReadFile(file)
			}
			if err != nil {
				return err
			}

			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			summary, err := seed.Load(context.Background(), e.db, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d users (%d with logins), %d projects, %d tasks into %s\n",
				summary.Users, summary.Accounts, summary.Projects, summary.Tasks, e.db.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (default: built-in demo data)")
	return cmd
}
