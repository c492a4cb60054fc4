package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/realtime"
)

func feedCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Serve the database change feed over websockets",
		Long: `Serve change events for the shared database.

Sessions started with realtime.url pointing at this server take their
change events from it. Writes from any process are picked up by watching
the database file.

Examples:
  taskboard feed
  taskboard feed --listen 0.0.0.0:7420`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			defer e.Close()

			if listen == "" {
				listen = e.cfg.Realtime.Listen
			}

			watcher, err := db.NewWatcher(e.db, e.logger, 0)
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()

			server := realtime.NewServer(&realtime.Config{
				Addr:   listen,
				Source: e.db,
				Logger: e.logger,
			})
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving change feed on ws://%s%s\n", server.Addr(), realtime.FeedPath)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			e.logger.Info("shutting down feed server")
			return server.Stop()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides realtime.listen)")
	return cmd
}
