package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tgienger/taskboard/internal/config"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/logging"
	"github.com/tgienger/taskboard/internal/realtime"
	"github.com/tgienger/taskboard/internal/remote"
	"github.com/tgienger/taskboard/internal/syncstore"
	"github.com/tgienger/taskboard/internal/ui"
)

var (
	configPath string
	dbPath     string
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskboard",
		Short: "Team task dashboard for the terminal",
		Long: `taskboard is a terminal dashboard for a team's projects and tasks.

Every running session follows the shared database and re-reads it when
another session writes. Run "taskboard feed" to share changes between
machines over a websocket feed.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE:         runTUI,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/taskboard/config.yaml)")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides database.path)")

	cmd.AddCommand(feedCmd())
	cmd.AddCommand(seedCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// env is what every command needs: configuration, a logger and the
// opened database.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *db.DB
	logClose io.Closer
}

// setup loads the configuration, opens the log and the database. With
// stderr set, logs are also written to the terminal.
func setup(stderr bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	path := cfg.Database.Path
	if path == "" {
		path, err = db.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	}

	logger, closer, err := logging.New(logging.Options{
		File:       cfg.LogPath(path),
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Stderr:     stderr,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	database, err := db.New(path)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", path)

	return &env{cfg: cfg, logger: logger, db: database, logClose: closer}, nil
}

func (e *env) Close() error {
	return errors.Join(e.db.Close(), e.logClose.Close())
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := setup(false)
	if err != nil {
		return err
	}
	defer e.Close()

	accounts, err := db.NewAccounts(context.Background(), e.db)
	if err != nil {
		return err
	}

	var client remote.Client = e.db
	if url := e.cfg.Realtime.URL; url != "" {
		feed, err := realtime.NewClient(url, e.logger)
		if err != nil {
			return err
		}
		client = remote.WithSubscriber(e.db, feed)
		e.logger.Info("using realtime feed", "url", url)
	} else if e.cfg.Watch.External {
		// Writes from other processes only reach this one through the file
		watcher, err := db.NewWatcher(e.db, e.logger, 0)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	app := ui.NewApp(ui.Config{
		Provider: accounts,
		Client:   client,
		Settings: e.db,
		Logger:   e.logger,
		Subscribe: syncstore.SubscribeConfig{
			Tasks:    e.cfg.Subscribe.Tasks,
			Projects: e.cfg.Subscribe.Projects,
		},
		Backoff: syncstore.BackoffConfig{
			Initial: e.cfg.Reconnect.Initial,
			Max:     e.cfg.Reconnect.Max,
		},
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	app.SetSender(p.Send)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run application: %w", err)
	}
	return nil
}
