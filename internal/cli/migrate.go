package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vietddude/docsite/internal/core/config"
	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
)

var errNoDatabase = errors.New("database url is not configured")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		return printVersion(ctx, cmd, db)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error {
		if err := db.MigrateDown(ctx); err != nil {
			return err
		}
		return printVersion(ctx, cmd, db)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error {
		return printVersion(ctx, cmd, db)
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withDB loads the config and opens the SQL database for a command.
func withDB(fn func(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = db.Close()
		}()
		return fn(cmd.Context(), cmd, db)
	}
}

func openDB(ctx context.Context, cfg *config.AppConfig) (*sqlstore.DB, error) {
	if !cfg.UsesDatabase() {
		return nil, errNoDatabase
	}
	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return nil, err
	}
	return db, nil
}

func printVersion(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error {
	version, err := db.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
