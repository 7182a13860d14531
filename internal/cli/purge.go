package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/docsite/internal/core/config"
	"github.com/vietddude/docsite/internal/core/worker"
	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Hard delete rows soft deleted longer ago than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		olderThan := purgeOlderThan
		if olderThan == 0 {
			olderThan = cfg.Retention.PurgeAfter
		}
		if olderThan <= 0 {
			return errors.New("no retention period: pass --older-than or set retention.purge_after")
		}

		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = db.Close()
		}()
		return runPurge(cmd.Context(), cmd, cfg, db, olderThan)
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "retention period (default retention.purge_after)")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(ctx context.Context, cmd *cobra.Command, cfg *config.AppConfig, db *sqlstore.DB, olderThan time.Duration) error {
	pruner := worker.NewPruner(cfg.Retention, sqlstore.NewPostStore(db), sqlstore.NewUserStore(db))
	res, err := pruner.Prune(ctx, olderThan)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "purged %d posts and %d users deleted before %s\n",
		res.Posts, res.Users, time.Now().UTC().Add(-olderThan).Format(time.RFC3339))
	return nil
}
