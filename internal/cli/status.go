package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live and soft-deleted row counts per table",
	RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error {
		return printStatus(ctx, cmd, db)
	}),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type counter interface {
	Count(ctx context.Context) (int64, error)
	CountDeleted(ctx context.Context) (int64, error)
}

func printStatus(ctx context.Context, cmd *cobra.Command, db *sqlstore.DB) error {
	tables := []struct {
		name  string
		store counter
	}{
		{"users", sqlstore.NewUserStore(db)},
		{"posts", sqlstore.NewPostStore(db)},
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TABLE\tLIVE\tDELETED")

	for _, t := range tables {
		live, err := t.store.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", t.name, err)
		}
		deleted, err := t.store.CountDeleted(ctx)
		if err != nil {
			return fmt.Errorf("failed to count deleted %s: %w", t.name, err)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", t.name, live, deleted)
	}
	return w.Flush()
}
