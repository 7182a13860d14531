package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/docsite/internal/infra/storage"
	"github.com/vietddude/docsite/internal/infra/storage/memory"
	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
)

// Stores bundles the persistence backends selected by configuration.
type Stores struct {
	Users  storage.UserStore
	Posts  storage.PostStore
	Pinger storage.Pinger

	// DB is nil when running on the in-memory store.
	DB *sqlstore.DB
}

// OpenStores connects to the configured database, or falls back to the
// in-memory store when no URL is set.
func OpenStores(ctx context.Context, cfg sqlstore.Config) (*Stores, error) {
	if cfg.URL == "" {
		mem := memory.NewMemoryStorage()
		slog.Info("Using memory storage")
		return &Stores{
			Users:  memory.NewUserStore(mem),
			Posts:  memory.NewPostStore(mem),
			Pinger: mem,
		}, nil
	}

	db, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
	}

	slog.Info("Using SQL storage", "driver", cfg.Driver)
	return &Stores{
		Users:  sqlstore.NewUserStore(db),
		Posts:  sqlstore.NewPostStore(db),
		Pinger: db,
		DB:     db,
	}, nil
}

// Close releases the database handle, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
