// Package control assembles the service from configuration and manages its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/docsite/internal/api"
	"github.com/vietddude/docsite/internal/core/config"
	"github.com/vietddude/docsite/internal/core/querylog"
	"github.com/vietddude/docsite/internal/core/worker"
	"github.com/vietddude/docsite/internal/health"
	"github.com/vietddude/docsite/internal/infra/events"
	redisclient "github.com/vietddude/docsite/internal/infra/redis"
	"github.com/vietddude/docsite/internal/repository"
)

const (
	healthCacheFor      = 2 * time.Second
	poolMetricsInterval = 10 * time.Second
	grpcHealthInterval  = 10 * time.Second
)

// App is the running service: stores, repositories, the HTTP API and
// background workers.
type App struct {
	cfg       *config.AppConfig
	stores    *Stores
	redis     *redisclient.Client
	publisher *events.NATSPublisher
	users     *repository.Users
	posts     *repository.Posts
	monitor   *health.Monitor
	api       *api.Server
	grpc      *health.GRPCServer
	pruner    *worker.Pruner
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Storage
	stores, err := OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, stores: stores, log: log}

	// 2. Optional Redis and NATS. Both degrade gracefully when unreachable.
	if cfg.Redis.URL != "" {
		app.redis, err = redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, using in-process rate limiting", "error", err)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		app.publisher, err = events.Connect(cfg.NATS)
		if err != nil {
			log.Warn("Failed to connect to NATS, events disabled", "error", err)
		} else {
			publisher = app.publisher
		}
	}

	// 3. Repositories
	opts := []repository.Option{
		repository.WithRetry(cfg.Retry),
		repository.WithQueryLogger(querylog.New(cfg.QueryLog, log)),
		repository.WithPublisher(publisher),
		repository.WithLogger(log),
	}
	app.users = repository.NewUsers(stores.Users, opts...)
	app.posts = repository.NewPosts(stores.Posts, opts...)

	// 4. Health
	app.monitor = health.NewMonitor(healthCacheFor).AddRequired("database", stores.Pinger)
	if stores.DB != nil {
		app.monitor.WithPoolStats(stores.DB)
	}
	if app.redis != nil {
		app.monitor.AddOptional("redis", app.redis)
	}
	if app.publisher != nil {
		app.monitor.AddOptional("nats", app.publisher)
	}
	if cfg.Server.GRPCPort > 0 {
		app.grpc = health.NewGRPCServer(app.monitor, grpcHealthInterval)
	}

	// 5. HTTP API
	app.api = api.NewServer(app.users, app.posts, api.Options{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Limiter:      app.limiter(),
		Health:       health.Handler(app.monitor),
		Logger:       log,
	})

	// 6. Retention
	if cfg.Retention.PurgeAfter > 0 {
		app.pruner = worker.NewPruner(cfg.Retention, stores.Posts, stores.Users)
	}

	return app, nil
}

func (a *App) limiter() api.Limiter {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	if a.redis != nil {
		limit := max(int(math.Ceil(rl.RequestsPerSecond)), rl.Burst, 1)
		return redisclient.NewRateLimiter(a.redis, limit, time.Second)
	}
	return api.NewLocalLimiter(rl.RequestsPerSecond, rl.Burst)
}

// Handler exposes the HTTP router without starting a listener.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Users returns the user repository.
func (a *App) Users() *repository.Users { return a.users }

// Posts returns the post repository.
func (a *App) Posts() *repository.Posts { return a.posts }

// Start starts the listeners and background workers.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	var lis net.Listener
	if a.grpc != nil {
		var err error
		lis, err = net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.GRPCPort))
		if err != nil {
			a.cancel()
			return fmt.Errorf("failed to listen for grpc: %w", err)
		}
	}

	a.goRun(func() {
		if err := a.api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	})

	if lis != nil {
		a.log.Info("gRPC health server listening", "addr", lis.Addr().String())
		a.goRun(func() {
			if err := a.grpc.Serve(ctx, lis); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		})
	}

	if a.stores.DB != nil {
		a.stores.DB.StartMetricsCollector(ctx, poolMetricsInterval)
	}

	if a.pruner != nil {
		a.log.Info("Starting pruner", "purge_after", a.cfg.Retention.PurgeAfter)
		a.goRun(func() { a.pruner.Start(ctx) })
	}

	return nil
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Stop drains the listeners, waits for workers and closes connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping docsite...")

	var errs []error
	if err := a.api.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}
	if a.grpc != nil {
		a.grpc.Stop(ctx)
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("Failed to close NATS", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if err := a.stores.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close db: %w", err))
	}
	return errors.Join(errs...)
}
