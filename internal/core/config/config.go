package config

import (
	"time"

	"github.com/vietddude/docsite/internal/core/querylog"
	"github.com/vietddude/docsite/internal/core/retry"
	"github.com/vietddude/docsite/internal/infra/events"
	redisclient "github.com/vietddude/docsite/internal/infra/redis"
	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Environment string             `yaml:"environment" validate:"oneof=development test production"`
	Server      ServerConfig       `yaml:"server"`
	Database    sqlstore.Config    `yaml:"database"`
	Redis       redisclient.Config `yaml:"redis"`
	NATS        events.Config      `yaml:"nats"`
	Logging     LoggingConfig      `yaml:"logging"`
	Retry       retry.Config       `yaml:"retry"`
	QueryLog    querylog.Config    `yaml:"query_log"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
	Retention   RetentionConfig    `yaml:"retention"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	Port         int           `yaml:"port"          validate:"min=1,max=65535"`
	GRPCPort     int           `yaml:"grpc_port"     validate:"min=0,max=65535"` // 0 = disabled
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// RateLimitConfig holds API rate limiting settings. The limit is shared
// through Redis when it is configured, otherwise it applies per process.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"required_if=Enabled true,gte=0"`
	Burst             int     `yaml:"burst"               validate:"gte=0"`
}

// RetentionConfig controls the purge of soft-deleted rows. Zero PurgeAfter disables it.
type RetentionConfig struct {
	PurgeAfter time.Duration `yaml:"purge_after"`
	Interval   time.Duration `yaml:"interval"`
}
