package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/docsite/internal/core/querylog"
	"github.com/vietddude/docsite/internal/core/retry"
	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
)

// Default returns the configuration used for anything the file leaves out.
func Default(environment string) *AppConfig {
	if environment == "" {
		environment = "development"
	}
	return &AppConfig{
		Environment: environment,
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: sqlstore.Config{
			Driver:          sqlstore.DriverPgx,
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Retry:    retry.DefaultConfig(),
		QueryLog: querylog.DefaultConfig(environment),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Retention: RetentionConfig{
			Interval: time.Hour,
		},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults for its environment.
func Parse(data []byte) (*AppConfig, error) {
	// Expand environment variables in the YAML content
	expanded := []byte(os.ExpandEnv(string(data)))

	var probe struct {
		Environment string `yaml:"environment"`
	}
	if err := yaml.Unmarshal(expanded, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := Default(probe.Environment)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// UsesDatabase reports whether a SQL database is configured. Without one
// the API runs on the in-memory store.
func (c *AppConfig) UsesDatabase() bool {
	return c.Database.URL != ""
}
