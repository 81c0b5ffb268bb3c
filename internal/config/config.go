package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/domain"
)

type Config struct {
	// Database under analysis.
	DatabaseURL string
	Dialect     domain.Dialect
	Schemas     []string // empty means all non-system schemas (postgres only)

	// TaskStoreURL is postgres://... or sqlite://path. Defaults to DatabaseURL
	// for postgres.
	TaskStoreURL string

	// Logging.
	LogLevel slog.Level

	// Analysis.
	Workers        int
	ThresholdsFile string
	Thresholds     domain.Thresholds

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool
	AuditLog    string // path to NDJSON probe audit log

	// probeTimeout is applied on top of the thresholds file when set.
	probeTimeout time.Duration
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL    *string
	Dialect        *string
	TaskStoreURL   *string
	LogLevel       *string
	ProbeTimeout   *time.Duration
	Workers        *int
	ThresholdsFile *string
	AuditLog       *string
	OTelEnabled    bool

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then loads the thresholds file and validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}

	th, err := LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		return nil, err
	}
	if cfg.probeTimeout > 0 {
		th.ProbeTimeout = cfg.probeTimeout
	}
	cfg.Thresholds = th

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Workers:             4,
		Thresholds:          domain.DefaultThresholds(),
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("DB_DIALECT"); v != "" {
		cfg.Dialect = domain.Dialect(strings.ToLower(strings.TrimSpace(v)))
	}
	cfg.TaskStoreURL = os.Getenv("TASK_STORE_URL")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid PROBE_TIMEOUT value %q: must be a positive duration", v)
		}
		cfg.probeTimeout = d
	}

	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid WORKERS value %q: must be a positive integer", v)
		}
		cfg.Workers = n
	}

	if v := os.Getenv("SCHEMAS"); v != "" {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				cfg.Schemas = append(cfg.Schemas, s)
			}
		}
	}

	cfg.ThresholdsFile = os.Getenv("THRESHOLDS_FILE")
	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return loadPoolEnvVars(cfg)
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.Dialect != nil {
		cfg.Dialect = domain.Dialect(strings.ToLower(strings.TrimSpace(*o.Dialect)))
	}
	if o.TaskStoreURL != nil {
		cfg.TaskStoreURL = *o.TaskStoreURL
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.ProbeTimeout != nil {
		if *o.ProbeTimeout <= 0 {
			return fmt.Errorf("invalid --probe-timeout value: must be a positive duration")
		}
		cfg.probeTimeout = *o.ProbeTimeout
	}
	if o.Workers != nil {
		if *o.Workers <= 0 {
			return fmt.Errorf("invalid --workers value: must be a positive integer")
		}
		cfg.Workers = *o.Workers
	}
	if o.ThresholdsFile != nil {
		cfg.ThresholdsFile = *o.ThresholdsFile
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}

	if cfg.Dialect == "" {
		cfg.Dialect = dialectFromURL(cfg.DatabaseURL)
	}
	if !cfg.Dialect.Valid() {
		return fmt.Errorf("invalid DB_DIALECT value %q: must be \"postgres\" or \"oracle\"", cfg.Dialect)
	}

	if cfg.TaskStoreURL == "" && cfg.Dialect == domain.DialectPostgres {
		cfg.TaskStoreURL = cfg.DatabaseURL
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func dialectFromURL(url string) domain.Dialect {
	if strings.HasPrefix(strings.ToLower(url), "oracle://") {
		return domain.DialectOracle
	}
	return domain.DialectPostgres
}

// Store kinds returned by TaskStore.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// TaskStore splits TaskStoreURL into the store kind and its location: the
// connection URL for postgres, the file path for sqlite.
func (c *Config) TaskStore() (kind, location string, err error) {
	u := c.TaskStoreURL
	switch {
	case u == "":
		return "", "", fmt.Errorf("TASK_STORE_URL is required when DB_DIALECT is %q", c.Dialect)
	case strings.HasPrefix(u, "sqlite://"):
		return StoreSQLite, strings.TrimPrefix(u, "sqlite://"), nil
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return StorePostgres, u, nil
	default:
		return "", "", fmt.Errorf("invalid TASK_STORE_URL %q: must start with postgres:// or sqlite://", u)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
