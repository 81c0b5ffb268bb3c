package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/guillermoBallester/partwise/internal/adapter/oracle"
	"github.com/guillermoBallester/partwise/internal/adapter/postgres"
	"github.com/guillermoBallester/partwise/internal/adapter/sqlite"
	"github.com/guillermoBallester/partwise/internal/audit"
	"github.com/guillermoBallester/partwise/internal/config"
	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/guillermoBallester/partwise/internal/core/service"
	"github.com/guillermoBallester/partwise/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// storeNeed says whether a command requires, tolerates or ignores the task store.
type storeNeed int

const (
	storeNone storeNeed = iota
	storeOptional
	storeRequired
)

// app is the wired set of adapters and services behind one command run.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Provider
	store     port.TaskStore // nil when no task store is configured
	analyzer  *service.Analyzer

	closers []func() error
}

// newApp loads the config and connects everything a command needs. The caller
// must call close.
func newApp(cmd *cobra.Command, g *globalFlags, need storeNeed) (_ *app, err error) {
	ctx := cmd.Context()

	cfg, err := config.Load(g.overrides(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout carries command output and the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	a.telemetry, err = telemetry.Init(ctx, telemetry.Options{
		ServiceName: "partwise",
		Version:     version,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.telemetry.Shutdown(context.WithoutCancel(ctx)) })

	logger.Debug("configuration loaded",
		slog.String("db.system", string(cfg.Dialect)),
		slog.String("database_url", redactDSN(cfg.DatabaseURL)),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Int("workers", cfg.Workers),
		slog.String("probe_timeout", cfg.Thresholds.ProbeTimeout.String()),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	var (
		catalog port.Catalog
		sampler port.Sampler
		pool    *pgxpool.Pool
	)
	switch cfg.Dialect {
	case domain.DialectOracle:
		db, err := oracle.Open(ctx, cfg.DatabaseURL, oracle.DBOptions{
			MaxOpenConns:    int(cfg.PoolMaxConns),
			MaxIdleConns:    int(cfg.PoolMinConns),
			ConnMaxLifetime: cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		oc := oracle.NewCatalog(db)
		catalog, sampler = oc, oracle.NewSampler(db, oc, cfg.Thresholds.ParallelMaxDegree)
	default:
		pool, err = postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns:        cfg.PoolMaxConns,
			MinConns:        cfg.PoolMinConns,
			MaxConnLifetime: cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		pc := postgres.NewCatalog(pool, cfg.Schemas)
		catalog, sampler = pc, postgres.NewSampler(pool, pc, cfg.Thresholds.ParallelMaxDegree)
	}
	logger.Info("database connected", slog.String("db.system", string(cfg.Dialect)))

	if need != storeNone {
		a.store, err = a.openStore(ctx, pool)
		if err != nil && (need == storeRequired || !errors.Is(err, errNoStore)) {
			return nil, err
		}
		err = nil
	}

	var auditor port.ProbeAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.closers = append(a.closers, fa.Close)
		auditor = fa
		logger.Info("probe audit enabled", slog.String("file", cfg.AuditLog))
	}

	tracer := a.telemetry.Tracer()
	inst := a.telemetry.Instruments()
	guarded := service.NewGuardedSampler(sampler, auditor, logger, cfg.Thresholds.ProbeTimeout, tracer, inst)
	a.analyzer = service.NewAnalyzer(catalog, guarded, a.store, cfg.Thresholds, logger, tracer, inst)

	return a, nil
}

var errNoStore = errors.New("no task store configured")

// openStore connects the task store named by TASK_STORE_URL. A postgres store
// that points at the analyzed database reuses its pool.
func (a *app) openStore(ctx context.Context, pool *pgxpool.Pool) (port.TaskStore, error) {
	kind, location, err := a.cfg.TaskStore()
	if err != nil {
		if a.cfg.TaskStoreURL == "" {
			return nil, fmt.Errorf("%w: %w", errNoStore, err)
		}
		return nil, err
	}

	switch kind {
	case config.StoreSQLite:
		store, err := sqlite.NewTaskStore(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("opening task store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.logger.Debug("task store ready", slog.String("kind", kind), slog.String("path", location))
		return store, nil
	default:
		if pool == nil || location != a.cfg.DatabaseURL {
			pool, err = postgres.NewPool(ctx, location, postgres.PoolOptions{MaxConns: 2})
			if err != nil {
				return nil, fmt.Errorf("connecting to task store: %w", err)
			}
			p := pool
			a.closers = append(a.closers, func() error { p.Close(); return nil })
		}
		store := postgres.NewTaskStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating task store: %w", err)
		}
		a.logger.Debug("task store ready", slog.String("kind", kind), slog.String("url", redactDSN(location)))
		return store, nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// shutdown closes the app, logging rather than returning close errors.
func (a *app) shutdown() {
	if err := a.close(); err != nil {
		a.logger.Warn("closing resources", slog.String("error.message", err.Error()))
	}
}

// redactDSN masks the password of a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
