package main

import (
	"time"

	"github.com/guillermoBallester/partwise/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every subcommand. Only flags
// the user actually set become config overrides.
type globalFlags struct {
	databaseURL    string
	dialect        string
	taskStoreURL   string
	logLevel       string
	probeTimeout   time.Duration
	workers        int
	thresholdsFile string
	auditLog       string
	otel           bool

	poolMaxConns        int32
	poolMinConns        int32
	poolMaxConnLifetime time.Duration
}

func newRootCmd(version string) *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "partwise",
		Short: "Recommend partitioning strategies for large tables",
		Long: `partwise inspects a table's catalog metadata and samples its data with bounded,
read-only probes, then recommends a partitioning scheme (RANGE by day, month or
year, HASH, or none) together with a complexity score, a downtime estimate and
the issues that would block a migration.

Tables are queued as tasks and analyzed one by one or in batches; results are
kept in a task store (Postgres or SQLite). Nothing is ever changed in the
analyzed database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	g.register(cmd)

	cmd.AddCommand(newEnqueueCmd(g))
	cmd.AddCommand(newAnalyzeCmd(g))
	cmd.AddCommand(newBatchCmd(g))
	cmd.AddCommand(newInspectCmd(g))
	cmd.AddCommand(newResultsCmd(g))
	cmd.AddCommand(newServeCmd(g, version))

	return cmd
}

// register defines the persistent flags on cmd.
func (g *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.databaseURL, "database-url", "", "Database to analyze (overrides DATABASE_URL)")
	pf.StringVar(&g.dialect, "dialect", "", "Database dialect: postgres or oracle (overrides DB_DIALECT)")
	pf.StringVar(&g.taskStoreURL, "task-store-url", "", "Task store, postgres://... or sqlite://path (overrides TASK_STORE_URL)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	pf.DurationVar(&g.probeTimeout, "probe-timeout", 0, "Timeout for a single data probe (overrides PROBE_TIMEOUT)")
	pf.IntVar(&g.workers, "workers", 0, "Concurrent analyses in a batch (overrides WORKERS)")
	pf.StringVar(&g.thresholdsFile, "thresholds-file", "", "YAML file with decision thresholds (overrides THRESHOLDS_FILE)")
	pf.StringVar(&g.auditLog, "audit-log", "", "Append an NDJSON record of every probe to this file (overrides AUDIT_LOG)")
	pf.BoolVar(&g.otel, "otel", false, "Export traces and metrics over OTLP gRPC")
	pf.Int32Var(&g.poolMaxConns, "pool-max-conns", 0, "Maximum database connections (overrides POOL_MAX_CONNS)")
	pf.Int32Var(&g.poolMinConns, "pool-min-conns", 0, "Minimum idle database connections (overrides POOL_MIN_CONNS)")
	pf.DurationVar(&g.poolMaxConnLifetime, "pool-max-conn-lifetime", 0, "Maximum connection lifetime (overrides POOL_MAX_CONN_LIFETIME)")
}

// overrides converts the flags set on cmd into config overrides.
func (g *globalFlags) overrides(cmd *cobra.Command) config.Overrides {
	changed := cmd.Flags().Changed
	var o config.Overrides

	if changed("database-url") {
		o.DatabaseURL = &g.databaseURL
	}
	if changed("dialect") {
		o.Dialect = &g.dialect
	}
	if changed("task-store-url") {
		o.TaskStoreURL = &g.taskStoreURL
	}
	if changed("log-level") {
		o.LogLevel = &g.logLevel
	}
	if changed("probe-timeout") {
		o.ProbeTimeout = &g.probeTimeout
	}
	if changed("workers") {
		o.Workers = &g.workers
	}
	if changed("thresholds-file") {
		o.ThresholdsFile = &g.thresholdsFile
	}
	if changed("audit-log") {
		o.AuditLog = &g.auditLog
	}
	if changed("pool-max-conns") {
		o.PoolMaxConns = &g.poolMaxConns
	}
	if changed("pool-min-conns") {
		o.PoolMinConns = &g.poolMinConns
	}
	if changed("pool-max-conn-lifetime") {
		o.PoolMaxConnLifetime = &g.poolMaxConnLifetime
	}
	o.OTelEnabled = g.otel
	return o
}
