package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/partwise/internal/adapter/mcp"
	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/service"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newEnqueueCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <owner.table>...",
		Short: "Queue tables for analysis",
		Long:  "Create a PENDING task for each table. A bare table name resolves against the search path when analyzed.",
		Example: `  partwise enqueue sales.orders sales.order_lines
  partwise enqueue --task-store-url sqlite://./tasks.db HR.EMPLOYEES`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, storeRequired)
			if err != nil {
				return err
			}
			defer a.shutdown()

			tasks := make([]domain.Task, 0, len(args))
			for _, arg := range args {
				ref := domain.ParseTableRef(arg)
				if ref.Name == "" {
					return fmt.Errorf("invalid table %q", arg)
				}
				task, err := a.store.CreateTask(cmd.Context(), ref)
				if err != nil {
					return fmt.Errorf("queueing %s: %w", arg, err)
				}
				tasks = append(tasks, task)
			}
			writeTasks(cmd.OutOrStdout(), tasks, time.Now())
			return nil
		},
	}
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <task-id>",
		Short: "Analyze one queued task and store its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, g, storeRequired)
			if err != nil {
				return err
			}
			defer a.shutdown()

			result, err := a.analyzer.AnalyzeTask(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("analyzing task %d: %w", id, err)
			}
			return writeOutput(cmd, result, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newBatchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Analyze every pending task",
		Long: `Analyze all PENDING tasks with --workers concurrent analyses. A failed task is
marked FAILED and never stops the others. Interrupting the run leaves the tasks
that had not started PENDING.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, storeRequired)
			if err != nil {
				return err
			}
			defer a.shutdown()

			start := time.Now()
			report, err := service.NewBatchRunner(a.store, a.analyzer, a.cfg.Workers, a.logger).Run(cmd.Context())
			writeReport(cmd.OutOrStdout(), report, time.Since(start))
			return err
		},
	}
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <owner.table>",
		Short: "Analyze a table ad hoc without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := domain.ParseTableRef(args[0])
			if ref.Name == "" {
				return fmt.Errorf("invalid table %q", args[0])
			}

			a, err := newApp(cmd, g, storeNone)
			if err != nil {
				return err
			}
			defer a.shutdown()

			result, err := a.analyzer.AnalyzeTable(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", ref, err)
			}
			return writeOutput(cmd, result, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newResultsCmd(g *globalFlags) *cobra.Command {
	var (
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "results [task-id]",
		Short: "List tasks, or show the stored result of one task",
		Example: `  partwise results
  partwise results --status failed
  partwise results 42 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.TaskStatus(strings.ToUpper(strings.TrimSpace(status)))
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("invalid --status %q: must be PENDING, ANALYZING, ANALYZED or FAILED", status)
			}

			a, err := newApp(cmd, g, storeRequired)
			if err != nil {
				return err
			}
			defer a.shutdown()

			if len(args) == 1 {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				result, err := a.store.GetResult(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("reading result of task %d: %w", id, err)
				}
				return writeOutput(cmd, result, asJSON)
			}

			tasks, err := a.store.ListTasks(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("listing tasks: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			writeTasks(cmd.OutOrStdout(), tasks, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only list tasks with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newServeCmd(g *globalFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis tools over MCP stdio",
		Long: `Run an MCP server on stdin/stdout. analyze_table is always available; the task
tools (analyze_task, get_result, list_tasks) are registered when a task store
is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g, storeOptional)
			if err != nil {
				return err
			}
			defer a.shutdown()

			var tasks mcp.Tasks
			if a.store != nil {
				tasks = a.store
			}
			s := mcp.NewServer(version, a.analyzer, tasks, a.logger, a.telemetry.Tracer(), a.telemetry.Instruments())

			a.logger.Info("serving MCP over stdio",
				slog.String("version", version),
				slog.Bool("task_tools", tasks != nil),
			)
			if err := mcpserver.NewStdioServer(s).Listen(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("stdio server: %w", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q: must be a positive integer", s)
	}
	return id, nil
}

func writeOutput(cmd *cobra.Command, result *domain.AnalysisResult, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	writeResult(cmd.OutOrStdout(), result)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
