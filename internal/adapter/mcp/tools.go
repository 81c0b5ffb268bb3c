package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "partwise"

// Tool descriptions
const (
	descAnalyzeTable = "Analyze a table ad hoc and recommend a partitioning strategy. " +
		"Returns the detected stereotype, the profiled candidate columns, the selected column, " +
		"the recommended scheme (RANGE by day/month/year, HASH, or none) with its rationale, " +
		"a complexity score, an estimated downtime, dependencies and blocking issues. " +
		"Nothing is persisted. Probes are bounded reads; large tables may take a while."

	descAnalyzeTableParam = "Table to analyze as owner.table; a bare name resolves against the search path"

	descAnalyzeTask = "Claim and analyze a queued task, persisting the result. " +
		"Fails if another worker is already analyzing the task."

	descTaskID = "Numeric task id"

	descGetResult = "Return the stored analysis result of a task."

	descListTasks = "List queued and analyzed tasks with their status and readiness. " +
		"Use this to find task ids for analyze_task and get_result."

	descListTasksParam = "Optional status filter: PENDING, ANALYZING, ANALYZED or FAILED"
)

// Analyzer runs table analyses.
type Analyzer interface {
	AnalyzeTable(ctx context.Context, ref domain.TableRef) (*domain.AnalysisResult, error)
	AnalyzeTask(ctx context.Context, id int64) (*domain.AnalysisResult, error)
}

// Tasks reads persisted tasks and results.
type Tasks interface {
	GetResult(ctx context.Context, taskID int64) (*domain.AnalysisResult, error)
	ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error)
}

// RegisterTools adds the analysis tools. Task tools are only registered when a
// task store is available.
func RegisterTools(s *server.MCPServer, analyzer Analyzer, tasks Tasks) {
	s.AddTool(
		mcp.NewTool("analyze_table",
			mcp.WithDescription(descAnalyzeTable),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description(descAnalyzeTableParam),
			),
		),
		analyzeTableHandler(analyzer),
	)

	if tasks == nil {
		return
	}

	s.AddTool(
		mcp.NewTool("analyze_task",
			mcp.WithDescription(descAnalyzeTask),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description(descTaskID),
			),
		),
		analyzeTaskHandler(analyzer),
	)

	s.AddTool(
		mcp.NewTool("get_result",
			mcp.WithDescription(descGetResult),
			mcp.WithNumber("task_id",
				mcp.Required(),
				mcp.Description(descTaskID),
			),
		),
		getResultHandler(tasks),
	)

	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription(descListTasks),
			mcp.WithString("status",
				mcp.Description(descListTasksParam),
			),
		),
		listTasksHandler(tasks),
	)
}

// taskID reads a positive integral task_id argument.
func taskID(request mcp.CallToolRequest) (int64, error) {
	v, ok := request.GetArguments()["task_id"].(float64)
	if !ok || v <= 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("task_id must be a positive integer")
	}
	return int64(v), nil
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func analyzeTableHandler(analyzer Analyzer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, ok := request.GetArguments()["table"].(string)
		if !ok || strings.TrimSpace(table) == "" {
			return mcp.NewToolResultError("table is required"), nil
		}

		result, err := analyzer.AnalyzeTable(ctx, domain.ParseTableRef(table))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return jsonResult(result), nil
	}
}

func analyzeTaskHandler(analyzer Analyzer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := taskID(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := analyzer.AnalyzeTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis of task %d failed: %v", id, err)), nil
		}
		return jsonResult(result), nil
	}
}

func getResultHandler(tasks Tasks) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := taskID(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := tasks.GetResult(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get result: %v", err)), nil
		}
		return jsonResult(result), nil
	}
}

func listTasksHandler(tasks Tasks) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, _ := request.GetArguments()["status"].(string)
		status := domain.TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if status != "" && !status.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status %q: must be PENDING, ANALYZING, ANALYZED or FAILED", raw)), nil
		}

		list, err := tasks.ListTasks(ctx, status)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
		}
		return jsonResult(list), nil
	}
}
