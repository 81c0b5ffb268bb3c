package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/partwise/internal/core/port"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with the analysis tools and logging hooks.
// tasks may be nil for a server that only analyzes ad hoc.
func NewServer(version string, analyzer Analyzer, tasks Tasks, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, analyzer, tasks)

	return s
}
