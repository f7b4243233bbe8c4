// Package mcp exposes the research facade as MCP tools over stdio or
// streamable HTTP.
package mcp

import (
	"context"
	"log/slog"

	"github.com/calv/inquest/internal/domain/task"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `Research report generation over an ingested document corpus.

Submit a question with submit_research; it returns a task ID immediately
while the pipeline (search, synthesis, validation) runs in the background.
Poll get_task_status, then fetch the report with get_task_result. Drafts
with low validation confidence stop in needs_review; resolve them with
submit_review_decision (approve, edit, or reject).`

// ResearchService defines the facade operations needed by MCP.
type ResearchService interface {
	Submit(ctx context.Context, query string) (*task.Record, error)
	Status(ctx context.Context, id string) (*task.Record, error)
	Result(ctx context.Context, id string) (*task.Result, error)
	StoredResult(ctx context.Context, id string) (*task.Result, error)
	SubmitReviewDecision(ctx context.Context, id string, decision task.ReviewDecision, editedReport string) (*task.Record, error)
	List(ctx context.Context, opts task.ListOptions) ([]task.TaskRef, error)
}

// Config contains server configuration.
type Config struct {
	Service ResearchService
	Logger  *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "inquest",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Service)

	return server
}
