package mcp

import (
	"context"

	"github.com/calv/inquest/internal/domain/task"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools registers the research tools on the server.
func registerTools(server *sdkmcp.Server, svc ResearchService) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "submit_research",
		Description: "Submit a research question; returns a task ID while the report pipeline runs in the background",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params SubmitResearchParams) (*sdkmcp.CallToolResult, TaskResponse, error) {
		rec, err := svc.Submit(ctx, params.Query)
		if err != nil {
			return nil, TaskResponse{}, MapError(err)
		}
		return nil, taskResponse(rec, nil), nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_task_status",
		Description: "Get the lifecycle status and current pipeline stage of a research task",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params TaskStatusParams) (*sdkmcp.CallToolResult, TaskResponse, error) {
		rec, err := svc.Status(ctx, params.TaskID)
		if err != nil {
			return nil, TaskResponse{}, MapError(err)
		}
		var confidence *float64
		if rec.Status == task.StatusCompleted || rec.Status == task.StatusNeedsReview {
			if res, err := svc.StoredResult(ctx, params.TaskID); err == nil {
				confidence = &res.Confidence
			}
		}
		return nil, taskResponse(rec, confidence), nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_task_result",
		Description: "Get the finished report and cited sources of a completed research task",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params TaskResultParams) (*sdkmcp.CallToolResult, ResultResponse, error) {
		res, err := svc.Result(ctx, params.TaskID)
		if err != nil {
			return nil, ResultResponse{}, MapError(err)
		}
		return nil, resultResponse(res), nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "submit_review_decision",
		Description: "Resolve a task awaiting review: approve or edit completes it, reject discards the draft",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params ReviewDecisionParams) (*sdkmcp.CallToolResult, TaskResponse, error) {
		rec, err := svc.SubmitReviewDecision(ctx, params.TaskID, task.ReviewDecision(params.Decision), params.EditedReport)
		if err != nil {
			return nil, TaskResponse{}, MapError(err)
		}
		return nil, taskResponse(rec, nil), nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_tasks",
		Description: "List research tasks, newest first, optionally filtered by status",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params ListTasksParams) (*sdkmcp.CallToolResult, TaskListResponse, error) {
		refs, err := svc.List(ctx, task.ListOptions{
			Status: task.Status(params.Status),
			Limit:  params.Limit,
			Offset: params.Offset,
		})
		if err != nil {
			return nil, TaskListResponse{}, MapError(err)
		}
		resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(refs))}
		for _, ref := range refs {
			resp.Tasks = append(resp.Tasks, TaskResponse{
				TaskID:    ref.ID,
				Query:     ref.Query,
				Status:    string(ref.Status),
				Stage:     ref.Stage,
				CreatedAt: ref.CreatedAt,
				UpdatedAt: ref.UpdatedAt,
			})
		}
		return nil, resp, nil
	})
}

func taskResponse(rec *task.Record, confidence *float64) TaskResponse {
	return TaskResponse{
		TaskID:       rec.ID,
		Query:        rec.Query,
		Status:       string(rec.Status),
		Stage:        rec.Stage,
		Confidence:   confidence,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func resultResponse(res *task.Result) ResultResponse {
	sources := make([]SourceResponse, 0, len(res.Sources))
	for _, s := range res.Sources {
		sources = append(sources, SourceResponse{
			ID:      s.ID,
			Title:   s.Title,
			Locator: s.Locator,
			Score:   s.Score,
		})
	}
	return ResultResponse{
		TaskID:     res.TaskID,
		Report:     res.Report,
		Confidence: res.Confidence,
		Sources:    sources,
	}
}
