package mcp

import (
	"errors"
	"fmt"

	"github.com/calv/inquest/internal/domain/research"
	"github.com/calv/inquest/internal/domain/task"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return &APIError{Code: "TASK_NOT_FOUND", Message: "task not found", RecoveryHint: "Check the task ID"}
	case errors.Is(err, task.ErrInvalidTransition):
		return &APIError{Code: "INVALID_TRANSITION", Message: err.Error(), RecoveryHint: "Check the task status first"}
	case errors.Is(err, task.ErrNotAwaitingReview):
		return &APIError{Code: "NOT_AWAITING_REVIEW", Message: err.Error(), RecoveryHint: "Only needs_review tasks accept decisions"}
	case errors.Is(err, task.ErrInvalidDecision):
		return &APIError{Code: "INVALID_DECISION", Message: err.Error(), RecoveryHint: "Use approve, edit, or reject"}
	case errors.Is(err, task.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, task.ErrResultNotFound):
		return &APIError{Code: "RESULT_NOT_FOUND", Message: "no result stored for task", RecoveryHint: "Check the task ID"}
	case errors.Is(err, research.ErrResultNotReady):
		return &APIError{Code: "RESULT_NOT_READY", Message: err.Error(), RecoveryHint: "Poll get_task_status until the task completes"}
	default:
		return err
	}
}
