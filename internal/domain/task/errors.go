package task

import "errors"

var (
	// ErrTaskNotFound indicates the task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition indicates an invalid status transition.
	ErrInvalidTransition = errors.New("invalid task status transition")
	// ErrResultNotFound indicates the task has no stored result.
	ErrResultNotFound = errors.New("task result not found")
	// ErrNotAwaitingReview indicates the task is not in the review state.
	ErrNotAwaitingReview = errors.New("task is not awaiting review")
	// ErrInvalidDecision indicates an unrecognized review decision.
	ErrInvalidDecision = errors.New("invalid review decision")
	// ErrInvalidInput indicates invalid input for task operations.
	ErrInvalidInput = errors.New("invalid task input")
)
