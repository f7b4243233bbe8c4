package task

import "context"

// Repository provides persistence for tasks and their results.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]TaskRef, error)
	// Transition atomically loads the task, applies the mutation, and
	// persists the updated record in a single transaction.
	Transition(ctx context.Context, id string, apply func(*Record) error) (*Record, error)
	SaveResult(ctx context.Context, res *Result) error
	GetResult(ctx context.Context, taskID string) (*Result, error)
	SaveSnapshot(ctx context.Context, taskID string, state []byte) error
	GetSnapshot(ctx context.Context, taskID string) ([]byte, error)
}

// ListOptions filters and bounds task listings.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}
