package repository

import (
	"context"

	"github.com/calv/inquest/internal/domain/task"
)

// TaskRepository manages task persistence
type TaskRepository interface {
	Create(ctx context.Context, rec *task.Record) error
	Get(ctx context.Context, id string) (*task.Record, error)
	List(ctx context.Context, opts task.ListOptions) ([]task.TaskRef, error)
	Transition(ctx context.Context, id string, apply func(*task.Record) error) (*task.Record, error)
	SaveResult(ctx context.Context, res *task.Result) error
	GetResult(ctx context.Context, taskID string) (*task.Result, error)
	SaveSnapshot(ctx context.Context, taskID string, state []byte) error
	GetSnapshot(ctx context.Context, taskID string) ([]byte, error)
}
