package mocks

import (
	"context"

	"github.com/calv/inquest/internal/domain/task"
	"github.com/stretchr/testify/mock"
)

// TaskRepository is a mock for repository.TaskRepository.
type TaskRepository struct {
	mock.Mock
}

func (m *TaskRepository) Create(ctx context.Context, rec *task.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *TaskRepository) Get(ctx context.Context, id string) (*task.Record, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*task.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) List(ctx context.Context, opts task.ListOptions) ([]task.TaskRef, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]task.TaskRef); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) Transition(ctx context.Context, id string, apply func(*task.Record) error) (*task.Record, error) {
	args := m.Called(ctx, id, apply)
	if rec, ok := args.Get(0).(*task.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) SaveResult(ctx context.Context, res *task.Result) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *TaskRepository) GetResult(ctx context.Context, taskID string) (*task.Result, error) {
	args := m.Called(ctx, taskID)
	if res, ok := args.Get(0).(*task.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) SaveSnapshot(ctx context.Context, taskID string, state []byte) error {
	args := m.Called(ctx, taskID, state)
	return args.Error(0)
}

func (m *TaskRepository) GetSnapshot(ctx context.Context, taskID string) ([]byte, error) {
	args := m.Called(ctx, taskID)
	if state, ok := args.Get(0).([]byte); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}
