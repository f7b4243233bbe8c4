package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager coordinates task lifecycle transitions. All status changes pass
// through a single mutex so concurrent callers observe a consistent
// sequence of states.
type Manager struct {
	repo   Repository
	logger *slog.Logger
	mu     sync.Mutex
}

// NewManager creates a new task manager.
func NewManager(repo Repository, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger,
	}
}

// Create registers a new pending task for a query.
func (m *Manager) Create(ctx context.Context, query string) (*Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	m.logger.Info("task created", "task_id", rec.ID)
	return rec, nil
}

// Start moves a pending task to running. Exactly one of any concurrent
// Start calls for the same task succeeds.
func (m *Manager) Start(ctx context.Context, id string) (*Record, error) {
	return m.transition(ctx, id, func(rec *Record) error {
		if !CanTransition(rec.Status, StatusRunning) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusRunning)
		}
		rec.Status = StatusRunning
		return nil
	})
}

// UpdateProgress records the current pipeline stage on the task row. It
// is advisory and does not change status, so only terminal tasks refuse
// it.
func (m *Manager) UpdateProgress(ctx context.Context, id, stage string) (*Record, error) {
	return m.transition(ctx, id, func(rec *Record) error {
		if IsTerminal(rec.Status) {
			return fmt.Errorf("%w: cannot update progress in status %s", ErrInvalidTransition, rec.Status)
		}
		rec.Stage = stage
		return nil
	})
}

// Complete stores the finished result and marks the task completed. The
// transition is validated before the result row is written so a rejected
// call leaves no stored result behind. Completing an already completed
// task with the same report is a no-op; a different report is refused.
func (m *Manager) Complete(ctx context.Context, id string, res *Result) (*Record, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: result is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusCompleted {
		stored, err := m.repo.GetResult(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading stored result: %w", err)
		}
		if stored.Report == res.Report {
			return cur, nil
		}
		return nil, fmt.Errorf("%w: task %s already completed with a different result", ErrInvalidTransition, id)
	}
	if !CanTransition(cur.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, StatusCompleted)
	}

	res.TaskID = id
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	if err := m.repo.SaveResult(ctx, res); err != nil {
		return nil, fmt.Errorf("saving result: %w", err)
	}

	rec, err := m.repo.Transition(ctx, id, func(rec *Record) error {
		if !CanTransition(rec.Status, StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusCompleted)
		}
		rec.Status = StatusCompleted
		rec.ResultRef = id
		rec.Stage = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("task completed", "task_id", id, "confidence", res.Confidence)
	return rec, nil
}

// Fail marks a task as failed with an error message.
func (m *Manager) Fail(ctx context.Context, id, message string) (*Record, error) {
	rec, err := m.transition(ctx, id, func(rec *Record) error {
		if !CanTransition(rec.Status, StatusFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusFailed)
		}
		rec.Status = StatusFailed
		rec.ErrorMessage = message
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Warn("task failed", "task_id", id, "error", message)
	return rec, nil
}

// MarkNeedsReview stores the candidate result and parks the task pending
// a reviewer decision. Like Complete, the transition is validated before
// the result row is written.
func (m *Manager) MarkNeedsReview(ctx context.Context, id string, res *Result) (*Record, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: result is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, StatusNeedsReview) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, StatusNeedsReview)
	}

	res.TaskID = id
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	if err := m.repo.SaveResult(ctx, res); err != nil {
		return nil, fmt.Errorf("saving result: %w", err)
	}

	rec, err := m.repo.Transition(ctx, id, func(rec *Record) error {
		if !CanTransition(rec.Status, StatusNeedsReview) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusNeedsReview)
		}
		rec.Status = StatusNeedsReview
		rec.ResultRef = id
		rec.Stage = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("task needs review", "task_id", id, "confidence", res.Confidence)
	return rec, nil
}

// ResolveReview applies a reviewer decision to a task awaiting review.
// Approve and edit complete the task; reject moves it to rejected. An
// edit decision replaces the stored report text.
func (m *Manager) ResolveReview(ctx context.Context, id string, decision ReviewDecision, editedReport string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusNeedsReview {
		return nil, fmt.Errorf("%w: task %s is %s", ErrNotAwaitingReview, id, rec.Status)
	}

	var target Status
	switch decision {
	case DecisionApprove:
		target = StatusCompleted
	case DecisionEdit:
		if strings.TrimSpace(editedReport) == "" {
			return nil, fmt.Errorf("%w: edited report is required", ErrInvalidInput)
		}
		target = StatusCompleted
	case DecisionReject:
		target = StatusRejected
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	if decision == DecisionEdit {
		res, err := m.repo.GetResult(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading result for edit: %w", err)
		}
		res.Report = editedReport
		if err := m.repo.SaveResult(ctx, res); err != nil {
			return nil, fmt.Errorf("saving edited result: %w", err)
		}
	}

	rec, err = m.repo.Transition(ctx, id, func(rec *Record) error {
		if !CanTransition(rec.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, target)
		}
		rec.Status = target
		if target == StatusRejected {
			rec.ErrorMessage = "review rejected"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("review resolved", "task_id", id, "decision", decision, "status", rec.Status)
	return rec, nil
}

// Get returns a task by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	return m.repo.Get(ctx, id)
}

// List returns task references matching the options.
func (m *Manager) List(ctx context.Context, opts ListOptions) ([]TaskRef, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return m.repo.List(ctx, opts)
}

// Result returns the stored result for a task. Results exist once a task
// reaches needs_review or completed.
func (m *Manager) Result(ctx context.Context, id string) (*Result, error) {
	return m.repo.GetResult(ctx, id)
}

// SaveSnapshot persists serialized workflow state for later resumption.
func (m *Manager) SaveSnapshot(ctx context.Context, id string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.SaveSnapshot(ctx, id, state)
}

// Snapshot returns the stored workflow state for a task.
func (m *Manager) Snapshot(ctx context.Context, id string) ([]byte, error) {
	return m.repo.GetSnapshot(ctx, id)
}

func (m *Manager) transition(ctx context.Context, id string, apply func(*Record) error) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.Transition(ctx, id, apply)
}
