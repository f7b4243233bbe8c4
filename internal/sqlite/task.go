package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calv/inquest/internal/domain/task"
	"github.com/calv/inquest/internal/repository"
)

// TaskRepository implements repository.TaskRepository for SQLite
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task record
func (r *TaskRepository) Create(ctx context.Context, rec *task.Record) error {
	query := `
		INSERT INTO tasks (id, query, status, stage, result_ref, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Query,
		rec.Status,
		rec.Stage,
		rec.ResultRef,
		rec.ErrorMessage,
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// Get retrieves a task by ID
func (r *TaskRepository) Get(ctx context.Context, id string) (*task.Record, error) {
	rec, err := scanTask(r.db.QueryRowContext(ctx, selectTask+" WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

const selectTask = `
	SELECT id, query, status, stage, result_ref, error_message, created_at, updated_at
	FROM tasks
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Record, error) {
	var rec task.Record
	var stage, resultRef, errMsg sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.Query,
		&rec.Status,
		&stage,
		&resultRef,
		&errMsg,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	rec.Stage = stage.String
	rec.ResultRef = resultRef.String
	rec.ErrorMessage = errMsg.String
	return &rec, nil
}

// List returns task references, newest first, optionally filtered by status
func (r *TaskRepository) List(ctx context.Context, opts task.ListOptions) ([]task.TaskRef, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, query, status, stage, created_at, updated_at
		FROM tasks
	`)
	var args []any
	if opts.Status != "" {
		sb.WriteString(" WHERE status = ?")
		args = append(args, opts.Status)
	}
	sb.WriteString(" ORDER BY created_at DESC, id")

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var refs []task.TaskRef
	for rows.Next() {
		var ref task.TaskRef
		var stage sql.NullString
		if err := rows.Scan(&ref.ID, &ref.Query, &ref.Status, &stage, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		ref.Stage = stage.String
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Transition atomically applies a mutation to a task record. The read,
// the validation inside apply, and the write all happen in one
// transaction so concurrent transitions cannot interleave.
func (r *TaskRepository) Transition(ctx context.Context, id string, apply func(*task.Record) error) (*task.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanTask(tx.QueryRowContext(ctx, selectTask+" WHERE id = ?", id))
	if err != nil {
		return nil, err
	}

	if err := apply(rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, stage = ?, result_ref = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`,
		rec.Status,
		rec.Stage,
		rec.ResultRef,
		rec.ErrorMessage,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return rec, nil
}

// SaveResult upserts the result row for a task
func (r *TaskRepository) SaveResult(ctx context.Context, res *task.Result) error {
	sourcesJSON, err := json.Marshal(res.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_results (task_id, report, confidence, sources_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			report = excluded.report,
			confidence = excluded.confidence,
			sources_json = excluded.sources_json
	`,
		res.TaskID,
		res.Report,
		res.Confidence,
		string(sourcesJSON),
		createdAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return task.ErrTaskNotFound
		}
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult retrieves the stored result for a task
func (r *TaskRepository) GetResult(ctx context.Context, taskID string) (*task.Result, error) {
	var res task.Result
	var sourcesJSON string
	err := r.db.QueryRowContext(ctx, `
		SELECT task_id, report, confidence, sources_json, created_at
		FROM task_results
		WHERE task_id = ?
	`, taskID).Scan(&res.TaskID, &res.Report, &res.Confidence, &sourcesJSON, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &res.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	return &res, nil
}

// SaveSnapshot upserts the workflow state snapshot for a task
func (r *TaskRepository) SaveSnapshot(ctx context.Context, taskID string, state []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_states (task_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, taskID, string(state), time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return task.ErrTaskNotFound
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the workflow state snapshot for a task
func (r *TaskRepository) GetSnapshot(ctx context.Context, taskID string) ([]byte, error) {
	var state string
	err := r.db.QueryRowContext(ctx, `
		SELECT state FROM workflow_states WHERE task_id = ?
	`, taskID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return []byte(state), nil
}
