package task_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/calv/inquest/internal/domain/task"
	"github.com/stretchr/testify/require"
)

// memRepo is a map-backed Repository for manager tests. Transition holds
// the repo lock for the whole read-mutate-write cycle, matching the
// transactional behavior of the real store.
type memRepo struct {
	mu        sync.Mutex
	tasks     map[string]task.Record
	results   map[string]task.Result
	snapshots map[string][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{
		tasks:     make(map[string]task.Record),
		results:   make(map[string]task.Result),
		snapshots: make(map[string][]byte),
	}
}

func (r *memRepo) Create(_ context.Context, rec *task.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[rec.ID] = *rec
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*task.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[id]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return &rec, nil
}

func (r *memRepo) List(_ context.Context, opts task.ListOptions) ([]task.TaskRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []task.TaskRef
	for _, rec := range r.tasks {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		refs = append(refs, task.TaskRef{ID: rec.ID, Query: rec.Query, Status: rec.Status})
	}
	return refs, nil
}

func (r *memRepo) Transition(_ context.Context, id string, apply func(*task.Record) error) (*task.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[id]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	if err := apply(&rec); err != nil {
		return nil, err
	}
	r.tasks[id] = rec
	return &rec, nil
}

func (r *memRepo) SaveResult(_ context.Context, res *task.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.TaskID] = *res
	return nil
}

func (r *memRepo) GetResult(_ context.Context, taskID string) (*task.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[taskID]
	if !ok {
		return nil, task.ErrResultNotFound
	}
	return &res, nil
}

func (r *memRepo) SaveSnapshot(_ context.Context, taskID string, state []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[taskID] = state
	return nil
}

func (r *memRepo) GetSnapshot(_ context.Context, taskID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.snapshots[taskID]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return state, nil
}

func newTestManager(t *testing.T) (*task.Manager, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	return task.NewManager(repo, slog.Default()), repo
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "impact of solar storms on satellites")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, task.StatusPending, rec.Status)
	require.False(t, rec.CreatedAt.IsZero())
}

func TestManager_Create_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.Create(ctx, "   ")
	require.ErrorIs(t, err, task.ErrInvalidInput)
}

func TestManager_Start(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)

	started, err := mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusRunning, started.Status)

	// A second start on a running task is rejected.
	_, err = mgr.Start(ctx, rec.ID)
	require.ErrorIs(t, err, task.ErrInvalidTransition)
}

func TestManager_Start_ConcurrentExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)

	const goroutines = 16
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = mgr.Start(ctx, rec.ID)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, task.ErrInvalidTransition)
		}
	}
	require.Equal(t, 1, successes)

	got, err := mgr.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusRunning, got.Status)
}

func TestManager_UpdateProgress(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)

	updated, err := mgr.UpdateProgress(ctx, rec.ID, "searching")
	require.NoError(t, err)
	require.Equal(t, "searching", updated.Stage)
	require.Equal(t, task.StatusRunning, updated.Status)

	_, err = mgr.Fail(ctx, rec.ID, "boom")
	require.NoError(t, err)

	_, err = mgr.UpdateProgress(ctx, rec.ID, "synthesis")
	require.ErrorIs(t, err, task.ErrInvalidTransition)
}

func TestManager_Complete_StoresResultFirst(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)

	done, err := mgr.Complete(ctx, rec.ID, &task.Result{
		Report:     "report text",
		Confidence: 0.85,
		Sources:    []task.Source{{ID: "s1", Title: "Doc", Score: 0.9}},
	})
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, done.Status)

	res, err := mgr.Result(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "report text", res.Report)
	require.InDelta(t, 0.85, res.Confidence, 1e-9)
	require.Len(t, res.Sources, 1)
}

func TestManager_Complete_Idempotent(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)

	first, err := mgr.Complete(ctx, rec.ID, &task.Result{Report: "report"})
	require.NoError(t, err)
	require.Equal(t, rec.ID, first.ResultRef)

	again, err := mgr.Complete(ctx, rec.ID, &task.Result{Report: "report"})
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, again.Status)
}

func TestManager_Complete_RejectsDifferentResult(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, rec.ID, &task.Result{Report: "report A"})
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, rec.ID, &task.Result{Report: "report B"})
	require.ErrorIs(t, err, task.ErrInvalidTransition)

	res, err := mgr.Result(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "report A", res.Report)
}

func TestManager_Complete_OnFailedTaskWritesNothing(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	_, err = mgr.Fail(ctx, rec.ID, "pipeline error")
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, rec.ID, &task.Result{Report: "late report"})
	require.ErrorIs(t, err, task.ErrInvalidTransition)

	_, err = mgr.Result(ctx, rec.ID)
	require.ErrorIs(t, err, task.ErrResultNotFound)
}

func TestManager_MarkNeedsReview_OnFailedTaskWritesNothing(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	_, err = mgr.Fail(ctx, rec.ID, "pipeline error")
	require.NoError(t, err)

	_, err = mgr.MarkNeedsReview(ctx, rec.ID, &task.Result{Report: "draft"})
	require.ErrorIs(t, err, task.ErrInvalidTransition)

	_, err = mgr.Result(ctx, rec.ID)
	require.ErrorIs(t, err, task.ErrResultNotFound)
}

func TestManager_Complete_FromPending(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, rec.ID, &task.Result{Report: "r"})
	require.ErrorIs(t, err, task.ErrInvalidTransition)
}

func TestManager_Fail(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)

	failed, err := mgr.Fail(ctx, rec.ID, "no sources available")
	require.NoError(t, err)
	require.Equal(t, task.StatusFailed, failed.Status)
	require.Equal(t, "no sources available", failed.ErrorMessage)

	// Terminal: no further transitions.
	_, err = mgr.Fail(ctx, rec.ID, "again")
	require.ErrorIs(t, err, task.ErrInvalidTransition)
}

func TestManager_ReviewFlow_Approve(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)

	parked, err := mgr.MarkNeedsReview(ctx, rec.ID, &task.Result{Report: "draft", Confidence: 0.55})
	require.NoError(t, err)
	require.Equal(t, task.StatusNeedsReview, parked.Status)

	resolved, err := mgr.ResolveReview(ctx, rec.ID, task.DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, resolved.Status)

	res, err := mgr.Result(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "draft", res.Report)
}

func TestManager_ReviewFlow_Edit(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	_, err = mgr.MarkNeedsReview(ctx, rec.ID, &task.Result{Report: "draft", Confidence: 0.55})
	require.NoError(t, err)

	resolved, err := mgr.ResolveReview(ctx, rec.ID, task.DecisionEdit, "corrected report")
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, resolved.Status)

	res, err := mgr.Result(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "corrected report", res.Report)
}

func TestManager_ReviewFlow_EditEmptyText(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	_, err = mgr.MarkNeedsReview(ctx, rec.ID, &task.Result{Report: "draft"})
	require.NoError(t, err)

	_, err = mgr.ResolveReview(ctx, rec.ID, task.DecisionEdit, "  ")
	require.ErrorIs(t, err, task.ErrInvalidInput)

	// Task is still reviewable after a bad edit attempt.
	got, err := mgr.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusNeedsReview, got.Status)
}

func TestManager_ReviewFlow_Reject(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	_, err = mgr.MarkNeedsReview(ctx, rec.ID, &task.Result{Report: "draft"})
	require.NoError(t, err)

	resolved, err := mgr.ResolveReview(ctx, rec.ID, task.DecisionReject, "")
	require.NoError(t, err)
	require.Equal(t, task.StatusRejected, resolved.Status)

	// A second decision on a resolved task is rejected.
	_, err = mgr.ResolveReview(ctx, rec.ID, task.DecisionApprove, "")
	require.ErrorIs(t, err, task.ErrNotAwaitingReview)
}

func TestManager_ResolveReview_NotAwaiting(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)

	_, err = mgr.ResolveReview(ctx, rec.ID, task.DecisionApprove, "")
	require.ErrorIs(t, err, task.ErrNotAwaitingReview)
}

func TestManager_ResolveReview_InvalidDecision(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)
	_, err = mgr.Start(ctx, rec.ID)
	require.NoError(t, err)
	_, err = mgr.MarkNeedsReview(ctx, rec.ID, &task.Result{Report: "draft"})
	require.NoError(t, err)

	_, err = mgr.ResolveReview(ctx, rec.ID, task.ReviewDecision("defer"), "")
	require.ErrorIs(t, err, task.ErrInvalidDecision)
}

func TestManager_List_FilterByStatus(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	for i := range 3 {
		rec, err := mgr.Create(ctx, fmt.Sprintf("query %d", i))
		require.NoError(t, err)
		if i == 0 {
			_, err = mgr.Start(ctx, rec.ID)
			require.NoError(t, err)
		}
	}

	pending, err := mgr.List(ctx, task.ListOptions{Status: task.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	running, err := mgr.List(ctx, task.ListOptions{Status: task.StatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
}

func TestManager_Snapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	rec, err := mgr.Create(ctx, "q")
	require.NoError(t, err)

	require.NoError(t, mgr.SaveSnapshot(ctx, rec.ID, []byte(`{"stage":"search"}`)))
	state, err := mgr.Snapshot(ctx, rec.ID)
	require.NoError(t, err)
	require.JSONEq(t, `{"stage":"search"}`, string(state))
}
