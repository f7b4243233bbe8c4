// Package research is the facade over the workflow engine and the task
// lifecycle manager. Callers submit queries, poll status, fetch results,
// and resolve reviews through this service; nothing else touches both
// subsystems.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calv/inquest/internal/domain/task"
	"github.com/calv/inquest/internal/domain/workflow"
	"github.com/calv/inquest/internal/metrics"
)

// ErrResultNotReady indicates the task has not produced a final report yet.
var ErrResultNotReady = errors.New("task result is not ready")

// Service coordinates task lifecycle and workflow execution.
type Service struct {
	tasks  *task.Manager
	engine *workflow.Engine
	logger *slog.Logger

	// stageStarts tracks the last stage-boundary timestamp per task for
	// stage duration metrics.
	stageStarts sync.Map
}

// NewService creates the research facade. The engine is constructed here
// so its progress hook can persist snapshots through the task manager.
func NewService(
	tasks *task.Manager,
	completer workflow.Completer,
	searcher workflow.Searcher,
	passages workflow.PassageStore,
	cfg workflow.Config,
	logger *slog.Logger,
) *Service {
	s := &Service{
		tasks:  tasks,
		logger: logger,
	}
	s.engine = workflow.NewEngine(completer, searcher, passages, cfg, logger,
		workflow.WithProgress(s.recordProgress))
	return s
}

// Submit registers a new task and schedules workflow execution in the
// background. It returns as soon as the pending record is stored.
func (s *Service) Submit(ctx context.Context, query string) (*task.Record, error) {
	rec, err := s.tasks.Create(ctx, query)
	if err != nil {
		return nil, err
	}
	metrics.TasksSubmitted.Inc()

	// Execution outlives the submit call.
	go s.Execute(context.WithoutCancel(ctx), rec)

	return rec, nil
}

// Execute runs the full pipeline for a task and records the terminal
// outcome. Exported so callers that want synchronous execution (tests,
// batch drivers) can invoke it directly.
func (s *Service) Execute(ctx context.Context, rec *task.Record) {
	if _, err := s.tasks.Start(ctx, rec.ID); err != nil {
		s.logger.Error("could not start task", "task_id", rec.ID, "error", err)
		return
	}
	s.stageStarts.Store(rec.ID, time.Now())
	defer s.stageStarts.Delete(rec.ID)

	st := s.engine.Run(ctx, workflow.NewState(rec.ID, rec.Query))
	s.finish(ctx, st)
}

func (s *Service) finish(ctx context.Context, st workflow.State) {
	switch st.Stage {
	case workflow.StageDone:
		if _, err := s.tasks.Complete(ctx, st.TaskID, resultFromState(st)); err != nil {
			s.logger.Error("could not complete task", "task_id", st.TaskID, "error", err)
			return
		}
		metrics.TasksCompleted.Inc()

	case workflow.StageReview:
		if _, err := s.tasks.MarkNeedsReview(ctx, st.TaskID, resultFromState(st)); err != nil {
			s.logger.Error("could not park task for review", "task_id", st.TaskID, "error", err)
			return
		}
		metrics.TasksReviewRouted.Inc()

	case workflow.StageFailed:
		message := "workflow failed"
		if st.Failure != nil {
			message = st.Failure.Message
		}
		if _, err := s.tasks.Fail(ctx, st.TaskID, message); err != nil {
			s.logger.Error("could not fail task", "task_id", st.TaskID, "error", err)
			return
		}
		metrics.TasksFailed.Inc()

	default:
		s.logger.Error("workflow ended in unexpected stage", "task_id", st.TaskID, "stage", st.Stage)
	}
}

// Status returns the lifecycle record for a task.
func (s *Service) Status(ctx context.Context, id string) (*task.Record, error) {
	return s.tasks.Get(ctx, id)
}

// Result returns the finished report for a completed task. Other statuses
// yield a status-specific error.
func (s *Service) Result(ctx context.Context, id string) (*task.Result, error) {
	rec, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case task.StatusCompleted:
		return s.tasks.Result(ctx, id)
	case task.StatusFailed:
		return nil, fmt.Errorf("task failed: %s: %w", rec.ErrorMessage, ErrResultNotReady)
	case task.StatusRejected:
		return nil, fmt.Errorf("report was rejected in review: %w", ErrResultNotReady)
	case task.StatusNeedsReview:
		return nil, fmt.Errorf("task is awaiting review: %w", ErrResultNotReady)
	default:
		return nil, fmt.Errorf("task is %s: %w", rec.Status, ErrResultNotReady)
	}
}

// StoredResult returns the stored result row regardless of lifecycle
// gating. Tasks parked in needs_review have one; it carries the draft
// confidence that status reporting surfaces.
func (s *Service) StoredResult(ctx context.Context, id string) (*task.Result, error) {
	return s.tasks.Result(ctx, id)
}

// List returns task references matching the options.
func (s *Service) List(ctx context.Context, opts task.ListOptions) ([]task.TaskRef, error) {
	return s.tasks.List(ctx, opts)
}

// SubmitReviewDecision resolves a task suspended at the review stage.
// Resubmitting the same decision after resolution returns the current
// record without error.
func (s *Service) SubmitReviewDecision(ctx context.Context, id string, decision task.ReviewDecision, editedReport string) (*task.Record, error) {
	rec, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if resolved, ok := alreadyResolved(rec, decision); ok {
		return resolved, nil
	}
	if rec.Status != task.StatusNeedsReview {
		return nil, fmt.Errorf("%w: task %s is %s", task.ErrNotAwaitingReview, id, rec.Status)
	}

	st, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	st, err = s.engine.Resolve(st, workflow.Decision(decision), editedReport)
	if err != nil {
		if errors.Is(err, workflow.ErrEmptyEdit) {
			return nil, fmt.Errorf("%w: edited report is required", task.ErrInvalidInput)
		}
		if errors.Is(err, workflow.ErrInvalidDecision) {
			return nil, fmt.Errorf("%w: %q", task.ErrInvalidDecision, decision)
		}
		return nil, err
	}
	s.saveSnapshot(ctx, st)

	rec, err = s.tasks.ResolveReview(ctx, id, decision, editedReport)
	if err != nil {
		return nil, err
	}
	metrics.ReviewDecisions.WithLabelValues(string(decision)).Inc()
	return rec, nil
}

// alreadyResolved reports whether a terminal record matches the outcome
// the decision would have produced, making resubmission a no-op.
func alreadyResolved(rec *task.Record, decision task.ReviewDecision) (*task.Record, bool) {
	switch {
	case rec.Status == task.StatusCompleted && (decision == task.DecisionApprove || decision == task.DecisionEdit):
		return rec, true
	case rec.Status == task.StatusRejected && decision == task.DecisionReject:
		return rec, true
	}
	return nil, false
}

// loadSnapshot restores the persisted workflow state for a task so the
// engine can re-enter at the review boundary after a restart.
func (s *Service) loadSnapshot(ctx context.Context, id string) (workflow.State, error) {
	raw, err := s.tasks.Snapshot(ctx, id)
	if err != nil {
		return workflow.State{}, fmt.Errorf("loading workflow snapshot: %w", err)
	}
	var st workflow.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return workflow.State{}, fmt.Errorf("decoding workflow snapshot: %w", err)
	}
	return st, nil
}

func (s *Service) saveSnapshot(ctx context.Context, st workflow.State) {
	raw, err := json.Marshal(st)
	if err != nil {
		s.logger.Error("could not encode workflow snapshot", "task_id", st.TaskID, "error", err)
		return
	}
	if err := s.tasks.SaveSnapshot(ctx, st.TaskID, raw); err != nil {
		s.logger.Error("could not persist workflow snapshot", "task_id", st.TaskID, "error", err)
	}
}

// recordProgress is the engine's stage-boundary hook: it persists the
// state snapshot, advances the advisory stage on the task row, and
// observes the stage duration.
func (s *Service) recordProgress(ctx context.Context, st workflow.State) {
	s.saveSnapshot(ctx, st)

	if prev, ok := s.stageStarts.Load(st.TaskID); ok {
		metrics.StageDuration.WithLabelValues(string(st.Stage)).
			Observe(time.Since(prev.(time.Time)).Seconds())
		s.stageStarts.Store(st.TaskID, time.Now())
	}

	switch st.Stage {
	case workflow.StageSearch, workflow.StageSynthesis, workflow.StageValidation:
		if _, err := s.tasks.UpdateProgress(ctx, st.TaskID, string(st.Stage)); err != nil {
			s.logger.Warn("could not record progress", "task_id", st.TaskID, "error", err)
		}
	}
}

// resultFromState builds the persisted result from a terminal or
// review-suspended workflow state.
func resultFromState(st workflow.State) *task.Result {
	report := st.FinalReport
	if report == "" {
		report = st.DraftReport
	}

	scores := make(map[string]float64, len(st.SearchResults))
	for _, r := range st.SearchResults {
		scores[r.SourceID] = r.Score
	}

	sources := make([]task.Source, 0, len(st.Passages))
	for _, p := range st.Passages {
		sources = append(sources, task.Source{
			ID:      p.SourceID,
			Title:   p.Title,
			Locator: p.Locator,
			Score:   scores[p.SourceID],
		})
	}

	return &task.Result{
		TaskID:     st.TaskID,
		Report:     report,
		Confidence: st.Confidence,
		Sources:    sources,
	}
}
