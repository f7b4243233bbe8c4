package workflow

import (
	"fmt"
	"strings"
)

// Decision is a reviewer's verdict on a suspended workflow.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionEdit    Decision = "edit"
	DecisionReject  Decision = "reject"
)

// Resolve applies a reviewer decision to a workflow suspended at the
// review stage. Resubmitting a decision to an already resolved workflow
// returns the resolved state unchanged; a decision against any other
// stage is an error. Search, synthesis and validation are never re-run.
func (e *Engine) Resolve(st State, decision Decision, editedReport string) (State, error) {
	switch st.Stage {
	case StageReview:
	case StageDone, StageFailed:
		// Already resolved; idempotent re-entry.
		return st, nil
	default:
		return st, fmt.Errorf("%w: workflow is at stage %s", ErrNotAwaitingDecision, st.Stage)
	}

	switch decision {
	case DecisionApprove:
		st.FinalReport = st.DraftReport
		st.Stage = StageDone
	case DecisionEdit:
		if strings.TrimSpace(editedReport) == "" {
			return st, ErrEmptyEdit
		}
		st.FinalReport = editedReport
		st.Stage = StageDone
	case DecisionReject:
		st = st.failed(StageReview, "review rejected")
	default:
		return st, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	e.logger.Info("review resolved",
		"task_id", st.TaskID, "decision", decision, "stage", st.Stage)
	return st, nil
}
