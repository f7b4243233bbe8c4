package task

import "time"

// Status represents the lifecycle state of a research task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusNeedsReview Status = "needs_review"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRejected    Status = "rejected"
)

// validTransitions maps each status to the statuses it may move into.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusRunning, StatusFailed},
	StatusRunning:     {StatusRunning, StatusNeedsReview, StatusCompleted, StatusFailed},
	StatusNeedsReview: {StatusCompleted, StatusRejected},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusRejected:    {},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

// Record is the persisted representation of a research task.
type Record struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Status       Status    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	// ResultRef keys the stored result row once the task reaches
	// needs_review or completed.
	ResultRef    string    `json:"result_ref,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Source identifies one document cited by a report.
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Locator string  `json:"locator,omitempty"`
	Score   float64 `json:"score"`
}

// Result holds the finished output of a completed task.
type Result struct {
	TaskID     string    `json:"task_id"`
	Report     string    `json:"report"`
	Confidence float64   `json:"confidence"`
	Sources    []Source  `json:"sources"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewDecision is a reviewer's verdict on a task awaiting review.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionEdit    ReviewDecision = "edit"
	DecisionReject  ReviewDecision = "reject"
)

// TaskRef is a lightweight listing view of a task.
type TaskRef struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    Status    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
