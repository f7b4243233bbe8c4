package mcp

import "time"

// SubmitResearchParams are the arguments for submit_research.
type SubmitResearchParams struct {
	Query string `json:"query" jsonschema:"the research question to investigate"`
}

// TaskStatusParams are the arguments for get_task_status.
type TaskStatusParams struct {
	TaskID string `json:"task_id" jsonschema:"the task identifier returned by submit_research"`
}

// TaskResultParams are the arguments for get_task_result.
type TaskResultParams struct {
	TaskID string `json:"task_id" jsonschema:"the task identifier returned by submit_research"`
}

// ReviewDecisionParams are the arguments for submit_review_decision.
type ReviewDecisionParams struct {
	TaskID       string `json:"task_id" jsonschema:"the task awaiting review"`
	Decision     string `json:"decision" jsonschema:"one of approve, edit, reject"`
	EditedReport string `json:"edited_report,omitempty" jsonschema:"replacement report text, required for edit"`
}

// ListTasksParams are the arguments for list_tasks.
type ListTasksParams struct {
	Status string `json:"status,omitempty" jsonschema:"filter by status: pending, running, needs_review, completed, failed, rejected"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of tasks to return"`
	Offset int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

// TaskResponse is the task view returned by status and review tools.
type TaskResponse struct {
	TaskID       string    `json:"task_id"`
	Query        string    `json:"query"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SourceResponse is one cited source in a result.
type SourceResponse struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Locator string  `json:"locator,omitempty"`
	Score   float64 `json:"score"`
}

// ResultResponse is the finished report returned by get_task_result.
type ResultResponse struct {
	TaskID     string           `json:"task_id"`
	Report     string           `json:"report"`
	Confidence float64          `json:"confidence"`
	Sources    []SourceResponse `json:"sources"`
}

// TaskListResponse is the response of list_tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}
