package workflow

// Stage identifies the pipeline position of a workflow execution.
type Stage string

const (
	StageSearch     Stage = "search"
	StageSynthesis  Stage = "synthesis"
	StageValidation Stage = "validation"
	StageReview     Stage = "review"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet,omitempty"`
	Title    string  `json:"title,omitempty"`
	Locator  string  `json:"locator,omitempty"`
}

// Passage is a fully hydrated source document.
type Passage struct {
	SourceID string `json:"source_id"`
	FullText string `json:"full_text"`
	Title    string `json:"title,omitempty"`
	Locator  string `json:"locator,omitempty"`
}

// Validation holds the structured outcome of the validation stage.
type Validation struct {
	IsValid           bool     `json:"is_valid"`
	BaseScore         float64  `json:"base_score"`
	CitationCoverage  float64  `json:"citation_coverage"`
	InvalidCitations  []int    `json:"invalid_citations,omitempty"`
	UnsupportedClaims []string `json:"unsupported_claims,omitempty"`
	Contradictions    []string `json:"contradictions,omitempty"`
}

// Failure records an unrecoverable stage error. Once set it is never cleared.
type Failure struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// State is the single record threaded through all pipeline stages. Each
// execution owns its State exclusively; stages take and return it by value.
type State struct {
	TaskID        string         `json:"task_id"`
	UserQuery     string         `json:"user_query"`
	SearchQueries []string       `json:"search_queries,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
	Passages      []Passage      `json:"retrieved_passages,omitempty"`
	DraftReport   string         `json:"draft_report,omitempty"`
	Validation    *Validation    `json:"validation,omitempty"`
	Confidence    float64        `json:"confidence_score"`
	NeedsReview   bool           `json:"needs_review"`
	FinalReport   string         `json:"final_report,omitempty"`
	Failure       *Failure       `json:"failure,omitempty"`
	Stage         Stage          `json:"current_stage"`
}

// NewState creates a fresh state for a task and query, positioned at the
// first pipeline stage.
func NewState(taskID, userQuery string) State {
	return State{
		TaskID:    taskID,
		UserQuery: userQuery,
		Stage:     StageSearch,
	}
}

// failed returns a copy of the state moved into the absorbing failed stage.
func (s State) failed(at Stage, message string) State {
	s.Failure = &Failure{Stage: at, Message: message}
	s.Stage = StageFailed
	return s
}
