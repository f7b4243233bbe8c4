package workflow

import "errors"

var (
	// ErrEmptyQuery indicates the state has no user query to work from.
	ErrEmptyQuery = errors.New("user query is empty")
	// ErrNoSources indicates synthesis found no usable sources.
	ErrNoSources = errors.New("no sources available")
	// ErrEmptyDraft indicates validation was invoked without a draft report.
	ErrEmptyDraft = errors.New("draft report is empty")
	// ErrEmptyEdit indicates an edit decision carried no replacement text.
	ErrEmptyEdit = errors.New("edited report text is empty")
	// ErrNotAwaitingDecision indicates the state is not suspended at review.
	ErrNotAwaitingDecision = errors.New("workflow is not awaiting a review decision")
	// ErrInvalidDecision indicates an unrecognized review decision.
	ErrInvalidDecision = errors.New("invalid review decision")
)
