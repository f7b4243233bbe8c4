package workflow

import (
	"context"
	"log/slog"
)

// Config holds the tunable knobs of the pipeline.
type Config struct {
	// TopK is the retrieval depth for each search query.
	TopK int
	// MaxResults caps the merged search result list.
	MaxResults int
	// MaxSources caps the sources handed to synthesis.
	MaxSources int
	// ReviewThreshold routes drafts scoring below it to human review.
	ReviewThreshold float64
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		TopK:            10,
		MaxResults:      20,
		MaxSources:      30,
		ReviewThreshold: 0.7,
	}
}

// ProgressFunc is invoked at every stage boundary with the updated state.
// Implementations typically persist a snapshot and record progress.
type ProgressFunc func(ctx context.Context, st State)

// Engine drives a State through the pipeline stages in order.
type Engine struct {
	completer Completer
	searcher  Searcher
	passages  PassageStore
	cfg       Config
	logger    *slog.Logger
	progress  ProgressFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithProgress sets the stage-boundary callback.
func WithProgress(fn ProgressFunc) EngineOption {
	return func(e *Engine) {
		e.progress = fn
	}
}

// NewEngine creates a workflow engine over the given collaborators.
func NewEngine(completer Completer, searcher Searcher, passages PassageStore, cfg Config, logger *slog.Logger, opts ...EngineOption) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 30
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.7
	}
	e := &Engine{
		completer: completer,
		searcher:  searcher,
		passages:  passages,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the pipeline from the state's current position. Each stage
// runs at most once; a stage error moves the state into the absorbing
// failed stage and halts. When validation routes to review the returned
// state is suspended at StageReview awaiting Resolve. States already at
// StageReview, StageDone, or StageFailed are returned unchanged; a review
// suspension is lifted only through Resolve.
func (e *Engine) Run(ctx context.Context, st State) State {
	if st.Stage == StageReview || st.Stage == StageDone || st.Stage == StageFailed {
		return st
	}

	st, err := e.Search(ctx, st)
	if err != nil {
		return e.fail(ctx, st, StageSearch, err)
	}
	e.report(ctx, st)

	st.Stage = StageSynthesis
	st, err = e.Synthesize(ctx, st)
	if err != nil {
		return e.fail(ctx, st, StageSynthesis, err)
	}
	e.report(ctx, st)

	st.Stage = StageValidation
	st, disposition, err := e.Validate(ctx, st)
	if err != nil {
		return e.fail(ctx, st, StageValidation, err)
	}

	switch disposition {
	case DispositionFinalize:
		st.FinalReport = st.DraftReport
		st.Stage = StageDone
	case DispositionReview:
		st.Stage = StageReview
	}
	e.report(ctx, st)

	return st
}

func (e *Engine) fail(ctx context.Context, st State, at Stage, err error) State {
	e.logger.Error("workflow stage failed", "task_id", st.TaskID, "stage", at, "error", err)
	st = st.failed(at, err.Error())
	e.report(ctx, st)
	return st
}

func (e *Engine) report(ctx context.Context, st State) {
	if e.progress != nil {
		e.progress(ctx, st)
	}
}
