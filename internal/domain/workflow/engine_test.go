package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/calv/inquest/internal/domain/workflow"
	"github.com/calv/inquest/internal/llm"
	"github.com/calv/inquest/internal/objectstore"
	"github.com/calv/inquest/internal/retrieval"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter routes completion calls to per-stage responses based
// on the prompt text.
type scriptedCompleter struct {
	expansion  string
	synthesis  string
	validation []string

	expansionErr error
	synthesisErr error

	validationCalls int
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	last := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(last, "research query generator"):
		if c.expansionErr != nil {
			return nil, c.expansionErr
		}
		return &llm.Response{Content: c.expansion}, nil
	case strings.Contains(last, "research report validator"):
		i := c.validationCalls
		c.validationCalls++
		if i >= len(c.validation) {
			i = len(c.validation) - 1
		}
		return &llm.Response{Content: c.validation[i]}, nil
	default:
		if c.synthesisErr != nil {
			return nil, c.synthesisErr
		}
		return &llm.Response{Content: c.synthesis}, nil
	}
}

// fakeSearcher returns the same hit list for every query.
type fakeSearcher struct {
	hits []retrieval.Hit
	err  error
}

func (s *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]retrieval.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

// fakeStore hydrates passages from a map; missing IDs are not found.
type fakeStore struct {
	passages map[string]string
}

func (s *fakeStore) Fetch(_ context.Context, id string) (*objectstore.Passage, error) {
	content, ok := s.passages[id]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return &objectstore.Passage{ID: id, Content: content, Title: "Doc " + id}, nil
}

func makeHits(n int) []retrieval.Hit {
	hits := make([]retrieval.Hit, n)
	for i := range hits {
		hits[i] = retrieval.Hit{
			SourceID: fmt.Sprintf("src-%02d", i+1),
			Score:    1.0 - float64(i)*0.01,
			Snippet:  "snippet",
		}
	}
	return hits
}

func makeStore(n int) *fakeStore {
	passages := make(map[string]string, n)
	for i := range n {
		passages[fmt.Sprintf("src-%02d", i+1)] = fmt.Sprintf("passage text %d", i+1)
	}
	return &fakeStore{passages: passages}
}

func newEngine(t *testing.T, c workflow.Completer, s workflow.Searcher, p workflow.PassageStore, opts ...workflow.EngineOption) *workflow.Engine {
	t.Helper()
	return workflow.NewEngine(c, s, p, workflow.DefaultConfig(), slog.Default(), opts...)
}

const expansionJSON = `{"queries": ["attention overview", "attention mechanisms technical", "attention recent developments"]}`

func TestEngine_Run_HappyPath(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{
		expansion:  expansionJSON,
		synthesis:  "Attention weighs token relevance [Source 1]. It scales well [Source 2].",
		validation: []string{`{"valid": true, "confidence": 0.9, "citation_coverage": 0.95, "unsupported_claims": [], "contradictions": []}`},
	}
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(20)}, makeStore(30))

	st := engine.Run(ctx, workflow.NewState("t1", "What is attention?"))

	require.Equal(t, workflow.StageDone, st.Stage)
	require.Nil(t, st.Failure)
	require.Len(t, st.SearchQueries, 3)
	require.Len(t, st.SearchResults, 20)
	require.NotEmpty(t, st.Passages)
	require.Equal(t, st.DraftReport, st.FinalReport)
	require.InDelta(t, 0.9, st.Confidence, 1e-9)
	require.False(t, st.NeedsReview)
	require.Empty(t, st.Validation.InvalidCitations)
}

func TestEngine_Run_LowConfidenceRoutesToReview(t *testing.T) {
	ctx := context.Background()
	// Draft cites source 25 but only a handful of passages hydrate.
	completer := &scriptedCompleter{
		expansion:  expansionJSON,
		synthesis:  "Claim [Source 1]. Bad claim [Source 25].",
		validation: []string{`{"valid": true, "confidence": 0.8, "citation_coverage": 0.9, "unsupported_claims": [], "contradictions": []}`},
	}
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(5)}, makeStore(5))

	st := engine.Run(ctx, workflow.NewState("t2", "q"))

	require.Equal(t, workflow.StageReview, st.Stage)
	require.True(t, st.NeedsReview)
	require.Empty(t, st.FinalReport)
	require.Equal(t, []int{25}, st.Validation.InvalidCitations)
	require.InDelta(t, 0.5, st.Confidence, 1e-9)
}

func TestEngine_Run_ZeroRetrievalFailsSynthesis(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{expansion: expansionJSON}
	engine := newEngine(t, completer, &fakeSearcher{hits: nil}, makeStore(0))

	st := engine.Run(ctx, workflow.NewState("t3", "q"))

	require.Equal(t, workflow.StageFailed, st.Stage)
	require.NotNil(t, st.Failure)
	require.Equal(t, workflow.StageSynthesis, st.Failure.Stage)
	require.Contains(t, st.Failure.Message, "no sources available")
	require.Empty(t, st.FinalReport)
}

func TestEngine_Run_ExpansionFailureFallsBackToRawQuery(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{
		expansionErr: errors.New("rate limited"),
		synthesis:    "Finding [Source 1].",
		validation:   []string{`{"valid": true, "confidence": 0.85, "citation_coverage": 1.0, "unsupported_claims": [], "contradictions": []}`},
	}
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(4)}, makeStore(4))

	st := engine.Run(ctx, workflow.NewState("t4", "solar storms"))

	require.Equal(t, workflow.StageDone, st.Stage)
	require.Equal(t, []string{"solar storms"}, st.SearchQueries)
}

func TestEngine_Run_SynthesisCompletionFailure(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{
		expansion:    expansionJSON,
		synthesisErr: errors.New("service unavailable"),
	}
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(3)}, makeStore(3))

	st := engine.Run(ctx, workflow.NewState("t5", "q"))

	require.Equal(t, workflow.StageFailed, st.Stage)
	require.Equal(t, workflow.StageSynthesis, st.Failure.Stage)
	require.Contains(t, st.Failure.Message, "synthesis completion failed")
}

func TestEngine_Run_MalformedValidationFallsBackNeutral(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{
		expansion:  expansionJSON,
		synthesis:  "Finding [Source 1].",
		validation: []string{"not json at all", "still not json"},
	}
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(3)}, makeStore(3))

	st := engine.Run(ctx, workflow.NewState("t6", "q"))

	// Malformed judgment twice falls back to a 0.5 neutral score, which
	// routes to review rather than aborting.
	require.Equal(t, 2, completer.validationCalls)
	require.Equal(t, workflow.StageReview, st.Stage)
	require.InDelta(t, 0.5, st.Confidence, 1e-9)
	require.True(t, st.Validation.IsValid)
}

func TestEngine_Run_HydrationSkipsMissingPassages(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{
		expansion:  expansionJSON,
		synthesis:  "Finding [Source 1].",
		validation: []string{`{"valid": true, "confidence": 0.9, "citation_coverage": 1.0, "unsupported_claims": [], "contradictions": []}`},
	}
	// Only two of five hit IDs exist in the store.
	store := &fakeStore{passages: map[string]string{
		"src-01": "text one",
		"src-03": "text three",
	}}
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(5)}, store)

	st := engine.Run(ctx, workflow.NewState("t7", "q"))

	require.Equal(t, workflow.StageDone, st.Stage)
	require.Len(t, st.Passages, 2)
}

func TestEngine_Run_EmptyQueryFails(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))

	st := engine.Run(ctx, workflow.NewState("t8", "  "))

	require.Equal(t, workflow.StageFailed, st.Stage)
	require.Equal(t, workflow.StageSearch, st.Failure.Stage)
}

func TestEngine_Run_ProgressReportedAtStageBoundaries(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{
		expansion:  expansionJSON,
		synthesis:  "Finding [Source 1].",
		validation: []string{`{"valid": true, "confidence": 0.9, "citation_coverage": 1.0, "unsupported_claims": [], "contradictions": []}`},
	}
	var stages []workflow.Stage
	engine := newEngine(t, completer, &fakeSearcher{hits: makeHits(3)}, makeStore(3),
		workflow.WithProgress(func(_ context.Context, st workflow.State) {
			stages = append(stages, st.Stage)
		}))

	engine.Run(ctx, workflow.NewState("t9", "q"))

	require.Equal(t, []workflow.Stage{workflow.StageSearch, workflow.StageSynthesis, workflow.StageDone}, stages)
}

func TestEngine_Resolve_Approve(t *testing.T) {
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))
	st := workflow.State{TaskID: "t", DraftReport: "draft", Stage: workflow.StageReview}

	resolved, err := engine.Resolve(st, workflow.DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StageDone, resolved.Stage)
	require.Equal(t, "draft", resolved.FinalReport)
}

func TestEngine_Resolve_EditRequiresText(t *testing.T) {
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))
	st := workflow.State{TaskID: "t", DraftReport: "draft", Stage: workflow.StageReview}

	_, err := engine.Resolve(st, workflow.DecisionEdit, "   ")
	require.ErrorIs(t, err, workflow.ErrEmptyEdit)

	resolved, err := engine.Resolve(st, workflow.DecisionEdit, "better draft")
	require.NoError(t, err)
	require.Equal(t, "better draft", resolved.FinalReport)
	require.Equal(t, workflow.StageDone, resolved.Stage)
}

func TestEngine_Resolve_Reject(t *testing.T) {
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))
	st := workflow.State{TaskID: "t", DraftReport: "draft", Stage: workflow.StageReview}

	resolved, err := engine.Resolve(st, workflow.DecisionReject, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StageFailed, resolved.Stage)
	require.Empty(t, resolved.FinalReport)
	require.NotNil(t, resolved.Failure)
	require.Contains(t, resolved.Failure.Message, "review rejected")
}

func TestEngine_Resolve_IdempotentOnResolved(t *testing.T) {
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))
	st := workflow.State{TaskID: "t", DraftReport: "draft", Stage: workflow.StageReview}

	resolved, err := engine.Resolve(st, workflow.DecisionApprove, "")
	require.NoError(t, err)

	again, err := engine.Resolve(resolved, workflow.DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, resolved, again)
}

func TestEngine_Resolve_NotAwaiting(t *testing.T) {
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))
	st := workflow.NewState("t", "q")

	_, err := engine.Resolve(st, workflow.DecisionApprove, "")
	require.ErrorIs(t, err, workflow.ErrNotAwaitingDecision)
}

func TestEngine_Run_ResumedStateIsNotRerun(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, &scriptedCompleter{}, &fakeSearcher{}, makeStore(0))

	done := workflow.State{TaskID: "t", FinalReport: "final", Stage: workflow.StageDone}
	require.Equal(t, done, engine.Run(ctx, done))

	failed := workflow.State{TaskID: "t", Stage: workflow.StageFailed}
	require.Equal(t, failed, engine.Run(ctx, failed))

	review := workflow.State{TaskID: "t", DraftReport: "draft [Source 1]", NeedsReview: true, Stage: workflow.StageReview}
	require.Equal(t, review, engine.Run(ctx, review))
}
