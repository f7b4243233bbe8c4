package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calv/inquest/internal/llm"
	"github.com/calv/inquest/internal/objectstore"
)

// Synthesize unions the search results with one extra retrieval on the raw
// query, hydrates full passage text, and produces a cited draft report in
// a single completion call. An empty source set after hydration is a
// terminal failure for this stage.
func (e *Engine) Synthesize(ctx context.Context, st State) (State, error) {
	st.Stage = StageSynthesis

	sources := e.unionWithRawQuery(ctx, st)
	if len(sources) > e.cfg.MaxSources {
		sources = sources[:e.cfg.MaxSources]
	}

	passages := make([]Passage, 0, len(sources))
	for _, src := range sources {
		p, err := e.passages.Fetch(ctx, src.SourceID)
		if err != nil {
			if errors.Is(err, objectstore.ErrNotFound) {
				e.logger.Warn("passage missing from store, skipping",
					"task_id", st.TaskID, "source_id", src.SourceID)
			} else {
				e.logger.Warn("passage hydration failed, skipping",
					"task_id", st.TaskID, "source_id", src.SourceID, "error", err)
			}
			continue
		}
		passages = append(passages, Passage{
			SourceID: src.SourceID,
			FullText: p.Content,
			Title:    firstNonEmpty(p.Title, src.Title),
			Locator:  firstNonEmpty(p.Locator, src.Locator),
		})
	}
	if len(passages) == 0 {
		return st, ErrNoSources
	}
	st.Passages = passages

	temperature := 0.3
	resp, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: synthesisSystemPrompt},
			{Role: "user", Content: formatSynthesisPrompt(st.UserQuery, passages)},
		},
		Temperature: &temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return st, fmt.Errorf("synthesis completion failed: %w", err)
	}
	draft := strings.TrimSpace(resp.Content)
	if draft == "" {
		return st, fmt.Errorf("synthesis completion returned an empty report")
	}
	st.DraftReport = draft

	e.logger.Info("synthesis stage completed",
		"task_id", st.TaskID, "sources", len(passages), "report_len", len(draft))
	return st, nil
}

// unionWithRawQuery issues one additional top-K retrieval keyed on the
// raw user query and appends hits not already present. Union order is
// stable: merged search results first, then new raw-query hits.
func (e *Engine) unionWithRawQuery(ctx context.Context, st State) []SearchResult {
	sources := make([]SearchResult, len(st.SearchResults))
	copy(sources, st.SearchResults)

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		seen[src.SourceID] = true
	}

	hits, err := e.searcher.Search(ctx, st.UserQuery, e.cfg.TopK)
	if err != nil {
		e.logger.Warn("raw-query retrieval failed",
			"task_id", st.TaskID, "error", err)
		return sources
	}
	for _, h := range hits {
		if h.SourceID == "" || seen[h.SourceID] {
			continue
		}
		seen[h.SourceID] = true
		sources = append(sources, SearchResult{
			SourceID: h.SourceID,
			Score:    h.Score,
			Snippet:  h.Snippet,
			Title:    h.Title,
			Locator:  h.Locator,
		})
	}
	return sources
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
