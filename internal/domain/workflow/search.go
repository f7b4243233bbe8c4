package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/calv/inquest/internal/llm"
)

const (
	minQueryVariants = 3
	maxQueryVariants = 5
)

// Search expands the user query into diversified variants, retrieves
// top-K hits for each, and merges them by source keeping the highest
// score. Retrieval failures degrade to an empty result list; synthesis
// gets another chance to retrieve on its own.
func (e *Engine) Search(ctx context.Context, st State) (State, error) {
	if strings.TrimSpace(st.UserQuery) == "" {
		return st, ErrEmptyQuery
	}
	st.Stage = StageSearch

	st.SearchQueries = e.expandQueries(ctx, st.UserQuery)

	merged := make(map[string]SearchResult)
	for _, query := range st.SearchQueries {
		hits, err := e.searcher.Search(ctx, query, e.cfg.TopK)
		if err != nil {
			e.logger.Warn("retrieval failed for query variant",
				"task_id", st.TaskID, "query", query, "error", err)
			continue
		}
		for _, h := range hits {
			if h.SourceID == "" {
				continue
			}
			cur, seen := merged[h.SourceID]
			if !seen || h.Score > cur.Score {
				merged[h.SourceID] = SearchResult{
					SourceID: h.SourceID,
					Score:    h.Score,
					Snippet:  h.Snippet,
					Title:    h.Title,
					Locator:  h.Locator,
				}
			}
		}
	}

	results := make([]SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SourceID < results[j].SourceID
	})
	if len(results) > e.cfg.MaxResults {
		results = results[:e.cfg.MaxResults]
	}
	st.SearchResults = results

	e.logger.Info("search stage completed",
		"task_id", st.TaskID, "queries", len(st.SearchQueries), "results", len(results))
	return st, nil
}

type expansionResponse struct {
	Queries []string `json:"queries"`
}

// expandQueries asks the completion service for 3-5 query variants. Any
// expansion failure falls back to the raw user query as the sole variant.
func (e *Engine) expandQueries(ctx context.Context, userQuery string) []string {
	temperature := 0.3
	resp, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: formatExpansionPrompt(userQuery)},
		},
		Temperature: &temperature,
		MaxTokens:   500,
	})
	if err != nil {
		e.logger.Warn("query expansion failed, falling back to raw query", "error", err)
		return []string{userQuery}
	}

	var parsed expansionResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &parsed); err != nil {
		e.logger.Warn("query expansion returned malformed JSON, falling back to raw query", "error", err)
		return []string{userQuery}
	}

	queries := make([]string, 0, maxQueryVariants)
	seen := make(map[string]bool)
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		queries = append(queries, q)
		if len(queries) == maxQueryVariants {
			break
		}
	}
	if len(queries) == 0 {
		return []string{userQuery}
	}

	// Pad short expansions with variants derived from the raw query.
	for _, filler := range []string{
		userQuery,
		fmt.Sprintf("%s overview", userQuery),
		fmt.Sprintf("%s recent developments", userQuery),
	} {
		if len(queries) >= minQueryVariants {
			break
		}
		if seen[strings.ToLower(filler)] {
			continue
		}
		seen[strings.ToLower(filler)] = true
		queries = append(queries, filler)
	}

	return queries
}
