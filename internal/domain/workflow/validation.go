package workflow

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/calv/inquest/internal/llm"
)

var citationPattern = regexp.MustCompile(`(?i)\[Source\s+(\d+)\]`)

// Validate composes a deterministic citation scan with a model-assisted
// quality judgment, derives the confidence score, and returns the routing
// disposition for the engine's single conditional branch.
func (e *Engine) Validate(ctx context.Context, st State) (State, Disposition, error) {
	if strings.TrimSpace(st.DraftReport) == "" {
		return st, DispositionReview, ErrEmptyDraft
	}
	st.Stage = StageValidation

	v := e.judgeReport(ctx, st.DraftReport, st.Passages)
	v.InvalidCitations = scanCitations(st.DraftReport, len(st.Passages))

	st.Validation = &v
	st.Confidence = Score(v)
	disposition := Route(v, e.cfg.ReviewThreshold)
	st.NeedsReview = disposition == DispositionReview

	e.logger.Info("validation stage completed",
		"task_id", st.TaskID,
		"confidence", st.Confidence,
		"needs_review", st.NeedsReview,
		"invalid_citations", len(v.InvalidCitations),
		"unsupported_claims", len(v.UnsupportedClaims))
	return st, disposition, nil
}

// scanCitations extracts every [Source N] marker and returns the distinct
// numbers outside 1..numSources, sorted ascending.
func scanCitations(report string, numSources int) []int {
	matches := citationPattern.FindAllStringSubmatch(report, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var invalid []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= numSources {
			continue
		}
		if !seen[n] {
			seen[n] = true
			invalid = append(invalid, n)
		}
	}
	sort.Ints(invalid)
	return invalid
}

type judgmentResponse struct {
	Valid             bool     `json:"valid"`
	Confidence        float64  `json:"confidence"`
	CitationCoverage  float64  `json:"citation_coverage"`
	UnsupportedClaims []string `json:"unsupported_claims"`
	Contradictions    []string `json:"contradictions"`
}

// judgeReport runs the model-assisted check. Malformed output is retried
// once, then replaced by a conservative neutral judgment so a formatting
// failure never aborts the pipeline.
func (e *Engine) judgeReport(ctx context.Context, report string, passages []Passage) Validation {
	for attempt := 1; attempt <= 2; attempt++ {
		temperature := 0.1
		resp, err := e.completer.Complete(ctx, llm.Request{
			Messages: []llm.Message{
				{Role: "user", Content: formatValidationPrompt(report, passages)},
			},
			Temperature: &temperature,
			MaxTokens:   800,
		})
		if err != nil {
			e.logger.Warn("validation completion failed",
				"attempt", attempt, "error", err)
			continue
		}

		var parsed judgmentResponse
		if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &parsed); err != nil {
			e.logger.Warn("validation response was malformed",
				"attempt", attempt, "error", err)
			continue
		}
		if parsed.Confidence < 0 {
			parsed.Confidence = 0
		}
		if parsed.Confidence > 1 {
			parsed.Confidence = 1
		}

		return Validation{
			IsValid:           parsed.Valid,
			BaseScore:         parsed.Confidence,
			CitationCoverage:  parsed.CitationCoverage,
			UnsupportedClaims: parsed.UnsupportedClaims,
			Contradictions:    parsed.Contradictions,
		}
	}

	e.logger.Warn("validation judgment unavailable, using neutral fallback")
	return Validation{
		IsValid:          true,
		BaseScore:        0.5,
		CitationCoverage: 0.5,
	}
}
