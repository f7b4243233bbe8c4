package workflow

// Disposition is the routing outcome of validation.
type Disposition int

const (
	// DispositionFinalize auto-finalizes the draft without review.
	DispositionFinalize Disposition = iota
	// DispositionReview suspends the workflow for a reviewer decision.
	DispositionReview
)

func (d Disposition) String() string {
	if d == DispositionReview {
		return "review"
	}
	return "finalize"
}

// Score derives the confidence score from a validation result. Deductions
// are order-independent and the result is clamped to [0, 1]:
// invalid citations cost 0.3, three or more unsupported claims cost 0.2,
// any contradiction costs 0.3.
func Score(v Validation) float64 {
	score := v.BaseScore
	if len(v.InvalidCitations) > 0 {
		score -= 0.3
	}
	if len(v.UnsupportedClaims) >= 3 {
		score -= 0.2
	}
	if len(v.Contradictions) > 0 {
		score -= 0.3
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Route decides between auto-finalize and human review. A score of
// exactly the threshold finalizes; only scores strictly below it are
// routed to review.
func Route(v Validation, threshold float64) Disposition {
	if Score(v) < threshold {
		return DispositionReview
	}
	return DispositionFinalize
}
