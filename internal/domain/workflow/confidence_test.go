package workflow_test

import (
	"testing"

	"github.com/calv/inquest/internal/domain/workflow"
	"github.com/stretchr/testify/require"
)

func TestScore_NoDeductions(t *testing.T) {
	v := workflow.Validation{
		BaseScore:         0.9,
		UnsupportedClaims: []string{"a", "b"},
	}
	require.InDelta(t, 0.9, workflow.Score(v), 1e-9)
}

func TestScore_AllDeductions(t *testing.T) {
	v := workflow.Validation{
		BaseScore:         0.95,
		InvalidCitations:  []int{7},
		UnsupportedClaims: []string{"a", "b", "c"},
		Contradictions:    []string{"x"},
	}
	require.InDelta(t, 0.95-0.8, workflow.Score(v), 1e-9)
}

func TestScore_ClampsAtZero(t *testing.T) {
	v := workflow.Validation{
		BaseScore:         0.4,
		InvalidCitations:  []int{2},
		UnsupportedClaims: []string{"a", "b", "c", "d"},
		Contradictions:    []string{"x"},
	}
	require.Equal(t, 0.0, workflow.Score(v))
}

func TestScore_InvalidCitationsOnly(t *testing.T) {
	v := workflow.Validation{
		BaseScore:        0.8,
		InvalidCitations: []int{5},
	}
	require.InDelta(t, 0.5, workflow.Score(v), 1e-9)
}

func TestRoute_BoundaryFinalizes(t *testing.T) {
	// A score of exactly the threshold auto-finalizes.
	v := workflow.Validation{BaseScore: 0.7}
	require.Equal(t, workflow.DispositionFinalize, workflow.Route(v, 0.7))

	v.BaseScore = 0.6999
	require.Equal(t, workflow.DispositionReview, workflow.Route(v, 0.7))
}

func TestRoute_Pure(t *testing.T) {
	v := workflow.Validation{
		BaseScore:        0.8,
		InvalidCitations: []int{9},
	}
	first := workflow.Route(v, 0.7)
	second := workflow.Route(v, 0.7)
	require.Equal(t, first, second)
	require.Equal(t, workflow.DispositionReview, first)
}
