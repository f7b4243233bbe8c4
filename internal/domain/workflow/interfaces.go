package workflow

import (
	"context"

	"github.com/calv/inquest/internal/llm"
	"github.com/calv/inquest/internal/objectstore"
	"github.com/calv/inquest/internal/retrieval"
)

// Completer produces text completions. Satisfied by llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Searcher runs top-K vector search queries. Satisfied by retrieval.Client.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Hit, error)
}

// PassageStore hydrates full passage text by source ID. Satisfied by
// objectstore.Client.
type PassageStore interface {
	Fetch(ctx context.Context, id string) (*objectstore.Passage, error)
}
