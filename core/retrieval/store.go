package retrieval

import (
	"context"

	"github.com/siherrmann/handbot/model"
)

// Store holds the chunk corpus and answers nearest neighbour queries.
// Replace swaps the whole corpus, readers never observe a partial corpus.
type Store interface {
	Replace(ctx context.Context, docs []*model.Document, chunks []*model.Chunk) error
	Search(ctx context.Context, embedding []float32, k int) ([]*model.RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	Documents(ctx context.Context) ([]*model.Document, error)
}
