package retrieval

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/siherrmann/handbot/core/index"
	"github.com/siherrmann/handbot/model"
)

type corpus struct {
	docs   []*model.Document
	chunks []*model.Chunk
	index  index.Index
}

// MemoryStore keeps the corpus in process behind an atomically swapped snapshot
type MemoryStore struct {
	dimension int
	current   atomic.Pointer[corpus]
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
// A dimension of zero accepts whatever dimension the first corpus has.
func NewMemoryStore(dimension int) *MemoryStore {
	s := &MemoryStore{dimension: dimension}
	s.current.Store(&corpus{index: index.NewFlatIndex(dimension)})
	return s
}

// Replace builds a new index from the chunks and swaps it in
func (s *MemoryStore) Replace(ctx context.Context, docs []*model.Document, chunks []*model.Chunk) error {
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		if s.dimension > 0 && len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d has dimension %d, store has %d", index.ErrDimensionMismatch, i, len(chunk.Embedding), s.dimension)
		}
		vectors[i] = chunk.Embedding
	}

	flat, err := index.Build(vectors)
	if err != nil {
		return err
	}

	now := time.Now()
	for i, chunk := range chunks {
		chunk.ID = i + 1
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
	}
	for i, doc := range docs {
		doc.ID = int64(i + 1)
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now
	}

	s.current.Store(&corpus{docs: docs, chunks: chunks, index: flat})
	return nil
}

// Search returns the k nearest chunks
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, k int) ([]*model.RetrievalResult, error) {
	snapshot := s.current.Load()

	hits, err := snapshot.index.Search(embedding, k)
	if err != nil {
		return nil, err
	}

	results := make([]*model.RetrievalResult, len(hits))
	for i, hit := range hits {
		results[i] = &model.RetrievalResult{
			Chunk:    snapshot.chunks[hit.Position],
			Distance: hit.Distance,
			Rank:     i + 1,
		}
	}
	return results, nil
}

// Count returns the number of chunks
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	return len(s.current.Load().chunks), nil
}

// Documents returns the ingested documents
func (s *MemoryStore) Documents(ctx context.Context) ([]*model.Document, error) {
	return s.current.Load().docs, nil
}
