package retrieval

import (
	"context"

	"github.com/siherrmann/handbot/database"
	"github.com/siherrmann/handbot/model"
)

// DefaultDocumentLimit is the number of documents Documents lists by default
const DefaultDocumentLimit = 1000

// PostgresStore keeps the corpus in the documents and chunks tables.
// Replace runs in one transaction, so readers see the old or the new corpus.
type PostgresStore struct {
	documents *database.DocumentsDBHandler
	chunks    *database.ChunksDBHandler
	// DocumentLimit caps Documents, oldest first. Zero uses DefaultDocumentLimit.
	DocumentLimit int
}

// NewPostgresStore creates a store over existing handlers
func NewPostgresStore(documents *database.DocumentsDBHandler, chunks *database.ChunksDBHandler) *PostgresStore {
	return &PostgresStore{
		documents:     documents,
		chunks:        chunks,
		DocumentLimit: DefaultDocumentLimit,
	}
}

func (s *PostgresStore) Replace(ctx context.Context, docs []*model.Document, chunks []*model.Chunk) error {
	return s.chunks.ReplaceCorpus(ctx, docs, chunks)
}

func (s *PostgresStore) Search(ctx context.Context, embedding []float32, k int) ([]*model.RetrievalResult, error) {
	return s.chunks.SelectChunksBySimilarity(ctx, embedding, k)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	return s.chunks.CountChunks(ctx)
}

func (s *PostgresStore) Documents(ctx context.Context) ([]*model.Document, error) {
	limit := s.DocumentLimit
	if limit <= 0 {
		limit = DefaultDocumentLimit
	}
	return s.documents.SelectAllDocuments(ctx, nil, limit)
}
