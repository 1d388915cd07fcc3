package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/handbot/core/index"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	loadSql "github.com/siherrmann/handbot/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	DeleteChunk(ctx context.Context, id int) error
	SelectChunk(ctx context.Context, id int) (*model.Chunk, error)
	SelectChunksByDocument(ctx context.Context, documentRID uuid.UUID) ([]*model.Chunk, error)
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int) ([]*model.RetrievalResult, error)
	CountChunks(ctx context.Context) (int, error)
	ReplaceCorpus(ctx context.Context, docs []*model.Document, chunks []*model.Chunk) error
}

// ChunksDBHandler handles chunk-related database operations.
// It is the pgvector backed counterpart of index.FlatIndex.
type ChunksDBHandler struct {
	db        *helper.Database
	dimension int
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// The documents table has to exist, chunks reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:        db,
		dimension: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", "dimension", embeddingDim)

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Dimension returns the embedding dimension of the chunks table
func (h *ChunksDBHandler) Dimension() int {
	return h.dimension
}

// InsertChunk inserts a new chunk
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	return h.insertChunk(ctx, h.db.Instance, chunk)
}

func (h *ChunksDBHandler) insertChunk(ctx context.Context, q Querier, chunk *model.Chunk) error {
	if len(chunk.Embedding) != h.dimension {
		return helper.NewError("embedding validation", fmt.Errorf("%w: chunk has dimension %d, table has %d", index.ErrDimensionMismatch, len(chunk.Embedding), h.dimension))
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7)`,
		chunk.DocumentRID,
		chunk.Source,
		chunk.Content,
		chunk.Position,
		chunk.Page,
		pgvector.NewVector(chunk.Embedding),
		chunk.Metadata,
	)

	err := row.Scan(
		&chunk.ID,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id int) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id int) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	chunk := &model.Chunk{}
	err := scanChunk(row, chunk)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByDocument retrieves all chunks for a document in position order
func (h *ChunksDBHandler) SelectChunksByDocument(ctx context.Context, documentRID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_document($1)`,
		documentRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity returns the limit nearest chunks under squared euclidean distance.
// A limit <= 0 returns nothing.
func (h *ChunksDBHandler) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int) ([]*model.RetrievalResult, error) {
	if limit <= 0 {
		return []*model.RetrievalResult{}, nil
	}
	if len(embedding) != h.dimension {
		return nil, helper.NewError("embedding validation", fmt.Errorf("%w: query has dimension %d, table has %d", index.ErrDimensionMismatch, len(embedding), h.dimension))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2)`,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	results := []*model.RetrievalResult{}
	for rows.Next() {
		chunk := &model.Chunk{}
		var vector pgvector.Vector
		var distance float64
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentRID,
			&chunk.Source,
			&chunk.Content,
			&chunk.Position,
			&chunk.Page,
			&vector,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunk.Embedding = vector.Slice()

		results = append(results, &model.RetrievalResult{
			Chunk:    chunk,
			Distance: distance,
			Rank:     len(results) + 1,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// CountChunks returns the number of stored chunks
func (h *ChunksDBHandler) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// ReplaceCorpus deletes all documents and chunks and inserts the given ones
// in a single transaction. Chunks are inserted in slice order, which is the
// tie breaker of SelectChunksBySimilarity.
func (h *ChunksDBHandler) ReplaceCorpus(ctx context.Context, docs []*model.Document, chunks []*model.Chunk) error {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	deleted, err := deleteAllDocuments(ctx, tx)
	if err != nil {
		return helper.NewError("delete documents", err)
	}

	for _, doc := range docs {
		err := insertDocument(ctx, tx, doc)
		if err != nil {
			return helper.NewError("insert document", err)
		}
	}

	for _, chunk := range chunks {
		err := h.insertChunk(ctx, tx, chunk)
		if err != nil {
			return helper.NewError("insert chunk", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit transaction", err)
	}

	h.db.Logger.Info("Replaced corpus", "deleted_documents", deleted, "documents", len(docs), "chunks", len(chunks))

	return nil
}

func scanChunk(s scanner, chunk *model.Chunk) error {
	var vector pgvector.Vector
	err := s.Scan(
		&chunk.ID,
		&chunk.DocumentRID,
		&chunk.Source,
		&chunk.Content,
		&chunk.Position,
		&chunk.Page,
		&vector,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return err
	}
	chunk.Embedding = vector.Slice()
	return nil
}
