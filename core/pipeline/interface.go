package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/handbot/model"
)

// ExtractFunc loads a document and its page texts from a path
type ExtractFunc func(path string) (*model.Document, error)

// ChunkFunc splits the pages of a document into ordered chunk spans
type ChunkFunc func(pages []string) ([]ChunkSpan, error)

// EmbedFunc generates one embedding per text, in input order
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// ChunkSpan is a chunk before it is embedded
type ChunkSpan struct {
	Content  string
	Page     int // 1 based, 0 if unknown
	Position int
	Metadata model.Metadata
}

// Pipeline combines extraction, chunking and embedding functions
type Pipeline struct {
	Extractor ExtractFunc
	Chunker   ChunkFunc
	Embedder  EmbedFunc
}

// NewPipeline creates a new processing pipeline using ExtractFile as extractor
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Extractor: ExtractFile,
		Chunker:   chunker,
		Embedder:  embedder,
	}
}

// SetExtractor sets the extraction function
func (p *Pipeline) SetExtractor(extractor ExtractFunc) {
	p.Extractor = extractor
}

// Process chunks and embeds a document, returning chunks with embeddings
func (p *Pipeline) Process(ctx context.Context, doc *model.Document) ([]*model.Chunk, error) {
	if p.Chunker == nil || p.Embedder == nil {
		return nil, fmt.Errorf("pipeline requires a chunker and an embedder")
	}

	// Split into chunks
	spans, err := p.Chunker(doc.Pages)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", doc.Source, err)
	}

	if len(spans) == 0 {
		return []*model.Chunk{}, nil
	}

	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Content
	}

	// Generate embeddings in one batch
	embeddings, err := p.Embedder(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", doc.Source, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d chunks", len(embeddings), len(texts))
	}

	chunks := make([]*model.Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, &model.Chunk{
			DocumentRID: doc.RID,
			Source:      doc.Source,
			Content:     span.Content,
			Position:    span.Position,
			Page:        span.Page,
			Embedding:   embeddings[i],
			Metadata:    span.Metadata,
		})
	}

	return chunks, nil
}

// ProcessCorpus processes all documents of a corpus. When the documents
// together yield no chunk at all, a single sentinel chunk is returned so the
// corpus is never empty. It belongs to the first document, or to a new
// document for source when there are none.
func (p *Pipeline) ProcessCorpus(ctx context.Context, source string, docs []*model.Document) ([]*model.Document, []*model.Chunk, error) {
	var chunks []*model.Chunk
	for _, doc := range docs {
		docChunks, err := p.Process(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) > 0 {
		return docs, chunks, nil
	}

	if len(docs) == 0 {
		docs = []*model.Document{model.NewDocument(source, nil, model.Metadata{model.MetadataSentinel: true})}
	}

	sentinel := model.NewSentinelChunk(docs[0].Source)
	sentinel.DocumentRID = docs[0].RID
	embeddings, err := p.Embedder(ctx, []string{sentinel.Content})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed sentinel chunk: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, nil, fmt.Errorf("embedding count mismatch: got %d embeddings for the sentinel chunk", len(embeddings))
	}
	sentinel.Embedding = embeddings[0]

	return docs, []*model.Chunk{sentinel}, nil
}

// ProcessFile extracts a document from path and processes it
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*model.Document, []*model.Chunk, error) {
	if p.Extractor == nil {
		return nil, nil, fmt.Errorf("pipeline has no extractor")
	}

	doc, err := p.Extractor(path)
	if err != nil {
		return nil, nil, err
	}

	chunks, err := p.Process(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	return doc, chunks, nil
}

// EmbedQuery embeds a single query text
func (p *Pipeline) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if p.Embedder == nil {
		return nil, fmt.Errorf("pipeline has no embedder")
	}

	embeddings, err := p.Embedder(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected one query embedding, got %d", len(embeddings))
	}

	return embeddings[0], nil
}
