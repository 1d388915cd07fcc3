package model

import (
	"time"

	"github.com/google/uuid"
)

// SentinelChunkText is the single chunk of a corpus nothing could be extracted from
const SentinelChunkText = "Could not load the PDF document or process the information. Please contact support."

// Chunk represents a span of document text, the unit of retrieval
type Chunk struct {
	ID          int       `json:"id,omitempty"`
	DocumentRID uuid.UUID `json:"document_rid"`
	Source      string    `json:"source"` // path of the source document
	Content     string    `json:"content"`
	Position    int       `json:"position"` // order within the source, never used for ranking
	Page        int       `json:"page,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSentinelChunk returns the fallback chunk of an empty corpus
func NewSentinelChunk(source string) *Chunk {
	return &Chunk{
		Source:   source,
		Content:  SentinelChunkText,
		Metadata: Metadata{MetadataSentinel: true},
	}
}

// IsSentinel reports whether c is the fallback chunk of an empty corpus
func (c *Chunk) IsSentinel() bool {
	return c.Metadata.Bool(MetadataSentinel)
}
