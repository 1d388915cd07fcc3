package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents a source document
type Document struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	Pages     []string  `json:"-" db:"-"` // Extracted text per page, not stored in DB
	PageCount int       `json:"page_count"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a document from already extracted pages
// The title defaults to the filename without extension
func NewDocument(source string, pages []string, metadata Metadata) *Document {
	filename := filepath.Base(source)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	if title == "" {
		title = filename
	}
	if metadata == nil {
		metadata = Metadata{}
	}

	return &Document{
		RID:       uuid.New(),
		Title:     title,
		Source:    source,
		Pages:     pages,
		PageCount: len(pages),
		Metadata:  metadata,
	}
}

// NewDocumentFromFile reads a plain text file and creates a Document from it.
// Form feeds separate pages.
func NewDocumentFromFile(filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return NewDocument(filePath, strings.Split(string(content), "\f"), metadata), nil
}

// Text returns all pages joined by blank lines
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n\n")
}
