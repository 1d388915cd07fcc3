package pipeline

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/siherrmann/handbot/model"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEncryptedPDF      = errors.New("pdf is encrypted")
	ErrNoDocuments       = errors.New("no documents found")
	// ErrSkipDocument makes LoadDocuments leave out a file of a directory
	ErrSkipDocument      = errors.New("document skipped")
)

// ExtractFile extracts a PDF, plain text or markdown file based on its extension
func ExtractFile(path string) (*model.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ExtractPDF(path)
	case ".txt", ".md":
		return model.NewDocumentFromFile(path, model.Metadata{model.MetadataFormat: "text"})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ExtractPDF reads the text layer of a PDF page by page.
// pdfcpu validates the file, ledongthuc/pdf extracts the positioned text which
// is rebuilt into lines. No OCR is done.
func ExtractPDF(path string) (*model.Document, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf context: %w", err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncryptedPDF, path)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return model.NewDocument(path, pages, model.Metadata{
		model.MetadataFormat:    "pdf",
		model.MetadataPageCount: pdfCtx.PageCount,
	}), nil
}

// pageText returns the text of a page with one line per text row
func pageText(page pdf.Page) (text string, err error) {
	// The content parser panics on malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	return joinTextRows(page.Content().Text), nil
}

// joinTextRows groups glyphs into rows by their baseline, top to bottom, and
// orders each row left to right. A space is inserted where a row has a gap
// wider than a quarter of the font size.
func joinTextRows(texts []pdf.Text) string {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	if len(glyphs) == 0 {
		return ""
	}

	slices.SortStableFunc(glyphs, func(a, b pdf.Text) int {
		return cmp.Compare(b.Y, a.Y)
	})

	var rows [][]pdf.Text
	var row []pdf.Text
	for _, g := range glyphs {
		if len(row) > 0 && row[0].Y-g.Y > rowTolerance(row[0]) {
			rows = append(rows, row)
			row = nil
		}
		row = append(row, g)
	}
	rows = append(rows, row)

	lines := make([]string, len(rows))
	for i, row := range rows {
		slices.SortStableFunc(row, func(a, b pdf.Text) int {
			return cmp.Compare(a.X, b.X)
		})

		var line strings.Builder
		for j, g := range row {
			if j > 0 {
				prev := row[j-1]
				gap := g.X - (prev.X + prev.W)
				if prev.W > 0 && gap > g.FontSize/4 &&
					!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(g.S, " ") {
					line.WriteString(" ")
				}
			}
			line.WriteString(g.S)
		}
		lines[i] = line.String()
	}

	return strings.Join(lines, "\n")
}

// rowTolerance is the baseline distance still counted as the same row
func rowTolerance(t pdf.Text) float64 {
	return max(t.FontSize/2, 1)
}

// LoadDocuments extracts a single file or every supported file of a directory,
// sorted by name. Unsupported files in a directory and files the extractor
// rejects with ErrSkipDocument are left out.
func LoadDocuments(path string, extract ExtractFunc) ([]*model.Document, error) {
	if extract == nil {
		extract = ExtractFile
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat documents path: %w", err)
	}

	if !info.IsDir() {
		doc, err := extract(path)
		if err != nil {
			return nil, err
		}
		return []*model.Document{doc}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []*model.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		doc, err := extract(filepath.Join(path, entry.Name()))
		if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrSkipDocument) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, path)
	}

	return docs, nil
}
