package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/siherrmann/handbot/model"
)

// DefaultMinLineLength is the number of characters a line must exceed to become a chunk
const DefaultMinLineLength = 20

// LineChunker creates a chunker keeping every trimmed line longer than minLength characters
func LineChunker(minLength int) ChunkFunc {
	return func(pages []string) ([]ChunkSpan, error) {
		if minLength < 0 {
			return nil, fmt.Errorf("min line length must not be negative")
		}

		var spans []ChunkSpan
		for pageIdx, page := range pages {
			for _, line := range strings.Split(page, "\n") {
				line = strings.TrimSpace(line)
				if utf8.RuneCountInString(line) <= minLength {
					continue
				}

				spans = append(spans, ChunkSpan{
					Content:  line,
					Page:     pageIdx + 1,
					Position: len(spans),
					Metadata: model.Metadata{model.MetadataChunkingMethod: "line"},
				})
			}
		}

		return spans, nil
	}
}

// CharacterChunker creates a chunker that splits each page on blank lines and
// merges the pieces into chunks of at most chunkSize characters. Consecutive chunks
// share up to overlap characters of whole pieces. A single piece longer than
// chunkSize becomes its own chunk.
func CharacterChunker(chunkSize int, overlap int) ChunkFunc {
	const separator = "\n\n"

	return func(pages []string) ([]ChunkSpan, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if overlap < 0 || overlap >= chunkSize {
			return nil, fmt.Errorf("chunk overlap must be between 0 and chunk size")
		}

		var spans []ChunkSpan
		for pageIdx, page := range pages {
			var pieces []string
			for _, piece := range strings.Split(page, separator) {
				piece = strings.TrimSpace(piece)
				if piece != "" {
					pieces = append(pieces, piece)
				}
			}

			for _, content := range mergePieces(pieces, separator, chunkSize, overlap) {
				spans = append(spans, ChunkSpan{
					Content:  content,
					Page:     pageIdx + 1,
					Position: len(spans),
					Metadata: model.Metadata{model.MetadataChunkingMethod: "character"},
				})
			}
		}

		return spans, nil
	}
}

// mergePieces greedily joins pieces up to chunkSize characters and keeps the
// trailing pieces totalling at most overlap characters for the next chunk
func mergePieces(pieces []string, separator string, chunkSize int, overlap int) []string {
	sepLen := utf8.RuneCountInString(separator)
	joinedLen := func(current []string, total int, next int) int {
		if len(current) > 0 {
			return total + next + sepLen
		}
		return total + next
	}

	var chunks []string
	var current []string
	var lengths []int
	total := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)

		if joinedLen(current, total, pieceLen) > chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, separator))

			// Drop leading pieces until the rest fits the overlap and leaves room
			for total > 0 && (total > overlap || joinedLen(current, total, pieceLen) > chunkSize) {
				total -= lengths[0]
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
				lengths = lengths[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		lengths = append(lengths, pieceLen)
		total += pieceLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, separator))
	}

	return chunks
}
