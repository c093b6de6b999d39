package chunker

import (
	"fmt"
	"strings"

	"nebularag/internal/domain"
)

// SplitText splits text into chunks of at most chunkSize characters, with
// chunkOverlap characters shared between consecutive chunks. Splitting is
// purely offset-based with no awareness of word or sentence boundaries.
// Offsets count runes so multibyte text never splits mid-character.
// The input is trimmed before splitting; an empty input yields no chunks.
func SplitText(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidArgument, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must be non-negative, got %d", domain.ErrInvalidArgument, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be less than chunk size (%d)", domain.ErrInvalidArgument, chunkOverlap, chunkSize)
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	n := len(runes)

	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}
		// overlap < chunkSize guarantees forward progress
		start = end - chunkOverlap
	}

	return chunks, nil
}
