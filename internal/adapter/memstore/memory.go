package memstore

import (
	"fmt"
	"math"
	"sort"

	"nebularag/internal/domain"
)

// Store is an in-memory similarity index over parallel text/embedding
// slices. Entry i of texts corresponds to entry i of embeddings; indices are
// stable for the lifetime of the store because entries are only appended.
// Search is a brute-force linear scan, which is fine for the corpus sizes
// this tool targets (hundreds to low thousands of chunks).
//
// A Store is owned by exactly one pipeline and is not safe for concurrent
// use; callers sharing one across goroutines must synchronize externally.
type Store struct {
	texts      []string
	embeddings [][]float64
}

func New() *Store {
	return &Store{}
}

// Add appends texts and their embeddings, preserving order. Existing entries
// and their indices are unaffected. An empty call is a no-op.
func (s *Store) Add(texts []string, embeddings [][]float64) error {
	if len(texts) != len(embeddings) {
		return fmt.Errorf("%w: %d texts vs %d embeddings", domain.ErrLengthMismatch, len(texts), len(embeddings))
	}
	if len(texts) == 0 {
		return nil
	}
	s.texts = append(s.texts, texts...)
	s.embeddings = append(s.embeddings, embeddings...)
	return nil
}

// Search returns up to k candidates ordered by descending cosine similarity
// to the query. Entries whose dimension differs from the query's are skipped
// rather than failing the search: a store reused across embedding models
// still answers from the entries that match. Ties break by ascending
// insertion index.
func (s *Store) Search(query []float64, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if len(s.embeddings) == 0 {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, len(s.embeddings))
	for i, emb := range s.embeddings {
		if len(emb) != len(query) {
			continue
		}
		candidates = append(candidates, domain.Candidate{Index: i, Score: cosine(query, emb)})
	}

	// stable sort keeps equal scores in insertion order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// Text resolves a store index to its chunk text.
func (s *Store) Text(i int) (string, error) {
	if i < 0 || i >= len(s.texts) {
		return "", fmt.Errorf("%w: index %d out of range [0, %d)", domain.ErrInvalidArgument, i, len(s.texts))
	}
	return s.texts[i], nil
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.texts = nil
	s.embeddings = nil
}

// Size returns the current entry count.
func (s *Store) Size() int {
	return len(s.texts)
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero norm. Vectors of different lengths are a DimensionMismatch error.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	return cosine(a, b), nil
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
