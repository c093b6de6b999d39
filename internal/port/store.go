package port

import "nebularag/internal/domain"

// VectorStore stores chunk texts alongside their embeddings and answers
// similarity queries. Implementations are append-only: indices returned by
// Search stay valid until Clear. The default implementation is an exact
// linear scan; an approximate index may be substituted behind this contract
// without changing pipeline semantics.
type VectorStore interface {
	// Add appends texts and their embeddings, preserving order.
	// len(texts) must equal len(embeddings).
	Add(texts []string, embeddings [][]float64) error

	// Search returns up to k (index, score) candidates ordered by
	// descending cosine similarity to the query embedding.
	Search(query []float64, k int) ([]domain.Candidate, error)

	// Text resolves a store index to its chunk text.
	Text(i int) (string, error)

	// Clear removes all entries.
	Clear()

	// Size returns the current entry count.
	Size() int
}

// DocumentSource yields raw document texts for indexing.
type DocumentSource interface {
	Load(root string) ([]string, error)
}
