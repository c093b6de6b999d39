package port

import "nebularag/internal/domain"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns one vector per input text, in input order.
	Embed(texts []string) ([][]float64, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// Reranker scores query-document pairs for relevance.
type Reranker interface {
	// Rerank scores documents against the query and returns results ordered
	// by descending relevance. Result indices are positions within the
	// submitted documents slice.
	Rerank(query string, documents []string, topN int) ([]domain.RerankResult, error)

	// RerankModelName returns the name of the reranking model.
	RerankModelName() string
}

// ChatModel generates a completion for a conversation.
type ChatModel interface {
	// Chat returns the model-generated text for the given messages.
	Chat(messages []domain.Message, temperature float64) (string, error)

	// ChatModelName returns the name of the chat model.
	ChatModelName() string
}

// Inference is the full capability surface of the remote inference service.
// The pipeline holds one of these; it does not own it.
type Inference interface {
	Embedder
	Reranker
	ChatModel
}
