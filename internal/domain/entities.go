package domain

// Message is a single chat turn sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RerankResult is one entry of a rerank response. Index is local to the
// document list submitted with the request, not a store index.
type RerankResult struct {
	Index    int     `json:"index"`
	Score    float64 `json:"relevance_score"`
	Document string  `json:"document,omitempty"`
}

// Candidate pairs a store index with its similarity score for one query.
type Candidate struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Models records which model served each stage of a pipeline run.
type Models struct {
	Embedding string `json:"embedding"`
	Reranker  string `json:"reranker"`
	Chat      string `json:"chat"`
}

// Answer is the result of an end-to-end pipeline run.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Indices []int    `json:"indices"`
	Models  Models   `json:"models"`
}
