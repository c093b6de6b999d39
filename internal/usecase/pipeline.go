package usecase

import (
	"fmt"
	"strings"

	"nebularag/internal/adapter/chunker"
	"nebularag/internal/domain"
	"nebularag/internal/port"
)

// ContextSeparator joins source texts into the prompt context block.
const ContextSeparator = "\n\n---\n\n"

const systemPrompt = "You are a helpful assistant. Use the provided context to answer.\n" +
	"If the answer is not present in the context, say you don't know."

const chatTemperature = 0.2

// Options are the pipeline tunables.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	RerankK      int
}

// Pipeline coordinates chunking, embedding, similarity search, reranking and
// answer generation. It owns its store; the inference capability is injected
// and shared. All calls are blocking and sequential: embed, search, rerank,
// chat, one after another, with no retries. Any external failure propagates
// to the caller and leaves the store untouched.
type Pipeline struct {
	inference port.Inference
	store     port.VectorStore
	opts      Options
}

func NewPipeline(inference port.Inference, store port.VectorStore, opts Options) *Pipeline {
	return &Pipeline{
		inference: inference,
		store:     store,
		opts:      opts,
	}
}

// IndexTexts chunks every document, embeds all chunks in one batch and adds
// them to the store. Returns the number of chunks added. Nothing is added
// when embedding fails; no network call is made when the documents produce
// no chunks.
func (p *Pipeline) IndexTexts(docs []string) (int, error) {
	var chunks []string
	for _, doc := range docs {
		split, err := chunker.SplitText(doc, p.opts.ChunkSize, p.opts.ChunkOverlap)
		if err != nil {
			return 0, err
		}
		chunks = append(chunks, split...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := p.inference.Embed(chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := p.store.Add(chunks, embeddings); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Retrieve embeds the question and returns the top-k nearest chunks.
func (p *Pipeline) Retrieve(question string) ([]domain.Candidate, error) {
	embeddings, err := p.inference.Embed([]string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned no vector for the question")
	}
	return p.store.Search(embeddings[0], p.opts.TopK)
}

// Rerank submits the candidates' texts to the reranker and maps each
// result's local index (its position in the submitted list) back to the
// corresponding store index. Results whose local index falls outside the
// submitted list are dropped. An empty candidate list returns empty without
// calling the service.
func (p *Pipeline) Rerank(question string, candidateIndices []int) ([]int, error) {
	if len(candidateIndices) == 0 {
		return nil, nil
	}

	documents := make([]string, len(candidateIndices))
	for i, idx := range candidateIndices {
		text, err := p.store.Text(idx)
		if err != nil {
			return nil, err
		}
		documents[i] = text
	}

	results, err := p.inference.Rerank(question, documents, p.opts.RerankK)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank candidates: %w", err)
	}

	var out []int
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidateIndices) {
			continue
		}
		out = append(out, candidateIndices[r.Index])
	}
	return out, nil
}

// BuildContext joins the resolved chunk texts in the given order.
func (p *Pipeline) BuildContext(indices []int) (string, error) {
	texts := make([]string, len(indices))
	for i, idx := range indices {
		text, err := p.store.Text(idx)
		if err != nil {
			return "", err
		}
		texts[i] = text
	}
	return strings.Join(texts, ContextSeparator), nil
}

// Answer runs the full flow: retrieve, rerank, assemble context, generate.
// When reranking yields nothing the first maxContextDocs candidates from the
// original retrieval order are used instead (rerank-k when maxContextDocs
// is not positive).
func (p *Pipeline) Answer(question string, maxContextDocs int) (*domain.Answer, error) {
	candidates, err := p.Retrieve(question)
	if err != nil {
		return nil, err
	}

	candidateIndices := make([]int, len(candidates))
	for i, c := range candidates {
		candidateIndices[i] = c.Index
	}

	finalIndices, err := p.Rerank(question, candidateIndices)
	if err != nil {
		return nil, err
	}
	if len(finalIndices) == 0 {
		limit := maxContextDocs
		if limit <= 0 {
			limit = p.opts.RerankK
		}
		if limit > len(candidateIndices) {
			limit = len(candidateIndices)
		}
		finalIndices = candidateIndices[:limit]
	}

	context, err := p.BuildContext(finalIndices)
	if err != nil {
		return nil, err
	}

	messages := []domain.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n", context, question)},
	}

	output, err := p.inference.Chat(messages, chatTemperature)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	sources := make([]string, len(finalIndices))
	for i, idx := range finalIndices {
		text, err := p.store.Text(idx)
		if err != nil {
			return nil, err
		}
		sources[i] = text
	}

	return &domain.Answer{
		Answer:  output,
		Sources: sources,
		Indices: finalIndices,
		Models: domain.Models{
			Embedding: p.inference.ModelName(),
			Reranker:  p.inference.RerankModelName(),
			Chat:      p.inference.ChatModelName(),
		},
	}, nil
}

// Store exposes the owned similarity index, mainly for size reporting.
func (p *Pipeline) Store() port.VectorStore {
	return p.store
}
