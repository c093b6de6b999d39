// Package nebula is an HTTP client for the NebulaBlock inference service.
// The service exposes OpenAI-style embeddings and chat completions plus a
// Cohere-style rerank endpoint; all three paths are configurable so the
// client can point at any compatible proxy.
package nebula

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"nebularag/internal/domain"
	"nebularag/internal/log"
)

const (
	DefaultBaseURL        = "https://dev-llm-proxy.nebulablock.com/v1"
	DefaultEmbeddingsPath = "/embeddings"
	DefaultRerankPath     = "/rerank"
	DefaultChatPath       = "/chat/completions"

	DefaultEmbeddingModel = "Qwen/Qwen3-Embedding-8B"
	DefaultRerankerModel  = "BAAI/bge-reranker-v2-m3"
	DefaultChatModel      = "Mistral-Small-24B-Instruct-2501"
)

// Options configures a Client. Zero-value fields fall back to the service
// defaults above; APIKey is required.
type Options struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	RerankerModel  string
	ChatModel      string
	EmbeddingsPath string
	RerankPath     string
	ChatPath       string
	Timeout        time.Duration
}

// Client issues blocking calls against the inference service. It performs no
// retries and no internal concurrency; a failed call is returned to the
// caller as a *domain.ServiceError.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	rerankerModel  string
	chatModel      string
	embeddingsPath string
	rerankPath     string
	chatPath       string
	client         *http.Client
	logger         logr.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", domain.ErrInvalidArgument)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         opts.APIKey,
		embeddingModel: opts.EmbeddingModel,
		rerankerModel:  opts.RerankerModel,
		chatModel:      opts.ChatModel,
		embeddingsPath: opts.EmbeddingsPath,
		rerankPath:     opts.RerankPath,
		chatPath:       opts.ChatPath,
		client:         &http.Client{Timeout: timeout},
		logger:         log.WithName("nebula"),
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.rerankerModel == "" {
		c.rerankerModel = DefaultRerankerModel
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.embeddingsPath == "" {
		c.embeddingsPath = DefaultEmbeddingsPath
	}
	if c.rerankPath == "" {
		c.rerankPath = DefaultRerankPath
	}
	if c.chatPath == "" {
		c.chatPath = DefaultChatPath
	}
	return c, nil
}

// post sends a JSON payload and decodes the JSON response into out. Any
// transport failure, non-2xx status, or undecodable body becomes a
// ServiceError carrying the endpoint identity.
func (c *Client) post(path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.ServiceError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ServiceError{Endpoint: path, Status: resp.StatusCode, Err: err}
	}

	c.logger.V(1).Info("inference request",
		"endpoint", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.ServiceError{
			Endpoint: path,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%s", preview(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.ServiceError{
			Endpoint: path,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("undecodable response (body: %s): %w", preview(body), err),
		}
	}
	return nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := c.post(c.embeddingsPath, embeddingRequest{Model: c.embeddingModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &domain.ServiceError{Endpoint: c.embeddingsPath, Err: fmt.Errorf("API error: %s", resp.Error.Message)}
	}
	if len(resp.Data) != len(texts) {
		return nil, &domain.ServiceError{
			Endpoint: c.embeddingsPath,
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	embeddings := make([][]float64, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, &domain.ServiceError{
				Endpoint: c.embeddingsPath,
				Err:      fmt.Errorf("embedding index %d out of range", data.Index),
			}
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, &domain.ServiceError{
				Endpoint: c.embeddingsPath,
				Err:      fmt.Errorf("missing embedding for input %d", i),
			}
		}
	}
	return embeddings, nil
}

// ModelName returns the embedding model identifier.
func (c *Client) ModelName() string {
	return c.embeddingModel
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	// some deployments answer under "results", others under "data"
	Results []domain.RerankResult `json:"results"`
	Data    []domain.RerankResult `json:"data"`
}

// Rerank scores documents against the query. Result ordering is the
// service's responsibility; indices are positions in the documents slice.
func (c *Client) Rerank(query string, documents []string, topN int) ([]domain.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	var raw json.RawMessage
	if err := c.post(c.rerankPath, rerankRequest{
		Model:     c.rerankerModel,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}, &raw); err != nil {
		return nil, err
	}

	var resp rerankResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.ServiceError{Endpoint: c.rerankPath, Err: fmt.Errorf("unexpected rerank response: %w", err)}
	}
	results := resp.Results
	if results == nil {
		results = resp.Data
	}
	if results == nil {
		return nil, &domain.ServiceError{
			Endpoint: c.rerankPath,
			Err:      fmt.Errorf("unexpected rerank response: %s", preview(raw)),
		}
	}
	return results, nil
}

// RerankModelName returns the reranker model identifier.
func (c *Client) RerankModelName() string {
	return c.rerankerModel
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// Chat returns the completion text for the given messages.
func (c *Client) Chat(messages []domain.Message, temperature float64) (string, error) {
	var resp chatResponse
	if err := c.post(c.chatPath, chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: temperature,
	}, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", &domain.ServiceError{Endpoint: c.chatPath, Err: fmt.Errorf("no choices in chat response")}
	}
	content := resp.Choices[0].Message.Content
	if content == nil {
		return "", &domain.ServiceError{Endpoint: c.chatPath, Err: fmt.Errorf("missing content in chat response")}
	}
	return *content, nil
}

// ChatModelName returns the chat model identifier.
func (c *Client) ChatModelName() string {
	return c.chatModel
}
