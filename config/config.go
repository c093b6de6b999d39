package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nebularag/internal/domain"
)

// Config holds all configuration for the RAG tool. It is constructed once at
// process start and passed into constructors; there is no global instance.
type Config struct {
	Nebula    NebulaConfig    `yaml:"nebula"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Documents DocumentsConfig `yaml:"documents"`
	Cache     CacheConfig     `yaml:"cache"`
}

// NebulaConfig holds inference service configuration. The API key is taken
// from the environment only, never from a config file.
type NebulaConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"-"`
	EmbeddingsPath string  `yaml:"embeddings_path"`
	RerankPath     string  `yaml:"rerank_path"`
	ChatPath       string  `yaml:"chat_path"`
	EmbeddingModel string  `yaml:"embedding_model"`
	RerankerModel  string  `yaml:"reranker_model"`
	ChatModel      string  `yaml:"chat_model"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// PipelineConfig holds retrieval pipeline tunables.
type PipelineConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
	RerankK      int `yaml:"rerank_k"`
}

// DocumentsConfig holds document discovery patterns.
type DocumentsConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// CacheConfig holds the optional embedding cache location. An empty path
// disables caching.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Nebula: NebulaConfig{
			BaseURL:        "https://dev-llm-proxy.nebulablock.com/v1",
			EmbeddingsPath: "/embeddings",
			RerankPath:     "/rerank",
			ChatPath:       "/chat/completions",
			EmbeddingModel: "Qwen/Qwen3-Embedding-8B",
			RerankerModel:  "BAAI/bge-reranker-v2-m3",
			ChatModel:      "Mistral-Small-24B-Instruct-2501",
			TimeoutSeconds: 60,
		},
		Pipeline: PipelineConfig{
			ChunkSize:    800,
			ChunkOverlap: 120,
			TopK:         12,
			RerankK:      6,
		},
		Documents: DocumentsConfig{
			Includes: []string{"**/*.txt", "**/*.md", "**/*.pdf"},
		},
	}
}

// LoadDotEnv loads a .env file from the working directory when present.
// A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load loads configuration from a YAML file, then applies environment
// overrides. A missing file yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from nebularag.yaml in dir when present.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, "nebularag.yaml"))
}

func (c *Config) applyEnv() error {
	setString(&c.Nebula.BaseURL, "NEBULABLOCK_BASE_URL")
	setString(&c.Nebula.APIKey, "NEBULABLOCK_API_KEY")
	setString(&c.Nebula.EmbeddingsPath, "NEBULABLOCK_EMBEDDINGS_PATH")
	setString(&c.Nebula.RerankPath, "NEBULABLOCK_RERANK_PATH")
	setString(&c.Nebula.ChatPath, "NEBULABLOCK_CHAT_PATH")
	setString(&c.Nebula.EmbeddingModel, "NEBULABLOCK_EMBEDDING_MODEL")
	setString(&c.Nebula.RerankerModel, "NEBULABLOCK_RERANKER_MODEL")
	setString(&c.Nebula.ChatModel, "NEBULABLOCK_CHAT_MODEL")

	if err := setInt(&c.Pipeline.ChunkSize, "RAG_CHUNK_SIZE"); err != nil {
		return err
	}
	if err := setInt(&c.Pipeline.ChunkOverlap, "RAG_CHUNK_OVERLAP"); err != nil {
		return err
	}
	if err := setInt(&c.Pipeline.TopK, "RAG_TOP_K"); err != nil {
		return err
	}
	if err := setInt(&c.Pipeline.RerankK, "RAG_RERANK_K"); err != nil {
		return err
	}
	return setFloat(&c.Nebula.TimeoutSeconds, "HTTP_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", domain.ErrInvalidArgument, key, v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", domain.ErrInvalidArgument, key, v)
	}
	*dst = f
	return nil
}

// Validate fails fast on invalid combinations, before any network call.
func (c *Config) Validate() error {
	if c.Nebula.APIKey == "" {
		return fmt.Errorf("%w: NEBULABLOCK_API_KEY is required; set it in your environment or .env file", domain.ErrInvalidArgument)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidArgument)
	}
	if c.Pipeline.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must be non-negative", domain.ErrInvalidArgument)
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be less than chunk size", domain.ErrInvalidArgument)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive", domain.ErrInvalidArgument)
	}
	if c.Pipeline.RerankK <= 0 {
		return fmt.Errorf("%w: rerank-k must be positive", domain.ErrInvalidArgument)
	}
	if c.Nebula.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout must be positive", domain.ErrInvalidArgument)
	}
	return nil
}

// Timeout returns the per-call HTTP budget.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Nebula.TimeoutSeconds * float64(time.Second))
}
