package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"nebularag/internal/adapter/cache"
	"nebularag/internal/adapter/fs"
	"nebularag/internal/adapter/memstore"
	"nebularag/internal/adapter/nebula"
	"nebularag/internal/port"
	"nebularag/internal/usecase"
)

var (
	askDocs         string
	askQuestion     string
	askChunkSize    int
	askChunkOverlap int
	askTopK         int
	askRerankK      int
	askJSON         bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Index a documents directory and answer a question",
	Long: `Index every matching document under --docs into an in-memory
similarity index, retrieve and rerank the passages most relevant to
--question, and generate an answer grounded in them.

Examples:
  nebularag ask --docs ./docs --question "What is the main topic?"
  nebularag ask --docs ./docs --question "Explain X" --chunk-size 1000 --top-k 15`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askDocs, "docs", "", "path to documents directory (required)")
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.Flags().IntVar(&askChunkSize, "chunk-size", 0, "size of text chunks (default from config)")
	askCmd.Flags().IntVar(&askChunkOverlap, "chunk-overlap", -1, "overlap between chunks (default from config)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of candidates to retrieve (default from config)")
	askCmd.Flags().IntVar(&askRerankK, "rerank-k", 0, "number of candidates after reranking (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full result as JSON")
	askCmd.MarkFlagRequired("docs")
	askCmd.MarkFlagRequired("question")
}

// inference combines the embedding path (possibly cached) with the rerank
// and chat paths of the service client.
type inference struct {
	port.Embedder
	port.Reranker
	port.ChatModel
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if cmd.Flags().Changed("chunk-size") {
		cfg.Pipeline.ChunkSize = askChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		cfg.Pipeline.ChunkOverlap = askChunkOverlap
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Pipeline.TopK = askTopK
	}
	if cmd.Flags().Changed("rerank-k") {
		cfg.Pipeline.RerankK = askRerankK
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Pipeline.RerankK > cfg.Pipeline.TopK {
		fmt.Fprintf(os.Stderr, "Warning: rerank-k (%d) > top-k (%d)\n", cfg.Pipeline.RerankK, cfg.Pipeline.TopK)
	}

	client, err := nebula.NewClient(nebula.Options{
		BaseURL:        cfg.Nebula.BaseURL,
		APIKey:         cfg.Nebula.APIKey,
		EmbeddingModel: cfg.Nebula.EmbeddingModel,
		RerankerModel:  cfg.Nebula.RerankerModel,
		ChatModel:      cfg.Nebula.ChatModel,
		EmbeddingsPath: cfg.Nebula.EmbeddingsPath,
		RerankPath:     cfg.Nebula.RerankPath,
		ChatPath:       cfg.Nebula.ChatPath,
		Timeout:        cfg.Timeout(),
	})
	if err != nil {
		return err
	}

	inf := inference{Embedder: client, Reranker: client, ChatModel: client}
	if cfg.Cache.Path != "" {
		cached, err := cache.Open(cfg.Cache.Path, client)
		if err != nil {
			return err
		}
		defer cached.Close()
		inf.Embedder = cached
	}

	loader := fs.NewLoader(cfg.Documents.Includes, cfg.Documents.Excludes)
	var bar *progressbar.ProgressBar
	loader.Progress = func(done, total int, path string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Reading documents"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set(done)
	}

	docs, err := loader.Load(askDocs)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d documents\n", len(docs))

	pipeline := usecase.NewPipeline(inf, memstore.New(), usecase.Options{
		ChunkSize:    cfg.Pipeline.ChunkSize,
		ChunkOverlap: cfg.Pipeline.ChunkOverlap,
		TopK:         cfg.Pipeline.TopK,
		RerankK:      cfg.Pipeline.RerankK,
	})

	count, err := pipeline.IndexTexts(docs)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Printf("Indexed %d chunks from %d documents.\n", count, len(docs))

	result, err := pipeline.Answer(askQuestion, 0)
	if err != nil {
		return err
	}

	if askJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	divider := strings.Repeat("=", 60)

	fmt.Println("\n" + divider)
	fmt.Println("ANSWER:")
	fmt.Println(divider)
	fmt.Println(result.Answer)

	fmt.Println("\n" + divider)
	fmt.Println("SOURCES:")
	fmt.Println(divider)
	for i, src := range result.Sources {
		fmt.Printf("%d. %s\n", i+1, preview(src))
	}

	fmt.Println("\n" + divider)
	fmt.Println("MODELS USED:")
	fmt.Println(divider)
	fmt.Printf("Embedding Model: %s\n", result.Models.Embedding)
	fmt.Printf("Reranker Model:  %s\n", result.Models.Reranker)
	fmt.Printf("Chat Model:      %s\n", result.Models.Chat)

	return nil
}

// preview returns the first line of a source, truncated for display.
func preview(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return line
}
