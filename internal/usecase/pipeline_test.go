package usecase

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"nebularag/internal/adapter/memstore"
	"nebularag/internal/domain"
)

type fakeInference struct {
	embedFn  func(texts []string) ([][]float64, error)
	rerankFn func(query string, documents []string, topN int) ([]domain.RerankResult, error)
	chatFn   func(messages []domain.Message, temperature float64) (string, error)

	embedCalls  int
	rerankCalls int
	chatCalls   int

	lastMessages []domain.Message
	lastTopN     int
}

func (f *fakeInference) Embed(texts []string) ([][]float64, error) {
	f.embedCalls++
	if f.embedFn != nil {
		return f.embedFn(texts)
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func (f *fakeInference) Rerank(query string, documents []string, topN int) ([]domain.RerankResult, error) {
	f.rerankCalls++
	f.lastTopN = topN
	if f.rerankFn != nil {
		return f.rerankFn(query, documents, topN)
	}
	return nil, nil
}

func (f *fakeInference) Chat(messages []domain.Message, temperature float64) (string, error) {
	f.chatCalls++
	f.lastMessages = messages
	if f.chatFn != nil {
		return f.chatFn(messages, temperature)
	}
	return "mock answer", nil
}

func (f *fakeInference) ModelName() string       { return "embed-model" }
func (f *fakeInference) RerankModelName() string { return "rerank-model" }
func (f *fakeInference) ChatModelName() string   { return "chat-model" }

func newTestPipeline(inf *fakeInference, opts Options) *Pipeline {
	if opts.ChunkSize == 0 {
		opts = Options{ChunkSize: 20, ChunkOverlap: 5, TopK: 12, RerankK: 6}
	}
	return NewPipeline(inf, memstore.New(), opts)
}

func TestIndexTextsCountsChunks(t *testing.T) {
	inf := &fakeInference{}
	p := newTestPipeline(inf, Options{})

	docA := "The quick brown fox jumps over the lazy dog near the old barn"
	docB := "short doc"

	chunksA := 4 // 61 chars at size 20, overlap 5
	chunksB := 1

	count, err := p.IndexTexts([]string{docA, docB})
	if err != nil {
		t.Fatal(err)
	}
	if count != chunksA+chunksB {
		t.Errorf("expected %d chunks, got %d", chunksA+chunksB, count)
	}
	if p.Store().Size() != count {
		t.Errorf("store size %d does not match count %d", p.Store().Size(), count)
	}
	if inf.embedCalls != 1 {
		t.Errorf("expected a single embed batch, got %d calls", inf.embedCalls)
	}
}

func TestIndexTextsEmptyInput(t *testing.T) {
	inf := &fakeInference{}
	p := newTestPipeline(inf, Options{})

	count, err := p.IndexTexts([]string{"", "   "})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 chunks, got %d", count)
	}
	if inf.embedCalls != 0 {
		t.Error("no chunks must mean no embed call")
	}
}

func TestIndexTextsEmbedFailureLeavesStoreUntouched(t *testing.T) {
	embedErr := errors.New("embed down")
	inf := &fakeInference{
		embedFn: func(texts []string) ([][]float64, error) { return nil, embedErr },
	}
	p := newTestPipeline(inf, Options{})

	_, err := p.IndexTexts([]string{"some document text"})
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
	if p.Store().Size() != 0 {
		t.Errorf("store mutated on failed embed: size=%d", p.Store().Size())
	}
}

func TestRetrieveOrdering(t *testing.T) {
	// chunks embed along fixed axes; the question embeds nearest chunk 0
	vectors := map[string][]float64{
		"alpha": {1, 0},
		"beta":  {0, 1},
		"query": {0.9, 0.1},
	}
	inf := &fakeInference{
		embedFn: func(texts []string) ([][]float64, error) {
			out := make([][]float64, len(texts))
			for i, text := range texts {
				out[i] = vectors[text]
			}
			return out, nil
		},
	}
	p := newTestPipeline(inf, Options{ChunkSize: 100, ChunkOverlap: 0, TopK: 2, RerankK: 2})

	if _, err := p.IndexTexts([]string{"alpha", "beta"}); err != nil {
		t.Fatal(err)
	}

	candidates, err := p.Retrieve("query")
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Index != 0 || candidates[1].Index != 1 {
		t.Errorf("unexpected ranking: %+v", candidates)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Errorf("scores not descending: %+v", candidates)
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	p := newTestPipeline(&fakeInference{}, Options{})

	candidates, err := p.Retrieve("anything")
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(candidates))
	}
}

// fills the store with n one-chunk entries so arbitrary indices resolve
func fillStore(t *testing.T, p *Pipeline, n int) {
	t.Helper()
	texts := make([]string, n)
	embeddings := make([][]float64, n)
	for i := range texts {
		texts[i] = "chunk " + strings.Repeat("x", i)
		embeddings[i] = []float64{1, float64(i)}
	}
	if err := p.Store().Add(texts, embeddings); err != nil {
		t.Fatal(err)
	}
}

func TestRerankMapsLocalToGlobal(t *testing.T) {
	inf := &fakeInference{
		rerankFn: func(query string, documents []string, topN int) ([]domain.RerankResult, error) {
			if len(documents) != 3 {
				t.Errorf("expected 3 documents, got %d", len(documents))
			}
			return []domain.RerankResult{
				{Index: 2, Score: 0.9},
				{Index: 0, Score: 0.7},
			}, nil
		},
	}
	p := newTestPipeline(inf, Options{})
	fillStore(t, p, 10)

	out, err := p.Rerank("question", []int{5, 2, 9})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, []int{9, 5}) {
		t.Errorf("expected [9 5], got %v", out)
	}
	if inf.lastTopN != 6 {
		t.Errorf("expected top_n=6, got %d", inf.lastTopN)
	}
}

func TestRerankDropsOutOfRangeIndices(t *testing.T) {
	inf := &fakeInference{
		rerankFn: func(query string, documents []string, topN int) ([]domain.RerankResult, error) {
			return []domain.RerankResult{
				{Index: 7, Score: 0.9},
				{Index: -1, Score: 0.8},
				{Index: 1, Score: 0.5},
			}, nil
		},
	}
	p := newTestPipeline(inf, Options{})
	fillStore(t, p, 5)

	out, err := p.Rerank("question", []int{3, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, []int{0}) {
		t.Errorf("expected malformed locals dropped, got %v", out)
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	inf := &fakeInference{}
	p := newTestPipeline(inf, Options{})

	out, err := p.Rerank("question", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("expected nil, got %v", out)
	}
	if inf.rerankCalls != 0 {
		t.Error("empty candidates must not call the reranker")
	}
}

func TestBuildContext(t *testing.T) {
	p := newTestPipeline(&fakeInference{}, Options{})
	fillStore(t, p, 3)

	empty, err := p.BuildContext(nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty != "" {
		t.Errorf("expected empty context, got %q", empty)
	}

	single, err := p.BuildContext([]int{1})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(single, ContextSeparator) {
		t.Errorf("single text must not contain the separator: %q", single)
	}

	double, err := p.BuildContext([]int{0, 2})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(double, ContextSeparator) != 1 {
		t.Errorf("expected exactly one separator, got %q", double)
	}
}

func TestAnswerUsesRerankedOrder(t *testing.T) {
	inf := &fakeInference{
		rerankFn: func(query string, documents []string, topN int) ([]domain.RerankResult, error) {
			// reverse the submitted order
			out := make([]domain.RerankResult, len(documents))
			for i := range documents {
				out[i] = domain.RerankResult{Index: len(documents) - 1 - i, Score: 1 - float64(i)*0.1}
			}
			return out, nil
		},
	}
	p := newTestPipeline(inf, Options{ChunkSize: 100, ChunkOverlap: 0, TopK: 3, RerankK: 3})
	fillStore(t, p, 3)

	ans, err := p.Answer("question", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "mock answer" {
		t.Errorf("unexpected answer %q", ans.Answer)
	}
	if len(ans.Indices) != 3 {
		t.Fatalf("expected 3 indices, got %d", len(ans.Indices))
	}
	if len(ans.Sources) != len(ans.Indices) {
		t.Errorf("sources and indices out of step: %d vs %d", len(ans.Sources), len(ans.Indices))
	}
	if ans.Models.Embedding != "embed-model" || ans.Models.Reranker != "rerank-model" || ans.Models.Chat != "chat-model" {
		t.Errorf("unexpected models %+v", ans.Models)
	}

	// the prompt must embed the question and the context
	if len(inf.lastMessages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(inf.lastMessages))
	}
	if inf.lastMessages[0].Role != "system" {
		t.Errorf("first message must be the system prompt, got %s", inf.lastMessages[0].Role)
	}
	if !strings.Contains(inf.lastMessages[1].Content, "Question: question") {
		t.Errorf("user message missing the question: %q", inf.lastMessages[1].Content)
	}
}

func TestAnswerFallsBackToRetrievalOrder(t *testing.T) {
	// retrieval ranks chunk 1 above chunk 0; reranking returns nothing
	inf := &fakeInference{
		embedFn: func(texts []string) ([][]float64, error) {
			out := make([][]float64, len(texts))
			for i, text := range texts {
				switch text {
				case "alpha":
					out[i] = []float64{1, 0}
				case "beta":
					out[i] = []float64{0, 1}
				default: // the question
					out[i] = []float64{0.1, 0.9}
				}
			}
			return out, nil
		},
		rerankFn: func(query string, documents []string, topN int) ([]domain.RerankResult, error) {
			return nil, nil
		},
	}
	p := newTestPipeline(inf, Options{ChunkSize: 100, ChunkOverlap: 0, TopK: 2, RerankK: 1})

	if _, err := p.IndexTexts([]string{"alpha", "beta"}); err != nil {
		t.Fatal(err)
	}

	ans, err := p.Answer("what is beta", 0)
	if err != nil {
		t.Fatal(err)
	}
	// fallback takes the first rerank-k candidates in retrieval order
	if !reflect.DeepEqual(ans.Indices, []int{1}) {
		t.Errorf("expected fallback to retrieval order [1], got %v", ans.Indices)
	}
	if ans.Sources[0] != "beta" {
		t.Errorf("expected source 'beta', got %q", ans.Sources[0])
	}
}

func TestAnswerMaxContextDocsOverridesFallback(t *testing.T) {
	inf := &fakeInference{
		rerankFn: func(query string, documents []string, topN int) ([]domain.RerankResult, error) {
			return nil, nil
		},
	}
	p := newTestPipeline(inf, Options{ChunkSize: 100, ChunkOverlap: 0, TopK: 3, RerankK: 1})
	fillStore(t, p, 3)

	ans, err := p.Answer("question", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ans.Indices) != 2 {
		t.Errorf("expected maxContextDocs=2 to win over rerank-k, got %v", ans.Indices)
	}
}

func TestAnswerEmptyStore(t *testing.T) {
	inf := &fakeInference{}
	p := newTestPipeline(inf, Options{})

	ans, err := p.Answer("question", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ans.Indices) != 0 || len(ans.Sources) != 0 {
		t.Errorf("expected no sources on empty store, got %+v", ans)
	}
	if inf.rerankCalls != 0 {
		t.Error("no candidates must mean no rerank call")
	}
	if inf.chatCalls != 1 {
		t.Error("chat is still asked, with empty context")
	}
}

func TestAnswerPropagatesChatFailure(t *testing.T) {
	chatErr := errors.New("chat down")
	inf := &fakeInference{
		chatFn: func(messages []domain.Message, temperature float64) (string, error) {
			return "", chatErr
		},
	}
	p := newTestPipeline(inf, Options{})
	fillStore(t, p, 2)

	_, err := p.Answer("question", 0)
	if !errors.Is(err, chatErr) {
		t.Errorf("expected chat error to propagate, got %v", err)
	}
}
