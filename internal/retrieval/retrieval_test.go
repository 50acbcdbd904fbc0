package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/solenoidlabs/recall/internal/config"
	"github.com/solenoidlabs/recall/internal/document"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, false},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, false},
		{"dimension mismatch", []float32{1}, []float32{1, 2}, 0, true},
		{"empty", nil, []float32{1}, 0, true},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0, true},
	}
	for _, tc := range cases {
		got, err := CosineSimilarity(tc.a, tc.b)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: error = %v, wantErr %v", tc.name, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	h := NewHashEmbedder()
	a, err := h.Embed(context.Background(), "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	b, _ := h.Embed(context.Background(), "the quick brown fox")
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("similarity error: %v", err)
	}
	if sim < 0.999 {
		t.Errorf("same text similarity = %v, want ~1", sim)
	}

	c, _ := h.Embed(context.Background(), "completely unrelated words here")
	sim2, _ := CosineSimilarity(a, c)
	if sim2 >= sim {
		t.Errorf("unrelated text similarity %v not lower than identical %v", sim2, sim)
	}
}

func TestHashEmbedderEmptyText(t *testing.T) {
	h := NewHashEmbedder()
	vec, err := h.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		t.Fatal("empty text produced a zero vector")
	}
}

func TestIndexSearchOrdering(t *testing.T) {
	ix := NewIndex(NewHashEmbedder())
	docs := []document.Document{
		{Content: "cats are small furry animals", Metadata: document.Metadata{Source: "cats.txt"}},
		{Content: "trains run on steel rails", Metadata: document.Metadata{Source: "trains.txt"}},
		{Content: "furry cats sleep all day", Metadata: document.Metadata{Source: "cats2.txt"}},
	}
	if err := ix.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	results, err := ix.Search(context.Background(), "furry cats", 3)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order: %v", results)
		}
	}
	if !strings.Contains(results[0].Text, "cats") {
		t.Errorf("nearest result = %q, expected a cat document", results[0].Text)
	}
}

func TestIndexSearchEmpty(t *testing.T) {
	ix := NewIndex(failingEmbedder{})
	results, err := ix.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results from empty index", len(results))
	}
}

func TestIndexSearchTopK(t *testing.T) {
	ix := NewIndex(NewHashEmbedder())
	var docs []document.Document
	for i := 0; i < 10; i++ {
		docs = append(docs, document.Document{Content: "doc number " + strings.Repeat("x", i+1)})
	}
	if err := ix.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	results, err := ix.Search(context.Background(), "doc", 4)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
}

// failingEmbedder errors on every call; Search on an empty index must not
// reach it.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder should not be called")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder should not be called")
}

func TestRetrieverEmptyStoreSkipsSearch(t *testing.T) {
	store := document.NewStore()
	r := NewRetriever(NewIndex(failingEmbedder{}), store, 3)
	got := r.RelevantDocuments(context.Background(), "query")
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", got)
	}
}

func TestRetrieverFormatsEvidence(t *testing.T) {
	store := document.NewStore()
	docs := []document.Document{
		{Content: "cats purr", Metadata: document.Metadata{Source: "cats.txt", Chunk: 1, ChunkOf: 1}},
	}
	store.Add(docs)
	ix := NewIndex(NewHashEmbedder())
	if err := ix.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	r := NewRetriever(ix, store, 3)
	got := r.RelevantDocuments(context.Background(), "cats")
	if len(got) != 1 {
		t.Fatalf("got %d formatted docs, want 1", len(got))
	}
	if !strings.Contains(got[0], "Document: cats.txt") || !strings.Contains(got[0], "Chunk: 1/1") {
		t.Errorf("formatted evidence = %q", got[0])
	}
	if !strings.Contains(got[0], "cats purr") {
		t.Errorf("missing content: %q", got[0])
	}
}

func TestRetrieverSearchFailureDegrades(t *testing.T) {
	store := document.NewStore()
	store.Add([]document.Document{{Content: "x", Metadata: document.Metadata{Source: "x.txt"}}})
	// Indexing succeeds, query embedding fails: the retriever must
	// degrade to no evidence instead of erroring.
	brokenIx := NewIndex(queryFailEmbedder{})
	if err := brokenIx.Add(context.Background(), []document.Document{{Content: "x"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	r := NewRetriever(brokenIx, store, 3)
	got := r.RelevantDocuments(context.Background(), "query")
	if len(got) != 0 {
		t.Fatalf("got %v, want empty on search failure", got)
	}
}

// queryFailEmbedder succeeds for batches (indexing) and fails for single
// texts (queries).
type queryFailEmbedder struct{}

func (queryFailEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("query embedding unavailable")
}

func (queryFailEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return NewHashEmbedder().EmbedBatch(context.Background(), texts)
}

func TestHTTPEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embeddingResponse{Data: []embeddingData{
			{Index: 0, Embedding: []float32{0.1, 0.2, 0.3}},
		}})
	}))
	defer srv.Close()

	e := NewEmbedder(config.EmbeddingConfig{BaseURL: srv.URL, Model: "m"})
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("vector length = %d, want 3", len(vec))
	}
}

func TestHTTPEmbedderValidation(t *testing.T) {
	cases := []struct {
		name string
		data []embeddingData
	}{
		{"count mismatch", []embeddingData{}},
		{"bad index", []embeddingData{{Index: 5, Embedding: []float32{1}}}},
		{"empty vector", []embeddingData{{Index: 0, Embedding: nil}}},
	}
	for _, tc := range cases {
		if _, err := validateEmbeddingData(tc.data, 1); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestHTTPEmbedderRejectsEmptyText(t *testing.T) {
	e := NewEmbedder(config.EmbeddingConfig{})
	if _, err := e.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank text")
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"ok", " "}); err == nil {
		t.Fatal("expected error for blank batch entry")
	}
}
