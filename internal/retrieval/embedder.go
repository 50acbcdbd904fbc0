// Package retrieval embeds document chunks and serves nearest-neighbor
// lookups over an in-memory vector index.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solenoidlabs/recall/internal/config"
)

const (
	defaultEmbeddingBaseURL = "http://localhost:11434"
	defaultEmbeddingBatch   = 16
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type embedderClient struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	httpClient *http.Client
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// NewEmbedder builds an HTTP embedder against an OpenAI-compatible
// /v1/embeddings endpoint. Ollama serves the same shape, so the default
// base URL points at a local Ollama.
func NewEmbedder(cfg config.EmbeddingConfig) Embedder {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultEmbeddingBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = config.DefaultEmbeddingModel
	}
	return &embedderClient{
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		batchSize:  defaultEmbeddingBatch,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *embedderClient) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	vectors, err := c.requestEmbeddings(ctx, trimmed, 1)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vectors[0], nil
}

func (c *embedderClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: empty texts")
	}

	normalized := make([]string, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("embed batch: empty text at index %d", i)
		}
		normalized[i] = trimmed
	}

	vectors := make([][]float32, 0, len(normalized))
	for start := 0; start < len(normalized); start += c.batchSize {
		end := start + c.batchSize
		if end > len(normalized) {
			end = len(normalized)
		}
		chunk, err := c.requestEmbeddings(ctx, normalized[start:end], end-start)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		vectors = append(vectors, chunk...)
	}
	return vectors, nil
}

func (c *embedderClient) requestEmbeddings(ctx context.Context, input any, expectedCount int) ([][]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return validateEmbeddingData(decoded.Data, expectedCount)
}

func validateEmbeddingData(data []embeddingData, expectedCount int) ([][]float32, error) {
	if len(data) != expectedCount {
		return nil, fmt.Errorf("response count mismatch: got %d want %d", len(data), expectedCount)
	}

	vectors := make([][]float32, expectedCount)
	seen := make([]bool, expectedCount)
	responseDim := 0

	for _, item := range data {
		if item.Index < 0 || item.Index >= expectedCount {
			return nil, fmt.Errorf("invalid embedding index %d", item.Index)
		}
		if seen[item.Index] {
			return nil, fmt.Errorf("duplicate embedding index %d", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding vector at index %d", item.Index)
		}
		if responseDim == 0 {
			responseDim = len(item.Embedding)
		} else if len(item.Embedding) != responseDim {
			return nil, fmt.Errorf("inconsistent embedding dimension at index %d: got %d want %d", item.Index, len(item.Embedding), responseDim)
		}

		copied := make([]float32, len(item.Embedding))
		copy(copied, item.Embedding)
		vectors[item.Index] = copied
		seen[item.Index] = true
	}

	for idx, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("missing embedding index %d", idx)
		}
	}
	return vectors, nil
}
