package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/config"
)

// OllamaProvider talks to an Ollama server over its native chat API.
type OllamaProvider struct {
	baseURL    string
	model      string
	maxTokens  int
	temp       float64
	httpClient *http.Client
}

func NewOllamaProvider(cfg config.ProviderConfig) *OllamaProvider {
	base := cfg.BaseURL
	if base == "" {
		base = config.DefaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(base, "/"),
		model:      model,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temperature,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OllamaProvider) Name() string { return "ollama/" + p.model }

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Generate accumulates the streamed chunks into one completion.
func (p *OllamaProvider) Generate(ctx context.Context, c *chat.Context) (string, error) {
	var sb strings.Builder
	err := p.Stream(ctx, c, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (p *OllamaProvider) Stream(ctx context.Context, c *chat.Context, fn func(chunk string) error) error {
	temp := c.Temperature
	if temp == 0 {
		temp = p.temp
	}
	options := map[string]any{"temperature": temp}
	if c.MaxTokens > 0 {
		options["num_predict"] = c.MaxTokens
	} else if p.maxTokens > 0 {
		options["num_predict"] = p.maxTokens
	}
	reqBody := map[string]any{
		"model":    p.model,
		"messages": c.FormattedMessages(),
		"stream":   true,
		"options":  options,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Responses arrive as newline-delimited JSON objects.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			if err := fn(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
