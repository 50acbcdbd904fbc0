package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel           = "llama3.2"
	DefaultEmbeddingModel  = "nomic-embed-text"
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.7
	DefaultContextBudget   = 4000
	DefaultShortTermLimit  = 20
	DefaultSummaryInterval = 2
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultTopK            = 3
	DefaultMaxAttempts     = 5
	DefaultExecTimeout     = 60
	DefaultInstallTimeout  = 120
	DefaultMaintenanceSpec = "@hourly"
	DefaultOllamaBaseURL   = "http://localhost:11434"
)

type Config struct {
	Provider  ProviderConfig  `json:"provider"`
	Embedding EmbeddingConfig `json:"embedding"`
	Memory    MemoryConfig    `json:"memory"`
	Documents DocumentsConfig `json:"documents"`
	Analysis  AnalysisConfig  `json:"analysis"`
}

type ProviderConfig struct {
	Type        string  `json:"type,omitempty"` // "ollama" (default) or "openai"
	Model       string  `json:"model,omitempty"`
	APIKey      string  `json:"apiKey,omitempty"`
	BaseURL     string  `json:"baseUrl,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type EmbeddingConfig struct {
	Model   string `json:"model,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type MemoryConfig struct {
	ShortTermLimit  int    `json:"shortTermLimit,omitempty"`
	SummaryInterval int    `json:"summaryInterval,omitempty"`
	ContextBudget   int    `json:"contextBudget,omitempty"`
	DBPath          string `json:"dbPath,omitempty"`
	MaintenanceSpec string `json:"maintenanceSpec,omitempty"`
}

type DocumentsConfig struct {
	ChunkSize    int `json:"chunkSize,omitempty"`
	ChunkOverlap int `json:"chunkOverlap,omitempty"`
	TopK         int `json:"topK,omitempty"`
}

type AnalysisConfig struct {
	MaxAttempts    int    `json:"maxAttempts,omitempty"`
	ExecTimeout    int    `json:"execTimeout,omitempty"`
	InstallTimeout int    `json:"installTimeout,omitempty"`
	PythonBin      string `json:"pythonBin,omitempty"`
	WorkDir        string `json:"workDir,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Type:        "ollama",
			Model:       DefaultModel,
			BaseURL:     DefaultOllamaBaseURL,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Embedding: EmbeddingConfig{
			Model: DefaultEmbeddingModel,
		},
		Memory: MemoryConfig{
			ShortTermLimit:  DefaultShortTermLimit,
			SummaryInterval: DefaultSummaryInterval,
			ContextBudget:   DefaultContextBudget,
			DBPath:          filepath.Join(ConfigDir(), "conversations.db"),
			MaintenanceSpec: DefaultMaintenanceSpec,
		},
		Documents: DocumentsConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TopK:         DefaultTopK,
		},
		Analysis: AnalysisConfig{
			MaxAttempts:    DefaultMaxAttempts,
			ExecTimeout:    DefaultExecTimeout,
			InstallTimeout: DefaultInstallTimeout,
			PythonBin:      "python3",
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".recall")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if typ := os.Getenv("RECALL_PROVIDER"); typ != "" {
		cfg.Provider.Type = typ
	}
	if model := os.Getenv("RECALL_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if key := os.Getenv("RECALL_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("RECALL_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("OLLAMA_HOST"); url != "" && cfg.Provider.BaseURL == DefaultOllamaBaseURL {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("RECALL_EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}
	if url := os.Getenv("RECALL_EMBEDDING_BASE_URL"); url != "" {
		cfg.Embedding.BaseURL = url
	}
	if dbPath := os.Getenv("RECALL_DB_PATH"); dbPath != "" {
		cfg.Memory.DBPath = dbPath
	}
	if limit := os.Getenv("RECALL_SHORT_TERM_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			cfg.Memory.ShortTermLimit = parsed
		}
	}
	if budget := os.Getenv("RECALL_CONTEXT_BUDGET"); budget != "" {
		if parsed, err := strconv.Atoi(budget); err == nil {
			cfg.Memory.ContextBudget = parsed
		}
	}
	if interval := os.Getenv("RECALL_SUMMARY_INTERVAL"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil {
			cfg.Memory.SummaryInterval = parsed
		}
	}
	if bin := os.Getenv("RECALL_PYTHON_BIN"); bin != "" {
		cfg.Analysis.PythonBin = bin
	}

	if cfg.Memory.ShortTermLimit <= 0 {
		cfg.Memory.ShortTermLimit = DefaultShortTermLimit
	}
	if cfg.Memory.SummaryInterval <= 0 {
		cfg.Memory.SummaryInterval = DefaultSummaryInterval
	}
	if cfg.Memory.ContextBudget <= 0 {
		cfg.Memory.ContextBudget = DefaultContextBudget
	}
	if cfg.Memory.MaintenanceSpec == "" {
		cfg.Memory.MaintenanceSpec = DefaultMaintenanceSpec
	}
	if cfg.Documents.ChunkSize <= 0 {
		cfg.Documents.ChunkSize = DefaultChunkSize
	}
	if cfg.Documents.TopK <= 0 {
		cfg.Documents.TopK = DefaultTopK
	}
	if cfg.Analysis.MaxAttempts <= 0 {
		cfg.Analysis.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Analysis.PythonBin == "" {
		cfg.Analysis.PythonBin = "python3"
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
