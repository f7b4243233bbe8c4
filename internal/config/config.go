package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Transport   TransportConfig   `yaml:"transport"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig selects how the server is exposed: "stdio" or "http".
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LLMConfig configures the completion service adapter.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// RetrievalConfig configures the vector search adapter.
type RetrievalConfig struct {
	BaseURL     string `yaml:"base_url"`
	TopK        int    `yaml:"top_k"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// ObjectStoreConfig configures the passage hydration adapter.
type ObjectStoreConfig struct {
	BaseURL string `yaml:"base_url"`
}

// WorkflowConfig holds pipeline tuning knobs.
type WorkflowConfig struct {
	// ReviewThreshold routes drafts below this confidence to human review.
	ReviewThreshold float64 `yaml:"review_threshold"`
	// MaxResults caps the merged search result list.
	MaxResults int `yaml:"max_results"`
	// MaxSources caps the hydrated source list handed to synthesis.
	MaxSources int `yaml:"max_sources"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Path: "inquest.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     180 * time.Second,
			MaxAttempts: 3,
		},
		Retrieval: RetrievalConfig{
			BaseURL:     "http://localhost:9200",
			TopK:        10,
			MaxAttempts: 3,
		},
		ObjectStore: ObjectStoreConfig{
			BaseURL: "http://localhost:9300",
		},
		Workflow: WorkflowConfig{
			ReviewThreshold: 0.7,
			MaxResults:      20,
			MaxSources:      30,
		},
	}

	if path := os.Getenv("INQUEST_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("INQUEST_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("INQUEST_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INQUEST_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("INQUEST_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if dbPath := os.Getenv("INQUEST_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("INQUEST_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if provider := os.Getenv("INQUEST_LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("INQUEST_LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if url := os.Getenv("INQUEST_LLM_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if url := os.Getenv("INQUEST_RETRIEVAL_BASE_URL"); url != "" {
		cfg.Retrieval.BaseURL = url
	}
	if url := os.Getenv("INQUEST_OBJECT_STORE_BASE_URL"); url != "" {
		cfg.ObjectStore.BaseURL = url
	}
	if thresholdStr := os.Getenv("INQUEST_REVIEW_THRESHOLD"); thresholdStr != "" {
		threshold, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INQUEST_REVIEW_THRESHOLD: %w", err)
		}
		cfg.Workflow.ReviewThreshold = threshold
	}

	if cfg.Transport.Mode != "stdio" && cfg.Transport.Mode != "http" {
		return Config{}, fmt.Errorf("invalid transport mode %q (want stdio or http)", cfg.Transport.Mode)
	}
	if cfg.Workflow.ReviewThreshold < 0 || cfg.Workflow.ReviewThreshold > 1 {
		return Config{}, fmt.Errorf("review threshold %v out of range [0,1]", cfg.Workflow.ReviewThreshold)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
