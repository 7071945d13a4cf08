package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "OJALA_"

// DefaultSystemInstruction is sent ahead of every conversation unless the
// server or client config overrides it.
const DefaultSystemInstruction = `You are Ojala, a helpful assistant for small businesses.
Answer clearly and concisely. When the user attaches images or documents,
read them carefully and refer to what you see in them.`

type Config struct {
	Client    ClientConfig    `json:"client" envPrefix:"CLIENT_"`
	Server    ServerConfig    `json:"server" envPrefix:"SERVER_"`
	Providers ProvidersConfig `json:"providers"`
	Log       LogConfig       `json:"log" envPrefix:"LOG_"`
}

// ClientConfig is what the streaming transport is constructed with.
type ClientConfig struct {
	Endpoint          string  `json:"endpoint" env:"ENDPOINT"`
	Model             string  `json:"model" env:"MODEL"`
	Temperature       float64 `json:"temperature" env:"TEMPERATURE"`
	SystemInstruction string  `json:"system_instruction" env:"SYSTEM_INSTRUCTION"`
	HistoryFile       string  `json:"history_file" env:"HISTORY_FILE"`
}

type ServerConfig struct {
	Addr         string  `json:"addr" env:"ADDR"`
	Provider     string  `json:"provider" env:"PROVIDER"`
	Model        string  `json:"model" env:"MODEL"`
	Temperature  float64 `json:"temperature" env:"TEMPERATURE"`
	MaxTokens    int     `json:"max_tokens" env:"MAX_TOKENS"`
	SystemPrompt string  `json:"system_prompt" env:"SYSTEM_PROMPT"`
	MetricsDir   string  `json:"metrics_dir" env:"METRICS_DIR"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" envPrefix:"OPENAI_"`
	Anthropic ProviderConfig `json:"anthropic" envPrefix:"ANTHROPIC_"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"API_KEY"`
	APIBase string `json:"api_base" env:"API_BASE"`
}

type LogConfig struct {
	Level string `json:"level" env:"LEVEL"`
	JSON  bool   `json:"json" env:"JSON"`
}

func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Endpoint:          "http://localhost:8080/api/chat",
			Model:             "gpt-4o-mini",
			Temperature:       0.7,
			SystemInstruction: DefaultSystemInstruction,
			HistoryFile:       filepath.Join(homeDir(), ".ojala", "history"),
		},
		Server: ServerConfig{
			Addr:         ":8080",
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			Temperature:  0.7,
			MaxTokens:    4096,
			SystemPrompt: DefaultSystemInstruction,
			MetricsDir:   filepath.Join(homeDir(), ".ojala"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// DefaultPath returns ~/.ojala/config.json.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".ojala", "config.json")
}

// Load reads defaults, then the JSON file at path (if it exists), then
// OJALA_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Standard provider variables apply when nothing more specific is set.
	if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return cfg, nil
}

// NormalizeProvider maps a provider name and its aliases to "openai" or
// "anthropic". An empty name selects openai.
func NormalizeProvider(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai":
		return "openai", true
	case "anthropic", "claude":
		return "anthropic", true
	}
	return "", false
}

// Validate checks both the client and the server sections.
func (c *Config) Validate() error {
	if err := c.ValidateClient(); err != nil {
		return err
	}
	return c.ValidateServer()
}

func (c *Config) ValidateClient() error {
	if strings.TrimSpace(c.Client.Endpoint) == "" {
		return fmt.Errorf("client endpoint is required")
	}
	if c.Client.Temperature < 0 || c.Client.Temperature > 2 {
		return fmt.Errorf("client temperature must be between 0 and 2, got %v", c.Client.Temperature)
	}
	return nil
}

func (c *Config) ValidateServer() error {
	if _, ok := NormalizeProvider(c.Server.Provider); !ok {
		return fmt.Errorf("unknown provider %q", c.Server.Provider)
	}
	return nil
}

// Save writes the config as indented JSON, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
