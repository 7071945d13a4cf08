// Package providers adapts completion vendors to one streaming interface the
// chat server drives.
package providers

import (
	"context"
	"fmt"

	"github.com/ojalaai/ojala/pkg/config"
	"github.com/ojalaai/ojala/pkg/media"
)

// Message is one turn handed to a provider. Parts, when set, takes the place
// of Content.
type Message struct {
	Role    string
	Content string
	Parts   []media.ContentPart
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

// StreamCallback receives each content delta as it arrives.
type StreamCallback func(delta string)

type StreamingProvider interface {
	ChatStream(ctx context.Context, messages []Message, model string, options map[string]interface{}, onContent StreamCallback) (*LLMResponse, error)
	GetDefaultModel() string
}

// CreateProvider builds the provider named by cfg.Server.Provider.
func CreateProvider(cfg *config.Config) (StreamingProvider, error) {
	name, ok := config.NormalizeProvider(cfg.Server.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", cfg.Server.Provider)
	}
	switch name {
	case "openai":
		pc := cfg.Providers.OpenAI
		if pc.APIKey == "" {
			return nil, fmt.Errorf("no API key configured for provider openai")
		}
		return NewOpenAIProvider(pc.APIKey, pc.APIBase), nil
	default:
		pc := cfg.Providers.Anthropic
		if pc.APIKey == "" {
			return nil, fmt.Errorf("no API key configured for provider anthropic")
		}
		return NewClaudeProvider(pc.APIKey, pc.APIBase), nil
	}
}

func maxTokensOption(options map[string]interface{}, fallback int64) int64 {
	switch v := options["max_tokens"].(type) {
	case int:
		if v > 0 {
			return int64(v)
		}
	case int64:
		if v > 0 {
			return v
		}
	}
	return fallback
}
