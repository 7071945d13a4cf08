package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/media"
)

// maxClaudeTemperature is the upper bound the messages API accepts.
const maxClaudeTemperature = 1.0

// omittedAttachment stands in for a user turn with nothing left to send.
const omittedAttachment = "[Attachment omitted]"

type ClaudeProvider struct {
	client *anthropic.Client
}

func NewClaudeProvider(apiKey, apiBase string) *ClaudeProvider {
	if apiBase == "" {
		apiBase = "https://api.anthropic.com"
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(apiBase),
	)
	return &ClaudeProvider{client: &client}
}

func (p *ClaudeProvider) GetDefaultModel() string {
	return "claude-sonnet-4-5-20250929"
}

func (p *ClaudeProvider) ChatStream(ctx context.Context, messages []Message, model string, options map[string]interface{}, onContent StreamCallback) (*LLMResponse, error) {
	if model == "" {
		model = p.GetDefaultModel()
	}
	params := buildClaudeParams(messages, model, options)

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var message anthropic.Message
	resp := &LLMResponse{FinishReason: "stop"}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			logger.WarnCF("claude", "Failed to accumulate stream event",
				map[string]interface{}{"error": err.Error()})
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				resp.Content += delta.Text
				onContent(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return resp, fmt.Errorf("claude API call: %w", err)
	}

	switch message.StopReason {
	case anthropic.StopReasonMaxTokens:
		resp.FinishReason = "length"
	case anthropic.StopReasonEndTurn:
		resp.FinishReason = "stop"
	}
	resp.Usage = &UsageInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}
	return resp, nil
}

func buildClaudeParams(messages []Message, model string, options map[string]interface{}) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var anthropicMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "user":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Parts != nil {
				blocks = claudeBlocks(msg.Parts)
			} else if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			// Empty text blocks are rejected; a turn that only carried a
			// document keeps its place in the conversation as a marker.
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(omittedAttachment))
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
		case "assistant":
			if msg.Content == "" {
				continue
			}
			anthropicMessages = append(anthropicMessages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  anthropicMessages,
		MaxTokens: maxTokensOption(options, 4096),
	}

	if len(system) > 0 {
		params.System = system
	}

	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(min(temp, maxClaudeTemperature))
	}

	return params
}

// claudeBlocks converts content parts. Images travel as data URLs and are
// sent as base64 image blocks; remote URLs are passed through.
func claudeBlocks(parts []media.ContentPart) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.IsImage():
			url := part.ImageURL.URL
			if mediaType, payload, ok := splitDataURL(url); ok {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, payload))
			} else {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: url}))
			}
		case part.Type == media.PartText && part.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		}
	}
	return blocks
}

// splitDataURL returns the media type and base64 payload of a data URL
// without decoding it.
func splitDataURL(url string) (string, string, bool) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", "", false
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", false
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}
