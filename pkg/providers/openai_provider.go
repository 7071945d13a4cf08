package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ojalaai/ojala/pkg/media"
)

type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey, apiBase string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return "gpt-4o-mini"
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []Message, model string, options map[string]interface{}, onContent StreamCallback) (*LLMResponse, error) {
	if model == "" {
		model = p.GetDefaultModel()
	}
	params := buildOpenAIParams(messages, model, options)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	resp := &LLMResponse{FinishReason: "stop"}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if delta := choice.Delta.Content; delta != "" {
				resp.Content += delta
				onContent(delta)
			}
			if choice.FinishReason != "" {
				resp.FinishReason = string(choice.FinishReason)
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			resp.Usage = &UsageInfo{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}
	}
	if err := stream.Err(); err != nil {
		return resp, fmt.Errorf("openai API call: %w", err)
	}
	return resp, nil
}

func buildOpenAIParams(messages []Message, model string, options map[string]interface{}) openai.ChatCompletionNewParams {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		case "user":
			if msg.Parts == nil {
				out = append(out, openai.UserMessage(msg.Content))
				continue
			}
			out = append(out, openai.UserMessage(openAIParts(msg.Parts)))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: out,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = openai.Float(temp)
	}
	if mt := maxTokensOption(options, 0); mt > 0 {
		params.MaxCompletionTokens = openai.Int(mt)
	}
	return params
}

func openAIParts(parts []media.ContentPart) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.IsImage():
			detail := part.ImageURL.Detail
			if detail == "" {
				detail = media.DetailAuto
			}
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    part.ImageURL.URL,
				Detail: detail,
			}))
		case part.Type == media.PartText:
			out = append(out, openai.TextContentPart(part.Text))
		}
	}
	return out
}
