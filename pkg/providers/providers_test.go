package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ojalaai/ojala/pkg/config"
	"github.com/ojalaai/ojala/pkg/media"
)

const pngURL = "data:image/png;base64,aW1n"

func conversation() []Message {
	return []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Parts: []media.ContentPart{media.TextPart("look"), media.ImagePart(pngURL)}},
		{Role: "assistant", Content: "a cat"},
		{Role: "user", Content: "thanks"},
	}
}

func TestBuildOpenAIParams(t *testing.T) {
	params := buildOpenAIParams(conversation(), "gpt-4o-mini", map[string]interface{}{
		"temperature": 0.7,
		"max_tokens":  256,
	})
	data, err := json.Marshal(params)
	require.NoError(t, err)
	body := gjson.ParseBytes(data)

	assert.Equal(t, "gpt-4o-mini", body.Get("model").String())
	assert.Equal(t, 0.7, body.Get("temperature").Float())
	assert.Equal(t, int64(256), body.Get("max_completion_tokens").Int())
	assert.True(t, body.Get("stream_options.include_usage").Bool())

	msgs := body.Get("messages").Array()
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, "text", msgs[1].Get("content.0.type").String())
	assert.Equal(t, "look", msgs[1].Get("content.0.text").String())
	assert.Equal(t, "image_url", msgs[1].Get("content.1.type").String())
	assert.Equal(t, pngURL, msgs[1].Get("content.1.image_url.url").String())
	assert.Equal(t, "auto", msgs[1].Get("content.1.image_url.detail").String())
	assert.Equal(t, "a cat", msgs[2].Get("content").String())
	assert.Equal(t, "thanks", msgs[3].Get("content").String())
}

func TestBuildClaudeParams(t *testing.T) {
	params := buildClaudeParams(conversation(), "claude-sonnet-4-5-20250929", map[string]interface{}{
		"temperature": 1.4,
	})
	data, err := json.Marshal(params)
	require.NoError(t, err)
	body := gjson.ParseBytes(data)

	assert.Equal(t, "be brief", body.Get("system.0.text").String())
	assert.Equal(t, int64(4096), body.Get("max_tokens").Int())
	assert.Equal(t, 1.0, body.Get("temperature").Float(), "clamped")

	msgs := body.Get("messages").Array()
	require.Len(t, msgs, 3, "system is not a message")
	image := msgs[0].Get("content.1")
	assert.Equal(t, "image", image.Get("type").String())
	assert.Equal(t, "base64", image.Get("source.type").String())
	assert.Equal(t, "image/png", image.Get("source.media_type").String())
	assert.Equal(t, "aW1n", image.Get("source.data").String())
	assert.Equal(t, "assistant", msgs[1].Get("role").String())
}

func TestBuildClaudeParamsEmptyUserTurn(t *testing.T) {
	params := buildClaudeParams([]Message{
		{Role: "user", Content: ""},
		{Role: "assistant", Content: "It is an invoice."},
		{Role: "user", Content: "total?"},
	}, "claude-sonnet-4-5-20250929", nil)
	data, err := json.Marshal(params)
	require.NoError(t, err)

	msgs := gjson.GetBytes(data, "messages").Array()
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Get("role").String())
	assert.Equal(t, omittedAttachment, msgs[0].Get("content.0.text").String())
	for _, m := range msgs {
		for _, block := range m.Get("content").Array() {
			if block.Get("type").String() == "text" {
				assert.NotEmpty(t, block.Get("text").String())
			}
		}
	}
}

func TestSplitDataURL(t *testing.T) {
	mediaType, payload, ok := splitDataURL("data:image/jpeg;base64,AAAA")
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", mediaType)
	assert.Equal(t, "AAAA", payload)

	for _, bad := range []string{"https://x/y.png", "data:image/png,raw", "data:;base64,AA", "data:image/png;base64"} {
		_, _, ok := splitDataURL(bad)
		assert.False(t, ok, bad)
	}
}

func TestCreateProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.Anthropic.APIKey = "sk-ant"

	p, err := CreateProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	cfg.Server.Provider = "anthropic"
	p, err = CreateProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeProvider{}, p)

	cfg.Server.Provider = "claude"
	p, err = CreateProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeProvider{}, p)

	cfg.Server.Provider = "gemini"
	_, err = CreateProvider(cfg)
	assert.ErrorContains(t, err, "unknown provider")

	cfg.Server.Provider = "openai"
	cfg.Providers.OpenAI.APIKey = ""
	_, err = CreateProvider(cfg)
	assert.ErrorContains(t, err, "no API key")
}

func writeEvents(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		fmt.Fprint(w, ev)
		w.(http.Flusher).Flush()
	}
}

func TestOpenAIChatStream(t *testing.T) {
	var request []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		request, _ = io.ReadAll(r.Body)
		chunk := `{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":%s}]}`
		writeEvents(w,
			"data: "+fmt.Sprintf(chunk, "He", "null")+"\n\n",
			"data: "+fmt.Sprintf(chunk, "llo", `"stop"`)+"\n\n",
			`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`+"\n\n",
			"data: [DONE]\n\n",
		)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/")
	var deltas []string
	resp, err := p.ChatStream(context.Background(), conversation(), "", nil, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"He", "llo"}, deltas)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.True(t, gjson.GetBytes(request, "stream").Bool())
	assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(request, "model").String())
}

func TestClaudeChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		writeEvents(w,
			"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"m1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4-5-20250929\",\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":10,\"output_tokens\":1}}}\n\n",
			"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"He\"}}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"llo\"}}\n\n",
			"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n",
			"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":2}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		)
	}))
	defer srv.Close()

	p := NewClaudeProvider("sk-ant", srv.URL)
	var deltas []string
	resp, err := p.ChatStream(context.Background(), conversation(), "", nil, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"He", "llo"}, deltas)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
}
