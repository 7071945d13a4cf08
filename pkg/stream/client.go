// Package stream submits a composed conversation to the chat endpoint and
// delivers the streamed reply incrementally.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/ojalaai/ojala/pkg/compose"
	"github.com/ojalaai/ojala/pkg/logger"
)

const readBufferSize = 4096

// Phase is the lifecycle position of one exchange.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSending   Phase = "sending"
	PhaseStreaming Phase = "streaming"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// ErrNoBody is returned when a successful response carries no readable body.
var ErrNoBody = errors.New("stream: response has no body")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat request failed with status %d: %s", e.Code, e.Message)
}

// Config is the client-side part of the exchange. It is passed to NewClient
// rather than read from globals.
type Config struct {
	Endpoint          string
	Model             string
	Temperature       *float64
	SystemInstruction string
}

// Sink receives the progress of one exchange. Calls happen on the goroutine
// running Exchange, strictly in arrival order.
type Sink interface {
	StreamOpened()
	ContentReceived(delta string)
}

type Client struct {
	cfg  Config
	http *resty.Client
}

type Option func(*Client)

// WithHTTPClient makes the client send through hc, typically for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc)
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: resty.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Config() Config {
	return c.cfg
}

// Exchange posts messages and feeds the reply to sink until the body ends.
// It returns nil on a clean end of stream, ctx.Err() when cancelled and any
// other error on failure. Deltas already delivered stay delivered.
func (c *Client) Exchange(ctx context.Context, messages []compose.Message, sink Sink) error {
	body, err := sonic.Marshal(compose.Request{
		Messages:    messages,
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		System:      c.cfg.SystemInstruction,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	logger.DebugCF("stream", "Submitting conversation",
		map[string]interface{}{
			"endpoint": c.cfg.Endpoint,
			"messages": len(messages),
			"bytes":    len(body),
		})

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(c.cfg.Endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("send request: %w", err)
	}

	raw := resp.RawBody()
	if raw != nil {
		defer raw.Close()
	}

	if !resp.IsSuccess() {
		return statusError(resp.StatusCode(), raw)
	}
	if raw == nil || raw == http.NoBody {
		return ErrNoBody
	}

	sink.StreamOpened()
	return c.read(ctx, raw, sink)
}

func (c *Client) read(ctx context.Context, body io.Reader, sink Sink) error {
	var dec Decoder
	buf := make([]byte, readBufferSize)
	chunks := 0

	for {
		if err := ctx.Err(); err != nil {
			logger.InfoCF("stream", "Exchange cancelled",
				map[string]interface{}{"chunks": chunks})
			return err
		}

		n, err := body.Read(buf)
		if n > 0 {
			chunks++
			for _, delta := range dec.Feed(buf[:n]) {
				sink.ContentReceived(delta)
			}
		}
		if errors.Is(err, io.EOF) {
			for _, delta := range dec.Flush() {
				sink.ContentReceived(delta)
			}
			logger.DebugCF("stream", "Stream ended",
				map[string]interface{}{"chunks": chunks})
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

func statusError(code int, body io.Reader) error {
	msg := ""
	if body != nil {
		data, _ := io.ReadAll(io.LimitReader(body, 64*1024))
		if gjson.ValidBytes(data) {
			msg = gjson.GetBytes(data, "error").String()
		}
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &StatusError{Code: code, Message: msg}
}
