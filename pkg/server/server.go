// Package server exposes the streaming chat endpoint the client talks to.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ojalaai/ojala/pkg/compose"
	"github.com/ojalaai/ojala/pkg/config"
	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/metrics"
	"github.com/ojalaai/ojala/pkg/providers"
)

const (
	errMessagesRequired = "Messages are required"
	errChatFailed       = "Failed to process chat request"

	// maxBodyBytes bounds a request: ten attachments at their size caps,
	// base64 encoded, plus rendered document pages.
	maxBodyBytes = 512 << 20
)

type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	provider providers.StreamingProvider
	tracker  *metrics.Tracker
}

// NewServer wires the routes. tracker may be nil.
func NewServer(cfg config.ServerConfig, provider providers.StreamingProvider, tracker *metrics.Tracker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.InfoCF("server", "Request handled",
				map[string]interface{}{
					"method":  v.Method,
					"uri":     v.URI,
					"status":  v.Status,
					"latency": v.Latency.String(),
				})
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:     e,
		cfg:      cfg,
		provider: provider,
		tracker:  tracker,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "ok",
			"provider": s.cfg.Provider,
			"model":    s.model(""),
		})
	})

	s.echo.POST("/api/chat", s.handleChat)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("server", "Listening", map[string]interface{}{"addr": s.cfg.Addr})
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) model(requested string) string {
	switch {
	case requested != "":
		return requested
	case s.cfg.Model != "":
		return s.cfg.Model
	default:
		return s.provider.GetDefaultModel()
	}
}

func (s *Server) handleChat(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errChatFailed})
	}

	var req compose.Request
	if err := sonic.Unmarshal(body, &req); err != nil {
		logger.WarnCF("server", "Malformed chat request",
			map[string]interface{}{"error": err.Error()})
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errChatFailed})
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": errMessagesRequired})
	}

	messages, images := s.providerMessages(req)
	model := s.model(req.Model)
	options := map[string]interface{}{
		"temperature": s.cfg.Temperature,
	}
	if t := req.Temperature; t != nil && *t >= 0 && *t <= 2 {
		options["temperature"] = *t
	}
	if s.cfg.MaxTokens > 0 {
		options["max_tokens"] = s.cfg.MaxTokens
	}

	w := &eventWriter{resp: c.Response()}
	start := time.Now()

	resp, err := s.provider.ChatStream(c.Request().Context(), messages, model, options, w.content)
	if err == nil {
		err = w.done()
	}

	s.record(model, len(req.Messages), images, resp, time.Since(start), err != nil)

	if err != nil {
		logger.ErrorCF("server", "Chat stream failed",
			map[string]interface{}{
				"model":   model,
				"started": w.started,
				"error":   err.Error(),
			})
		if !w.started {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": errChatFailed})
		}
		// Headers are gone; drop the connection so the client sees the
		// stream break instead of a clean end.
		panic(http.ErrAbortHandler)
	}
	return nil
}

// providerMessages prepends the system prompt and keeps user and assistant
// turns. It also counts image parts for the usage log.
func (s *Server) providerMessages(req compose.Request) ([]providers.Message, int) {
	system := req.System
	if system == "" {
		system = s.cfg.SystemPrompt
	}

	out := make([]providers.Message, 0, len(req.Messages)+1)
	if system != "" {
		out = append(out, providers.Message{Role: "system", Content: system})
	}

	images := 0
	for _, m := range req.Messages {
		role := string(m.Role)
		if role != "user" && role != "assistant" {
			logger.DebugCF("server", "Skipping message with unsupported role",
				map[string]interface{}{"role": role})
			continue
		}
		msg := providers.Message{Role: role, Content: m.Text}
		if m.IsMultimodal() {
			if role == "assistant" {
				msg.Content = m.PlainText()
			} else {
				msg.Parts = m.Parts
				for _, p := range m.Parts {
					if p.IsImage() {
						images++
					}
				}
			}
		}
		out = append(out, msg)
	}
	return out, images
}

func (s *Server) record(model string, messages, images int, resp *providers.LLMResponse, elapsed time.Duration, failed bool) {
	if s.tracker == nil {
		return
	}
	ev := metrics.ExchangeEvent{
		Provider:   s.cfg.Provider,
		Model:      model,
		Messages:   messages,
		ImageParts: images,
		DurationMS: elapsed.Milliseconds(),
		Failed:     failed,
	}
	if resp != nil && resp.Usage != nil {
		ev.InputTokens = resp.Usage.PromptTokens
		ev.OutputTokens = resp.Usage.CompletionTokens
	}
	s.tracker.Record(ev)
}

type contentEvent struct {
	Content string `json:"content"`
}

// eventWriter frames deltas as server-sent events. Headers go out with the
// first event, so a failure before that can still become a JSON error.
type eventWriter struct {
	resp    *echo.Response
	started bool
	err     error
}

func (w *eventWriter) start() {
	if w.started {
		return
	}
	h := w.resp.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.resp.WriteHeader(http.StatusOK)
	w.started = true
}

func (w *eventWriter) content(delta string) {
	if w.err != nil {
		return
	}
	data, err := sonic.Marshal(contentEvent{Content: delta})
	if err != nil {
		w.err = err
		return
	}
	w.start()
	w.write(fmt.Sprintf("data: %s\n\n", data))
}

func (w *eventWriter) done() error {
	w.start()
	w.write("data: [DONE]\n\n")
	return w.err
}

func (w *eventWriter) write(frame string) {
	if w.err != nil {
		return
	}
	if _, err := io.WriteString(w.resp, frame); err != nil {
		w.err = err
		return
	}
	w.resp.Flush()
}
