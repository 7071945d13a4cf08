// Package metrics keeps a local usage log of chat exchanges.
package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ojalaai/ojala/pkg/logger"
)

// ExchangeEvent records usage for a single streamed reply.
type ExchangeEvent struct {
	Timestamp    string  `json:"ts"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Messages     int     `json:"messages"`
	ImageParts   int     `json:"images,omitempty"`
	InputTokens  int     `json:"in"`
	OutputTokens int     `json:"out"`
	CostUSD      float64 `json:"cost"`
	DurationMS   int64   `json:"ms"`
	Failed       bool    `json:"failed,omitempty"`
}

// Tracker appends exchange events to a JSONL file.
type Tracker struct {
	filePath string
	mu       sync.Mutex
}

// NewTracker creates a tracker that writes to dir/metrics/exchanges.jsonl.
func NewTracker(dir string) (*Tracker, error) {
	metricsDir := filepath.Join(dir, "metrics")
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	return &Tracker{
		filePath: filepath.Join(metricsDir, "exchanges.jsonl"),
	}, nil
}

func (t *Tracker) Path() string {
	return t.filePath
}

// Record appends an event. Failures are logged and otherwise ignored, usage
// tracking never fails a reply.
func (t *Tracker) Record(event ExchangeEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}
	event.CostUSD = calculateCost(event.Model, event.InputTokens, event.OutputTokens)

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.WarnCF("metrics", "Failed to open usage log",
			map[string]interface{}{"error": err.Error()})
		return
	}
	defer f.Close()

	f.Write(append(data, '\n'))
}

// Summary is the aggregate of every recorded exchange.
type Summary struct {
	Exchanges    int
	Failed       int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Summarize reads the log back. Lines that do not parse are skipped.
func (t *Tracker) Summarize() (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var s Summary
	f, err := os.Open(t.filePath)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev ExchangeEvent
		if json.Unmarshal(scanner.Bytes(), &ev) != nil {
			continue
		}
		s.Exchanges++
		if ev.Failed {
			s.Failed++
		}
		s.InputTokens += ev.InputTokens
		s.OutputTokens += ev.OutputTokens
		s.CostUSD += ev.CostUSD
	}
	return s, scanner.Err()
}

// Model pricing per million tokens (input, output).
type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

var pricing = map[string]modelPricing{
	"gpt-4o-mini":                {0.15, 0.6},
	"gpt-4o":                     {2.5, 10.0},
	"gpt-4.1-mini":               {0.4, 1.6},
	"claude-sonnet-4-5-20250929": {3.0, 15.0},
	"claude-haiku-3-5-20241022":  {0.8, 4.0},
}

func calculateCost(model string, input, output int) float64 {
	p, ok := pricing[model]
	if !ok {
		// Default to gpt-4o-mini pricing
		p = pricing["gpt-4o-mini"]
	}

	return float64(input)*p.inputPerM/1e6 +
		float64(output)*p.outputPerM/1e6
}
