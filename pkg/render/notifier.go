// Package render projects a streaming conversation onto a terminal.
package render

import (
	"sync"
	"time"
)

// DefaultInterval is how often accumulated deltas are pushed to the screen.
const DefaultInterval = 50 * time.Millisecond

// StreamNotifier accumulates text deltas and flushes the full accumulated
// text to a callback at a throttled interval, so a fast stream does not
// redraw the terminal once per token.
type StreamNotifier struct {
	mu       sync.Mutex
	text     string
	onUpdate func(fullText string)
	ticker   *time.Ticker
	done     chan struct{}
	once     sync.Once
	dirty    bool
}

// NewStreamNotifier creates a notifier that calls onUpdate with the full
// accumulated text every interval.
func NewStreamNotifier(interval time.Duration, onUpdate func(fullText string)) *StreamNotifier {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sn := &StreamNotifier{
		onUpdate: onUpdate,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
	}

	go sn.loop()
	return sn
}

func (sn *StreamNotifier) loop() {
	for {
		select {
		case <-sn.ticker.C:
			sn.push()
		case <-sn.done:
			return
		}
	}
}

// push delivers the text if it changed since the last push. The lock is held
// across the callback so pushes never interleave.
func (sn *StreamNotifier) push() {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.dirty && sn.text != "" {
		sn.dirty = false
		sn.onUpdate(sn.text)
	}
}

// Append adds a text delta to the accumulator.
func (sn *StreamNotifier) Append(delta string) {
	sn.mu.Lock()
	sn.text += delta
	sn.dirty = true
	sn.mu.Unlock()
}

// Flush stops the ticker and performs a final push if there's unsent content.
// It is safe to call more than once.
func (sn *StreamNotifier) Flush() {
	sn.once.Do(func() {
		sn.ticker.Stop()
		close(sn.done)
	})
	sn.push()
}

// FullText returns the current accumulated text.
func (sn *StreamNotifier) FullText() string {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	return sn.text
}
