package media

import (
	"sync"
	"time"
)

// NoticeTTL is how long an upload error stays visible.
const NoticeTTL = 5 * time.Second

// Notices holds the single transient upload error shown next to the compose
// buffer. A newer message replaces the older one and restarts the timer.
type Notices struct {
	mu       sync.Mutex
	ttl      time.Duration
	message  string
	seq      uint64
	timer    *time.Timer
	onChange func(message string)
}

func NewNotices(ttl time.Duration) *Notices {
	if ttl <= 0 {
		ttl = NoticeTTL
	}
	return &Notices{ttl: ttl}
}

// OnChange registers a callback fired when a notice is posted or expires.
func (n *Notices) OnChange(fn func(message string)) {
	n.mu.Lock()
	n.onChange = fn
	n.mu.Unlock()
}

func (n *Notices) Post(message string) {
	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.message = message
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(seq) })
	cb := n.onChange
	n.mu.Unlock()

	if cb != nil {
		cb(message)
	}
}

func (n *Notices) expire(seq uint64) {
	n.mu.Lock()
	if n.seq != seq {
		n.mu.Unlock()
		return
	}
	n.message = ""
	n.timer = nil
	cb := n.onChange
	n.mu.Unlock()

	if cb != nil {
		cb("")
	}
}

// Current returns the visible notice, or "" once it has expired.
func (n *Notices) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.message
}
