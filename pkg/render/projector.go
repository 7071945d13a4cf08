package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ojalaai/ojala/pkg/chat"
	"github.com/ojalaai/ojala/pkg/stream"
)

// Projector turns session snapshots into terminal output: the assistant
// reply is printed as it grows and a terminal phase ends the line.
type Projector struct {
	w        io.Writer
	interval time.Duration

	mu       sync.Mutex
	replyID  string
	seen     int
	printed  int
	notifier *StreamNotifier
	finished bool
}

func NewProjector(w io.Writer, interval time.Duration) *Projector {
	return &Projector{w: w, interval: interval}
}

// Observe is meant to be passed to chat.Session.Subscribe.
func (p *Projector) Observe(st chat.State) {
	reply, ok := st.Reply()
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if reply.ID != p.replyID {
		p.start(reply.ID)
	}
	if p.finished {
		return
	}

	switch st.Phase {
	case stream.PhaseFailed:
		p.finish()
		p.writeLine(chat.FailureMessage)
		return
	case stream.PhaseCancelled:
		p.finish()
		p.writeLine("[cancelled]")
		return
	}

	if len(reply.Text) > p.seen && strings.HasPrefix(reply.Text, p.notifier.FullText()) {
		p.notifier.Append(reply.Text[p.seen:])
		p.seen = len(reply.Text)
	}

	if st.Phase == stream.PhaseCompleted {
		p.finish()
		fmt.Fprintln(p.w)
	}
}

func (p *Projector) start(id string) {
	if p.notifier != nil {
		p.notifier.Flush()
	}
	p.replyID = id
	p.seen = 0
	p.printed = 0
	p.finished = false
	p.notifier = NewStreamNotifier(p.interval, p.write)
}

// write prints the part of full that is not on screen yet.
func (p *Projector) write(full string) {
	if len(full) <= p.printed {
		return
	}
	io.WriteString(p.w, full[p.printed:])
	p.printed = len(full)
}

func (p *Projector) finish() {
	p.notifier.Flush()
	p.finished = true
}

func (p *Projector) writeLine(s string) {
	if p.printed > 0 {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, s)
}
