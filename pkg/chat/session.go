package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ojalaai/ojala/pkg/compose"
	"github.com/ojalaai/ojala/pkg/conversation"
	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/media"
	"github.com/ojalaai/ojala/pkg/stream"
)

// Transport runs one exchange against the completion backend.
type Transport interface {
	Exchange(ctx context.Context, messages []compose.Message, sink stream.Sink) error
}

// Draft is the compose buffer: what the user is about to send.
type Draft struct {
	Input       string
	Attachments []media.Attachment
}

func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Input) == "" && len(d.Attachments) == 0
}

type Session struct {
	transport Transport
	composer  *compose.Composer
	intake    *media.Intake

	mu    sync.Mutex
	state State
	draft Draft
	subs  map[int]func(State)
	subID int

	// serializes AddFiles so the attachment cap holds across batches
	intakeMu sync.Mutex
}

func NewSession(transport Transport, composer *compose.Composer, intake *media.Intake) *Session {
	return &Session{
		transport: transport,
		composer:  composer,
		intake:    intake,
		state:     State{Phase: stream.PhaseIdle},
		subs:      make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDraft(s.draft)
}

// Subscribe registers fn to be called with every new state. The returned
// function removes the subscription.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.subID
	s.subID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Input = text
}

// AddFiles admits files into the compose buffer. Selection, paste and drop all
// come through here. Rejections are returned and also posted as notices.
func (s *Session) AddFiles(ctx context.Context, files []media.Source) []error {
	s.intakeMu.Lock()
	defer s.intakeMu.Unlock()

	s.mu.Lock()
	pending := append([]media.Attachment(nil), s.draft.Attachments...)
	s.mu.Unlock()

	out, errs := s.intake.Admit(ctx, pending, files)
	added := out[len(pending):]
	if len(added) == 0 {
		return errs
	}

	s.mu.Lock()
	s.draft.Attachments = append(s.draft.Attachments, added...)
	s.mu.Unlock()
	return errs
}

// RemoveAttachment drops an attachment from the compose buffer.
func (s *Session) RemoveAttachment(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, att := range s.draft.Attachments {
		if att.ID == id {
			atts := make([]media.Attachment, 0, len(s.draft.Attachments)-1)
			atts = append(atts, s.draft.Attachments[:i]...)
			s.draft.Attachments = append(atts, s.draft.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// Submit sends the compose buffer. The buffer is cleared immediately and put
// back if the exchange fails. It reports whether anything was sent
// successfully.
func (s *Session) Submit(ctx context.Context) bool {
	s.mu.Lock()
	if s.state.InFlight || s.draft.Empty() {
		s.mu.Unlock()
		return false
	}
	draft := s.draft
	s.draft = Draft{}
	s.mu.Unlock()

	if s.Send(ctx, draft.Input, draft.Attachments) {
		return true
	}

	s.mu.Lock()
	restored, dropped := mergeDraft(draft, s.draft)
	s.draft = restored
	s.mu.Unlock()
	if dropped > 0 {
		logger.WarnCF("chat", "Attachments added during a failed exchange exceed the limit",
			map[string]interface{}{"dropped": dropped, "max": media.MaxAttachments})
	}
	return false
}

// mergeDraft puts the pre-send buffer back in front of whatever was added
// while the exchange ran. Text typed in flight is joined after the restored
// text; attachments beyond the limit are dropped from the in-flight ones.
func mergeDraft(sent, current Draft) (Draft, int) {
	out := copyDraft(sent)
	if strings.TrimSpace(current.Input) != "" {
		if strings.TrimSpace(out.Input) == "" {
			out.Input = current.Input
		} else {
			out.Input += "\n" + current.Input
		}
	}

	dropped := 0
	for _, att := range current.Attachments {
		if len(out.Attachments) >= media.MaxAttachments {
			dropped++
			continue
		}
		out.Attachments = append(out.Attachments, att)
	}
	return out, dropped
}

// Send runs one exchange for text and attachments. It is a no-op returning
// false when there is nothing to send or another exchange is in flight, and
// returns false when the exchange fails. A cancelled exchange keeps its
// partial reply and counts as sent.
func (s *Session) Send(ctx context.Context, text string, attachments []media.Attachment) bool {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return false
	}
	if !s.claim() {
		logger.DebugC("chat", "Send ignored, exchange in flight")
		return false
	}

	defer s.release()

	parts := s.composer.UserParts(ctx, text, attachments)
	user := conversation.NewUserMessage(strings.TrimSpace(text), attachments)
	next := s.dispatch(Submitted{User: user, Placeholder: conversation.NewAssistantPlaceholder()})

	// The placeholder is the last message and is not sent.
	history := next.Messages[:len(next.Messages)-1]
	wire := s.composer.Build(history, user.ID, parts)

	logger.InfoCF("chat", "Exchange started",
		map[string]interface{}{
			"messages":    len(wire),
			"attachments": len(attachments),
			"parts":       len(parts),
		})

	err := s.transport.Exchange(ctx, wire, sessionSink{s})
	switch {
	case err == nil:
		s.dispatch(StreamEnded{})
		return true
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.InfoC("chat", "Exchange cancelled")
		s.dispatch(StreamCancelled{})
		return true
	default:
		logger.ErrorCF("chat", "Exchange failed",
			map[string]interface{}{"error": err.Error()})
		s.dispatch(StreamFailed{Err: err})
		return false
	}
}

// release clears the in-flight flag if the exchange left without reaching a
// terminal event, which only happens when it panics.
func (s *Session) release() {
	s.mu.Lock()
	stuck := s.state.InFlight
	s.mu.Unlock()
	if stuck {
		s.dispatch(StreamFailed{Err: errors.New("exchange aborted")})
	}
}

// claim sets the in-flight flag if it is clear.
func (s *Session) claim() bool {
	s.mu.Lock()
	if s.state.InFlight {
		s.mu.Unlock()
		return false
	}
	s.state = Reduce(s.state, SendStarted{})
	snapshot, subs := s.state, s.subscribers()
	s.mu.Unlock()

	notify(subs, snapshot)
	return true
}

func (s *Session) dispatch(ev Event) State {
	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	snapshot, subs := s.state, s.subscribers()
	s.mu.Unlock()

	notify(subs, snapshot)
	return snapshot
}

// subscribers must be called with mu held.
func (s *Session) subscribers() []func(State) {
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}

func copyDraft(d Draft) Draft {
	return Draft{
		Input:       d.Input,
		Attachments: append([]media.Attachment(nil), d.Attachments...),
	}
}

type sessionSink struct {
	s *Session
}

func (k sessionSink) StreamOpened() {
	k.s.dispatch(StreamOpened{})
}

func (k sessionSink) ContentReceived(delta string) {
	k.s.dispatch(ChunkReceived{Delta: delta})
}
