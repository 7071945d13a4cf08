// Package chat holds the conversation state machine and the session that
// drives one exchange at a time through it.
package chat

import (
	"github.com/ojalaai/ojala/pkg/conversation"
	"github.com/ojalaai/ojala/pkg/stream"
)

// FailureMessage replaces the assistant reply when an exchange fails.
const FailureMessage = "Sorry, something went wrong. Please try again."

// State is an immutable snapshot of the conversation. Reduce never mutates
// the Messages slice of its input.
type State struct {
	Messages []conversation.Message
	Phase    stream.Phase
	InFlight bool
}

// Event is one step of an exchange.
type Event interface {
	event()
}

// SendStarted claims the in-flight flag, before any composing happens.
type SendStarted struct{}

// Submitted appends the user message and the empty assistant reply together.
type Submitted struct {
	User        conversation.Message
	Placeholder conversation.Message
}

type StreamOpened struct{}

type ChunkReceived struct {
	Delta string
}

type StreamEnded struct{}

type StreamFailed struct {
	Err error
}

type StreamCancelled struct{}

func (SendStarted) event()     {}
func (Submitted) event()       {}
func (StreamOpened) event()    {}
func (ChunkReceived) event()   {}
func (StreamEnded) event()     {}
func (StreamFailed) event()    {}
func (StreamCancelled) event() {}

// Reduce returns the state after ev.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case SendStarted:
		s.InFlight = true
		s.Phase = stream.PhaseSending

	case Submitted:
		msgs := make([]conversation.Message, 0, len(s.Messages)+2)
		msgs = append(msgs, s.Messages...)
		s.Messages = append(msgs, ev.User, ev.Placeholder)

	case StreamOpened:
		s.Phase = stream.PhaseStreaming

	case ChunkReceived:
		s.Messages = updateReply(s.Messages, func(text string) string { return text + ev.Delta })

	case StreamEnded:
		s.Phase = stream.PhaseCompleted
		s.InFlight = false

	case StreamFailed:
		s.Messages = updateReply(s.Messages, func(string) string { return FailureMessage })
		s.Phase = stream.PhaseFailed
		s.InFlight = false

	case StreamCancelled:
		s.Phase = stream.PhaseCancelled
		s.InFlight = false
	}
	return s
}

// updateReply replaces the trailing assistant message on a copy of msgs.
func updateReply(msgs []conversation.Message, fn func(string) string) []conversation.Message {
	n := len(msgs)
	if n == 0 || msgs[n-1].Role != conversation.RoleAssistant {
		return msgs
	}
	out := make([]conversation.Message, n)
	copy(out, msgs)
	out[n-1].Text = fn(out[n-1].Text)
	return out
}

// Reply returns the trailing assistant message, if any.
func (s State) Reply() (conversation.Message, bool) {
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Role == conversation.RoleAssistant {
		return s.Messages[n-1], true
	}
	return conversation.Message{}, false
}
