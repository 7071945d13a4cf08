package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojalaai/ojala/pkg/conversation"
	"github.com/ojalaai/ojala/pkg/stream"
)

func submitted(text string) Submitted {
	return Submitted{
		User:        conversation.Message{ID: "u", Role: conversation.RoleUser, Text: text},
		Placeholder: conversation.Message{ID: "a", Role: conversation.RoleAssistant},
	}
}

func TestReduceHappyPath(t *testing.T) {
	s := State{Phase: stream.PhaseIdle}
	for _, ev := range []Event{
		SendStarted{},
		submitted("Hi"),
		StreamOpened{},
		ChunkReceived{Delta: "He"},
		ChunkReceived{Delta: "llo"},
		StreamEnded{},
	} {
		s = Reduce(s, ev)
	}

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "Hello", s.Messages[1].Text)
	assert.Equal(t, stream.PhaseCompleted, s.Phase)
	assert.False(t, s.InFlight)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := Reduce(Reduce(State{}, SendStarted{}), submitted("Hi"))
	after := Reduce(before, ChunkReceived{Delta: "x"})

	assert.Equal(t, "", before.Messages[1].Text)
	assert.Equal(t, "x", after.Messages[1].Text)
}

func TestReduceFailureReplacesPartialText(t *testing.T) {
	s := Reduce(Reduce(State{}, SendStarted{}), submitted("Hi"))
	s = Reduce(s, ChunkReceived{Delta: "He"})
	s = Reduce(s, StreamFailed{Err: errors.New("reset")})

	assert.Equal(t, FailureMessage, s.Messages[1].Text)
	assert.Equal(t, stream.PhaseFailed, s.Phase)
	assert.False(t, s.InFlight)
}

func TestReduceChunkWithoutReplyIsIgnored(t *testing.T) {
	s := State{Messages: []conversation.Message{{Role: conversation.RoleUser, Text: "Hi"}}}
	s = Reduce(s, ChunkReceived{Delta: "x"})
	assert.Equal(t, "Hi", s.Messages[0].Text)
}

func TestReduceCancelled(t *testing.T) {
	s := Reduce(Reduce(State{}, SendStarted{}), submitted("Hi"))
	s = Reduce(s, ChunkReceived{Delta: "Par"})
	s = Reduce(s, StreamCancelled{})

	reply, ok := s.Reply()
	require.True(t, ok)
	assert.Equal(t, "Par", reply.Text)
	assert.Equal(t, stream.PhaseCancelled, s.Phase)
	assert.False(t, s.InFlight)
}
