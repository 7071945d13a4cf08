// Package conversation holds the message records a chat session is made of.
package conversation

import (
	"github.com/google/uuid"

	"github.com/ojalaai/ojala/pkg/media"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn as the user sees it. Attachments are only set on
// user messages and are never mutated after submission.
type Message struct {
	ID          string             `json:"id"`
	Role        Role               `json:"role"`
	Text        string             `json:"text"`
	Attachments []media.Attachment `json:"attachments,omitempty"`
}

func NewUserMessage(text string, attachments []media.Attachment) Message {
	var atts []media.Attachment
	if len(attachments) > 0 {
		atts = make([]media.Attachment, len(attachments))
		copy(atts, attachments)
	}
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Text:        text,
		Attachments: atts,
	}
}

// NewAssistantPlaceholder returns the empty reply that is appended before the
// first byte of the stream arrives.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:   uuid.NewString(),
		Role: RoleAssistant,
	}
}

func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}
