package compose

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ojalaai/ojala/pkg/conversation"
	"github.com/ojalaai/ojala/pkg/media"
)

// Message is one {role, content} entry of a chat request. Content is sent as
// a plain string when Parts is nil and as a content-part array otherwise.
type Message struct {
	Role  conversation.Role
	Text  string
	Parts []media.ContentPart
}

type stringMessage struct {
	Role    conversation.Role `json:"role"`
	Content string            `json:"content"`
}

type partsMessage struct {
	Role    conversation.Role   `json:"role"`
	Content []media.ContentPart `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(partsMessage{Role: m.Role, Content: m.Parts})
	}
	return json.Marshal(stringMessage{Role: m.Role, Content: m.Text})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    conversation.Role `json:"role"`
		Content json.RawMessage   `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Text = ""
	m.Parts = nil

	content := bytes.TrimSpace(raw.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
	case content[0] == '"':
		return json.Unmarshal(content, &m.Text)
	case content[0] == '[':
		parts := []media.ContentPart{}
		if err := json.Unmarshal(content, &parts); err != nil {
			return err
		}
		m.Parts = parts
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
	return nil
}

// IsMultimodal reports whether the entry carries content parts.
func (m Message) IsMultimodal() bool {
	return m.Parts != nil
}

// PlainText returns the text of the entry, joining text parts when the
// content is multimodal.
func (m Message) PlainText() string {
	if m.Parts == nil {
		return m.Text
	}
	var buf bytes.Buffer
	for _, p := range m.Parts {
		if p.Type != media.PartText || p.Text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p.Text)
	}
	return buf.String()
}

// Request is the JSON body posted to the completion backend. Only Messages
// is required; the other fields let a client carry its own configuration.
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
}
