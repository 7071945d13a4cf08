// Package compose folds a conversation and the newest user input into the
// ordered role/content list the completion backend expects.
package compose

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ojalaai/ojala/pkg/conversation"
	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/media"
	"github.com/ojalaai/ojala/pkg/pdf"
)

// pageCacheSize is the number of documents whose extracted pages are kept.
const pageCacheSize = 32

// PageSource extracts the page images of a document.
type PageSource interface {
	Pages(ctx context.Context, data []byte) ([]pdf.Page, error)
}

type Composer struct {
	pages PageSource
	cache *lru.Cache[string, []pdf.Page]
}

// NewComposer creates a composer. pages may be nil, in which case every
// document attachment degrades to a failure marker.
func NewComposer(pages PageSource) *Composer {
	cache, err := lru.New[string, []pdf.Page](pageCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Composer{pages: pages, cache: cache}
}

// UserParts builds the content parts of the message being submitted: the
// trimmed text first, then one or more parts per attachment.
func (c *Composer) UserParts(ctx context.Context, text string, attachments []media.Attachment) []media.ContentPart {
	parts := []media.ContentPart{}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		parts = append(parts, media.TextPart(trimmed))
	}

	for _, att := range attachments {
		switch att.Kind {
		case media.KindImage:
			parts = append(parts, media.ImagePart(att.Data))
		case media.KindDocument:
			parts = append(parts, c.documentParts(ctx, att)...)
		}
	}
	return parts
}

// documentParts expands a document into a marker part and one image part per
// page, or a single failure marker.
func (c *Composer) documentParts(ctx context.Context, att media.Attachment) []media.ContentPart {
	pages, err := c.extract(ctx, att)
	if err != nil {
		logger.WarnCF("compose", "Failed to convert document",
			map[string]interface{}{
				"name":  att.Name,
				"error": err.Error(),
			})
		return []media.ContentPart{media.TextPart(fmt.Sprintf("[Failed to process document: %s]", att.Name))}
	}

	parts := make([]media.ContentPart, 0, len(pages)+1)
	parts = append(parts, media.TextPart(fmt.Sprintf("[Document: %s, %d page(s)]", att.Name, len(pages))))
	for _, p := range pages {
		parts = append(parts, media.ImagePart(p.DataURL))
	}
	return parts
}

func (c *Composer) extract(ctx context.Context, att media.Attachment) ([]pdf.Page, error) {
	if pages, ok := c.cache.Get(att.ID); ok {
		return pages, nil
	}
	if c.pages == nil {
		return nil, pdf.ErrUnsupportedEnvironment
	}

	_, data, err := media.DecodeDataURL(att.Data)
	if err != nil {
		return nil, err
	}
	pages, err := c.pages.Pages(ctx, data)
	if err != nil {
		return nil, err
	}
	c.cache.Add(att.ID, pages)
	return pages, nil
}

// HistoryEntry converts a message that was already submitted. Only image
// attachments are re-sent; documents only count on the turn they were
// attached. Assistant messages are always plain text.
func HistoryEntry(msg conversation.Message) Message {
	if msg.Role != conversation.RoleUser || !msg.HasAttachments() {
		return Message{Role: msg.Role, Text: msg.Text}
	}

	var parts []media.ContentPart
	if msg.Text != "" {
		parts = append(parts, media.TextPart(msg.Text))
	}
	for _, att := range msg.Attachments {
		if att.Kind == media.KindImage {
			parts = append(parts, media.ImagePart(att.Data))
		}
	}
	if len(parts) == 0 {
		return Message{Role: msg.Role, Text: msg.Text}
	}
	return Message{Role: msg.Role, Parts: parts}
}

// Build returns the wire entries for messages, in order. The message whose id
// is newestID uses parts verbatim.
func (c *Composer) Build(messages []conversation.Message, newestID string, parts []media.ContentPart) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == newestID && msg.Role == conversation.RoleUser {
			out = append(out, Message{Role: msg.Role, Parts: parts})
			continue
		}
		out = append(out, HistoryEntry(msg))
	}

	logger.DebugCF("compose", "Wire messages built",
		map[string]interface{}{
			"messages":     len(out),
			"newest_parts": len(parts),
		})
	return out
}
