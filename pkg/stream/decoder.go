package stream

import (
	"bytes"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

type event struct {
	Content string `json:"content"`
}

// Decoder turns raw body chunks into content deltas. Lines split across two
// chunks are held back until the rest arrives.
type Decoder struct {
	pending []byte
}

// Feed consumes one chunk and returns the deltas of every complete line in it,
// in order.
func (d *Decoder) Feed(chunk []byte) []string {
	d.pending = append(d.pending, chunk...)

	var deltas []string
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		line := string(d.pending[:i])
		d.pending = d.pending[i+1:]
		if delta, ok := parseLine(line); ok {
			deltas = append(deltas, delta)
		}
	}

	if len(d.pending) == 0 {
		d.pending = nil
	}
	return deltas
}

// Flush parses whatever is left once the body has ended.
func (d *Decoder) Flush() []string {
	rest := string(d.pending)
	d.pending = nil
	if delta, ok := parseLine(rest); ok {
		return []string{delta}
	}
	return nil
}

// parseLine extracts the content of a single "data:" line; one space after
// the colon is optional. Anything else,
// the terminator and malformed events are skipped.
func parseLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return "", false
	}
	payload = strings.TrimPrefix(payload, " ")
	if strings.TrimSpace(payload) == doneMarker {
		return "", false
	}

	var ev event
	if err := sonic.UnmarshalString(payload, &ev); err != nil {
		return "", false
	}
	if ev.Content == "" {
		return "", false
	}
	return ev.Content, true
}
