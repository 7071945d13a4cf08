package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecoderSingleChunk(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("data: {\"content\":\"He\"}\n\ndata: {\"content\":\"llo\"}\n\ndata: [DONE]\n\n"))
	assert.Equal(t, []string{"He", "llo"}, got)
	assert.Empty(t, d.Flush())
}

func TestDecoderLineSplitAcrossChunks(t *testing.T) {
	var d Decoder
	var got []string
	got = append(got, d.Feed([]byte("data: {\"con"))...)
	assert.Empty(t, got)
	got = append(got, d.Feed([]byte("tent\":\"Hel\"}\n\ndata: {\"content\""))...)
	got = append(got, d.Feed([]byte(":\"lo\"}\n\n"))...)
	assert.Equal(t, []string{"Hel", "lo"}, got)
}

func TestDecoderSkipsNoise(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte(": keep-alive\n" +
		"event: message\n" +
		"data: {not json}\n" +
		"data: {\"content\":\"\"}\n" +
		"data: {\"other\":1}\n" +
		"data: {\"content\":\"ok\"}\r\n" +
		"data:  [DONE]\n"))
	assert.Equal(t, []string{"ok"}, got)
}

func TestDecoderFlushTrailingLine(t *testing.T) {
	var d Decoder
	assert.Empty(t, d.Feed([]byte("data: {\"content\":\"tail\"}")))
	assert.Equal(t, []string{"tail"}, d.Flush())
	assert.Empty(t, d.Flush())
}

func TestParseLineUnicode(t *testing.T) {
	delta, ok := parseLine(`data: {"content":"¡Hola, señor! é"}`)
	assert.True(t, ok)
	assert.Equal(t, "¡Hola, señor! é", delta)
}

func TestDecoderDataWithoutSpace(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("data:{\"content\":\"He\"}\n\ndata: {\"content\":\"llo\"}\n\ndata:[DONE]\n\n"))
	assert.Equal(t, []string{"He", "llo"}, got)
}
