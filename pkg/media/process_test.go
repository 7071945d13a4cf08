package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fakePreviewer struct {
	calls atomic.Int32
	err   error
}

func (f *fakePreviewer) Preview(ctx context.Context, data []byte) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64,cHJldmlldw==", nil
}

type brokenSource struct{ Source }

func (brokenSource) Open() (io.ReadCloser, error) { return nil, errors.New("disk on fire") }

func images(n int) []Source {
	files := make([]Source, n)
	for i := range files {
		files[i] = FromBytes(fmt.Sprintf("img-%d.png", i), "image/png", pngHeader)
	}
	return files
}

func TestAdmitUpToMaximum(t *testing.T) {
	for _, n := range []int{1, 5, MaxAttachments} {
		t.Run(fmt.Sprintf("%d files", n), func(t *testing.T) {
			intake := NewIntake(&fakePreviewer{}, nil)

			pending, errs := intake.Admit(context.Background(), nil, images(n))

			assert.Empty(t, errs)
			require.Len(t, pending, n)
			for i, att := range pending {
				assert.NotEmpty(t, att.ID)
				assert.Equal(t, KindImage, att.Kind)
				assert.Equal(t, fmt.Sprintf("img-%d.png", i), att.Name, "input order preserved")
				assert.True(t, strings.HasPrefix(att.Data, "data:image/png;base64,"))
				assert.Equal(t, att.Data, att.Preview)
			}
		})
	}
}

func TestAdmitOverflowRejectsWholeBatch(t *testing.T) {
	notices := NewNotices(time.Minute)
	intake := NewIntake(&fakePreviewer{}, notices)

	pending, errs := intake.Admit(context.Background(), nil, images(MaxAttachments))
	require.Len(t, pending, MaxAttachments)
	require.Empty(t, errs)

	after, errs := intake.Admit(context.Background(), pending, images(1))

	assert.Len(t, after, MaxAttachments, "no new admissions")
	require.Len(t, errs, 1, "exactly one error report")
	assert.ErrorIs(t, errs[0], ErrTooManyAttachments)
	assert.Equal(t, errs[0].Error(), notices.Current())
}

func TestAdmitDropsOnlyFailingFiles(t *testing.T) {
	notices := NewNotices(time.Minute)
	intake := NewIntake(&fakePreviewer{}, notices)

	files := []Source{
		FromBytes("ok-1.png", "image/png", pngHeader),
		FromBytes("notes.txt", "text/plain", []byte("hello")),
		brokenSource{FromBytes("broken.png", "image/png", pngHeader)},
		FromBytes("ok-2.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff}),
	}

	pending, errs := intake.Admit(context.Background(), nil, files)

	require.Len(t, pending, 2)
	assert.Equal(t, "ok-1.png", pending[0].Name)
	assert.Equal(t, "ok-2.jpg", pending[1].Name)

	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrUnsupportedType)
	assert.ErrorIs(t, errs[1], ErrProcessingFailed)
	assert.Equal(t, "Failed to process broken.png", errs[1].Error())
	assert.Equal(t, "Failed to process broken.png", notices.Current())
}

func TestAdmitDocumentUsesPreview(t *testing.T) {
	previewer := &fakePreviewer{}
	intake := NewIntake(previewer, nil)

	pending, errs := intake.Admit(context.Background(), nil, []Source{
		FromBytes("invoice.pdf", "application/pdf", []byte("%PDF-1.7")),
	})

	require.Empty(t, errs)
	require.Len(t, pending, 1)
	att := pending[0]
	assert.Equal(t, KindDocument, att.Kind)
	assert.Equal(t, "application/pdf", att.MediaType)
	assert.True(t, strings.HasPrefix(att.Data, "data:application/pdf;base64,"))
	assert.Equal(t, "data:image/png;base64,cHJldmlldw==", att.Preview)
	assert.Equal(t, int32(1), previewer.calls.Load())
}

func TestAdmitDocumentWithoutRenderer(t *testing.T) {
	intake := NewIntake(nil, nil)

	pending, errs := intake.Admit(context.Background(), nil, []Source{
		FromBytes("invoice.pdf", "application/pdf", []byte("%PDF-1.7")),
		FromBytes("photo.png", "image/png", pngHeader),
	})

	require.Len(t, pending, 1)
	assert.Equal(t, "photo.png", pending[0].Name)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrProcessingFailed)
}

func TestAdmitValidatesBeforeReading(t *testing.T) {
	previewer := &fakePreviewer{}
	intake := NewIntake(previewer, nil)

	big := sizedSource{Source: brokenSource{FromBytes("big.pdf", "application/pdf", nil)}, size: MaxDocumentSize + 1}
	_, errs := intake.Admit(context.Background(), nil, []Source{big})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrFileTooLarge, "size guard wins over the open failure")
	assert.Zero(t, previewer.calls.Load())
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()

	named := filepath.Join(dir, "photo.PNG")
	require.NoError(t, os.WriteFile(named, pngHeader, 0644))
	src, err := FromPath(named)
	require.NoError(t, err)
	assert.Equal(t, "photo.PNG", src.Name())
	assert.Equal(t, "image/png", src.MediaType())
	assert.Equal(t, int64(len(pngHeader)), src.Size())

	// no extension: sniffed from the magic number
	bare := filepath.Join(dir, "clipboard")
	require.NoError(t, os.WriteFile(bare, pngHeader, 0644))
	src, err = FromPath(bare)
	require.NoError(t, err)
	assert.Equal(t, "image/png", src.MediaType())

	_, err = FromPath(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	url := DataURL("application/pdf", []byte("%PDF-1.7"))

	mediaType, data, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mediaType)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	for _, bad := range []string{"http://x", "data:text/plain,hi", "data:image/png;base64", "data:image/png;base64,@@"} {
		_, _, err := DecodeDataURL(bad)
		assert.Error(t, err, bad)
	}
}
