package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Source is a candidate file: a name, a declared media type and a size that
// can be checked before Open is ever called.
type Source interface {
	Name() string
	MediaType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// extTypes maps file extensions to the media type we declare for them.
var extTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

type fileSource struct {
	path      string
	name      string
	mediaType string
	size      int64
}

func (f *fileSource) Name() string                 { return f.name }
func (f *fileSource) MediaType() string            { return f.mediaType }
func (f *fileSource) Size() int64                  { return f.size }
func (f *fileSource) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// FromPath stats a file on disk and declares its media type from the
// extension, sniffing the first bytes when the extension is unknown.
func FromPath(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	mediaType, ok := extTypes[ext]
	if !ok {
		mediaType = sniffMediaType(path)
	}

	return &fileSource{
		path:      path,
		name:      filepath.Base(path),
		mediaType: mediaType,
		size:      info.Size(),
	}, nil
}

func sniffMediaType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	if n == 0 {
		return ""
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

type bytesSource struct {
	name      string
	mediaType string
	data      []byte
}

func (b *bytesSource) Name() string      { return b.name }
func (b *bytesSource) MediaType() string { return b.mediaType }
func (b *bytesSource) Size() int64       { return int64(len(b.data)) }
func (b *bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// FromBytes wraps an in-memory payload, e.g. a pasted clipboard image or a
// document reconstructed from its stored data URL.
func FromBytes(name, mediaType string, data []byte) Source {
	return &bytesSource{name: name, mediaType: mediaType, data: data}
}

// ReadAll reads the complete payload of src.
func ReadAll(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	return data, nil
}

func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodeDataURL reads src fully and returns it as a self-describing data URL.
func EncodeDataURL(src Source) (string, error) {
	data, err := ReadAll(src)
	if err != nil {
		return "", err
	}
	return DataURL(src.MediaType(), data), nil
}

// DecodeDataURL reverses DataURL. Only base64 payloads are accepted.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL has no payload")
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mediaType, data, nil
}
