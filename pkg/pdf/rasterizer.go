// Package pdf converts paginated documents into a bounded sequence of page
// images that a multimodal model can read.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/media"
)

const (
	MaxPages    = 5
	RenderScale = 1.5 // good balance between legibility and payload size
)

// ErrUnsupportedEnvironment is returned when no rendering engine can run in
// this build or process.
var ErrUnsupportedEnvironment = errors.New("pdf: no rendering engine available in this environment")

// Engine opens documents. Implementations wrap a concrete renderer.
type Engine interface {
	Open(data []byte) (Document, error)
}

// Document is an opened document. Page numbers are 1-based.
type Document interface {
	NumPages() int
	// Render rasterizes one page onto a surface sized to its viewport at
	// the given scale.
	Render(page int, scale float64) (image.Image, error)
	Close() error
}

// EngineFactory creates the engine on first use.
type EngineFactory func() (Engine, error)

// Page is one rendered page as a PNG data URL.
type Page struct {
	Number  int
	DataURL string
}

type Rasterizer struct {
	factory EngineFactory
	scale   float64

	once    sync.Once
	engine  Engine
	initErr error
}

// New returns a rasterizer backed by factory. It fails immediately with
// ErrUnsupportedEnvironment when factory is nil; the engine itself is only
// started on the first render.
func New(factory EngineFactory) (*Rasterizer, error) {
	if factory == nil {
		return nil, ErrUnsupportedEnvironment
	}
	return &Rasterizer{factory: factory, scale: RenderScale}, nil
}

// NewDefault uses the engine compiled into this binary, if any.
func NewDefault() (*Rasterizer, error) {
	return New(defaultEngine)
}

func (r *Rasterizer) init() (Engine, error) {
	r.once.Do(func() {
		r.engine, r.initErr = r.factory()
		if r.initErr == nil && r.engine == nil {
			r.initErr = ErrUnsupportedEnvironment
		}
		if r.initErr != nil {
			logger.ErrorCF("pdf", "Rendering engine failed to start",
				map[string]interface{}{"error": r.initErr.Error()})
		}
	})
	return r.engine, r.initErr
}

// Rasterize renders pages 1..min(n, maxPages) in order. Any failing page
// aborts the whole document.
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte, maxPages int) ([]Page, error) {
	engine, err := r.init()
	if err != nil {
		return nil, err
	}

	doc, err := engine.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	n := doc.NumPages()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Render(i, r.scale)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i, err)
		}
		url, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, DataURL: url})
	}

	logger.DebugCF("pdf", "Document rasterized",
		map[string]interface{}{
			"pages_total":    doc.NumPages(),
			"pages_rendered": len(pages),
		})

	return pages, nil
}

// Pages renders up to MaxPages pages for submission to the model.
func (r *Rasterizer) Pages(ctx context.Context, data []byte) ([]Page, error) {
	return r.Rasterize(ctx, data, MaxPages)
}

// Preview renders only the first page, for the attach-time thumbnail.
func (r *Rasterizer) Preview(ctx context.Context, data []byte) (string, error) {
	pages, err := r.Rasterize(ctx, data, 1)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("document has no pages")
	}
	return pages[0].DataURL, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return media.DataURL("image/png", buf.Bytes()), nil
}
