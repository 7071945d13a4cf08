//go:build cgo

package pdf

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// pointsPerInch is the PDF user-space unit; scale 1.0 renders at 72 DPI.
const pointsPerInch = 72.0

var defaultEngine EngineFactory = func() (Engine, error) {
	return fitzEngine{}, nil
}

type fitzEngine struct{}

func (fitzEngine) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Render(page int, scale float64) (image.Image, error) {
	if page < 1 || page > d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	return d.doc.ImageDPI(page-1, pointsPerInch*scale)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
