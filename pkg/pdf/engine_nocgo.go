//go:build !cgo

package pdf

// go-fitz without cgo loads libmupdf at init and panics when the library is
// missing, so these builds carry no engine and NewDefault fails fast.
var defaultEngine EngineFactory
