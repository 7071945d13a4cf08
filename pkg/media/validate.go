package media

import (
	"errors"
	"fmt"
)

const (
	MaxImageSize    = 20 * 1024 * 1024 // 20MB
	MaxDocumentSize = 10 * 1024 * 1024 // 10MB
	MaxAttachments  = 10
)

var (
	supportedImageTypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/gif":  true,
		"image/webp": true,
	}
	supportedDocumentTypes = map[string]bool{
		"application/pdf": true,
	}
)

var (
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrProcessingFailed   = errors.New("file processing failed")
)

// ValidationError carries the user-facing message for a rejected file.
// Kind is one of the Err* sentinels above and is matched with errors.Is.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Kind }

func Classify(mediaType string) Kind {
	if supportedImageTypes[mediaType] {
		return KindImage
	}
	if supportedDocumentTypes[mediaType] {
		return KindDocument
	}
	return KindUnsupported
}

// Validate checks type and size of a single candidate before any of its bytes
// are read.
func Validate(src Source) error {
	kind := Classify(src.MediaType())

	switch kind {
	case KindUnsupported:
		declared := src.MediaType()
		if declared == "" {
			declared = "unknown"
		}
		return &ValidationError{
			Kind:    ErrUnsupportedType,
			Message: fmt.Sprintf("Unsupported file type: %s. Supported: images (PNG, JPG, GIF, WebP) and PDFs.", declared),
		}
	case KindImage:
		if src.Size() > MaxImageSize {
			return &ValidationError{
				Kind:    ErrFileTooLarge,
				Message: fmt.Sprintf("Image too large: %s. Maximum: %s.", FormatSize(src.Size()), FormatSize(MaxImageSize)),
			}
		}
	case KindDocument:
		if src.Size() > MaxDocumentSize {
			return &ValidationError{
				Kind:    ErrFileTooLarge,
				Message: fmt.Sprintf("PDF too large: %s. Maximum: %s.", FormatSize(src.Size()), FormatSize(MaxDocumentSize)),
			}
		}
	}
	return nil
}

// ValidateCount rejects a whole batch when it would push the pending list
// past MaxAttachments.
func ValidateCount(current, incoming int) error {
	if current+incoming > MaxAttachments {
		return &ValidationError{
			Kind:    ErrTooManyAttachments,
			Message: fmt.Sprintf("Too many attachments. Maximum: %d. Current: %d.", MaxAttachments, current),
		}
	}
	return nil
}

func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
