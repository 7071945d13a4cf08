package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ojalaai/ojala/pkg/logger"
)

// maxConcurrentFiles bounds how many files of one batch are read and
// rendered at the same time.
const maxConcurrentFiles = 4

// Previewer renders the first page of a document into an image data URL.
type Previewer interface {
	Preview(ctx context.Context, data []byte) (string, error)
}

// Intake is the single entry point for files entering the compose buffer,
// whether they were selected explicitly, pasted or dropped.
type Intake struct {
	previewer Previewer
	notices   *Notices
	newID     func() string
}

// NewIntake creates an intake. previewer may be nil when no document renderer
// is available; documents then fail processing instead of validation.
func NewIntake(previewer Previewer, notices *Notices) *Intake {
	return &Intake{
		previewer: previewer,
		notices:   notices,
		newID:     uuid.NewString,
	}
}

// Admit validates and encodes a batch of files and returns pending with the
// admitted attachments appended in input order, plus every error reported.
// A count overflow rejects the whole batch; any other failure only drops the
// file it belongs to.
func (in *Intake) Admit(ctx context.Context, pending []Attachment, files []Source) ([]Attachment, []error) {
	if len(files) == 0 {
		return pending, nil
	}

	if err := ValidateCount(len(pending), len(files)); err != nil {
		in.report(err, nil)
		return pending, []error{err}
	}

	var errs []error
	accepted := make([]Source, 0, len(files))
	for _, f := range files {
		if err := Validate(f); err != nil {
			in.report(err, f)
			errs = append(errs, err)
			continue
		}
		accepted = append(accepted, f)
	}

	results := make([]*Attachment, len(accepted))
	failures := make([]error, len(accepted))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFiles)
	for i, src := range accepted {
		g.Go(func() error {
			att, err := in.process(ctx, src)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = att
			return nil
		})
	}
	g.Wait()

	out := make([]Attachment, 0, len(pending)+len(accepted))
	out = append(out, pending...)
	for i, att := range results {
		if failures[i] != nil {
			in.report(failures[i], accepted[i])
			errs = append(errs, failures[i])
			continue
		}
		out = append(out, *att)
	}

	logger.DebugCF("media", "Batch processed",
		map[string]interface{}{
			"incoming": len(files),
			"admitted": len(out) - len(pending),
			"rejected": len(errs),
		})

	return out, errs
}

func (in *Intake) process(ctx context.Context, src Source) (*Attachment, error) {
	data, err := ReadAll(src)
	if err != nil {
		return nil, processingError(src, err)
	}

	att := &Attachment{
		ID:        in.newID(),
		Kind:      Classify(src.MediaType()),
		Name:      src.Name(),
		MediaType: src.MediaType(),
		Data:      DataURL(src.MediaType(), data),
	}

	switch att.Kind {
	case KindImage:
		att.Preview = att.Data
	case KindDocument:
		if in.previewer == nil {
			return nil, processingError(src, fmt.Errorf("no document renderer available"))
		}
		preview, err := in.previewer.Preview(ctx, data)
		if err != nil {
			return nil, processingError(src, err)
		}
		att.Preview = preview
	}

	return att, nil
}

func processingError(src Source, cause error) error {
	logger.WarnCF("media", "Failed to process file",
		map[string]interface{}{
			"name":  src.Name(),
			"error": cause.Error(),
		})
	return &ValidationError{
		Kind:    ErrProcessingFailed,
		Message: fmt.Sprintf("Failed to process %s", src.Name()),
	}
}

func (in *Intake) report(err error, src Source) {
	fields := map[string]interface{}{"error": err.Error()}
	if src != nil {
		fields["name"] = src.Name()
		fields["media_type"] = src.MediaType()
		fields["size"] = src.Size()
	}
	logger.InfoCF("media", "Attachment rejected", fields)

	if in.notices != nil {
		in.notices.Post(err.Error())
	}
}
