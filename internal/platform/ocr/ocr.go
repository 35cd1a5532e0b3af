// Package ocr defines the text-extraction port consumed by the document
// processing pipeline. The real engine runs out of process; the stub here
// serves development and tests.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedFormat is returned for content types the engine cannot read.
var ErrUnsupportedFormat = errors.New("unsupported content type for OCR")

// Result is the outcome of a successful extraction.
type Result struct {
	Text      string
	PageCount int
}

// Processor extracts text from document content.
type Processor interface {
	Process(ctx context.Context, contentType string, content io.Reader) (*Result, error)
}

// StubProcessor is a deterministic in-process Processor. It treats form-feed
// separated chunks of plain text as pages and refuses binary formats it
// cannot fake convincingly.
type StubProcessor struct{}

func NewStubProcessor() *StubProcessor { return &StubProcessor{} }

func (StubProcessor) Process(_ context.Context, contentType string, content io.Reader) (*Result, error) {
	switch contentType {
	case "text/plain", "application/pdf", "image/png", "image/jpeg", "image/tiff":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if contentType != "text/plain" {
		return &Result{
			Text:      fmt.Sprintf("[extracted %d bytes of %s content]", len(data), contentType),
			PageCount: 1,
		}, nil
	}

	pages := bytes.Count(data, []byte{'\f'}) + 1
	return &Result{Text: string(data), PageCount: pages}, nil
}
