package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStubProcessorPlainText(t *testing.T) {
	p := NewStubProcessor()
	res, err := p.Process(context.Background(), "text/plain", strings.NewReader("page one\fpage two\fpage three"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.PageCount != 3 {
		t.Fatalf("page count = %d, want 3", res.PageCount)
	}
	if !strings.Contains(res.Text, "page two") {
		t.Fatalf("text missing content: %q", res.Text)
	}
}

func TestStubProcessorBinary(t *testing.T) {
	p := NewStubProcessor()
	res, err := p.Process(context.Background(), "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.PageCount != 1 || res.Text == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestStubProcessorUnsupported(t *testing.T) {
	p := NewStubProcessor()
	_, err := p.Process(context.Background(), "application/zip", strings.NewReader("PK"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}
