package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	content := []byte("%PDF-1.4 fake document body")

	meta, err := store.Put(ctx, "scan.pdf", "application/pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if meta.ID == "" {
		t.Fatal("no blob id assigned")
	}
	if meta.Size != int64(len(content)) {
		t.Fatalf("size = %d, want %d", meta.Size, len(content))
	}
	if meta.Hash == "" {
		t.Fatal("no content hash recorded")
	}

	rc, gotMeta, err := store.Get(ctx, meta.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatal("content mismatch")
	}
	if gotMeta.Hash != meta.Hash {
		t.Fatalf("hash mismatch: %s vs %s", gotMeta.Hash, meta.Hash)
	}

	stat, err := store.Stat(ctx, meta.ID)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if stat.FileName != "scan.pdf" {
		t.Fatalf("file name = %q", stat.FileName)
	}

	if err := store.Delete(ctx, meta.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Get(ctx, meta.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("after delete: err = %v, want ErrBlobNotFound", err)
	}
	if err := store.Delete(ctx, meta.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("double delete: err = %v, want ErrBlobNotFound", err)
	}
}

func TestValidateUpload(t *testing.T) {
	cases := []struct {
		name        string
		fileName    string
		contentType string
		size        int64
		wantErr     error
	}{
		{"valid pdf", "a.pdf", "application/pdf", 1024, nil},
		{"valid png", "a.png", "image/png", 1024, nil},
		{"missing name", "", "application/pdf", 1024, ErrMissingFileName},
		{"bad content type", "a.exe", "application/octet-stream", 1024, ErrInvalidContentType},
		{"too large", "a.pdf", "application/pdf", MaxFileSize + 1, ErrFileTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUpload(tc.fileName, tc.contentType, tc.size)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestPutRejectsDisallowedType(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Put(context.Background(), "a.bin", "application/octet-stream", strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("err = %v, want ErrInvalidContentType", err)
	}
}
