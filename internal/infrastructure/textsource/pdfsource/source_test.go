package pdfsource

import (
	"context"
	"errors"
	"testing"

	"github.com/caiomeira/extractd/internal/core/domain"
)

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Recognize(context.Context, []byte) (string, error) {
	return f.text, f.err
}

func TestLoadFallsBackToPlainText(t *testing.T) {
	source := New(nil)
	raw := []byte("Inscrição: 123456\n\nSituação: REGULAR\n")

	doc, err := source.Load(context.Background(), raw)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 non-empty lines, got %v", doc.Lines)
	}
	if doc.Lines[0] != "Inscrição: 123456" {
		t.Fatalf("unexpected first line: %q", doc.Lines[0])
	}
	if doc.OCRUsed {
		t.Fatalf("plain text must not flag OCR")
	}
	if len(doc.ContentHash) != 64 {
		t.Fatalf("expected sha256 hex hash, got %q", doc.ContentHash)
	}
}

func TestLoadHashIsStablePerContent(t *testing.T) {
	source := New(nil)
	raw := []byte("linha unica")

	a, err := source.Load(context.Background(), raw)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	b, err := source.Load(context.Background(), raw)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if a.ContentHash != b.ContentHash {
		t.Fatalf("hash must be deterministic: %q vs %q", a.ContentHash, b.ContentHash)
	}

	c, err := source.Load(context.Background(), []byte("outra linha"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.ContentHash == a.ContentHash {
		t.Fatalf("different content must hash differently")
	}
}

func TestLoadEmptyPayloadIsUnreadable(t *testing.T) {
	source := New(nil)

	_, err := source.Load(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrDocumentUnreadable) {
		t.Fatalf("expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestLoadBinaryGarbageIsUnreadableWithoutOCR(t *testing.T) {
	source := New(nil)

	_, err := source.Load(context.Background(), []byte{0xff, 0xfe, 0x01, 0x02})
	if !domain.IsKind(err, domain.ErrDocumentUnreadable) {
		t.Fatalf("expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestLoadUsesOCRWhenTextIsEmpty(t *testing.T) {
	source := New(&fakeOCR{text: "Situação: REGULAR"})

	doc, err := source.Load(context.Background(), []byte{0xff, 0xfe, 0x01, 0x02})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !doc.OCRUsed {
		t.Fatalf("expected ocr flag set")
	}
	if len(doc.Lines) != 1 || doc.Lines[0] != "Situação: REGULAR" {
		t.Fatalf("unexpected lines: %v", doc.Lines)
	}
}

func TestLoadOCRFailureIsUnreadable(t *testing.T) {
	source := New(&fakeOCR{err: errors.New("engine offline")})

	_, err := source.Load(context.Background(), []byte{0xff, 0xfe, 0x01, 0x02})
	if !domain.IsKind(err, domain.ErrDocumentUnreadable) {
		t.Fatalf("expected ErrDocumentUnreadable, got %v", err)
	}
}
