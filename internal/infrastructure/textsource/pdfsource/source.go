// Package pdfsource implements the text-source collaborator: raw document
// bytes in, page lines + OCR flag + content hash out.
package pdfsource

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/caiomeira/extractd/internal/core/domain"
)

// OCR is an optional secondary reader for image-only documents.
type OCR interface {
	Recognize(ctx context.Context, raw []byte) (string, error)
}

type Source struct {
	ocr OCR
}

func New(ocr OCR) *Source {
	return &Source{ocr: ocr}
}

// Load extracts the page text. PDF parsing is tried first; payloads that
// are not PDFs but are valid UTF-8 are treated as plain page text. When
// both yield nothing and an OCR collaborator is configured, it gets the
// final word and flags the result.
func (s *Source) Load(ctx context.Context, raw []byte) (domain.DocumentText, error) {
	if len(raw) == 0 {
		return domain.DocumentText{}, domain.WrapError(domain.ErrDocumentUnreadable, "load text", errors.New("empty payload"))
	}

	doc := domain.DocumentText{ContentHash: contentHash(raw)}

	text, pdfErr := extractPDFText(raw)
	if pdfErr != nil && !bytes.HasPrefix(raw, []byte("%PDF")) && utf8.Valid(raw) {
		text, pdfErr = string(raw), nil
	}

	if strings.TrimSpace(text) == "" && s.ocr != nil {
		ocrText, err := s.ocr.Recognize(ctx, raw)
		if err != nil {
			return domain.DocumentText{}, domain.WrapError(domain.ErrDocumentUnreadable, "ocr text",
				fmt.Errorf("pdf: %v; ocr: %w", pdfErr, err))
		}
		text = ocrText
		doc.OCRUsed = true
	}

	doc.Lines = splitLines(text)
	if len(doc.Lines) == 0 {
		reason := pdfErr
		if reason == nil {
			reason = errors.New("no text on page")
		}
		return domain.DocumentText{}, domain.WrapError(domain.ErrDocumentUnreadable, "load text", reason)
	}
	return doc, nil
}

func extractPDFText(raw []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
				b.WriteString(" ")
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
