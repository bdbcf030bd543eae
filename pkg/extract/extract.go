// Package extract sniffs uploaded files and pulls plain text out of them.
// PDFs are recognized by magic bytes and read page by page so chunk
// provenance can carry page numbers; .txt and .md files are accepted as
// UTF-8 and kept whole.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

var (
	ErrNoFilename      = errors.New("file has no filename")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("no extractable text")
)

var pdfMagic = []byte("%PDF-")

// Document is the extracted content of a single upload. Pages is populated
// for PDFs (one entry per page, empty pages included so indices line up);
// Text is populated for plain-text files.
type Document struct {
	Filename string
	Kind     Kind
	Pages    []string
	Text     string
}

// Detect classifies an upload by magic bytes and extension. The content is
// inspected, not trusted: a .pdf extension without the PDF header is
// rejected, and text files must be valid UTF-8.
func Detect(filename string, data []byte) (Kind, error) {
	if strings.TrimSpace(filename) == "" {
		return "", ErrNoFilename
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return KindPDF, nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: %w: not valid UTF-8", filename, ErrUnsupportedType)
		}
		return KindText, nil
	}
	return "", fmt.Errorf("%s: %w", filename, ErrUnsupportedType)
}

// Extract pulls the text out of an already-classified upload.
func Extract(filename string, kind Kind, data []byte) (*Document, error) {
	doc := &Document{Filename: filename, Kind: kind}
	switch kind {
	case KindPDF:
		pages, err := pdfPages(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		doc.Pages = pages
	case KindText:
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, fmt.Errorf("%s: %w", filename, ErrEmptyDocument)
		}
		doc.Text = text
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedType)
	}
	return doc, nil
}

func pdfPages(data []byte) (pages []string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	var hasText bool
	pages = make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		pages = append(pages, text)
	}
	if !hasText {
		return nil, ErrEmptyDocument
	}
	return pages, nil
}
