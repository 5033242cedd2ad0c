// Package document loads the résumé file a user selects for upload.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	// MaxSize is the largest résumé the backend accepts.
	MaxSize = 10 * 1024 * 1024

	ContentTypePDF = "application/pdf"
	extensionPDF   = ".pdf"
)

type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

func (d *Document) Size() int64 {
	if d == nil {
		return 0
	}
	return int64(len(d.Data))
}

// Open reads a single PDF résumé from path. It rejects anything that is not a
// PDF by extension and by content, and files larger than MaxSize.
func Open(path string) (*Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("résumé file path is required")
	}

	if !strings.EqualFold(filepath.Ext(path), extensionPDF) {
		return nil, fmt.Errorf("only PDF files are supported: %s", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat résumé file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("file too large: %d bytes, max size is %d bytes", info.Size(), MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading résumé file: %w", err)
	}

	return FromBytes(filepath.Base(path), data)
}

// FromBytes validates an in-memory document the same way Open does.
func FromBytes(name string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("file too large: %d bytes, max size is %d bytes", len(data), MaxSize)
	}

	detected := mimetype.Detect(data)
	if !detected.Is(ContentTypePDF) {
		return nil, fmt.Errorf("%s does not look like a PDF (detected %s)", name, detected.String())
	}

	return &Document{
		Name:        name,
		ContentType: ContentTypePDF,
		Data:        data,
	}, nil
}

// Pages parses the document and returns its page count.
func (d *Document) Pages() (int, error) {
	r, err := d.reader()
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// Text extracts the plain text of every page that has content.
func (d *Document) Text() (string, error) {
	r, err := d.reader()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		b.WriteString(text)
		b.WriteString("\n\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("no text content found in %s", d.Name)
	}

	return text, nil
}

func (d *Document) reader() (*pdf.Reader, error) {
	if d == nil || len(d.Data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	r, err := pdf.NewReader(bytes.NewReader(d.Data), int64(len(d.Data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF %s: %w", d.Name, err)
	}
	return r, nil
}
