// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF reports that the byte stream is not a parseable PDF document.
var ErrNotPDF = errors.New("not a parseable PDF")

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	Text(data []byte) (string, error)
}

// PDFExtractor extracts text from PDF byte streams, one page's text per
// line, pages concatenated in document order.
type PDFExtractor struct{}

// NewPDF creates a PDF extractor.
func NewPDF() *PDFExtractor { return &PDFExtractor{} }

// Text parses the PDF and concatenates the text of every page joined with
// newlines. A page that fails extraction (scanned image, corrupted content
// stream) contributes an empty string instead of failing the document.
func (e *PDFExtractor) Text(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		pages = append(pages, pageText(reader, i))
	}
	return strings.Join(pages, "\n"), nil
}

// pageText extracts a single page's text. The pdf library panics on some
// malformed content streams, so the recover doubles as the per-page
// empty-string fallback.
func pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

var _ Extractor = (*PDFExtractor)(nil)
