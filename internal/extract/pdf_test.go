package extract

import (
	"errors"
	"testing"
)

func TestText_RejectsNonPDF(t *testing.T) {
	e := NewPDF()

	inputs := map[string][]byte{
		"empty":            {},
		"plain text":       []byte("just some text, not a pdf"),
		"html":             []byte("<html><body>nope</body></html>"),
		"truncated header": []byte("%PDF-"),
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := e.Text(data)
			if err == nil {
				t.Fatal("expected error for non-PDF input")
			}
			if !errors.Is(err, ErrNotPDF) {
				t.Errorf("expected ErrNotPDF, got: %v", err)
			}
		})
	}
}
