package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextExtractor pulls plain text out of uploaded files. Plain text files
// are read as-is, PDFs go through the pdf reader, anything else is read raw
// as a best-effort fallback.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.extractPDF(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file %s: %w", path, err)
		}
		return string(data), nil
	}
}

func (e *TextExtractor) extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, content); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return sb.String(), nil
}
