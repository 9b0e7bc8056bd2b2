package textsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// PlainSource reads UTF-8 text files. Pages are split on form feeds.
type PlainSource struct{}

// NewPlainSource creates a PlainSource.
func NewPlainSource() *PlainSource {
	return &PlainSource{}
}

var plainExtensions = map[string]bool{".txt": true, ".text": true, ".md": true}

// Extract reads the file at path.
func (s *PlainSource) Extract(ctx context.Context, path string) (*Document, error) {
	const op = "PlainSource.Extract"

	if !plainExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil, NewSourceError(op, ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapSourceError(op, err, "")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapSourceError(op, err, "failed to read document")
	}
	if len(data) > MaxFileSizeBytes {
		return nil, NewSourceError(op, ErrDocumentTooLarge, formatSize(len(data)))
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, NewSourceError(op, ErrEmptyDocument, path)
	}

	doc := &Document{Path: path}
	for i, text := range strings.Split(string(data), "\f") {
		doc.Pages = append(doc.Pages, Page{Number: i + 1, Text: text})
	}
	return doc, nil
}
