// Package textsource turns stored documents into text and table cells for
// the extraction heuristics.
//
// Three sources are available:
//   - PlainSource reads text files as they are; it needs no credentials.
//   - DocumentAISource sends PDFs and images to a Google Document AI
//     processor and returns page text together with detected tables.
//   - VisionSource runs Google Cloud Vision document text detection; it
//     returns page text only.
//
// The Google sources read credentials from GOOGLE_CREDENTIALS (inline JSON)
// or GOOGLE_APPLICATION_CREDENTIALS (file path) and fall back to application
// default credentials.
//
// Limits of synchronous processing:
//   - Maximum file size: 20MB
//   - Vision processes at most 5 pages of a PDF
package textsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"
)

// MaxFileSizeBytes is the largest document sent for synchronous processing.
const MaxFileSizeBytes = 20 * 1024 * 1024

// Source extracts the text content of the document at path.
type Source interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Table is a grid of cell texts, header rows first.
type Table [][]string

// Page holds the text and tables of one page.
type Page struct {
	Number int     `json:"number"`
	Text   string  `json:"text"`
	Tables []Table `json:"tables,omitempty"`
}

// Document is the extracted content of one file.
type Document struct {
	Path  string `json:"path"`
	Pages []Page `json:"pages"`
}

// Text joins the page texts in reading order.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

// Tables returns the tables of all pages as row-cell grids.
func (d *Document) Tables() [][][]string {
	var out [][][]string
	for _, p := range d.Pages {
		for _, t := range p.Tables {
			out = append(out, [][]string(t))
		}
	}
	return out
}

// mimeTypes lists the formats the Google sources accept.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".gif":  "image/gif",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

func mimeType(path string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(path))]
}

// Readable reports whether some source can read the file at path.
func Readable(path string) bool {
	return mimeType(path) != "" || plainExtensions[strings.ToLower(filepath.Ext(path))]
}

// readDocument loads path and checks size and format.
func readDocument(op, path string) ([]byte, string, error) {
	mime := mimeType(path)
	if mime == "" {
		return nil, "", NewSourceError(op, ErrUnsupportedFormat, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", WrapSourceError(op, err, "failed to read document")
	}
	if len(data) > MaxFileSizeBytes {
		return nil, "", NewSourceError(op, ErrDocumentTooLarge, formatSize(len(data)))
	}
	if mime == "application/pdf" && (len(data) < 4 || string(data[:4]) != "%PDF") {
		return nil, "", NewSourceError(op, ErrInvalidPDF, "missing PDF header")
	}
	return data, mime, nil
}

// credentialOptions returns client options for the configured credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}
