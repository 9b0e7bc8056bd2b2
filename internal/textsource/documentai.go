package textsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"finledger/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// DocumentAIConfig selects the processor used for extraction.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// ProcessorName returns the resource name of the configured processor.
func (c DocumentAIConfig) ProcessorName() string {
	if c.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAISource extracts text and tables with a Document AI processor.
// A form or layout parser processor is expected so tables are detected.
type DocumentAISource struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAISource creates a client for the processor's regional endpoint.
func NewDocumentAISource(ctx context.Context, config DocumentAIConfig) (*DocumentAISource, error) {
	const op = "NewDocumentAISource"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewSourceError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	clientOptions := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)),
	}
	creds := credentialOptions()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(creds) == 0 {
			return nil, NewSourceError(op, ErrMissingCredentials, err.Error())
		}
		return nil, WrapSourceError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAISource{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Extract processes the document at path.
func (s *DocumentAISource) Extract(ctx context.Context, path string) (*Document, error) {
	const op = "DocumentAISource.Extract"

	data, mime, err := readDocument(op, path)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: s.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mime,
			},
		},
	})
	if err != nil {
		return nil, s.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, NewSourceError(op, ErrExtractionFailed, "no document in response")
	}

	doc := convertDocument(path, resp.Document)
	if strings.TrimSpace(doc.Text()) == "" {
		return nil, NewSourceError(op, ErrEmptyDocument, path)
	}

	s.log.Info().
		Str("path", path).
		Int("pages", len(doc.Pages)).
		Int("tables", len(doc.Tables())).
		Dur("duration", time.Since(start)).
		Msg("Document AI extraction completed")
	return doc, nil
}

// Close closes the underlying Document AI client.
func (s *DocumentAISource) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *DocumentAISource) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied"):
		return NewSourceError(op, ErrPermissionDenied, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "RESOURCE_EXHAUSTED") || strings.Contains(errStr, "QUOTA_EXCEEDED"):
		return NewSourceError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "NotFound"):
		return NewSourceError(op, ErrProcessorNotFound, s.config.ProcessorName())
	case strings.Contains(errStr, "INVALID_ARGUMENT") || strings.Contains(errStr, "InvalidArgument"):
		return NewSourceError(op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return NewSourceError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return NewSourceError(op, context.Canceled, "processing was canceled")
	default:
		return NewSourceError(op, ErrExtractionFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// convertDocument maps Document AI pages to pages with text and table grids.
func convertDocument(path string, d *documentaipb.Document) *Document {
	doc := &Document{Path: path}
	for i, p := range d.GetPages() {
		page := Page{
			Number: int(p.GetPageNumber()),
			Text:   anchorText(d.GetText(), p.GetLayout().GetTextAnchor()),
		}
		if page.Number == 0 {
			page.Number = i + 1
		}
		for _, t := range p.GetTables() {
			var table Table
			for _, row := range append(append([]*documentaipb.Document_Page_Table_TableRow{}, t.GetHeaderRows()...), t.GetBodyRows()...) {
				cells := make([]string, 0, len(row.GetCells()))
				for _, cell := range row.GetCells() {
					cells = append(cells, cleanCell(anchorText(d.GetText(), cell.GetLayout().GetTextAnchor())))
				}
				table = append(table, cells)
			}
			if len(table) > 0 {
				page.Tables = append(page.Tables, table)
			}
		}
		doc.Pages = append(doc.Pages, page)
	}

	// Processors that skip page layout still return the full text.
	if len(doc.Pages) == 0 && d.GetText() != "" {
		doc.Pages = []Page{{Number: 1, Text: d.GetText()}}
	}
	return doc
}

// anchorText resolves a text anchor against the document text.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

func cleanCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
