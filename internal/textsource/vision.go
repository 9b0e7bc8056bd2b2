package textsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"finledger/internal/logger"
	"github.com/rs/zerolog"
)

// MaxPagesSync is the page limit of synchronous Vision file annotation.
const MaxPagesSync = 5

// VisionSource extracts text with Cloud Vision document text detection.
// Tables are not detected.
type VisionSource struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionSource creates a Vision client with credentials from the environment.
func NewVisionSource(ctx context.Context) (*VisionSource, error) {
	const op = "NewVisionSource"

	creds := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, creds...)
	if err != nil {
		if len(creds) == 0 {
			return nil, NewSourceError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapSourceError(op, err, "failed to create Vision client")
	}
	return NewVisionSourceWithClient(client), nil
}

// NewVisionSourceWithClient uses an existing client.
func NewVisionSourceWithClient(client *vision.ImageAnnotatorClient) *VisionSource {
	return &VisionSource{client: client, log: logger.WithComponent("vision")}
}

// Extract runs text detection over the document at path.
func (s *VisionSource) Extract(ctx context.Context, path string) (*Document, error) {
	const op = "VisionSource.Extract"

	data, mime, err := readDocument(op, path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: mime,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	})
	if err != nil {
		return nil, NewSourceError(op, ErrExtractionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewSourceError(op, ErrExtractionFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, NewSourceError(op, ErrExtractionFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	doc, err := convertVisionResponse(path, fileResp)
	if err != nil {
		return nil, WrapSourceError(op, err, "failed to process Vision API response")
	}

	s.log.Info().
		Str("path", path).
		Int("pages", len(doc.Pages)).
		Dur("duration", time.Since(start)).
		Msg("Vision extraction completed")
	return doc, nil
}

// Close closes the underlying Vision client.
func (s *VisionSource) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func convertVisionResponse(path string, fileResp *visionpb.AnnotateFileResponse) (*Document, error) {
	if len(fileResp.Responses) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(fileResp.Responses) > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, len(fileResp.Responses))
	}

	doc := &Document{Path: path}
	var found bool
	for i, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("%w: page %d: %s", ErrExtractionFailed, i+1, page.Error.Message)
		}
		text := page.GetFullTextAnnotation().GetText()
		if strings.TrimSpace(text) != "" {
			found = true
		}
		doc.Pages = append(doc.Pages, Page{Number: i + 1, Text: text})
	}
	if !found {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}
