package textsource

import (
	"errors"
	"fmt"
)

// Common text extraction errors
var (
	// ErrDocumentTooLarge is returned when the file exceeds MaxFileSizeBytes.
	ErrDocumentTooLarge = errors.New("document exceeds the maximum size (20MB)")

	// ErrInvalidPDF is returned when a .pdf file is not a PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrUnsupportedFormat is returned for file types a source cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed is returned when the remote service fails to process the document.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrMissingCredentials is returned when no Google Cloud credentials are available.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when a source lacks required settings.
	ErrInvalidConfiguration = errors.New("invalid text source configuration")

	// ErrPermissionDenied is returned when the credentials may not use the processor.
	ErrPermissionDenied = errors.New("permission denied by text extraction service")

	// ErrQuotaExceeded is returned when the service quota is exhausted.
	ErrQuotaExceeded = errors.New("text extraction quota exceeded")

	// ErrProcessorNotFound is returned when the Document AI processor does not exist.
	ErrProcessorNotFound = errors.New("document processor not found")

	// ErrTooManyPages is returned when a PDF has more pages than synchronous processing allows.
	ErrTooManyPages = errors.New("document has too many pages for synchronous processing")

	// ErrEmptyDocument is returned when no readable text was found.
	ErrEmptyDocument = errors.New("document contains no readable text")
)

// SourceError wraps errors with the operation that failed.
type SourceError struct {
	// Op is the operation that failed (e.g., "DocumentAISource.Extract").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("textsource: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("textsource: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a SourceError.
func NewSourceError(op string, err error, details string) *SourceError {
	return &SourceError{Op: op, Err: err, Details: details}
}

// WrapSourceError wraps an error as a SourceError if it isn't already one.
func WrapSourceError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return err
	}

	return NewSourceError(op, err, details)
}

func formatSize(n int) string {
	return fmt.Sprintf("file size: %d bytes", n)
}
