package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"finledger/internal/allocation"
	"finledger/internal/store"
	"finledger/internal/textsource"
	"finledger/internal/vault"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// writeOutput writes data to outputPath, or to stdout when it is empty.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

func writeJSON(v interface{}, outputPath string, log zerolog.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(data, outputPath, log)
}

var amountCleaner = strings.NewReplacer(",", "", " ", "", "₹", "", "$", "", "€", "")

// parseAmountFlag accepts amounts like "1,250.50" or "₹ 1250". Validation of
// negative or zero amounts is left to the allocation rules.
func parseAmountFlag(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amountCleaner.Replace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s amount: %q", name, value)
	}
	return d, nil
}

// handleSourceError turns text extraction failures into actionable messages.
func handleSourceError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Text extraction failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("text extraction timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("text extraction was canceled")
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("file not found: %w", err)
	case errors.Is(err, textsource.ErrDocumentTooLarge):
		return fmt.Errorf("document is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, textsource.ErrTooManyPages):
		return fmt.Errorf("document has too many pages (maximum %d pages). Try splitting into smaller files", textsource.MaxPagesSync)
	case errors.Is(err, textsource.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported document format for TEXT_SOURCE. The plain source reads .txt and .md files, documentai and vision read PDFs and images: %w", err)
	case errors.Is(err, textsource.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, textsource.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document")
	case errors.Is(err, textsource.ErrMissingCredentials) ||
		strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n" +
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Or set GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. If using Application Default Credentials, run:\n" +
			"   gcloud auth application-default login\n\n" +
			"Original error: %v", err)
	case errors.Is(err, textsource.ErrPermissionDenied):
		return fmt.Errorf("permission denied. Please ensure the service account can use the configured processor")
	case errors.Is(err, textsource.ErrQuotaExceeded):
		return fmt.Errorf("Google Cloud API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, textsource.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Check DOCUMENT_AI_PROCESSOR_ID and GOOGLE_CLOUD_LOCATION: %w", err)
	default:
		return fmt.Errorf("text extraction failed: %w", err)
	}
}

// handleCommitError explains why a ledger change was rejected.
func handleCommitError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Change was not committed")

	var validation *allocation.ValidationError
	var storage *store.StorageError

	switch {
	case errors.As(err, &validation):
		return fmt.Errorf("change rejected, nothing was saved: %s", validation.Error())
	case errors.Is(err, store.ErrSchema):
		return fmt.Errorf("the ledger store is missing required columns, nothing was saved: %w", err)
	case errors.As(err, &storage):
		return fmt.Errorf("the ledger store could not be %s, nothing was saved. Check that the file is not open elsewhere and retry: %w",
			storageVerb(storage.Op), err)
	case errors.Is(err, vault.ErrInvalidKey):
		return fmt.Errorf("invalid document name, nothing was saved: %w", err)
	default:
		return fmt.Errorf("change failed, nothing was saved: %w", err)
	}
}

func storageVerb(op string) string {
	if op == "save" {
		return "written"
	}
	return "read"
}
