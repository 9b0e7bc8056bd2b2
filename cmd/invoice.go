package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"finledger/internal/allocation"
	"finledger/internal/extract"
	"finledger/internal/logger"
	"finledger/internal/reconcile"
	"finledger/internal/textsource"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Extract invoices and map their line items onto quotes",
}

var invoiceExtractCmd = &cobra.Command{
	Use:   "extract [invoice-file]",
	Short: "Read invoice number, date, total and line items from a document",
	Long: `Read an invoice with the configured text source. The header (number, date
and total) is taken from the first page and line items from every detected
table. When no item qualifies a single "General Services" item carries the
total.

If OPENAI_API_KEY is set, candidates with a placeholder number, zero total or
defaulted date are completed by the configured OpenAI model.

With --template the output is a mapping file ready to be edited and passed to
'invoice map'.`,
	Example: `  finledger invoice extract INV-2025-014.pdf
  finledger invoice extract INV-2025-014.pdf --template -o mapping.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoiceExtract,
}

var invoiceMapCmd = &cobra.Command{
	Use:   "map [mapping-file]",
	Short: "Commit an invoice whose line items are mapped onto quotes",
	Long: `Commit an invoice to the ledger. Every item of the mapping file is either
billed against an existing quote ("existing"), billed against a quote created
on the fly ("new"), or skipped ("ignore").

The invoice document is required unless the mapping already references one.`,
	Example: `  finledger invoice map mapping.json --unit Acme --invoice-doc INV-2025-014.pdf
  finledger invoice map mapping.json --unit Acme --invoice-doc INV-2025-014.pdf --declaration decl.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoiceMap,
}

// MappingFile is the editable JSON form of an invoice mapping.
type MappingFile struct {
	InvoiceNo string        `json:"invoice_no"`
	Date      string        `json:"date"`
	Items     []MappingItem `json:"items"`
}

// MappingItem maps one detected invoice item.
type MappingItem struct {
	Description string          `json:"description"`
	Detected    decimal.Decimal `json:"detected"`
	Action      string          `json:"action"`
	QuoteID     string          `json:"quote_id"`
	Amount      decimal.Decimal `json:"amount"`
	ProjectName string          `json:"project_name,omitempty"`
	QuoteValue  decimal.Decimal `json:"quote_value"`
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceExtractCmd, invoiceMapCmd)

	invoiceExtractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	invoiceExtractCmd.Flags().Bool("template", false, "Write a mapping file template instead of the candidate")
	invoiceExtractCmd.Flags().Bool("no-completion", false, "Do not complete missing fields with OpenAI")

	invoiceMapCmd.Flags().String("invoice-doc", "", "Invoice document to store with the lines")
	invoiceMapCmd.Flags().String("declaration", "", "Declaration document to store with the lines")
}

func runInvoiceExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice-extract")

	outputPath, _ := cmd.Flags().GetString("output")
	template, _ := cmd.Flags().GetBool("template")
	noCompletion, _ := cmd.Flags().GetBool("no-completion")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, true, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var completer *extract.Completer
	if !noCompletion {
		completer = a.completer()
	}

	candidate, err := extractInvoice(ctx, a.source, completer, args[0], log)
	if err != nil {
		return err
	}

	if template {
		return writeJSON(mappingTemplate(candidate), outputPath, log)
	}
	return writeJSON(candidate, outputPath, log)
}

// extractInvoice reads one invoice and, when a completer is given and the
// heuristics left gaps, asks the model for the missing fields. A failed
// completion keeps the heuristic candidate.
func extractInvoice(ctx context.Context, src textsource.Source, completer *extract.Completer, path string, log zerolog.Logger) (extract.InvoiceCandidate, error) {
	doc, err := src.Extract(ctx, path)
	if err != nil {
		return extract.InvoiceCandidate{}, handleSourceError(err, log)
	}

	candidate := extract.ExtractInvoice(firstPageText(doc), doc.Tables())
	if completer == nil || !extract.NeedsCompletion(candidate) {
		return candidate, nil
	}

	completed, err := completer.Complete(ctx, doc.Text(), candidate)
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", path).
			Msg("Completion failed, keeping extracted values")
		candidate.Warnings = append(candidate.Warnings, "automatic completion failed: "+err.Error())
		return candidate, nil
	}
	return completed, nil
}

func firstPageText(doc *textsource.Document) string {
	if len(doc.Pages) == 0 {
		return ""
	}
	return doc.Pages[0].Text
}

func mappingTemplate(c extract.InvoiceCandidate) MappingFile {
	m := MappingFile{InvoiceNo: c.InvoiceNo}
	if !c.Date.IsZero() {
		m.Date = c.Date.Format("2006-01-02")
	}
	for _, item := range c.Items {
		m.Items = append(m.Items, MappingItem{
			Description: item.Description,
			Detected:    item.Amount,
			Action:      string(allocation.MapExisting),
			Amount:      item.Amount,
		})
	}
	return m
}

func runInvoiceMap(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice-map")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}
	invoicePath, _ := cmd.Flags().GetString("invoice-doc")
	declarationPath, _ := cmd.Flags().GetString("declaration")

	mapping, err := readMappingFile(args[0])
	if err != nil {
		return err
	}

	var invoiceDoc, declaration *reconcile.Attachment
	if invoicePath != "" {
		if invoiceDoc, err = reconcile.AttachmentFromFile(invoicePath); err != nil {
			return err
		}
	}
	if declarationPath != "" {
		if declaration, err = reconcile.AttachmentFromFile(declarationPath); err != nil {
			return err
		}
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.MapInvoice(ctx, unit, mapping, invoiceDoc, declaration)
	if err != nil {
		return handleCommitError(err, log)
	}

	for _, q := range result.Quotes {
		fmt.Printf("➕ New quote %s  %s  %s\n", q.ID, q.ProjectName, q.TotalValue.StringFixed(2))
	}
	for _, line := range result.Lines {
		fmt.Printf("✅ %s → %s  %s\n", line.InvoiceNo, line.QuoteRef, line.SplitAmount.StringFixed(2))
	}
	for _, w := range result.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	fmt.Printf("Invoice %s committed to %s with %d line(s)\n", mapping.InvoiceNo, unit, len(result.Lines))
	return nil
}

func readMappingFile(path string) (allocation.InvoiceMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return allocation.InvoiceMapping{}, fmt.Errorf("failed to read mapping: %w", err)
	}
	var f MappingFile
	if err := json.Unmarshal(data, &f); err != nil {
		return allocation.InvoiceMapping{}, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}
	return f.toMapping()
}

func (f MappingFile) toMapping() (allocation.InvoiceMapping, error) {
	m := allocation.InvoiceMapping{InvoiceNo: strings.TrimSpace(f.InvoiceNo)}
	if f.Date != "" {
		date, ok := extract.ParseDate(f.Date)
		if !ok {
			return m, fmt.Errorf("invalid mapping date: %q", f.Date)
		}
		m.Date = date
	}

	for i, item := range f.Items {
		action := allocation.MappingAction(strings.ToLower(strings.TrimSpace(item.Action)))
		switch action {
		case allocation.MapExisting, allocation.MapNew, allocation.MapIgnore:
		case "":
			action = allocation.MapIgnore
		default:
			return m, fmt.Errorf("item %d: unknown action %q (use existing, new or ignore)", i+1, item.Action)
		}
		m.Items = append(m.Items, allocation.ItemMapping{
			Description: item.Description,
			Detected:    item.Detected,
			Action:      action,
			QuoteID:     strings.TrimSpace(item.QuoteID),
			Amount:      item.Amount,
			ProjectName: item.ProjectName,
			QuoteValue:  item.QuoteValue,
		})
	}
	return m, nil
}
