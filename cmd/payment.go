package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"finledger/internal/allocation"
	"finledger/internal/extract"
	"finledger/internal/logger"
	"finledger/internal/reconcile"
	"finledger/internal/textsource"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Record payments and allocate them across the quotes of an invoice",
}

var paymentExtractCmd = &cobra.Command{
	Use:   "extract [proof-file]",
	Short: "Read amount, date and invoice reference from a payment proof",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaymentExtract,
}

var paymentRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one payment split across the quotes billed on an invoice",
	Long: `Record a received payment against an invoice. The received amount must
equal the sum of the per-quote allocations, and only quotes billed on the
invoice can receive an allocation. At least one supporting document is
required: a bank proof (--proof), a Form C (--form-c) or a declaration
(--declaration).

Run 'payment unpaid' first to see what is due per quote.`,
	Example: `  finledger payment record --unit Acme --invoice INV-2025-014 --received 12000 \
    --alloc QT-2504-1=8000 --alloc QT-2504-2=4000 --proof transfer.pdf

  # With Form C and declaration
  finledger payment record --unit Acme --invoice INV-2025-014 --received 5000 \
    --alloc QT-2504-1=5000 --proof swift.pdf --form-c formc.pdf --declaration decl.pdf`,
	Args: cobra.NoArgs,
	RunE: runPaymentRecord,
}

var paymentAttachCmd = &cobra.Command{
	Use:   "attach [payment-id]",
	Short: "Attach a Form C or declaration to a recorded allocation line",
	Example: `  finledger payment attach PAY-1745923200-3f2a91c0-1 --unit Acme --form-c formc.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPaymentAttach,
}

var paymentUnpaidCmd = &cobra.Command{
	Use:   "unpaid",
	Short: "List invoices with an outstanding due and the due per quote",
	Args:  cobra.NoArgs,
	RunE:  runPaymentUnpaid,
}

func init() {
	rootCmd.AddCommand(paymentCmd)
	paymentCmd.AddCommand(paymentExtractCmd, paymentRecordCmd, paymentAttachCmd, paymentUnpaidCmd)

	paymentExtractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	paymentRecordCmd.Flags().String("invoice", "", "Invoice number the payment settles")
	paymentRecordCmd.Flags().String("received", "", "Amount received")
	paymentRecordCmd.Flags().String("date", "", "Payment date (default today)")
	paymentRecordCmd.Flags().StringArray("alloc", nil, "Allocation as QUOTE_ID=AMOUNT (repeatable)")
	paymentRecordCmd.Flags().String("proof", "", "Bank proof document")
	paymentRecordCmd.Flags().String("form-c", "", "Form C document")
	paymentRecordCmd.Flags().String("declaration", "", "Declaration document")

	paymentAttachCmd.Flags().String("form-c", "", "Form C document")
	paymentAttachCmd.Flags().String("declaration", "", "Declaration document")
}

func runPaymentExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payment-extract")
	outputPath, _ := cmd.Flags().GetString("output")

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, true, log)
	if err != nil {
		return err
	}
	defer a.Close()

	candidate, err := extractPayment(ctx, a.source, args[0], log)
	if err != nil {
		return err
	}
	return writeJSON(candidate, outputPath, log)
}

// extractPayment reads the first page of a proof; later pages of bank
// statements carry unrelated transactions.
func extractPayment(ctx context.Context, src textsource.Source, path string, log zerolog.Logger) (extract.PaymentCandidate, error) {
	doc, err := src.Extract(ctx, path)
	if err != nil {
		return extract.PaymentCandidate{}, handleSourceError(err, log)
	}
	return extract.ExtractPayment(firstPageText(doc)), nil
}

func runPaymentRecord(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payment-record")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}
	invoiceNo, _ := cmd.Flags().GetString("invoice")
	receivedStr, _ := cmd.Flags().GetString("received")
	dateStr, _ := cmd.Flags().GetString("date")
	allocFlags, _ := cmd.Flags().GetStringArray("alloc")

	received, err := parseAmountFlag("received", receivedStr)
	if err != nil {
		return err
	}
	allocations, err := parseAllocations(allocFlags)
	if err != nil {
		return err
	}

	req := allocation.PaymentRequest{
		InvoiceNo:   strings.TrimSpace(invoiceNo),
		Received:    received,
		Allocations: allocations,
	}
	if dateStr != "" {
		date, ok := extract.ParseDate(dateStr)
		if !ok {
			return fmt.Errorf("invalid --date: %q", dateStr)
		}
		req.Date = date
	}

	docs, err := paymentAttachments(cmd, true)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	lines, err := a.service.RecordPayment(ctx, unit, req, docs)
	if err != nil {
		return handleCommitError(err, log)
	}

	for _, p := range lines {
		fmt.Printf("✅ %s  %s → %s  %s\n", p.PaymentID, p.InvoiceRef, p.QuoteRef, p.Amount.StringFixed(2))
	}
	fmt.Printf("Payment of %s on %s recorded in %s\n", received.StringFixed(2), req.InvoiceNo, unit)
	return nil
}

// parseAllocations reads QUOTE_ID=AMOUNT pairs. Repeating a quote id is an error.
func parseAllocations(values []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(values))
	for _, v := range values {
		id, amountStr, ok := strings.Cut(v, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --alloc %q: expected QUOTE_ID=AMOUNT", v)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("quote %s is allocated more than once", id)
		}
		amount, err := parseAmountFlag("alloc", amountStr)
		if err != nil {
			return nil, err
		}
		out[id] = amount
	}
	return out, nil
}

func paymentAttachments(cmd *cobra.Command, withProof bool) (reconcile.PaymentAttachments, error) {
	var docs reconcile.PaymentAttachments
	targets := []struct {
		flag string
		dst  **reconcile.Attachment
	}{
		{"form-c", &docs.FormC},
		{"declaration", &docs.Declaration},
	}
	if withProof {
		targets = append(targets, struct {
			flag string
			dst  **reconcile.Attachment
		}{"proof", &docs.Proof})
	}

	for _, t := range targets {
		path, _ := cmd.Flags().GetString(t.flag)
		if path == "" {
			continue
		}
		att, err := reconcile.AttachmentFromFile(path)
		if err != nil {
			return docs, err
		}
		*t.dst = att
	}
	return docs, nil
}

func runPaymentAttach(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payment-attach")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}
	docs, err := paymentAttachments(cmd, false)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.service.UpdatePaymentDocuments(ctx, unit, args[0], docs)
	if err != nil {
		return handleCommitError(err, log)
	}
	fmt.Printf("✅ %s  Form C: %s  Declaration: %s\n", p.PaymentID, p.FormCFile, p.DeclarationFile)
	return nil
}

func runPaymentUnpaid(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payment-unpaid")

	unit, err := unitFlag(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutFlag(cmd), log)
	defer cancel()

	a, err := newApp(ctx, false, log)
	if err != nil {
		return err
	}
	defer a.Close()

	unpaid := a.service.UnpaidInvoices(ctx, unit)
	if len(unpaid) == 0 {
		fmt.Printf("No unpaid invoices in %s\n", unit)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Invoice\tQuote\tBilled\tPaid\tDue")
	for _, inv := range unpaid {
		for _, q := range inv.Quotes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inv.InvoiceNo, q.QuoteID,
				q.Billed.StringFixed(2), q.Paid.StringFixed(2), q.Due.StringFixed(2))
		}
		fmt.Fprintf(w, "%s\t%s\t\t\t%s\n", inv.InvoiceNo, "TOTAL", inv.Due.StringFixed(2))
	}
	return w.Flush()
}
