package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finledger/pkg/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// sheetRows is the raw content of one sheet, header row first.
type sheetRows [][]string

// columnReader maps header names to positions and applies read-time defaults.
type columnReader struct {
	sheet string
	cols  []models.Column
	index map[string]int
}

func newColumnReader(sheet string, cols []models.Column, header []string) (*columnReader, error) {
	r := &columnReader{sheet: sheet, cols: cols, index: map[string]int{}}
	for i, name := range header {
		r.index[strings.TrimSpace(name)] = i
	}
	for _, c := range cols {
		if _, ok := r.index[c.Name]; c.Required && !ok {
			return nil, fmt.Errorf("%w: sheet %s has no %s column", ErrSchema, sheet, c.Name)
		}
	}
	return r, nil
}

func (r *columnReader) get(row []string, name string) string {
	i, ok := r.index[name]
	if ok && i < len(row) {
		if v := strings.TrimSpace(row[i]); v != "" && v != "nan" {
			return v
		}
	}
	for _, c := range r.cols {
		if c.Name == name {
			return c.Default
		}
	}
	return ""
}

func parseStoredAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

// storedDateLayouts are tried in order when reading dates back.
var storedDateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02.01.2006",
}

// parseStoredDate also accepts Excel serial numbers, which raw reads return
// for cells a spreadsheet tool stored as typed dates.
func parseStoredDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range storedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

func formatStoredDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

// decodeRecords turns raw sheets into records. Rows with unreadable required
// values are skipped with a warning and counted; a missing required column
// fails the sheet.
func decodeRecords(quotes, invoices, payments sheetRows, log zerolog.Logger) (*models.RecordSet, int, error) {
	set := &models.RecordSet{}
	skipped := 0

	if err := eachRow(models.SheetQuotes, models.QuoteColumns, quotes, log, &skipped, func(r *columnReader, row []string) error {
		q, err := decodeQuote(r, row)
		if err == nil {
			set.Quotes = append(set.Quotes, q)
		}
		return err
	}); err != nil {
		return nil, 0, err
	}

	if err := eachRow(models.SheetInvoices, models.InvoiceColumns, invoices, log, &skipped, func(r *columnReader, row []string) error {
		line, err := decodeInvoiceLine(r, row)
		if err == nil {
			set.InvoiceLines = append(set.InvoiceLines, line)
		}
		return err
	}); err != nil {
		return nil, 0, err
	}

	if err := eachRow(models.SheetPayments, models.PaymentColumns, payments, log, &skipped, func(r *columnReader, row []string) error {
		p, err := decodePayment(r, row)
		if err == nil {
			set.Payments = append(set.Payments, p)
		}
		return err
	}); err != nil {
		return nil, 0, err
	}

	resolvePaymentUnits(set)
	return set, skipped, nil
}

func eachRow(sheet string, cols []models.Column, rows sheetRows, log zerolog.Logger, skipped *int, fn func(*columnReader, []string) error) error {
	if len(rows) == 0 {
		return nil
	}
	reader, err := newColumnReader(sheet, cols, rows[0])
	if err != nil {
		return err
	}
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		if err := fn(reader, row); err != nil {
			*skipped++
			log.Warn().
				Err(err).
				Str("sheet", sheet).
				Int("row", i+2).
				Msg("Skipping unreadable row")
		}
	}
	return nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func decodeQuote(r *columnReader, row []string) (models.Quote, error) {
	const op = "decodeQuote"

	id := r.get(row, "Quote_ID")
	if id == "" {
		return models.Quote{}, fmt.Errorf("%s: empty Quote_ID", op)
	}
	value, err := parseStoredAmount(r.get(row, "Total_Value"))
	if err != nil {
		return models.Quote{}, fmt.Errorf("%s: invalid Total_Value for %s: %w", op, id, err)
	}
	date, err := parseStoredDate(r.get(row, "Date"))
	if err != nil {
		return models.Quote{}, fmt.Errorf("%s: %s: %w", op, id, err)
	}
	return models.Quote{
		ID:            id,
		BusinessUnit:  r.get(row, "Business"),
		ProjectName:   r.get(row, "Project_Name"),
		TotalValue:    value,
		AgreementDate: date,
		Status:        models.QuoteStatus(r.get(row, "Status")),
		AgreementFile: r.get(row, "Agreement_File"),
	}, nil
}

func decodeInvoiceLine(r *columnReader, row []string) (models.InvoiceLine, error) {
	const op = "decodeInvoiceLine"

	no := r.get(row, "Invoice_No")
	if no == "" {
		return models.InvoiceLine{}, fmt.Errorf("%s: empty Invoice_No", op)
	}
	amount, err := parseStoredAmount(r.get(row, "Split_Amount"))
	if err != nil {
		return models.InvoiceLine{}, fmt.Errorf("%s: invalid Split_Amount for %s: %w", op, no, err)
	}
	date, err := parseStoredDate(r.get(row, "Date"))
	if err != nil {
		return models.InvoiceLine{}, fmt.Errorf("%s: %s: %w", op, no, err)
	}
	return models.InvoiceLine{
		InvoiceNo:       no,
		QuoteRef:        r.get(row, "Quote_Ref"),
		BusinessUnit:    r.get(row, "Business"),
		Date:            date,
		SplitAmount:     amount,
		Description:     r.get(row, "Description"),
		InvoiceFile:     r.get(row, "Invoice_File"),
		DeclarationFile: r.get(row, "Declaration_File"),
	}, nil
}

func decodePayment(r *columnReader, row []string) (models.PaymentAllocation, error) {
	const op = "decodePayment"

	id := r.get(row, "Payment_ID")
	if id == "" {
		return models.PaymentAllocation{}, fmt.Errorf("%s: empty Payment_ID", op)
	}
	amount, err := parseStoredAmount(r.get(row, "Amount"))
	if err != nil {
		return models.PaymentAllocation{}, fmt.Errorf("%s: invalid Amount for %s: %w", op, id, err)
	}
	date, err := parseStoredDate(r.get(row, "Date"))
	if err != nil {
		return models.PaymentAllocation{}, fmt.Errorf("%s: %s: %w", op, id, err)
	}
	return models.PaymentAllocation{
		PaymentID:       id,
		ParentPaymentID: r.get(row, "Parent_Payment_ID"),
		InvoiceRef:      r.get(row, "Invoice_Ref"),
		QuoteRef:        r.get(row, "Quote_Ref"),
		BusinessUnit:    r.get(row, "Business"),
		Date:            date,
		Amount:          amount,
		ProofFile:       r.get(row, "Proof_File"),
		FormCFile:       r.get(row, "Form_C_File"),
		DeclarationFile: r.get(row, "Payment_Decl_File"),
	}, nil
}

// Encoders return one value per schema column. Amounts are float64 so
// spreadsheets treat them as numbers.

func encodeQuote(q models.Quote) []interface{} {
	return []interface{}{
		q.ID,
		formatStoredDate(q.AgreementDate),
		q.BusinessUnit,
		q.ProjectName,
		q.TotalValue.InexactFloat64(),
		models.DocumentRef(q.AgreementFile),
		string(q.Status),
	}
}

func encodeInvoiceLine(l models.InvoiceLine) []interface{} {
	return []interface{}{
		l.InvoiceNo,
		l.QuoteRef,
		formatStoredDate(l.Date),
		l.BusinessUnit,
		l.SplitAmount.InexactFloat64(),
		l.Description,
		models.DocumentRef(l.InvoiceFile),
		models.DocumentRef(l.DeclarationFile),
	}
}

func encodePayment(p models.PaymentAllocation) []interface{} {
	return []interface{}{
		p.PaymentID,
		p.ParentPaymentID,
		p.InvoiceRef,
		p.QuoteRef,
		p.BusinessUnit,
		formatStoredDate(p.Date),
		p.Amount.InexactFloat64(),
		models.DocumentRef(p.ProofFile),
		models.DocumentRef(p.FormCFile),
		models.DocumentRef(p.DeclarationFile),
	}
}

// encodeRecords returns header plus rows for each record sheet, keyed by sheet name.
func encodeRecords(set *models.RecordSet) map[string][][]interface{} {
	out := map[string][][]interface{}{
		models.SheetQuotes:   {headerValues(models.QuoteColumns)},
		models.SheetInvoices: {headerValues(models.InvoiceColumns)},
		models.SheetPayments: {headerValues(models.PaymentColumns)},
	}
	for _, q := range set.Quotes {
		out[models.SheetQuotes] = append(out[models.SheetQuotes], encodeQuote(q))
	}
	for _, l := range set.InvoiceLines {
		out[models.SheetInvoices] = append(out[models.SheetInvoices], encodeInvoiceLine(l))
	}
	for _, p := range set.Payments {
		out[models.SheetPayments] = append(out[models.SheetPayments], encodePayment(p))
	}
	return out
}

func headerValues(cols []models.Column) []interface{} {
	names := models.ColumnNames(cols)
	out := make([]interface{}, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// recordSheets lists the record sheets in workbook order.
var recordSheets = []string{models.SheetQuotes, models.SheetInvoices, models.SheetPayments}
