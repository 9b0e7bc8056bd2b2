// Package ledgerview derives the balance-carrying ledger report of one
// business unit from its confirmed records.
package ledgerview

import (
	"fmt"
	"strings"
	"time"

	"finledger/internal/ledger"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Kind identifies a report row variant.
type Kind int

const (
	KindQuote Kind = iota
	KindInvoice
	KindPayment
	KindSubSummary
	KindSummary
	KindSpacer
	KindGrandTotal
)

func (k Kind) String() string {
	switch k {
	case KindQuote:
		return "QUOTE"
	case KindInvoice:
		return "INVOICE"
	case KindPayment:
		return "PAYMENT"
	case KindSubSummary:
		return "SUB_SUM"
	case KindSummary:
		return "SUMMARY"
	case KindSpacer:
		return "SPACE"
	case KindGrandTotal:
		return "GRAND"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Status icons.
const (
	StatusCleared     = "✅"
	StatusOutstanding = "🔴"
	StatusToBill      = "⏳"
	StatusAllClear    = "🟢"
)

// Row is one line of the report. The set of variants is closed.
type Row interface {
	Kind() Kind
	Record() Record
	row()
}

// Record is the flat 8-column form of a row. Amount columns are invalid when empty.
type Record struct {
	Type        string
	Ref         string
	Date        time.Time
	Description string
	Debit       decimal.NullDecimal
	Credit      decimal.NullDecimal
	Balance     decimal.NullDecimal
	Status      string
}

// Columns is the header of the tabular form.
var Columns = []string{"Type", "Ref", "Date", "Description", "Debit", "Credit", "Balance", "Status"}

func amount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func clearedIcon(balance decimal.Decimal) string {
	if ledger.IsCleared(balance) {
		return StatusCleared
	}
	return StatusOutstanding
}

// QuoteRow heads a quote: contract value, collected to date and remaining to bill.
type QuoteRow struct {
	Quote     models.Quote
	Collected decimal.Decimal
	Unbilled  decimal.Decimal
}

func (QuoteRow) Kind() Kind { return KindQuote }
func (QuoteRow) row()       {}

func (r QuoteRow) Status() string {
	if ledger.IsCleared(r.Unbilled) {
		return StatusCleared
	}
	return StatusToBill
}

func (r QuoteRow) Record() Record {
	return Record{
		Type:        KindQuote.String(),
		Ref:         r.Quote.ID,
		Date:        r.Quote.AgreementDate,
		Description: "📂 PROJECT: " + r.Quote.ProjectName,
		Debit:       amount(r.Quote.TotalValue),
		Credit:      amount(r.Collected),
		Balance:     amount(r.Unbilled),
		Status:      r.Status(),
	}
}

// InvoiceRow is one invoice line billed against the quote above it.
type InvoiceRow struct {
	Line models.InvoiceLine
}

func (InvoiceRow) Kind() Kind { return KindInvoice }
func (InvoiceRow) row()       {}

func (r InvoiceRow) Record() Record {
	return Record{
		Type:        KindInvoice.String(),
		Ref:         r.Line.InvoiceNo,
		Date:        r.Line.Date,
		Description: "  ↳ 🧾 Inv: " + r.Line.Description,
		Debit:       amount(r.Line.SplitAmount),
		Credit:      amount(decimal.Zero),
		Balance:     amount(decimal.Zero),
	}
}

// PaymentRow is one allocation resolved to the invoice and quote above it.
type PaymentRow struct {
	Payment models.PaymentAllocation
}

func (PaymentRow) Kind() Kind { return KindPayment }
func (PaymentRow) row()       {}

// Icons lists the attached documents: bank proof, Form C, declaration.
func (r PaymentRow) Icons() []string {
	var icons []string
	if r.Payment.HasProof() {
		icons = append(icons, "🏦")
	}
	if r.Payment.HasFormC() {
		icons = append(icons, "📄")
	}
	if r.Payment.HasDeclaration() {
		icons = append(icons, "📝")
	}
	return icons
}

func (r PaymentRow) Record() Record {
	return Record{
		Type:        KindPayment.String(),
		Ref:         r.Payment.PaymentID,
		Date:        r.Payment.Date,
		Description: strings.TrimRight("    ↳ 💰 Payment Received "+strings.Join(r.Icons(), " "), " "),
		Debit:       amount(decimal.Zero),
		Credit:      amount(r.Payment.Amount),
		Balance:     amount(decimal.Zero),
	}
}

// SubSummaryRow closes one (invoice, quote) group.
type SubSummaryRow struct {
	InvoiceNo string
	Billed    decimal.Decimal
	Collected decimal.Decimal
}

func (SubSummaryRow) Kind() Kind { return KindSubSummary }
func (SubSummaryRow) row()       {}

// Due is billed minus collected for the group.
func (r SubSummaryRow) Due() decimal.Decimal { return r.Billed.Sub(r.Collected) }

// Percent is the share of the group's billed amount already collected.
func (r SubSummaryRow) Percent() decimal.Decimal { return ledger.Percent(r.Collected, r.Billed) }

func (r SubSummaryRow) Record() Record {
	return Record{
		Type:        KindSubSummary.String(),
		Description: fmt.Sprintf("    👉 Status: %s%% Cleared (Due: %s)", r.Percent().StringFixed(1), FormatWhole(r.Due())),
		Debit:       amount(decimal.Zero),
		Credit:      amount(decimal.Zero),
		Balance:     amount(r.Due()),
		Status:      clearedIcon(r.Due()),
	}
}

// SummaryRow totals one quote.
type SummaryRow struct {
	QuoteID   string
	Billed    decimal.Decimal
	Collected decimal.Decimal
	Unbilled  decimal.Decimal
}

func (SummaryRow) Kind() Kind { return KindSummary }
func (SummaryRow) row()       {}

// Unpaid is billed minus collected.
func (r SummaryRow) Unpaid() decimal.Decimal { return r.Billed.Sub(r.Collected) }

func (r SummaryRow) Record() Record {
	return Record{
		Type: KindSummary.String(),
		Ref:  "TOTAL",
		Description: fmt.Sprintf("📊 PROJECT TOTALS | Unbilled: %s | Unpaid: %s | Billed: %s",
			FormatWhole(r.Unbilled), FormatWhole(r.Unpaid()), FormatWhole(r.Billed)),
		Debit:   amount(r.Billed),
		Credit:  amount(r.Collected),
		Balance: amount(r.Unpaid()),
		Status:  clearedIcon(r.Unpaid()),
	}
}

// SpacerRow separates quotes.
type SpacerRow struct{}

func (SpacerRow) Kind() Kind { return KindSpacer }
func (SpacerRow) row()       {}

func (SpacerRow) Record() Record {
	return Record{Type: KindSpacer.String()}
}

// GrandTotalRow closes the report for the business unit.
type GrandTotalRow struct {
	AsOf      time.Time
	Billed    decimal.Decimal
	Collected decimal.Decimal
}

func (GrandTotalRow) Kind() Kind { return KindGrandTotal }
func (GrandTotalRow) row()       {}

// Outstanding is billed minus collected.
func (r GrandTotalRow) Outstanding() decimal.Decimal { return r.Billed.Sub(r.Collected) }

// Percent is the share of everything billed that has been collected.
func (r GrandTotalRow) Percent() decimal.Decimal { return ledger.Percent(r.Collected, r.Billed) }

func (r GrandTotalRow) Status() string {
	if ledger.IsCleared(r.Outstanding()) {
		return StatusAllClear
	}
	return StatusOutstanding
}

func (r GrandTotalRow) Record() Record {
	return Record{
		Type:        KindGrandTotal.String(),
		Ref:         "ALL",
		Date:        r.AsOf,
		Description: fmt.Sprintf("BUSINESS GRAND TOTAL (%s%% Collected)", r.Percent().StringFixed(1)),
		Debit:       amount(r.Billed),
		Credit:      amount(r.Collected),
		Balance:     amount(r.Outstanding()),
		Status:      r.Status(),
	}
}
