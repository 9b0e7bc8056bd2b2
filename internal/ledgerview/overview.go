package ledgerview

import (
	"finledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// QuoteOverview is the financial position of one quote.
type QuoteOverview struct {
	QuoteID     string          `json:"quote_id"`
	ProjectName string          `json:"project_name"`
	Quoted      decimal.Decimal `json:"quoted"`
	Billed      decimal.Decimal `json:"billed"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Unbilled    decimal.Decimal `json:"unbilled"`
}

// Overview is the executive summary of a business unit. Outstanding and
// unbilled are clamped at zero here; the detailed report keeps raw values.
type Overview struct {
	BusinessUnit string          `json:"business_unit"`
	Quoted       decimal.Decimal `json:"quoted"`
	Billed       decimal.Decimal `json:"billed"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Unbilled     decimal.Decimal `json:"unbilled"`
	Quotes       []QuoteOverview `json:"quotes"`
}

// Summarize builds the overview of a ledger.
func Summarize(l *ledger.Ledger) Overview {
	totals := l.Totals()
	o := Overview{
		BusinessUnit: l.BusinessUnit(),
		Quoted:       totals.Quoted,
		Billed:       totals.Billed,
		Collected:    totals.Collected,
		Outstanding:  clampZero(totals.Outstanding()),
		Unbilled:     clampZero(totals.Unbilled()),
	}
	for _, q := range l.Quotes() {
		billed := l.Billed(q.ID)
		collected := l.Collected(q.ID)
		o.Quotes = append(o.Quotes, QuoteOverview{
			QuoteID:     q.ID,
			ProjectName: q.ProjectName,
			Quoted:      q.TotalValue,
			Billed:      billed,
			Collected:   collected,
			Outstanding: clampZero(billed.Sub(collected)),
			Unbilled:    clampZero(q.TotalValue.Sub(billed)),
		})
	}
	return o
}

// ComplianceEntry shows which documents back one allocation line.
type ComplianceEntry struct {
	QuoteID        string          `json:"quote_id"`
	ProjectName    string          `json:"project_name"`
	InvoiceNo      string          `json:"invoice_no"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	HasProof       bool            `json:"has_proof"`
	HasFormC       bool            `json:"has_form_c"`
	HasDeclaration bool            `json:"has_declaration"`
}

// Compliance lists every allocation line per quote with its attached documents.
func Compliance(l *ledger.Ledger) []ComplianceEntry {
	var out []ComplianceEntry
	for _, q := range l.Quotes() {
		for _, invoiceNo := range l.InvoicesOfQuote(q.ID) {
			for _, p := range l.PaymentsForInvoiceQuote(invoiceNo, q.ID) {
				out = append(out, ComplianceEntry{
					QuoteID:        q.ID,
					ProjectName:    q.ProjectName,
					InvoiceNo:      invoiceNo,
					PaymentID:      p.PaymentID,
					Amount:         p.Amount,
					HasProof:       p.HasProof(),
					HasFormC:       p.HasFormC(),
					HasDeclaration: p.HasDeclaration(),
				})
			}
		}
	}
	return out
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
