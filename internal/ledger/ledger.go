// Package ledger holds the confirmed records of one business unit and answers
// the reconciliation queries over them. It has no side effects.
package ledger

import (
	"sort"

	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ClearedThreshold is the balance below which an amount counts as settled.
var ClearedThreshold = decimal.NewFromInt(1)

// IsCleared reports whether a remaining balance is small enough to be settled.
// 0.999 is cleared, 1.000 is not.
func IsCleared(balance decimal.Decimal) bool {
	return balance.LessThan(ClearedThreshold)
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

// Ledger is the entity graph of one business unit.
type Ledger struct {
	unit     string
	quotes   []models.Quote
	lines    []models.InvoiceLine
	payments []models.PaymentAllocation

	quoteIndex map[string]int
}

// New builds a ledger from the unit's records. Records of other units are
// ignored; payments without a business unit are attached through their invoice.
func New(unit string, set *models.RecordSet) *Ledger {
	l := &Ledger{unit: unit, quoteIndex: map[string]int{}}
	if set == nil {
		return l
	}

	invoiceUnits := map[string]string{}
	for _, line := range set.InvoiceLines {
		if line.BusinessUnit == unit {
			l.lines = append(l.lines, line)
		}
		if _, seen := invoiceUnits[line.InvoiceNo]; !seen {
			invoiceUnits[line.InvoiceNo] = line.BusinessUnit
		}
	}
	for _, q := range set.Quotes {
		if q.BusinessUnit != unit {
			continue
		}
		l.quoteIndex[q.ID] = len(l.quotes)
		l.quotes = append(l.quotes, q)
	}
	for _, p := range set.Payments {
		owner := p.BusinessUnit
		if owner == "" {
			owner = invoiceUnits[p.InvoiceRef]
		}
		if owner == unit {
			l.payments = append(l.payments, p)
		}
	}
	return l
}

// BusinessUnit returns the unit this ledger covers.
func (l *Ledger) BusinessUnit() string { return l.unit }

// Quotes returns the unit's quotes in their stored order.
func (l *Ledger) Quotes() []models.Quote { return l.quotes }

// Lines returns every invoice line of the unit.
func (l *Ledger) Lines() []models.InvoiceLine { return l.lines }

// Payments returns every allocation line of the unit.
func (l *Ledger) Payments() []models.PaymentAllocation { return l.payments }

// Quote looks a quote up by id.
func (l *Ledger) Quote(id string) (models.Quote, bool) {
	i, ok := l.quoteIndex[id]
	if !ok {
		return models.Quote{}, false
	}
	return l.quotes[i], true
}

// LinesForQuote returns the quote's invoice lines in stored order.
func (l *Ledger) LinesForQuote(quoteID string) []models.InvoiceLine {
	var out []models.InvoiceLine
	for _, line := range l.lines {
		if line.QuoteRef == quoteID {
			out = append(out, line)
		}
	}
	return out
}

// LinesForInvoice returns every line billed under one invoice number.
func (l *Ledger) LinesForInvoice(invoiceNo string) []models.InvoiceLine {
	var out []models.InvoiceLine
	for _, line := range l.lines {
		if line.InvoiceNo == invoiceNo {
			out = append(out, line)
		}
	}
	return out
}

// InvoiceNumbers lists the distinct invoice numbers in first-seen order.
func (l *Ledger) InvoiceNumbers() []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range l.lines {
		if !seen[line.InvoiceNo] {
			seen[line.InvoiceNo] = true
			out = append(out, line.InvoiceNo)
		}
	}
	return out
}

// HasInvoice reports whether any line carries the invoice number.
func (l *Ledger) HasInvoice(invoiceNo string) bool {
	for _, line := range l.lines {
		if line.InvoiceNo == invoiceNo {
			return true
		}
	}
	return false
}

// PaymentsForInvoice returns every allocation line referencing the invoice.
func (l *Ledger) PaymentsForInvoice(invoiceNo string) []models.PaymentAllocation {
	var out []models.PaymentAllocation
	for _, p := range l.payments {
		if p.InvoiceRef == invoiceNo {
			out = append(out, p)
		}
	}
	return out
}

// PaymentsForInvoiceQuote resolves the allocations of one (invoice, quote)
// pair. When none of the invoice's allocations carries a quote reference the
// invoice was paid before split allocations existed, and all of its payments
// are returned.
func (l *Ledger) PaymentsForInvoiceQuote(invoiceNo, quoteID string) []models.PaymentAllocation {
	forInvoice := l.PaymentsForInvoice(invoiceNo)

	allocated := false
	for _, p := range forInvoice {
		if p.QuoteRef != "" {
			allocated = true
			break
		}
	}
	if !allocated {
		return forInvoice
	}

	var out []models.PaymentAllocation
	for _, p := range forInvoice {
		if p.QuoteRef == quoteID {
			out = append(out, p)
		}
	}
	return out
}

// BilledOnInvoice sums the quote's lines under one invoice number.
func (l *Ledger) BilledOnInvoice(invoiceNo, quoteID string) decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.lines {
		if line.InvoiceNo == invoiceNo && line.QuoteRef == quoteID {
			total = total.Add(line.SplitAmount)
		}
	}
	return total
}

// CollectedOnInvoice sums the allocations resolving to (invoice, quote).
func (l *Ledger) CollectedOnInvoice(invoiceNo, quoteID string) decimal.Decimal {
	return sumPayments(l.PaymentsForInvoiceQuote(invoiceNo, quoteID))
}

// Billed is the sum of the quote's invoice lines.
func (l *Ledger) Billed(quoteID string) decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.LinesForQuote(quoteID) {
		total = total.Add(line.SplitAmount)
	}
	return total
}

// Collected sums the allocations resolving to the quote across its distinct invoices.
func (l *Ledger) Collected(quoteID string) decimal.Decimal {
	total := decimal.Zero
	for _, invoiceNo := range l.InvoicesOfQuote(quoteID) {
		total = total.Add(l.CollectedOnInvoice(invoiceNo, quoteID))
	}
	return total
}

// Unbilled is the quote's value minus what has been billed. It may be negative.
func (l *Ledger) Unbilled(quoteID string) decimal.Decimal {
	q, _ := l.Quote(quoteID)
	return q.TotalValue.Sub(l.Billed(quoteID))
}

// Outstanding is billed minus collected for the quote.
func (l *Ledger) Outstanding(quoteID string) decimal.Decimal {
	return l.Billed(quoteID).Sub(l.Collected(quoteID))
}

// QuoteDue is the per-quote position under one invoice.
type QuoteDue struct {
	QuoteID string
	Billed  decimal.Decimal
	Paid    decimal.Decimal
	Due     decimal.Decimal
}

// QuoteDues lists the position of every quote billed on the invoice, ordered by quote id.
func (l *Ledger) QuoteDues(invoiceNo string) []QuoteDue {
	var ids []string
	seen := map[string]bool{}
	for _, line := range l.LinesForInvoice(invoiceNo) {
		if !seen[line.QuoteRef] {
			seen[line.QuoteRef] = true
			ids = append(ids, line.QuoteRef)
		}
	}
	sort.Strings(ids)

	dues := make([]QuoteDue, 0, len(ids))
	for _, id := range ids {
		billed := l.BilledOnInvoice(invoiceNo, id)
		paid := l.CollectedOnInvoice(invoiceNo, id)
		dues = append(dues, QuoteDue{QuoteID: id, Billed: billed, Paid: paid, Due: billed.Sub(paid)})
	}
	return dues
}

// InvoiceDue is the invoice's billed total minus every payment against it.
func (l *Ledger) InvoiceDue(invoiceNo string) decimal.Decimal {
	billed := decimal.Zero
	for _, line := range l.LinesForInvoice(invoiceNo) {
		billed = billed.Add(line.SplitAmount)
	}
	return billed.Sub(sumPayments(l.PaymentsForInvoice(invoiceNo)))
}

// UnpaidInvoices lists invoice numbers whose due is not cleared.
func (l *Ledger) UnpaidInvoices() []string {
	var out []string
	for _, no := range l.InvoiceNumbers() {
		if !IsCleared(l.InvoiceDue(no)) {
			out = append(out, no)
		}
	}
	return out
}

// Totals are unit-wide sums over every quote.
type Totals struct {
	Quoted    decimal.Decimal
	Billed    decimal.Decimal
	Collected decimal.Decimal
}

// Outstanding is billed minus collected.
func (t Totals) Outstanding() decimal.Decimal { return t.Billed.Sub(t.Collected) }

// Unbilled is quoted minus billed.
func (t Totals) Unbilled() decimal.Decimal { return t.Quoted.Sub(t.Billed) }

// Totals sums quote values, billed and collected over the unit's quotes.
func (l *Ledger) Totals() Totals {
	t := Totals{Quoted: decimal.Zero, Billed: decimal.Zero, Collected: decimal.Zero}
	for _, q := range l.quotes {
		t.Quoted = t.Quoted.Add(q.TotalValue)
		t.Billed = t.Billed.Add(l.Billed(q.ID))
		t.Collected = t.Collected.Add(l.Collected(q.ID))
	}
	return t
}

// InvoicesOfQuote lists the distinct invoice numbers billed against the quote.
func (l *Ledger) InvoicesOfQuote(quoteID string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range l.lines {
		if line.QuoteRef == quoteID && !seen[line.InvoiceNo] {
			seen[line.InvoiceNo] = true
			out = append(out, line.InvoiceNo)
		}
	}
	return out
}

func sumPayments(payments []models.PaymentAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
