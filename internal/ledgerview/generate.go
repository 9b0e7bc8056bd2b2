package ledgerview

import (
	"time"

	"finledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// Generate walks the unit's quotes in stored order and returns the report rows.
//
// Under each quote, lines are grouped by invoice number. A group emits one
// INVOICE row per line, then the payments resolving to (invoice, quote), then
// one SUB_SUM row, so a quote billed twice on one invoice never counts its
// payments twice. The output depends only on the ledger and asOf.
func Generate(l *ledger.Ledger, asOf time.Time) []Row {
	var rows []Row
	grandBilled, grandCollected := decimal.Zero, decimal.Zero

	for _, q := range l.Quotes() {
		billed := l.Billed(q.ID)
		collected := l.Collected(q.ID)
		unbilled := q.TotalValue.Sub(billed)

		rows = append(rows, QuoteRow{Quote: q, Collected: collected, Unbilled: unbilled})

		for _, invoiceNo := range l.InvoicesOfQuote(q.ID) {
			groupBilled := decimal.Zero
			for _, line := range l.LinesForQuote(q.ID) {
				if line.InvoiceNo != invoiceNo {
					continue
				}
				groupBilled = groupBilled.Add(line.SplitAmount)
				rows = append(rows, InvoiceRow{Line: line})
			}

			groupCollected := decimal.Zero
			for _, p := range l.PaymentsForInvoiceQuote(invoiceNo, q.ID) {
				groupCollected = groupCollected.Add(p.Amount)
				rows = append(rows, PaymentRow{Payment: p})
			}

			rows = append(rows, SubSummaryRow{InvoiceNo: invoiceNo, Billed: groupBilled, Collected: groupCollected})
		}

		rows = append(rows,
			SummaryRow{QuoteID: q.ID, Billed: billed, Collected: collected, Unbilled: unbilled},
			SpacerRow{},
		)

		grandBilled = grandBilled.Add(billed)
		grandCollected = grandCollected.Add(collected)
	}

	rows = append(rows, GrandTotalRow{AsOf: asOf, Billed: grandBilled, Collected: grandCollected})
	return rows
}

// Records flattens rows into their tabular form.
func Records(rows []Row) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out
}
