package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	in := "Invoice No：INV-1\r\nTotal amount due now for develop-\nment work"
	assert.Equal(t, "Invoice No:INV-1\nTotal amount due now for development work", Normalize(in))
}

func TestFindAmountRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		rule string
	}{
		{
			name: "grand total beats larger unrelated numbers",
			text: "Account 99999999\nSubtotal 900.00\nGrand Total: $1,035.00\nTotal 1,035.00",
			want: "1035.00",
			rule: "label",
		},
		{
			name: "last occurrence of the label wins",
			text: "Total 100.00\nadjusted\nTotal 250.50",
			want: "250.50",
			rule: "label",
		},
		{
			name: "balance due outranks total",
			text: "Total: 5,000\nBalance Due: 2,000",
			want: "2000",
			rule: "label",
		},
		{
			name: "percentage on the label line is not the total",
			text: "Subtotal $1,000.00\nTotal (incl. 19% VAT): $1,190.00",
			want: "1190.00",
			rule: "label",
		},
		{
			name: "decimal amount beats a bare count on the label line",
			text: "Total for 3 items 450.00",
			want: "450.00",
			rule: "label",
		},
		{
			name: "marker anchored fallback takes the largest marked amount",
			text: "Reference 2025001\nPaid $300.00 and USD 1,200.50",
			want: "1200.50",
			rule: "marker",
		},
		{
			name: "global maximum as last resort",
			text: "amounts 12 and 40.5 and 7",
			want: "40.5",
			rule: "maximum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := FindAmount(tt.text)
			require.True(t, ok)
			assert.True(t, dec(tt.want).Equal(m.Value), "got %s", m.Value)
			assert.Equal(t, tt.rule, m.Rule)
		})
	}
}

func TestFindAmountNone(t *testing.T) {
	m, ok := FindAmount("no figures here, 0.00 only")
	assert.False(t, ok)
	assert.True(t, m.Value.IsZero())
}

func TestParseAmount(t *testing.T) {
	v, ok := ParseAmount("$10,000.00")
	require.True(t, ok)
	assert.True(t, dec("10000").Equal(v))

	_, ok = ParseAmount("0")
	assert.False(t, ok)

	_, ok = ParseAmount("abc")
	assert.False(t, ok)
}

func TestFindDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"iso", "issued 2025-01-15 for services", day(2025, 1, 15)},
		{"day first slash", "on the 03/02/2025 we", day(2025, 2, 3)},
		{"day first dots", "paid 15.01.2025", day(2025, 1, 15)},
		{"ordinal textual month", "signed 12th Jan 2025", day(2025, 1, 12)},
		{"month name first", "due January 5, 2025", day(2025, 1, 5)},
		{"labelled date wins over earlier unlabelled", "Ref 01/01/2024\nDate: 20/06/2025", day(2025, 6, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindDate(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := FindDate("no date at all")
	assert.False(t, ok)
}

func TestQuotesTwoSections(t *testing.T) {
	text := `MASTER SERVICES AGREEMENT
Date: 01/01/2025

1. Website Redesign
Scope of Work:
Full redesign of the corporate site.
Total: $10,000.00
Delivery by 15/02/2025

2. Mobile App
Scope of Work:
Native app for iOS and Android.
Total: $25,500.00
Delivery by 30/06/2025
`
	quotes := NewWithClock(fixedClock).Quotes(text)
	require.Len(t, quotes, 2)

	assert.Equal(t, "QT-2503-1", quotes[0].ID)
	assert.Equal(t, "Website Redesign", quotes[0].Title)
	assert.True(t, dec("10000").Equal(quotes[0].Amount))
	assert.Equal(t, day(2025, 2, 15), quotes[0].Date)
	assert.Empty(t, quotes[0].Defaults)

	assert.Equal(t, "QT-2503-2", quotes[1].ID)
	assert.Equal(t, "Mobile App", quotes[1].Title)
	assert.True(t, dec("25500").Equal(quotes[1].Amount))
	assert.Equal(t, day(2025, 6, 30), quotes[1].Date)
}

func TestQuotesSectionFallsBackToDocumentDate(t *testing.T) {
	text := "Agreement dated 05/05/2025\nSOW (SOW):\nsupport retainer USD 4,000\n"
	quotes := NewWithClock(fixedClock).Quotes(text)
	require.Len(t, quotes, 1)

	assert.Equal(t, day(2025, 5, 5), quotes[0].Date)
	assert.Equal(t, "Agreement dated 05/05/2025", quotes[0].Title)
	assert.True(t, dec("4000").Equal(quotes[0].Amount))
}

func TestQuotesWithoutMarker(t *testing.T) {
	quotes := NewWithClock(fixedClock).Quotes("Consulting agreement, no sections.")
	require.Len(t, quotes, 1)

	q := quotes[0]
	assert.Equal(t, "General Agreement", q.Title)
	assert.True(t, q.Amount.IsZero())
	assert.Equal(t, day(2025, 3, 14), q.Date)
	assert.ElementsMatch(t, []string{FieldTitle, FieldAmount, FieldDate}, q.Defaults)
}

func TestQuotesUntitledSection(t *testing.T) {
	quotes := NewWithClock(fixedClock).Quotes("Scope of Work:\nthing $10\n")
	require.Len(t, quotes, 1)
	assert.Equal(t, "Project Section 1", quotes[0].Title)
	assert.Contains(t, quotes[0].Defaults, FieldTitle)
}

func TestInvoiceWithTables(t *testing.T) {
	text := "ACME LTD\nInvoice No: INV-2025-014\nDate: 10/03/2025\nGrand Total: $13,000.00"
	tables := [][][]string{{
		{"Description", "Qty", "Amount"},
		{"Website redesign\nphase one", "1", "$3,000.00"},
		{"Mobile app build", "1", "10,000.00"},
		{"Notes", "", ""},
	}}

	inv := NewWithClock(fixedClock).Invoice(text, tables)

	assert.Equal(t, "INV-2025-014", inv.InvoiceNo)
	assert.True(t, dec("13000").Equal(inv.Total))
	assert.Equal(t, day(2025, 3, 10), inv.Date)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Website redesign phase one", inv.Items[0].Description)
	assert.True(t, dec("3000").Equal(inv.Items[0].Amount))
	assert.Equal(t, "Mobile app build", inv.Items[1].Description)
	assert.True(t, dec("10000").Equal(inv.Items[1].Amount))
	assert.Empty(t, inv.Defaults)
}

func TestInvoiceDefaults(t *testing.T) {
	inv := NewWithClock(fixedClock).Invoice("Bill for consulting, amount 750.00", nil)

	assert.Equal(t, DraftInvoiceNo, inv.InvoiceNo)
	assert.Equal(t, day(2025, 3, 14), inv.Date)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "General Services", inv.Items[0].Description)
	assert.True(t, dec("750").Equal(inv.Items[0].Amount))
	assert.True(t, inv.Defaulted(FieldID))
	assert.True(t, inv.Defaulted(FieldItems))
	assert.False(t, inv.Defaulted(FieldAmount))
}

func TestPayment(t *testing.T) {
	p := NewWithClock(fixedClock).Payment("Transfer receipt\nValue date: 02/04/2025\nRef: INV-2025-014\nAmount BDT 6,000.00")

	assert.True(t, dec("6000").Equal(p.Amount))
	assert.Equal(t, day(2025, 4, 2), p.Date)
	assert.Equal(t, "INV-2025-014", p.InvoiceRef)
	assert.Empty(t, p.Defaults)
}

func TestPaymentNeverFails(t *testing.T) {
	p := NewWithClock(fixedClock).Payment("")
	assert.True(t, p.Amount.IsZero())
	assert.Equal(t, day(2025, 3, 14), p.Date)
	assert.ElementsMatch(t, []string{FieldAmount, FieldDate, FieldInvoiceRef}, p.Defaults)
}
