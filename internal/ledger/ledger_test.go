package ledger

import (
	"testing"
	"time"

	"finledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var jan = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func fixture() *models.RecordSet {
	return &models.RecordSet{
		Quotes: []models.Quote{
			{ID: "QT-A", BusinessUnit: "Acme", ProjectName: "Site", TotalValue: dec("3000")},
			{ID: "QT-B", BusinessUnit: "Acme", ProjectName: "App", TotalValue: dec("8000")},
			{ID: "QT-X", BusinessUnit: "Other", ProjectName: "Elsewhere", TotalValue: dec("500")},
		},
		InvoiceLines: []models.InvoiceLine{
			{InvoiceNo: "INV-1", QuoteRef: "QT-B", BusinessUnit: "Acme", Date: jan, SplitAmount: dec("7000")},
			{InvoiceNo: "INV-1", QuoteRef: "QT-A", BusinessUnit: "Acme", Date: jan, SplitAmount: dec("3000")},
			{InvoiceNo: "INV-9", QuoteRef: "QT-X", BusinessUnit: "Other", Date: jan, SplitAmount: dec("500")},
		},
		Payments: []models.PaymentAllocation{
			{PaymentID: "P-1", ParentPaymentID: "P", InvoiceRef: "INV-1", QuoteRef: "QT-A", BusinessUnit: "Acme", Amount: dec("3000")},
			{PaymentID: "P-2", ParentPaymentID: "P", InvoiceRef: "INV-1", QuoteRef: "QT-B", BusinessUnit: "Acme", Amount: dec("4000")},
			// schema v1 row: unit resolved through its invoice
			{PaymentID: "OLD-1", InvoiceRef: "INV-9", Amount: dec("200")},
		},
	}
}

func TestNewPartitionsByBusinessUnit(t *testing.T) {
	l := New("Acme", fixture())

	assert.Len(t, l.Quotes(), 2)
	assert.Len(t, l.Lines(), 2)
	assert.Len(t, l.Payments(), 2)

	other := New("Other", fixture())
	require.Len(t, other.Payments(), 1)
	assert.Equal(t, "OLD-1", other.Payments()[0].PaymentID)

	empty := New("Nobody", nil)
	assert.Empty(t, empty.Quotes())
}

func TestDerivedAggregates(t *testing.T) {
	l := New("Acme", fixture())

	assert.True(t, dec("3000").Equal(l.Billed("QT-A")))
	assert.True(t, dec("3000").Equal(l.Collected("QT-A")))
	assert.True(t, l.Unbilled("QT-A").IsZero())

	assert.True(t, dec("7000").Equal(l.Billed("QT-B")))
	assert.True(t, dec("4000").Equal(l.Collected("QT-B")))
	assert.True(t, dec("1000").Equal(l.Unbilled("QT-B")))
	assert.True(t, dec("3000").Equal(l.Outstanding("QT-B")))

	totals := l.Totals()
	assert.True(t, dec("11000").Equal(totals.Quoted))
	assert.True(t, dec("10000").Equal(totals.Billed))
	assert.True(t, dec("7000").Equal(totals.Collected))
	assert.True(t, dec("3000").Equal(totals.Outstanding()))
}

func TestUnbilledMayBeNegative(t *testing.T) {
	set := &models.RecordSet{
		Quotes:       []models.Quote{{ID: "Q", BusinessUnit: "U", TotalValue: dec("100")}},
		InvoiceLines: []models.InvoiceLine{{InvoiceNo: "I", QuoteRef: "Q", BusinessUnit: "U", SplitAmount: dec("150")}},
	}
	assert.True(t, dec("-50").Equal(New("U", set).Unbilled("Q")))
}

func TestQuoteDuesOrderedByQuoteID(t *testing.T) {
	dues := New("Acme", fixture()).QuoteDues("INV-1")
	require.Len(t, dues, 2)

	assert.Equal(t, "QT-A", dues[0].QuoteID)
	assert.True(t, dues[0].Due.IsZero())
	assert.Equal(t, "QT-B", dues[1].QuoteID)
	assert.True(t, dec("3000").Equal(dues[1].Due))
}

func TestPaymentsForInvoiceQuoteLegacyFallback(t *testing.T) {
	set := &models.RecordSet{
		Quotes: []models.Quote{
			{ID: "Q1", BusinessUnit: "U", TotalValue: dec("1000")},
			{ID: "Q2", BusinessUnit: "U", TotalValue: dec("1000")},
		},
		InvoiceLines: []models.InvoiceLine{
			{InvoiceNo: "I", QuoteRef: "Q1", BusinessUnit: "U", SplitAmount: dec("500")},
			{InvoiceNo: "I", QuoteRef: "Q2", BusinessUnit: "U", SplitAmount: dec("500")},
		},
		Payments: []models.PaymentAllocation{
			{PaymentID: "A", InvoiceRef: "I", BusinessUnit: "U", Amount: dec("100")},
			{PaymentID: "B", InvoiceRef: "I", BusinessUnit: "U", Amount: dec("50")},
		},
	}
	l := New("U", set)

	// no quote refs at all: every payment of the invoice resolves to each quote
	assert.Len(t, l.PaymentsForInvoiceQuote("I", "Q1"), 2)
	assert.Len(t, l.PaymentsForInvoiceQuote("I", "Q2"), 2)

	// one allocated row switches the invoice to strict matching
	set.Payments = append(set.Payments, models.PaymentAllocation{
		PaymentID: "C", InvoiceRef: "I", QuoteRef: "Q2", BusinessUnit: "U", Amount: dec("10"),
	})
	l = New("U", set)
	assert.Empty(t, l.PaymentsForInvoiceQuote("I", "Q1"))
	got := l.PaymentsForInvoiceQuote("I", "Q2")
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].PaymentID)
}

func TestIsClearedBoundary(t *testing.T) {
	assert.True(t, IsCleared(dec("0.999")))
	assert.True(t, IsCleared(dec("-5")))
	assert.False(t, IsCleared(dec("1.000")))
	assert.False(t, IsCleared(dec("4000")))
}

func TestPercent(t *testing.T) {
	assert.True(t, dec("60").Equal(Percent(dec("6000"), dec("10000"))))
	assert.True(t, Percent(dec("10"), decimal.Zero).IsZero())
}

func TestUnpaidInvoices(t *testing.T) {
	l := New("Acme", fixture())
	assert.Equal(t, []string{"INV-1"}, l.UnpaidInvoices())
	assert.True(t, dec("3000").Equal(l.InvoiceDue("INV-1")))
}
