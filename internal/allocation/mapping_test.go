package allocation

import (
	"errors"
	"testing"
	"time"

	"finledger/internal/ledger"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotesOnly() *ledger.Ledger {
	return ledger.New("Acme", &models.RecordSet{
		Quotes: []models.Quote{
			{ID: "QT-A", BusinessUnit: "Acme", ProjectName: "Site", TotalValue: dec("3000")},
		},
	})
}

var invoiceDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestMapInvoiceToQuotes(t *testing.T) {
	res, err := testEngine(DefaultPolicy()).MapInvoiceToQuotes(quotesOnly(), InvoiceMapping{
		InvoiceNo: "INV-7",
		Date:      invoiceDate,
		Documents: InvoiceDocuments{Invoice: "Invoices/inv7.pdf"},
		Items: []ItemMapping{
			{Description: "Site", Detected: dec("3000"), Action: MapExisting, QuoteID: "QT-A", Amount: dec("3000")},
			{Description: "App", Detected: dec("7000"), Action: MapNew, QuoteID: "QT-B", ProjectName: "App", Amount: dec("7000")},
			{Description: "Travel", Detected: dec("120"), Action: MapIgnore},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "QT-A", res.Lines[0].QuoteRef)
	assert.Equal(t, "QT-B", res.Lines[1].QuoteRef)
	assert.Equal(t, models.NoDocument, res.Lines[0].DeclarationFile)
	assert.Equal(t, "Invoices/inv7.pdf", res.Lines[1].InvoiceFile)

	require.Len(t, res.Quotes, 1)
	q := res.Quotes[0]
	assert.Equal(t, models.QuoteAuto, q.Status)
	assert.Equal(t, invoiceDate, q.AgreementDate)
	assert.True(t, dec("7000").Equal(q.TotalValue))
	assert.Empty(t, res.Warnings)
}

func TestMapInvoiceOverAllocationPolicy(t *testing.T) {
	mapping := InvoiceMapping{
		InvoiceNo: "INV-8",
		Documents: InvoiceDocuments{Invoice: "inv8.pdf"},
		Items: []ItemMapping{
			{Description: "Site", Detected: dec("1000"), Action: MapExisting, QuoteID: "QT-A", Amount: dec("1000.01")},
		},
	}

	_, err := testEngine(DefaultPolicy()).MapInvoiceToQuotes(quotesOnly(), mapping)
	assert.True(t, errors.Is(err, ErrExceedsDetected))

	res, err := testEngine(Policy{OverAllocation: OverAllocationWarn}).MapInvoiceToQuotes(quotesOnly(), mapping)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), res.Lines[0].Date)
}

func TestMapInvoiceRejections(t *testing.T) {
	item := func(action MappingAction, id, name string) ItemMapping {
		return ItemMapping{Detected: dec("100"), Action: action, QuoteID: id, ProjectName: name, Amount: dec("100")}
	}

	tests := []struct {
		name    string
		mapping InvoiceMapping
		rule    error
	}{
		{
			name:    "missing invoice document",
			mapping: InvoiceMapping{InvoiceNo: "I", Items: []ItemMapping{item(MapExisting, "QT-A", "")}},
			rule:    ErrMissingAttachment,
		},
		{
			name:    "new quote without name",
			mapping: InvoiceMapping{InvoiceNo: "I", Documents: InvoiceDocuments{Invoice: "f"}, Items: []ItemMapping{item(MapNew, "QT-Z", "")}},
			rule:    ErrIncompleteQuote,
		},
		{
			name:    "new quote reusing an id",
			mapping: InvoiceMapping{InvoiceNo: "I", Documents: InvoiceDocuments{Invoice: "f"}, Items: []ItemMapping{item(MapNew, "QT-A", "Dup")}},
			rule:    ErrDuplicateQuote,
		},
		{
			name:    "unknown existing quote",
			mapping: InvoiceMapping{InvoiceNo: "I", Documents: InvoiceDocuments{Invoice: "f"}, Items: []ItemMapping{item(MapExisting, "QT-404", "")}},
			rule:    ErrUnknownQuote,
		},
		{
			name:    "everything ignored",
			mapping: InvoiceMapping{InvoiceNo: "I", Documents: InvoiceDocuments{Invoice: "f"}, Items: []ItemMapping{item(MapIgnore, "", "")}},
			rule:    ErrNothingToCommit,
		},
		{
			name:    "blank invoice number",
			mapping: InvoiceMapping{InvoiceNo: "  ", Documents: InvoiceDocuments{Invoice: "f"}, Items: []ItemMapping{item(MapExisting, "QT-A", "")}},
			rule:    ErrMissingInvoiceNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := testEngine(DefaultPolicy()).MapInvoiceToQuotes(quotesOnly(), tt.mapping)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.rule), "got %v", err)
		})
	}
}

func TestAddQuotes(t *testing.T) {
	e := testEngine(DefaultPolicy())

	quotes, err := e.AddQuotes(quotesOnly(), []QuoteInput{
		{ID: "QT-2503-1", ProjectName: "Website", TotalValue: dec("10000"), AgreementFile: "Agreements/msa.pdf"},
		{ID: "QT-M", ProjectName: "Retainer", TotalValue: dec("500"), Manual: true},
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, models.QuoteOpen, quotes[0].Status)
	assert.Equal(t, "Agreements/msa.pdf", quotes[0].AgreementFile)
	assert.Equal(t, models.QuoteManual, quotes[1].Status)
	assert.Equal(t, models.NoDocument, quotes[1].AgreementFile)
	assert.Equal(t, "Acme", quotes[1].BusinessUnit)

	_, err = e.AddQuotes(quotesOnly(), []QuoteInput{{ID: "QT-A", ProjectName: "Again"}})
	assert.True(t, errors.Is(err, ErrDuplicateQuote))

	_, err = e.AddQuotes(quotesOnly(), []QuoteInput{{ID: "Q1", ProjectName: "x"}, {ID: "Q1", ProjectName: "y"}})
	assert.True(t, errors.Is(err, ErrDuplicateQuote))

	_, err = e.AddQuotes(quotesOnly(), []QuoteInput{{ID: "", ProjectName: "x"}})
	assert.True(t, errors.Is(err, ErrIncompleteQuote))

	_, err = e.AddQuotes(quotesOnly(), []QuoteInput{{ID: "Q2", ProjectName: "x", TotalValue: decimal.NewFromInt(-1)}})
	assert.True(t, errors.Is(err, ErrNegativeAmount))
}
