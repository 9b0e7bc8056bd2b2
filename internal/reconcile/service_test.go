package reconcile

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"finledger/internal/allocation"
	"finledger/internal/ledgerview"
	"finledger/internal/store"
	"finledger/internal/vault"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testNow = time.Date(2025, 4, 30, 9, 30, 0, 0, time.UTC)

type fixture struct {
	repo  *store.MemoryRepository
	vault *vault.LocalVault
	svc   *Service
}

func newFixture(t *testing.T, initial *models.RecordSet, policy allocation.Policy) *fixture {
	t.Helper()
	repo := store.NewMemoryRepository(initial)
	v := vault.NewLocalVault(t.TempDir())

	var n int
	var mu sync.Mutex
	engine := allocation.NewEngineWithDeps(policy, func() time.Time { return testNow }, func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "PAY-" + string(rune('0'+n))
	})
	svc := NewService(repo, v, engine).WithClock(func() time.Time { return testNow })
	return &fixture{repo: repo, vault: v, svc: svc}
}

func billedQuotes() *models.RecordSet {
	return &models.RecordSet{
		Quotes: []models.Quote{
			{ID: "QT-A", BusinessUnit: "Acme", ProjectName: "Site", TotalValue: dec("3000"), Status: models.QuoteOpen},
			{ID: "QT-B", BusinessUnit: "Acme", ProjectName: "App", TotalValue: dec("7000"), Status: models.QuoteOpen},
		},
		InvoiceLines: []models.InvoiceLine{
			{InvoiceNo: "INV-1", QuoteRef: "QT-A", BusinessUnit: "Acme", SplitAmount: dec("3000"), InvoiceFile: "inv.pdf"},
			{InvoiceNo: "INV-1", QuoteRef: "QT-B", BusinessUnit: "Acme", SplitAmount: dec("7000"), InvoiceFile: "inv.pdf"},
		},
	}
}

func proof() PaymentAttachments {
	return PaymentAttachments{Proof: &Attachment{Name: "bank.pdf", Data: []byte("proof")}}
}

func TestAddQuotesStoresAgreement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, allocation.DefaultPolicy())

	quotes, err := f.svc.AddQuotes(ctx, "Acme", []allocation.QuoteInput{
		{ID: "QT-2504-1", ProjectName: "Website", TotalValue: dec("10000")},
		{ID: "QT-2504-2", ProjectName: "Hosting", TotalValue: dec("1200")},
	}, &Attachment{Name: "sow.pdf", Data: []byte("agreement")})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "Acme/QT-2504-1/Agreements/sow.pdf", quotes[0].AgreementFile)

	rc, err := f.vault.Open(ctx, quotes[1].AgreementFile)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "agreement", string(data))

	l := f.svc.Ledger(ctx, "Acme")
	assert.Len(t, l.Quotes(), 2)
	assert.Equal(t, 1, f.repo.Saves())
}

func TestAddQuotesRejectedDoesNotSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	_, err := f.svc.AddQuotes(ctx, "Acme", []allocation.QuoteInput{
		{ID: "QT-A", ProjectName: "Again", TotalValue: dec("1")},
	}, &Attachment{Name: "sow.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, allocation.ErrDuplicateQuote)
	assert.Equal(t, 0, f.repo.Saves())

	_, openErr := f.vault.Open(ctx, "Acme/QT-A/Agreements/sow.pdf")
	assert.ErrorIs(t, openErr, vault.ErrNotFound, "documents are stored only for valid changes")
}

func TestMapInvoiceCommitsLinesAndNewQuotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	res, err := f.svc.MapInvoice(ctx, "Acme", allocation.InvoiceMapping{
		InvoiceNo: "INV-2",
		Items: []allocation.ItemMapping{
			{Description: "Phase 2", Detected: dec("500"), Action: allocation.MapExisting, QuoteID: "QT-A", Amount: dec("500")},
			{Description: "Support", Detected: dec("250"), Action: allocation.MapNew, QuoteID: "QT-S", ProjectName: "Support", Amount: dec("250")},
		},
	}, &Attachment{Name: "inv2.pdf", Data: []byte("pdf")}, nil)
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, "Acme/INV-2/Invoices/inv2.pdf", res.Lines[0].InvoiceFile)
	assert.Equal(t, models.NoDocument, res.Lines[0].DeclarationFile)

	l := f.svc.Ledger(ctx, "Acme")
	assert.True(t, dec("3500").Equal(l.Billed("QT-A")))
	q, ok := l.Quote("QT-S")
	require.True(t, ok)
	assert.Equal(t, models.QuoteAuto, q.Status)
}

func TestMapInvoiceWithoutDocument(t *testing.T) {
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	_, err := f.svc.MapInvoice(context.Background(), "Acme", allocation.InvoiceMapping{
		InvoiceNo: "INV-2",
		Items:     []allocation.ItemMapping{{Detected: dec("1"), Action: allocation.MapExisting, QuoteID: "QT-A", Amount: dec("1")}},
	}, nil, nil)
	assert.ErrorIs(t, err, allocation.ErrMissingAttachment)
}

func TestRecordPaymentSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	lines, err := f.svc.RecordPayment(ctx, "Acme", allocation.PaymentRequest{
		InvoiceNo:   "INV-1",
		Received:    dec("10000"),
		Allocations: map[string]decimal.Decimal{"QT-A": dec("3000"), "QT-B": dec("7000")},
	}, proof())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "PAY-1", lines[0].ParentPaymentID)
	assert.Equal(t, "Acme/INV-1/Payments/bank.pdf", lines[0].ProofFile)

	assert.Empty(t, f.svc.UnpaidInvoices(ctx, "Acme"))

	rows := f.svc.LedgerView(ctx, "Acme")
	grand := rows[len(rows)-1].(ledgerview.GrandTotalRow)
	assert.Equal(t, ledgerview.StatusAllClear, grand.Status())
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), grand.AsOf)
}

func TestRecordPaymentMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	_, err := f.svc.RecordPayment(ctx, "Acme", allocation.PaymentRequest{
		InvoiceNo:   "INV-1",
		Received:    dec("10000"),
		Allocations: map[string]decimal.Decimal{"QT-A": dec("3000"), "QT-B": dec("6999")},
	}, proof())
	assert.ErrorIs(t, err, allocation.ErrAllocationMismatch)

	var verr *allocation.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Received: 10000 | Allocated: 9999", verr.Message)
	assert.Equal(t, 0, f.repo.Saves())
}

func TestUnpaidInvoicesAfterPartialPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	_, err := f.svc.RecordPayment(ctx, "Acme", allocation.PaymentRequest{
		InvoiceNo:   "INV-1",
		Received:    dec("6000"),
		Allocations: map[string]decimal.Decimal{"QT-A": dec("3000"), "QT-B": dec("3000")},
	}, proof())
	require.NoError(t, err)

	unpaid := f.svc.UnpaidInvoices(ctx, "Acme")
	require.Len(t, unpaid, 1)
	assert.True(t, dec("4000").Equal(unpaid[0].Due))
	require.Len(t, unpaid[0].Quotes, 2)
	assert.True(t, unpaid[0].Quotes[0].Due.IsZero())
	assert.True(t, dec("4000").Equal(unpaid[0].Quotes[1].Due))

	o := f.svc.Overview(ctx, "Acme")
	assert.True(t, dec("6000").Equal(o.Collected))
	assert.True(t, dec("4000").Equal(o.Outstanding))
}

func TestUpdatePaymentDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())

	lines, err := f.svc.RecordPayment(ctx, "Acme", allocation.PaymentRequest{
		InvoiceNo:   "INV-1",
		Received:    dec("3000"),
		Allocations: map[string]decimal.Decimal{"QT-A": dec("3000")},
	}, proof())
	require.NoError(t, err)

	updated, err := f.svc.UpdatePaymentDocuments(ctx, "Acme", lines[0].PaymentID, PaymentAttachments{
		Proof: &Attachment{Name: "other.pdf", Data: []byte("ignored")},
		FormC: &Attachment{Name: "formc.pdf", Data: []byte("form")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme/INV-1/Payments/formc.pdf", updated.FormCFile)
	assert.Equal(t, lines[0].ProofFile, updated.ProofFile)
	assert.True(t, dec("3000").Equal(updated.Amount))

	entries := f.svc.Compliance(ctx, "Acme")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].HasFormC)
	assert.False(t, entries[0].HasDeclaration)

	_, err = f.svc.UpdatePaymentDocuments(ctx, "Acme", "PAY-404-1", PaymentAttachments{
		FormC: &Attachment{Name: "formc.pdf", Data: []byte("form")},
	})
	assert.ErrorIs(t, err, allocation.ErrUnknownPayment)
}

func TestLoadFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.DefaultPolicy())
	f.repo.LoadErr = errors.New("sheet unreachable")

	assert.Empty(t, f.svc.Ledger(ctx, "Acme").Quotes(), "reads fall back to an empty ledger")

	_, err := f.svc.AddQuotes(ctx, "Acme", []allocation.QuoteInput{{ID: "QT-N", ProjectName: "New"}}, nil)
	var storageErr *store.StorageError
	assert.ErrorAs(t, err, &storageErr, "writes never run on top of a failed load")
	assert.Equal(t, 0, f.repo.Saves())
}

func TestSaveFailurePropagates(t *testing.T) {
	f := newFixture(t, nil, allocation.DefaultPolicy())
	f.repo.SaveErr = errors.New("disk full")

	_, err := f.svc.AddQuotes(context.Background(), "Acme", []allocation.QuoteInput{{ID: "QT-N", ProjectName: "New"}}, nil)
	assert.Error(t, err)
}

func TestConcurrentPaymentsAreSerialised(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billedQuotes(), allocation.Policy{CapAtDue: true})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RecordPayment(ctx, "Acme", allocation.PaymentRequest{
				InvoiceNo:   "INV-1",
				Received:    dec("3000"),
				Allocations: map[string]decimal.Decimal{"QT-A": dec("3000")},
			}, proof())
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, allocation.ErrExceedsDue)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "the second payment sees the first")
	assert.Len(t, f.repo.Snapshot().Payments, 1)
}
