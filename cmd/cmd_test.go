package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"finledger/internal/allocation"
	"finledger/internal/extract"
	"finledger/internal/textsource"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllocations(t *testing.T) {
	got, err := parseAllocations([]string{"QT-1=8,000", " QT-2 = 4000.50"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(8000).Equal(got["QT-1"]))
	assert.True(t, decimal.RequireFromString("4000.50").Equal(got["QT-2"]))

	_, err = parseAllocations([]string{"QT-1"})
	assert.Error(t, err)

	_, err = parseAllocations([]string{"QT-1=10", "QT-1=20"})
	assert.ErrorContains(t, err, "more than once")

	_, err = parseAllocations([]string{"QT-1=ten"})
	assert.ErrorContains(t, err, "invalid --alloc")
}

func TestParseAmountFlag(t *testing.T) {
	d, err := parseAmountFlag("received", "₹ 1,250.50")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", d.String())

	d, err = parseAmountFlag("value", "0")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseAmountFlag("value", "")
	assert.ErrorContains(t, err, "--value")
}

func TestMappingFileToMapping(t *testing.T) {
	raw := `{
	  "invoice_no": " INV-2025-014 ",
	  "date": "2025-04-10",
	  "items": [
	    {"description": "Website build", "detected": 3000, "action": "existing", "quote_id": "QT-1", "amount": "3000"},
	    {"description": "Hosting", "detected": "500", "action": "NEW", "quote_id": "QT-9", "amount": 500, "project_name": "Hosting", "quote_value": 1200},
	    {"description": "Tax", "detected": 90}
	  ]
	}`
	var f MappingFile
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	m, err := f.toMapping()
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-014", m.InvoiceNo)
	assert.Equal(t, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), m.Date)
	require.Len(t, m.Items, 3)
	assert.Equal(t, allocation.MapExisting, m.Items[0].Action)
	assert.Equal(t, allocation.MapNew, m.Items[1].Action)
	assert.True(t, decimal.NewFromInt(1200).Equal(m.Items[1].QuoteValue))
	assert.Equal(t, allocation.MapIgnore, m.Items[2].Action)

	f.Items[0].Action = "split"
	_, err = f.toMapping()
	assert.ErrorContains(t, err, "unknown action")
}

func TestMappingTemplate(t *testing.T) {
	c := extract.InvoiceCandidate{
		InvoiceNo: "INV-7",
		Date:      time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Items: []extract.InvoiceItem{
			{Description: "Design", Amount: decimal.NewFromInt(700)},
		},
	}

	m := mappingTemplate(c)
	assert.Equal(t, "INV-7", m.InvoiceNo)
	assert.Equal(t, "2025-05-02", m.Date)
	require.Len(t, m.Items, 1)
	assert.Equal(t, "existing", m.Items[0].Action)
	assert.True(t, m.Items[0].Amount.Equal(m.Items[0].Detected))
	assert.Empty(t, m.Items[0].QuoteID)
}

func TestFindDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.txt", "sheet.xlsx", filepath.Join("sub", "c.PNG")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	files, err := findDocuments(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "sub", "c.PNG"),
	}, files)
}

func TestGetNumWorkers(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "")
	assert.Equal(t, 12, getNumWorkers())

	t.Setenv("BATCH_WORKERS", "3")
	assert.Equal(t, 3, getNumWorkers())

	t.Setenv("BATCH_WORKERS", "-1")
	assert.Equal(t, 12, getNumWorkers())
}

func TestScanInParallelKeepsOrder(t *testing.T) {
	files := []string{"/in/one.txt", "/in/two.txt", "/in/three.txt", "/in/four.txt"}
	var calls int32

	results := scanInParallel(context.Background(), files, 3, func(ctx context.Context, path string) ScanResult {
		atomic.AddInt32(&calls, 1)
		if filepath.Base(path) == "two.txt" {
			return ScanResult{Status: scanError, Error: "boom"}
		}
		return ScanResult{Status: scanSuccess}
	}, zerolog.Nop())

	assert.EqualValues(t, len(files), calls)
	require.Len(t, results, len(files))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, filepath.Base(files[i]), r.Filename)
	}
	assert.Equal(t, scanError, results[1].Status)
	assert.Equal(t, scanSuccess, results[3].Status)
}

func TestExtractPaymentReadsFirstPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.txt")
	page1 := "Transfer confirmation\nInvoice INV-2025-014\nDate: 05/03/2025\nAmount: USD 1,200.00"
	page2 := "Account activity\nInvoice INV-2025-099\n12/03/2025 Incoming USD 98,000.00"
	require.NoError(t, os.WriteFile(path, []byte(page1+"\f"+page2), 0o644))

	got, err := extractPayment(context.Background(), textsource.NewPlainSource(), path, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1200").Equal(got.Amount), "got %s", got.Amount)
	assert.Equal(t, "INV-2025-014", got.InvoiceRef)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Empty(t, got.Defaults)
}

func TestPaymentRecordHelpListsAnyDocument(t *testing.T) {
	assert.NotContains(t, paymentRecordCmd.Long, "A bank proof is required")
	for _, flag := range []string{"--proof", "--form-c", "--declaration"} {
		assert.Contains(t, paymentRecordCmd.Long, flag)
	}
}

func TestScanFileWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inv.txt")
	require.NoError(t, os.WriteFile(path, []byte("Invoice No: INV-2025-014\nDate: 10/04/2025\nGrand Total: 3,000.00"), 0o644))
	templates := filepath.Join(dir, "mappings")
	require.NoError(t, os.MkdirAll(templates, 0o755))

	r := scanFile(context.Background(), textsource.NewPlainSource(), nil, path, templates, zerolog.Nop(), false)
	require.NotNil(t, r.Invoice)
	assert.Equal(t, "INV-2025-014", r.Invoice.InvoiceNo)
	assert.Equal(t, filepath.Join(templates, "inv.mapping.json"), r.Template)

	data, err := os.ReadFile(r.Template)
	require.NoError(t, err)
	var m MappingFile
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "INV-2025-014", m.InvoiceNo)

	missing := scanFile(context.Background(), textsource.NewPlainSource(), nil, filepath.Join(dir, "gone.txt"), "", zerolog.Nop(), false)
	assert.Equal(t, scanError, missing.Status)
	assert.Contains(t, missing.Error, "file not found")
}

func TestRenderDocument(t *testing.T) {
	doc := &textsource.Document{Pages: []textsource.Page{
		{Number: 1, Text: "Invoice INV-1\n", Tables: []textsource.Table{{{"Item", "Amount"}, {"Design", "700"}}}},
		{Number: 2, Text: "Thank you"},
	}}

	out := renderDocument(doc)
	assert.Contains(t, out, "=== Page 1 ===\nInvoice INV-1\n")
	assert.Contains(t, out, "--- Table 1 ---\nItem | Amount\nDesign | 700\n")
	assert.Contains(t, out, "=== Page 2 ===\nThank you\n")
}

func TestUnitFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "view"}
	cmd.Flags().String("unit", "", "")
	require.NoError(t, cmd.Flags().Set("unit", ""))
	_, err := unitFlag(cmd)
	assert.ErrorContains(t, err, "business unit")

	require.NoError(t, cmd.Flags().Set("unit", "Acme"))
	unit, err := unitFlag(cmd)
	require.NoError(t, err)
	assert.Equal(t, "Acme", unit)
}
