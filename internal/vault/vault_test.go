package vault

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		want    string
		wantErr bool
	}{
		{
			name: "plain",
			doc:  Document{Unit: "Acme", EntityID: "QT-2501-1", Category: CategoryAgreements, Name: "sow.pdf"},
			want: "Acme/QT-2501-1/Agreements/sow.pdf",
		},
		{
			name: "path in name is dropped",
			doc:  Document{Unit: "Acme", EntityID: "INV-1", Category: CategoryInvoices, Name: "../../etc/passwd"},
			want: "Acme/INV-1/Invoices/passwd",
		},
		{
			name: "unsafe characters",
			doc:  Document{Unit: "Acme & Co", EntityID: "PAY-1", Category: CategoryPayments, Name: "proof?.pdf"},
			want: "Acme _ Co/PAY-1/Payments/proof_.pdf",
		},
		{
			name:    "unknown category",
			doc:     Document{Unit: "Acme", EntityID: "X", Category: "Misc", Name: "a.pdf"},
			wantErr: true,
		},
		{
			name:    "empty entity",
			doc:     Document{Unit: "Acme", Category: CategoryInvoices, Name: "a.pdf"},
			wantErr: true,
		},
		{
			name:    "dots only",
			doc:     Document{Unit: "Acme", EntityID: "INV-1", Category: CategoryInvoices, Name: ".."},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.doc.Key()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalVaultPutOpen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	v := NewLocalVault(root)

	ref, err := v.Put(ctx, Document{Unit: "Acme", EntityID: "INV-1", Category: CategoryInvoices, Name: "inv.pdf"}, strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Acme/INV-1/Invoices/inv.pdf", ref)

	_, err = os.Stat(filepath.Join(root, "Acme", "INV-1", "Invoices", "inv.pdf"))
	require.NoError(t, err)

	rc, err := v.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestLocalVaultReplaces(t *testing.T) {
	ctx := context.Background()
	v := NewLocalVault(t.TempDir())
	doc := Document{Unit: "Acme", EntityID: "PAY-1", Category: CategoryPayments, Name: "proof.pdf"}

	_, err := v.Put(ctx, doc, strings.NewReader("old"))
	require.NoError(t, err)
	ref, err := v.Put(ctx, doc, strings.NewReader("new"))
	require.NoError(t, err)

	rc, err := v.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "new", string(data))
}

func TestLocalVaultOpenErrors(t *testing.T) {
	ctx := context.Background()
	v := NewLocalVault(t.TempDir())

	_, err := v.Open(ctx, "Acme/INV-9/Invoices/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = v.Open(ctx, "../outside.pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = v.Open(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
