package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LEDGER_STORE", "LEDGER_FILE", "GOOGLE_SHEET_URL", "VAULT_BACKEND", "VAULT_DIR",
		"GCS_VAULT_BUCKET", "TEXT_SOURCE", "OPENAI_API_KEY", "ALLOCATION_CAP_AT_DUE",
		"INVOICE_OVERALLOCATION",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreExcel, cfg.LedgerStore)
	assert.Equal(t, "Finance_Master.xlsx", cfg.LedgerFile)
	assert.Equal(t, VaultLocal, cfg.VaultBackend)
	assert.Equal(t, "Master_Vault", cfg.VaultDir)
	assert.Equal(t, TextPlain, cfg.TextSource)
	assert.Equal(t, "block", cfg.InvoiceOverAllocation)
	assert.False(t, cfg.AllocationCapAtDue)
	assert.False(t, cfg.CompletionEnabled())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "sheets store without url",
			env:  map[string]string{"LEDGER_STORE": "sheets", "GOOGLE_SHEET_URL": ""},
			want: "GOOGLE_SHEET_URL",
		},
		{
			name: "gcs vault without bucket",
			env:  map[string]string{"VAULT_BACKEND": "gcs", "GCS_VAULT_BUCKET": ""},
			want: "GCS_VAULT_BUCKET",
		},
		{
			name: "document ai without processor",
			env: map[string]string{
				"TEXT_SOURCE":              "documentai",
				"GOOGLE_CLOUD_PROJECT":     "proj",
				"DOCUMENT_AI_PROCESSOR_ID": "",
			},
			want: "DOCUMENT_AI_PROCESSOR_ID",
		},
		{
			name: "unknown store",
			env:  map[string]string{"LEDGER_STORE": "postgres"},
			want: "LEDGER_STORE",
		},
		{
			name: "bad over-allocation policy",
			env:  map[string]string{"INVOICE_OVERALLOCATION": "ignore"},
			want: "INVOICE_OVERALLOCATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("ALLOCATION_CAP_AT_DUE", "true")
	assert.True(t, getEnvBool("ALLOCATION_CAP_AT_DUE", false))

	t.Setenv("ALLOCATION_CAP_AT_DUE", "not-a-bool")
	assert.True(t, getEnvBool("ALLOCATION_CAP_AT_DUE", true))
}
