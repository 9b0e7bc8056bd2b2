package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"finledger/internal/logger"
)

// Storage backends for the ledger record sets.
const (
	StoreExcel  = "excel"
	StoreSheets = "sheets"
)

// Vault backends for attached documents.
const (
	VaultLocal = "local"
	VaultGCS   = "gcs"
)

// Text sources used to read uploaded documents.
const (
	TextPlain      = "plain"
	TextDocumentAI = "documentai"
	TextVision     = "vision"
)

type Config struct {
	// Ledger storage
	LedgerStore    string
	LedgerFile     string
	GoogleSheetURL string

	// Document vault
	VaultBackend   string
	VaultDir       string
	GCSVaultBucket string

	// Text extraction
	TextSource                 string
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Optional: OpenAI completion of incomplete invoice candidates
	OpenAIAPIKey string
	OpenAIModel  string

	// Allocation policies
	AllocationCapAtDue    bool
	InvoiceOverAllocation string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		LedgerStore:                strings.ToLower(getEnv("LEDGER_STORE", StoreExcel)),
		LedgerFile:                 getEnv("LEDGER_FILE", "Finance_Master.xlsx"),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		VaultBackend:               strings.ToLower(getEnv("VAULT_BACKEND", VaultLocal)),
		VaultDir:                   getEnv("VAULT_DIR", "Master_Vault"),
		GCSVaultBucket:             getEnv("GCS_VAULT_BUCKET", ""),
		TextSource:                 strings.ToLower(getEnv("TEXT_SOURCE", TextPlain)),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AllocationCapAtDue:         getEnvBool("ALLOCATION_CAP_AT_DUE", false),
		InvoiceOverAllocation:      strings.ToLower(getEnv("INVOICE_OVERALLOCATION", "block")),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.LedgerStore {
	case StoreExcel:
		if c.LedgerFile == "" {
			return fmt.Errorf("LEDGER_FILE is required for the excel store")
		}
	case StoreSheets:
		if c.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required for the sheets store")
		}
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q", c.LedgerStore)
	}

	switch c.VaultBackend {
	case VaultLocal:
		if c.VaultDir == "" {
			return fmt.Errorf("VAULT_DIR is required for the local vault")
		}
	case VaultGCS:
		if c.GCSVaultBucket == "" {
			return fmt.Errorf("GCS_VAULT_BUCKET is required for the gcs vault")
		}
	default:
		return fmt.Errorf("unknown VAULT_BACKEND %q", c.VaultBackend)
	}

	switch c.TextSource {
	case TextPlain, TextVision:
	case TextDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for Document AI")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for Document AI")
		}
	default:
		return fmt.Errorf("unknown TEXT_SOURCE %q", c.TextSource)
	}

	switch c.InvoiceOverAllocation {
	case "block", "warn":
	default:
		return fmt.Errorf("INVOICE_OVERALLOCATION must be block or warn, got %q", c.InvoiceOverAllocation)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// CompletionEnabled reports whether incomplete invoice candidates may be sent to OpenAI.
func (c *Config) CompletionEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
