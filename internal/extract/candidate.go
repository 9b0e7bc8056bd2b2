package extract

import (
	"time"

	"finledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Names of fields that can fall back to a default.
const (
	FieldID         = "id"
	FieldTitle      = "title"
	FieldAmount     = "amount"
	FieldDate       = "date"
	FieldItems      = "items"
	FieldInvoiceRef = "invoice_ref"
)

// DraftInvoiceNo is the placeholder used when no invoice number is found.
const DraftInvoiceNo = "DRAFT"

// QuoteCandidate is one scope-of-work section found in an agreement.
type QuoteCandidate struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
	Content  string          `json:"content"`
	Defaults []string        `json:"defaults,omitempty"`
}

// InvoiceItem is one billed row detected in an invoice table.
type InvoiceItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceCandidate is an invoice header plus its detected line items.
type InvoiceCandidate struct {
	InvoiceNo string          `json:"invoice_no"`
	Total     decimal.Decimal `json:"total"`
	Date      time.Time       `json:"date"`
	Items     []InvoiceItem   `json:"items"`
	Defaults  []string        `json:"defaults,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// PaymentCandidate is what could be read from a payment proof.
type PaymentCandidate struct {
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	InvoiceRef string          `json:"invoice_ref,omitempty"`
	Defaults   []string        `json:"defaults,omitempty"`
}

// Defaulted reports whether field was filled with a default.
func (c InvoiceCandidate) Defaulted(field string) bool {
	return contains(c.Defaults, field)
}

// Extractor runs the heuristics. The clock supplies "today" for date defaults
// and quote id prefixes.
type Extractor struct {
	now func() time.Time
	log zerolog.Logger
}

// New creates an extractor using the wall clock.
func New() *Extractor {
	return NewWithClock(time.Now)
}

// NewWithClock creates an extractor with an explicit clock (for testing).
func NewWithClock(now func() time.Time) *Extractor {
	return &Extractor{
		now: now,
		log: logger.WithComponent("extract"),
	}
}

func (e *Extractor) today() time.Time {
	return truncateDay(e.now())
}

func (e *Extractor) reportDefaults(kind string, defaults []string) {
	if len(defaults) == 0 {
		return
	}
	e.log.Warn().
		Str("candidate", kind).
		Strs("defaults", defaults).
		Msg("Extraction fell back to defaults")
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
