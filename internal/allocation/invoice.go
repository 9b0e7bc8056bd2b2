package allocation

import (
	"fmt"
	"strings"
	"time"

	"finledger/internal/ledger"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// MappingAction says what to do with one detected invoice item.
type MappingAction string

const (
	MapExisting MappingAction = "existing"
	MapNew      MappingAction = "new"
	MapIgnore   MappingAction = "ignore"
)

// InvoiceDocuments are the references attached to an invoice.
type InvoiceDocuments struct {
	Invoice     string
	Declaration string
}

// ItemMapping assigns one detected item to a quote.
type ItemMapping struct {
	Description string
	Detected    decimal.Decimal // amount found on the invoice
	Action      MappingAction
	QuoteID     string
	Amount      decimal.Decimal // amount billed against the quote

	// For MapNew only.
	ProjectName string
	QuoteValue  decimal.Decimal // defaults to Amount
}

// InvoiceMapping is a confirmed invoice with one mapping per detected item.
type InvoiceMapping struct {
	InvoiceNo string
	Date      time.Time
	Documents InvoiceDocuments
	Items     []ItemMapping
}

// MappingResult holds the records created by an invoice mapping.
type MappingResult struct {
	Quotes   []models.Quote
	Lines    []models.InvoiceLine
	Warnings []string
}

// MapInvoiceToQuotes validates a mapping and returns the new invoice lines plus
// any quotes created inline (status Auto, dated with the invoice).
func (e *Engine) MapInvoiceToQuotes(l *ledger.Ledger, m InvoiceMapping) (*MappingResult, error) {
	invoiceNo := strings.TrimSpace(m.InvoiceNo)
	fields := map[string]interface{}{"business_unit": l.BusinessUnit(), "invoice_no": invoiceNo}

	if !models.Attached(m.Documents.Invoice) {
		return nil, e.reject(NewValidationError(ErrMissingAttachment, "invoice_file", nil,
			"an invoice document is required"), fields)
	}
	if invoiceNo == "" {
		return nil, e.reject(NewValidationError(ErrMissingInvoiceNumber, "invoice_no", nil,
			"invoice number is required"), fields)
	}

	date := m.Date
	if date.IsZero() {
		date = e.today()
	}

	result := &MappingResult{}
	created := map[string]bool{}

	for i, item := range m.Items {
		if item.Action == MapIgnore {
			continue
		}
		label := fmt.Sprintf("item %d", i+1)

		if item.Amount.IsNegative() {
			return nil, e.reject(NewValidationError(ErrNegativeAmount, label, item.Amount.String(),
				"amount cannot be negative"), fields)
		}
		if item.Amount.Sub(item.Detected).GreaterThan(Epsilon) {
			msg := fmt.Sprintf("%s: allocated %s exceeds detected %s",
				label, item.Amount.String(), item.Detected.String())
			if e.policy.OverAllocation == OverAllocationBlock {
				return nil, e.reject(NewValidationError(ErrExceedsDetected, label, item.Amount.String(), msg), fields)
			}
			result.Warnings = append(result.Warnings, msg)
		}

		quoteID := strings.TrimSpace(item.QuoteID)
		switch item.Action {
		case MapExisting:
			if _, ok := l.Quote(quoteID); !ok && !created[quoteID] {
				return nil, e.reject(NewValidationError(ErrUnknownQuote, label, quoteID,
					"quote does not exist"), fields)
			}
		case MapNew:
			name := strings.TrimSpace(item.ProjectName)
			if quoteID == "" || name == "" {
				return nil, e.reject(NewValidationError(ErrIncompleteQuote, label, quoteID,
					"a new quote needs an id and a name"), fields)
			}
			if _, ok := l.Quote(quoteID); ok {
				return nil, e.reject(NewValidationError(ErrDuplicateQuote, label, quoteID,
					"quote id already exists"), fields)
			}
			if !created[quoteID] {
				value := item.QuoteValue
				if value.IsZero() {
					value = item.Amount
				}
				result.Quotes = append(result.Quotes, models.Quote{
					ID:            quoteID,
					BusinessUnit:  l.BusinessUnit(),
					ProjectName:   name,
					TotalValue:    value,
					AgreementDate: date,
					Status:        models.QuoteAuto,
					AgreementFile: models.NoDocument,
				})
				created[quoteID] = true
			}
		default:
			return nil, e.reject(NewValidationError(ErrUnknownQuote, label, string(item.Action),
				"unknown mapping action"), fields)
		}

		if item.Amount.IsZero() {
			continue
		}
		result.Lines = append(result.Lines, models.InvoiceLine{
			InvoiceNo:       invoiceNo,
			QuoteRef:        quoteID,
			BusinessUnit:    l.BusinessUnit(),
			Date:            date,
			SplitAmount:     item.Amount,
			Description:     item.Description,
			InvoiceFile:     m.Documents.Invoice,
			DeclarationFile: models.DocumentRef(m.Documents.Declaration),
		})
	}

	if len(result.Lines) == 0 {
		return nil, e.reject(NewValidationError(ErrNothingToCommit, "", nil,
			"no item was mapped to a quote"), fields)
	}

	for _, w := range result.Warnings {
		e.log.Warn().Fields(fields).Msg(w)
	}
	e.log.Info().
		Fields(fields).
		Int("lines", len(result.Lines)).
		Int("new_quotes", len(result.Quotes)).
		Msg("Invoice mapped to quotes")
	return result, nil
}
