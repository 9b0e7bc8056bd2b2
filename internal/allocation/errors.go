package allocation

import (
	"errors"
	"fmt"
)

// Constraints a commit can violate. A ValidationError matches its rule with errors.Is.
var (
	// ErrMissingAttachment is returned when no supporting document is attached.
	ErrMissingAttachment = errors.New("missing attachment")

	// ErrAllocationMismatch is returned when allocations do not add up to the amount received.
	ErrAllocationMismatch = errors.New("allocation mismatch")

	// ErrQuoteNotBilled is returned when a payment is allocated to a quote the invoice does not bill.
	ErrQuoteNotBilled = errors.New("quote not billed on invoice")

	// ErrExceedsDue is returned under the due cap policy when an allocation exceeds the quote's due.
	ErrExceedsDue = errors.New("allocation exceeds amount due")

	// ErrExceedsDetected is returned when an invoice item is mapped for more than was detected.
	ErrExceedsDetected = errors.New("allocation exceeds detected amount")

	// ErrUnknownInvoice is returned when no invoice line carries the invoice number.
	ErrUnknownInvoice = errors.New("unknown invoice")

	// ErrUnknownQuote is returned when a mapping references a quote that does not exist.
	ErrUnknownQuote = errors.New("unknown quote")

	// ErrUnknownPayment is returned when a payment line id does not exist.
	ErrUnknownPayment = errors.New("unknown payment")

	// ErrMissingInvoiceNumber is returned when an invoice mapping has no invoice number.
	ErrMissingInvoiceNumber = errors.New("missing invoice number")

	// ErrIncompleteQuote is returned when a quote lacks an id or a name.
	ErrIncompleteQuote = errors.New("quote id and name are required")

	// ErrDuplicateQuote is returned when a new quote reuses an existing id.
	ErrDuplicateQuote = errors.New("duplicate quote id")

	// ErrNegativeAmount is returned for any amount below zero.
	ErrNegativeAmount = errors.New("negative amount")

	// ErrNothingToCommit is returned when every amount is zero or every item is ignored.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// ValidationError blocks a commit. Rule is one of the sentinel errors above.
type ValidationError struct {
	Rule    error
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("%v: field '%s': %s (value: %v)", e.Rule, e.Field, e.Message, e.Value)
}

// Unwrap returns the violated rule.
func (e *ValidationError) Unwrap() error {
	return e.Rule
}

// NewValidationError creates a new ValidationError.
func NewValidationError(rule error, field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Rule:    rule,
		Field:   field,
		Value:   value,
		Message: message,
	}
}
