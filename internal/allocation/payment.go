package allocation

import (
	"fmt"
	"sort"
	"time"

	"finledger/internal/ledger"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// PaymentDocuments are the references attached to a payment. Empty means none.
type PaymentDocuments struct {
	Proof       string
	FormC       string
	Declaration string
}

func (d PaymentDocuments) any() bool {
	return models.Attached(d.Proof) || models.Attached(d.FormC) || models.Attached(d.Declaration)
}

// PaymentRequest is one received payment split across the quotes of an invoice.
type PaymentRequest struct {
	InvoiceNo   string
	Date        time.Time
	Received    decimal.Decimal
	Allocations map[string]decimal.Decimal // quote id -> amount
	Documents   PaymentDocuments
}

// RecordPayment validates a payment and returns its allocation lines, one per
// quote with a positive amount, in quote id order. All lines share a fresh
// parent payment id.
func (e *Engine) RecordPayment(l *ledger.Ledger, req PaymentRequest) ([]models.PaymentAllocation, error) {
	fields := map[string]interface{}{
		"business_unit": l.BusinessUnit(),
		"invoice_no":    req.InvoiceNo,
		"received":      req.Received.String(),
	}

	if !req.Documents.any() {
		return nil, e.reject(NewValidationError(ErrMissingAttachment, "documents", nil,
			"attach at least one of bank proof, Form C or declaration"), fields)
	}
	if !l.HasInvoice(req.InvoiceNo) {
		return nil, e.reject(NewValidationError(ErrUnknownInvoice, "invoice_no", req.InvoiceNo,
			"invoice has no billed lines"), fields)
	}
	if req.Received.IsNegative() {
		return nil, e.reject(NewValidationError(ErrNegativeAmount, "received", req.Received.String(),
			"amount received cannot be negative"), fields)
	}

	quoteIDs := make([]string, 0, len(req.Allocations))
	allocated := decimal.Zero
	for id, amount := range req.Allocations {
		if amount.IsNegative() {
			return nil, e.reject(NewValidationError(ErrNegativeAmount, "allocation", id,
				fmt.Sprintf("allocation %s is negative", amount.String())), fields)
		}
		allocated = allocated.Add(amount)
		quoteIDs = append(quoteIDs, id)
	}
	sort.Strings(quoteIDs)

	if !withinEpsilon(allocated, req.Received) {
		return nil, e.reject(NewValidationError(ErrAllocationMismatch, "", nil,
			fmt.Sprintf("Received: %s | Allocated: %s", req.Received.String(), allocated.String())), fields)
	}

	var positive []string
	for _, id := range quoteIDs {
		if req.Allocations[id].IsPositive() {
			positive = append(positive, id)
		}
	}
	if len(positive) == 0 {
		return nil, e.reject(NewValidationError(ErrNothingToCommit, "", nil,
			"every allocation is zero"), fields)
	}

	for _, id := range positive {
		billed := l.BilledOnInvoice(req.InvoiceNo, id)
		if billed.IsZero() {
			return nil, e.reject(NewValidationError(ErrQuoteNotBilled, "quote_id", id,
				fmt.Sprintf("invoice %s does not bill this quote", req.InvoiceNo)), fields)
		}
		if e.policy.CapAtDue {
			due := billed.Sub(l.CollectedOnInvoice(req.InvoiceNo, id))
			if req.Allocations[id].Sub(due).GreaterThan(Epsilon) {
				return nil, e.reject(NewValidationError(ErrExceedsDue, "quote_id", id,
					fmt.Sprintf("allocation %s exceeds due %s", req.Allocations[id].String(), due.String())), fields)
			}
		}
	}

	date := req.Date
	if date.IsZero() {
		date = e.today()
	}
	parent := e.newID()

	lines := make([]models.PaymentAllocation, 0, len(positive))
	for i, id := range positive {
		lines = append(lines, models.PaymentAllocation{
			PaymentID:       fmt.Sprintf("%s-%d", parent, i+1),
			ParentPaymentID: parent,
			InvoiceRef:      req.InvoiceNo,
			QuoteRef:        id,
			BusinessUnit:    l.BusinessUnit(),
			Date:            date,
			Amount:          req.Allocations[id],
			ProofFile:       models.DocumentRef(req.Documents.Proof),
			FormCFile:       models.DocumentRef(req.Documents.FormC),
			DeclarationFile: models.DocumentRef(req.Documents.Declaration),
		})
	}

	e.log.Info().
		Fields(fields).
		Str("parent_payment_id", parent).
		Int("lines", len(lines)).
		Msg("Payment allocated")
	return lines, nil
}

// UpdatePaymentDocuments replaces the Form C and declaration references of one
// allocation line. Empty values leave the existing reference alone. No other
// field of a payment can change.
func (e *Engine) UpdatePaymentDocuments(l *ledger.Ledger, paymentID string, docs PaymentDocuments) (models.PaymentAllocation, error) {
	fields := map[string]interface{}{"business_unit": l.BusinessUnit(), "payment_id": paymentID}

	for _, p := range l.Payments() {
		if p.PaymentID != paymentID {
			continue
		}
		if !models.Attached(docs.FormC) && !models.Attached(docs.Declaration) {
			return models.PaymentAllocation{}, e.reject(NewValidationError(ErrMissingAttachment, "documents", nil,
				"provide a Form C or declaration document"), fields)
		}
		if models.Attached(docs.FormC) {
			p.FormCFile = docs.FormC
		}
		if models.Attached(docs.Declaration) {
			p.DeclarationFile = docs.Declaration
		}
		return p, nil
	}
	return models.PaymentAllocation{}, e.reject(NewValidationError(ErrUnknownPayment, "payment_id", paymentID,
		"no allocation line with this id"), fields)
}
