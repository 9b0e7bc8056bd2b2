package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NoDocument marks a document reference with nothing attached.
const NoDocument = "None"

// DateLayout is the calendar-date form used for every persisted date.
const DateLayout = "2006-01-02"

// QuoteStatus records how a quote entered the ledger.
type QuoteStatus string

const (
	QuoteOpen   QuoteStatus = "Open"   // extracted from an agreement and confirmed
	QuoteManual QuoteStatus = "Manual" // entered by hand
	QuoteAuto   QuoteStatus = "Auto"   // created inline while mapping an invoice
)

// Quote is one contractual scope-of-work item.
type Quote struct {
	ID            string          // Unique quote identifier, e.g. QT-2501-1
	BusinessUnit  string          // Top-level partition owning the quote
	ProjectName   string          // Scope-of-work title
	TotalValue    decimal.Decimal // Contract value; ceiling for billed lines
	AgreementDate time.Time       // Date of the agreement section
	Status        QuoteStatus     // Open, Manual or Auto
	AgreementFile string          // Vault reference or NoDocument
}

// InvoiceLine is the portion of one invoice billed against one quote.
// Several lines may share an InvoiceNo.
type InvoiceLine struct {
	InvoiceNo       string
	QuoteRef        string
	BusinessUnit    string
	Date            time.Time
	SplitAmount     decimal.Decimal
	Description     string
	InvoiceFile     string
	DeclarationFile string
}

// PaymentAllocation is the slice of one received payment applied to an
// (invoice, quote) pair. All lines of one physical payment share ParentPaymentID.
type PaymentAllocation struct {
	PaymentID       string // Unique per allocation line, <parent>-<n>
	ParentPaymentID string // Physical payment event
	InvoiceRef      string
	QuoteRef        string // Empty for legacy, invoice-only rows
	BusinessUnit    string
	Date            time.Time
	Amount          decimal.Decimal
	ProofFile       string // Bank proof
	FormCFile       string // Tax certificate
	DeclarationFile string // Payment declaration
}

// HasProof reports whether a bank proof is attached.
func (p PaymentAllocation) HasProof() bool { return Attached(p.ProofFile) }

// HasFormC reports whether a Form C certificate is attached.
func (p PaymentAllocation) HasFormC() bool { return Attached(p.FormCFile) }

// HasDeclaration reports whether a payment declaration is attached.
func (p PaymentAllocation) HasDeclaration() bool { return Attached(p.DeclarationFile) }

// Attached reports whether a document reference points at a stored document.
func Attached(ref string) bool {
	return ref != "" && ref != NoDocument
}

// DocumentRef normalises an optional document reference.
func DocumentRef(ref string) string {
	if ref == "" {
		return NoDocument
	}
	return ref
}

// RecordSet holds the three confirmed entity sets of a business unit.
type RecordSet struct {
	Quotes       []Quote
	InvoiceLines []InvoiceLine
	Payments     []PaymentAllocation
}

// Clone returns a copy whose slices can be appended to without touching the original.
func (rs *RecordSet) Clone() *RecordSet {
	if rs == nil {
		return &RecordSet{}
	}
	return &RecordSet{
		Quotes:       append([]Quote(nil), rs.Quotes...),
		InvoiceLines: append([]InvoiceLine(nil), rs.InvoiceLines...),
		Payments:     append([]PaymentAllocation(nil), rs.Payments...),
	}
}

// Empty reports whether the set holds no records at all.
func (rs *RecordSet) Empty() bool {
	return rs == nil || len(rs.Quotes)+len(rs.InvoiceLines)+len(rs.Payments) == 0
}
