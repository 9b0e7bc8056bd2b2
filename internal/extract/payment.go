package extract

import (
	"regexp"
	"strings"
)

var invoiceRef = regexp.MustCompile(`INV-[A-Z0-9\-]+`)

// ExtractPayment reads amount, date and an optional invoice reference from a payment proof.
func ExtractPayment(text string) PaymentCandidate {
	return New().Payment(text)
}

// Payment reads the amount, date and invoice reference from payment proof
// text. Missing fields fall back to zero, today and empty, and are listed in
// Defaults.
func (e *Extractor) Payment(text string) PaymentCandidate {
	text = Normalize(text)

	var c PaymentCandidate
	amount, ok := FindAmount(text)
	c.Amount = amount.Value
	if !ok {
		c.Defaults = append(c.Defaults, FieldAmount)
	}

	if d, ok := FindDate(text); ok {
		c.Date = d
	} else {
		c.Date = e.today()
		c.Defaults = append(c.Defaults, FieldDate)
	}

	if ref := invoiceRef.FindString(text); ref != "" {
		c.InvoiceRef = strings.TrimRight(ref, "-")
	} else {
		c.Defaults = append(c.Defaults, FieldInvoiceRef)
	}

	e.reportDefaults("payment", c.Defaults)
	return c
}
