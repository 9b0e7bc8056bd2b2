// Package store persists ledger record sets. Every backend keeps all business
// units in one set of sheets; Load and Save work on one unit at a time and
// leave the other units' rows untouched.
package store

import (
	"context"
	"errors"
	"fmt"

	"finledger/pkg/models"
)

// Repository loads and saves the records of one business unit.
// Load returns an empty set for a unit that has no records yet.
type Repository interface {
	Load(ctx context.Context, unit string) (*models.RecordSet, error)
	Save(ctx context.Context, unit string, set *models.RecordSet) error
	BusinessUnits(ctx context.Context) ([]string, error)
}

var (
	// ErrSchema is returned when a stored sheet lacks a required column.
	ErrSchema = errors.New("stored records do not match the schema")

	// ErrUnavailable is returned when the backend cannot be reached or opened.
	ErrUnavailable = errors.New("storage backend unavailable")

	// ErrUnreadableRows is returned by Save when stored rows could not be
	// decoded. Rewriting the sheets would drop them.
	ErrUnreadableRows = errors.New("stored rows could not be read")
)

// guardSkipped fails a save that would rewrite sheets without rows it could
// not decode.
func guardSkipped(skipped int) error {
	if skipped > 0 {
		return fmt.Errorf("%w: %d row(s) would be lost, fix them in the spreadsheet first", ErrUnreadableRows, skipped)
	}
	return nil
}

// StorageError wraps a backend failure with the operation and unit involved.
type StorageError struct {
	Op      string
	Backend string
	Unit    string
	Err     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("store(%s): %s failed for %q: %v", e.Backend, e.Op, e.Unit, e.Err)
	}
	return fmt.Sprintf("store(%s): %s failed: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorageError wraps err as a StorageError if it isn't already one.
func WrapStorageError(backend, op, unit string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, Backend: backend, Unit: unit, Err: err}
}

// resolvePaymentUnits fills the business unit of payments stored before the
// column existed, using the unit of the invoice they reference.
func resolvePaymentUnits(all *models.RecordSet) {
	invoiceUnits := map[string]string{}
	for _, line := range all.InvoiceLines {
		if _, seen := invoiceUnits[line.InvoiceNo]; !seen {
			invoiceUnits[line.InvoiceNo] = line.BusinessUnit
		}
	}
	for i := range all.Payments {
		if all.Payments[i].BusinessUnit == "" {
			all.Payments[i].BusinessUnit = invoiceUnits[all.Payments[i].InvoiceRef]
		}
	}
}

// selectUnit returns the records of one unit.
func selectUnit(all *models.RecordSet, unit string) *models.RecordSet {
	out := &models.RecordSet{}
	for _, q := range all.Quotes {
		if q.BusinessUnit == unit {
			out.Quotes = append(out.Quotes, q)
		}
	}
	for _, line := range all.InvoiceLines {
		if line.BusinessUnit == unit {
			out.InvoiceLines = append(out.InvoiceLines, line)
		}
	}
	for _, p := range all.Payments {
		if p.BusinessUnit == unit {
			out.Payments = append(out.Payments, p)
		}
	}
	return out
}

// replaceUnit returns all records with the unit's rows swapped for set.
// Other units keep their relative order and come first.
func replaceUnit(all *models.RecordSet, unit string, set *models.RecordSet) *models.RecordSet {
	out := &models.RecordSet{}
	for _, q := range all.Quotes {
		if q.BusinessUnit != unit {
			out.Quotes = append(out.Quotes, q)
		}
	}
	for _, line := range all.InvoiceLines {
		if line.BusinessUnit != unit {
			out.InvoiceLines = append(out.InvoiceLines, line)
		}
	}
	for _, p := range all.Payments {
		if p.BusinessUnit != unit {
			out.Payments = append(out.Payments, p)
		}
	}
	if set != nil {
		for _, q := range set.Quotes {
			q.BusinessUnit = unit
			out.Quotes = append(out.Quotes, q)
		}
		for _, line := range set.InvoiceLines {
			line.BusinessUnit = unit
			out.InvoiceLines = append(out.InvoiceLines, line)
		}
		for _, p := range set.Payments {
			p.BusinessUnit = unit
			out.Payments = append(out.Payments, p)
		}
	}
	return out
}

// businessUnits lists the distinct units in first-seen order.
func businessUnits(all *models.RecordSet) []string {
	seen := map[string]bool{}
	var out []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, q := range all.Quotes {
		add(q.BusinessUnit)
	}
	for _, line := range all.InvoiceLines {
		add(line.BusinessUnit)
	}
	return out
}
