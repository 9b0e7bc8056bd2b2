// Package vault stores the source documents attached to ledger records:
// agreements, invoices, payment proofs and tax forms.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// Category groups documents below an entity.
type Category string

const (
	CategoryAgreements Category = "Agreements"
	CategoryInvoices   Category = "Invoices"
	CategoryPayments   Category = "Payments"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAgreements, CategoryInvoices, CategoryPayments:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidKey is returned for an unusable unit, entity, category or name.
	ErrInvalidKey = errors.New("invalid document key")
)

// Document identifies a file to store: <unit>/<entity>/<category>/<name>.
type Document struct {
	Unit     string
	EntityID string
	Category Category
	Name     string
}

// Vault stores documents and returns a reference that Open accepts.
type Vault interface {
	Put(ctx context.Context, doc Document, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// sanitize turns a user-supplied name into a single safe path segment.
func sanitize(s string) string {
	s = strings.TrimSpace(path.Base(strings.ReplaceAll(s, "\\", "/")))
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ". ")
	return s
}

// Key returns the slash separated object key of doc.
func (d Document) Key() (string, error) {
	if !d.Category.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidKey, d.Category)
	}
	parts := []string{sanitize(d.Unit), sanitize(d.EntityID), string(d.Category), sanitize(d.Name)}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %+v", ErrInvalidKey, d)
		}
	}
	return strings.Join(parts, "/"), nil
}

// cleanRef validates a reference returned by Put.
func cleanRef(ref string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(ref, "\\", "/"))
	if ref == "" || cleaned == "." || strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, ref)
	}
	return cleaned, nil
}
