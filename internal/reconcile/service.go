// Package reconcile ties the ledger rules to storage and the document vault.
// Every commit runs under a per-unit lock: load, validate, store documents,
// then save a copy of the records with the new rows appended.
package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"finledger/internal/allocation"
	"finledger/internal/ledger"
	"finledger/internal/ledgerview"
	"finledger/internal/logger"
	"finledger/internal/store"
	"finledger/internal/vault"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Attachment is an uploaded document.
type Attachment struct {
	Name string
	Data []byte
}

// AttachmentFromFile reads a document from disk.
func AttachmentFromFile(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &Attachment{Name: filepath.Base(path), Data: data}, nil
}

// PaymentAttachments are the documents that may back a payment.
type PaymentAttachments struct {
	Proof       *Attachment
	FormC       *Attachment
	Declaration *Attachment
}

// Service runs ledger operations against a repository and a vault.
type Service struct {
	repo   store.Repository
	vault  vault.Vault
	engine *allocation.Engine
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a Service.
func NewService(repo store.Repository, v vault.Vault, engine *allocation.Engine) *Service {
	return &Service{
		repo:   repo,
		vault:  v,
		engine: engine,
		now:    time.Now,
		locks:  map[string]*sync.Mutex{},
	}
}

// WithClock replaces the clock used for report dates (for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) lock(unit string) func() {
	s.mu.Lock()
	m, ok := s.locks[unit]
	if !ok {
		m = &sync.Mutex{}
		s.locks[unit] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// BusinessUnits lists the units with stored records.
func (s *Service) BusinessUnits(ctx context.Context) ([]string, error) {
	return s.repo.BusinessUnits(ctx)
}

// Ledger loads the unit's ledger for reading. A load failure is logged and
// yields an empty ledger.
func (s *Service) Ledger(ctx context.Context, unit string) *ledger.Ledger {
	set, err := s.repo.Load(ctx, unit)
	if err != nil {
		log := logger.WithBusinessUnit("reconcile", unit)
		log.Error().
			Err(err).
			Msg("Failed to load records, showing an empty ledger")
		set = &models.RecordSet{}
	}
	return ledger.New(unit, set)
}

// LedgerView renders the unit's ledger report as of today.
func (s *Service) LedgerView(ctx context.Context, unit string) []ledgerview.Row {
	return ledgerview.Generate(s.Ledger(ctx, unit), s.today())
}

// Overview returns the unit's executive summary.
func (s *Service) Overview(ctx context.Context, unit string) ledgerview.Overview {
	return ledgerview.Summarize(s.Ledger(ctx, unit))
}

// Compliance lists the documents attached to each allocation line.
func (s *Service) Compliance(ctx context.Context, unit string) []ledgerview.ComplianceEntry {
	return ledgerview.Compliance(s.Ledger(ctx, unit))
}

// UnpaidInvoice is an invoice with an uncleared due and its per-quote position.
type UnpaidInvoice struct {
	InvoiceNo string
	Due       decimal.Decimal
	Quotes    []ledger.QuoteDue
}

// UnpaidInvoices lists invoices that still have a due, for payment entry.
func (s *Service) UnpaidInvoices(ctx context.Context, unit string) []UnpaidInvoice {
	l := s.Ledger(ctx, unit)
	var out []UnpaidInvoice
	for _, no := range l.UnpaidInvoices() {
		out = append(out, UnpaidInvoice{
			InvoiceNo: no,
			Due:       l.InvoiceDue(no),
			Quotes:    l.QuoteDues(no),
		})
	}
	return out
}

// AddQuotes commits reviewed agreement sections or manual quotes. The
// agreement, when given, is stored once per created quote.
func (s *Service) AddQuotes(ctx context.Context, unit string, inputs []allocation.QuoteInput, agreement *Attachment) ([]models.Quote, error) {
	const op = "AddQuotes"

	inputs = append([]allocation.QuoteInput(nil), inputs...)

	var quotes []models.Quote
	err := s.commit(ctx, op, unit, func(l *ledger.Ledger, set *models.RecordSet) ([]pendingDocument, error) {
		var pending []pendingDocument
		for i := range inputs {
			staged, err := stage(unit, inputs[i].ID, vault.CategoryAgreements, agreement, &inputs[i].AgreementFile)
			if err != nil {
				return nil, err
			}
			pending = append(pending, staged...)
		}

		created, err := s.engine.AddQuotes(l, inputs)
		if err != nil {
			return nil, err
		}
		set.Quotes = append(set.Quotes, created...)
		quotes = created
		return pending, nil
	})
	return quotes, err
}

// MapInvoice commits an invoice mapped onto quotes. The invoice document is
// required unless the mapping already references a stored one.
func (s *Service) MapInvoice(ctx context.Context, unit string, m allocation.InvoiceMapping, invoiceDoc, declaration *Attachment) (*allocation.MappingResult, error) {
	const op = "MapInvoice"

	var result *allocation.MappingResult
	err := s.commit(ctx, op, unit, func(l *ledger.Ledger, set *models.RecordSet) ([]pendingDocument, error) {
		var pending []pendingDocument
		for _, a := range []struct {
			att *Attachment
			ref *string
		}{
			{invoiceDoc, &m.Documents.Invoice},
			{declaration, &m.Documents.Declaration},
		} {
			staged, err := stage(unit, m.InvoiceNo, vault.CategoryInvoices, a.att, a.ref)
			if err != nil {
				return nil, err
			}
			pending = append(pending, staged...)
		}

		res, err := s.engine.MapInvoiceToQuotes(l, m)
		if err != nil {
			return nil, err
		}
		set.Quotes = append(set.Quotes, res.Quotes...)
		set.InvoiceLines = append(set.InvoiceLines, res.Lines...)
		result = res
		return pending, nil
	})
	return result, err
}

// RecordPayment commits one payment split across the quotes of an invoice.
func (s *Service) RecordPayment(ctx context.Context, unit string, req allocation.PaymentRequest, docs PaymentAttachments) ([]models.PaymentAllocation, error) {
	const op = "RecordPayment"

	var lines []models.PaymentAllocation
	err := s.commit(ctx, op, unit, func(l *ledger.Ledger, set *models.RecordSet) ([]pendingDocument, error) {
		pending, err := paymentDocuments(unit, req.InvoiceNo, docs, &req.Documents)
		if err != nil {
			return nil, err
		}

		created, err := s.engine.RecordPayment(l, req)
		if err != nil {
			return nil, err
		}
		set.Payments = append(set.Payments, created...)
		lines = created
		return pending, nil
	})
	return lines, err
}

// UpdatePaymentDocuments attaches a Form C or declaration to an existing
// allocation line. Bank proof and amounts cannot change.
func (s *Service) UpdatePaymentDocuments(ctx context.Context, unit, paymentID string, docs PaymentAttachments) (models.PaymentAllocation, error) {
	const op = "UpdatePaymentDocuments"

	var updated models.PaymentAllocation
	err := s.commit(ctx, op, unit, func(l *ledger.Ledger, set *models.RecordSet) ([]pendingDocument, error) {
		var invoiceNo string
		for _, p := range l.Payments() {
			if p.PaymentID == paymentID {
				invoiceNo = p.InvoiceRef
				break
			}
		}

		var refs allocation.PaymentDocuments
		docs.Proof = nil
		var pending []pendingDocument
		if invoiceNo != "" {
			var err error
			pending, err = paymentDocuments(unit, invoiceNo, docs, &refs)
			if err != nil {
				return nil, err
			}
		}

		p, err := s.engine.UpdatePaymentDocuments(l, paymentID, refs)
		if err != nil {
			return nil, err
		}
		for i := range set.Payments {
			if set.Payments[i].PaymentID == paymentID {
				set.Payments[i] = p
			}
		}
		updated = p
		return pending, nil
	})
	return updated, err
}

func paymentDocuments(unit, invoiceNo string, docs PaymentAttachments, refs *allocation.PaymentDocuments) ([]pendingDocument, error) {
	var pending []pendingDocument
	for _, a := range []struct {
		att *Attachment
		ref *string
	}{
		{docs.Proof, &refs.Proof},
		{docs.FormC, &refs.FormC},
		{docs.Declaration, &refs.Declaration},
	} {
		staged, err := stage(unit, invoiceNo, vault.CategoryPayments, a.att, a.ref)
		if err != nil {
			return nil, err
		}
		pending = append(pending, staged...)
	}
	return pending, nil
}

// stage sets *ref to the vault key of att and returns it for storing after
// validation. Without an entity id the name alone is referenced and nothing is
// stored; validation rejects such changes.
func stage(unit, entityID string, category vault.Category, att *Attachment, ref *string) ([]pendingDocument, error) {
	if att == nil {
		return nil, nil
	}
	if strings.TrimSpace(entityID) == "" {
		*ref = att.Name
		return nil, nil
	}
	doc := vault.Document{Unit: unit, EntityID: entityID, Category: category, Name: att.Name}
	key, err := doc.Key()
	if err != nil {
		return nil, err
	}
	*ref = key
	return []pendingDocument{{doc: doc, data: att.Data}}, nil
}

// pendingDocument is stored in the vault once a change has been validated.
type pendingDocument struct {
	doc  vault.Document
	data []byte
}

// commit runs change on a copy of the unit's records. A load failure aborts
// the commit so a broken store is never overwritten with an empty set.
func (s *Service) commit(ctx context.Context, op, unit string, change func(*ledger.Ledger, *models.RecordSet) ([]pendingDocument, error)) error {
	unlock := s.lock(unit)
	defer unlock()

	log := logger.WithBusinessUnit("reconcile", unit)

	current, err := s.repo.Load(ctx, unit)
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("Failed to load records")
		return fmt.Errorf("%s: %w", op, err)
	}

	l := ledger.New(unit, current)
	next := current.Clone()
	pending, err := change(l, next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(pending) > 0 && s.vault == nil {
		return fmt.Errorf("%s: no document vault configured", op)
	}
	for _, p := range pending {
		if _, err := s.vault.Put(ctx, p.doc, bytes.NewReader(p.data)); err != nil {
			return fmt.Errorf("%s: failed to store %s: %w", op, p.doc.Name, err)
		}
	}

	if err := s.repo.Save(ctx, unit, next); err != nil {
		log.Error().Err(err).Str("op", op).Msg("Failed to save records")
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info().
		Str("op", op).
		Int("documents", len(pending)).
		Msg("Changes committed")
	return nil
}

func (s *Service) today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
