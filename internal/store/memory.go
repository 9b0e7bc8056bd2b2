package store

import (
	"context"
	"sync"

	"finledger/pkg/models"
)

// MemoryRepository keeps records in memory. It backs tests and dry runs.
type MemoryRepository struct {
	mu    sync.Mutex
	all   *models.RecordSet
	saves int

	// LoadErr and SaveErr, when set, are returned by the next calls.
	LoadErr error
	SaveErr error
}

// NewMemoryRepository creates a repository seeded with a copy of initial.
func NewMemoryRepository(initial *models.RecordSet) *MemoryRepository {
	all := &models.RecordSet{}
	if initial != nil {
		all = initial.Clone()
	}
	resolvePaymentUnits(all)
	return &MemoryRepository{all: all}
}

// Load returns a copy of the unit's records.
func (r *MemoryRepository) Load(ctx context.Context, unit string) (*models.RecordSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LoadErr != nil {
		return nil, WrapStorageError("memory", "load", unit, r.LoadErr)
	}
	return selectUnit(r.all, unit).Clone(), nil
}

// Save replaces the unit's records.
func (r *MemoryRepository) Save(ctx context.Context, unit string, set *models.RecordSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SaveErr != nil {
		return WrapStorageError("memory", "save", unit, r.SaveErr)
	}
	r.all = replaceUnit(r.all, unit, set.Clone())
	r.saves++
	return nil
}

// BusinessUnits lists the stored units.
func (r *MemoryRepository) BusinessUnits(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return businessUnits(r.all), nil
}

// Saves reports how many saves succeeded.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Snapshot returns a copy of every stored record.
func (r *MemoryRepository) Snapshot() *models.RecordSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.all.Clone()
}
