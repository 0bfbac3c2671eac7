// Package memory is a process-local maintenance store for development runs
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

// Repository keeps maintenance records and administrators in memory.
// The Fail* fields inject errors into the matching operations.
type Repository struct {
	mu      sync.RWMutex
	records []model.MaintenanceRecord
	admins  map[string]bool
	nextID  int64

	FailLatest error
	FailSave   error
	FailAdmin  error
	FailPing   error

	latestCalls int
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		admins: make(map[string]bool),
		nextID: 1,
	}
}

// AddAdmin registers an administrator id with its active flag.
func (r *Repository) AddAdmin(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins[id] = active
}

// LatestCalls reports how many times LatestMaintenance was called.
func (r *Repository) LatestCalls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestCalls
}

// SetFailLatest sets the error returned by LatestMaintenance.
func (r *Repository) SetFailLatest(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailLatest = err
}

// SetFailPing sets the error returned by Ping.
func (r *Repository) SetFailPing(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailPing = err
}

// LatestMaintenance returns the record with the highest ID.
func (r *Repository) LatestMaintenance(ctx context.Context) (*model.MaintenanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latestCalls++
	if r.FailLatest != nil {
		return nil, r.FailLatest
	}
	if len(r.records) == 0 {
		return nil, storage.ErrNotFound
	}

	rec := r.records[len(r.records)-1]
	return &rec, nil
}

// SaveMaintenance appends rec with the next ID.
func (r *Repository) SaveMaintenance(ctx context.Context, rec *model.MaintenanceRecord) (*model.MaintenanceRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("record cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailSave != nil {
		return nil, r.FailSave
	}

	stored := *rec
	stored.ID = r.nextID
	r.nextID++
	r.records = append(r.records, stored)

	return &stored, nil
}

// IsActiveAdmin reports whether id is a registered, active administrator.
func (r *Repository) IsActiveAdmin(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FailAdmin != nil {
		return false, r.FailAdmin
	}
	return r.admins[id], nil
}

// PruneMaintenance keeps the newest keep records.
func (r *Repository) PruneMaintenance(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) <= keep {
		return 0, nil
	}

	removed := len(r.records) - keep
	r.records = append([]model.MaintenanceRecord(nil), r.records[removed:]...)
	return int64(removed), nil
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Ping returns FailPing.
func (r *Repository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.FailPing
}

// Close is a no-op.
func (r *Repository) Close(ctx context.Context) error {
	return nil
}

var _ storage.Repository = (*Repository)(nil)
