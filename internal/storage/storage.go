package storage

import (
	"context"
	"errors"

	"github.com/n3tuk/maintenance-gate/internal/model"
)

// Common errors returned by the storage layer.
var (
	// ErrNotFound is returned when no maintenance record has been written yet.
	ErrNotFound = errors.New("maintenance record not found")
)

// Driver names accepted by the configuration.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Repository is the narrow query contract the gate has with the backing store.
type Repository interface {
	// LatestMaintenance returns the most recent maintenance record.
	// Returns ErrNotFound if the table is empty.
	LatestMaintenance(ctx context.Context) (*model.MaintenanceRecord, error)

	// SaveMaintenance appends a new record. Older records are never updated.
	// It returns the stored record with its ID populated.
	SaveMaintenance(ctx context.Context, rec *model.MaintenanceRecord) (*model.MaintenanceRecord, error)

	// IsActiveAdmin reports whether id matches an active administrator.
	IsActiveAdmin(ctx context.Context, id string) (bool, error)

	// PruneMaintenance deletes every record except the newest keep records
	// and returns how many were removed.
	PruneMaintenance(ctx context.Context, keep int) (int64, error)

	// Ping verifies connectivity to the store.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
