// Package status answers "is the system under maintenance, and with what
// message?" for the gate and the public status endpoint.
package status

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/cache"
	"github.com/n3tuk/maintenance-gate/internal/metrics"
	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

// DefaultTTL is how long a fetched status is served without asking the store.
const DefaultTTL = 30 * time.Second

// Reader is what the gate and handlers need from the accessor.
type Reader interface {
	Current(ctx context.Context) model.Status
}

// Accessor reads the current maintenance status through a memoization cell.
// Store failures never surface to callers: they get the inactive status.
type Accessor struct {
	repo    storage.Repository
	cell    *cache.Cell
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAccessor creates an accessor over repo, memoized in cell. m may be nil.
func NewAccessor(repo storage.Repository, cell *cache.Cell, logger *zap.Logger, m *metrics.Metrics) *Accessor {
	return &Accessor{
		repo:    repo,
		cell:    cell,
		logger:  logger,
		metrics: m,
	}
}

// Current returns the cached status while it is fresh, otherwise reads the
// latest record from the store and caches it. On a store error the cache is
// left untouched and the inactive status is returned.
func (a *Accessor) Current(ctx context.Context) model.Status {
	entry, ok, err := a.cell.Get(ctx)
	if err != nil {
		a.logger.Warn("Failed to read cached maintenance status", zap.Error(err))
	}
	if ok {
		a.observe(metrics.LookupHit, entry.Active)
		return model.Status{Active: entry.Active, Message: entry.Message}
	}

	start := time.Now()
	rec, err := a.repo.LatestMaintenance(ctx)
	if a.metrics != nil {
		a.metrics.ObserveStore("latest", start)
	}

	var current model.Status
	switch {
	case errors.Is(err, storage.ErrNotFound):
		current = model.InactiveStatus()
	case err != nil:
		a.logger.Error("Failed to check maintenance status", zap.Error(err))
		a.observe(metrics.LookupError, false)
		return model.InactiveStatus()
	default:
		current = rec.Status()
	}

	if _, err := a.cell.Set(ctx, current.Active, current.Message); err != nil {
		a.logger.Warn("Failed to cache maintenance status", zap.Error(err))
	}

	a.logger.Debug("Maintenance status refreshed from store",
		zap.Bool("active", current.Active),
		zap.String("message", current.Message),
	)
	a.observe(metrics.LookupMiss, current.Active)

	return current
}

// Refresh discards the cached entry and reads the store again.
func (a *Accessor) Refresh(ctx context.Context) model.Status {
	if err := a.cell.Invalidate(ctx); err != nil {
		a.logger.Warn("Failed to invalidate cached maintenance status", zap.Error(err))
	}
	return a.Current(ctx)
}

func (a *Accessor) observe(result string, active bool) {
	if a.metrics != nil {
		a.metrics.ObserveStatus(result, active)
	}
}
