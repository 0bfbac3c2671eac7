// Package cache provides a time-boxed memoization cell for the maintenance
// status, with a process-local backend and an optional olric-backed one.
package cache

import (
	"context"
	"time"
)

// Backend names accepted by the configuration.
const (
	BackendLocal = "local"
	BackendOlric = "olric"
)

// Entry is a memoized status value and the time it was fetched.
type Entry struct {
	Active    bool      `json:"active"`
	Message   string    `json:"message"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Backend holds at most one Entry. Save replaces the whole entry.
type Backend interface {
	// Load returns the stored entry, or ok=false if none is stored.
	Load(ctx context.Context) (entry Entry, ok bool, err error)

	// Save replaces the stored entry.
	Save(ctx context.Context, entry Entry) error

	// Clear removes the stored entry.
	Clear(ctx context.Context) error
}

// Cell is a memoization cell with a fixed TTL measured from FetchedAt.
// It never refreshes on its own; callers decide what to do on a miss.
type Cell struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

// NewCell creates a cell over backend. Entries are fresh while their age is
// strictly less than ttl.
func NewCell(backend Backend, ttl time.Duration) *Cell {
	return &Cell{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the cell's time source.
func (c *Cell) WithClock(now func() time.Time) *Cell {
	c.now = now
	return c
}

// TTL returns the freshness window.
func (c *Cell) TTL() time.Duration {
	return c.ttl
}

// Get returns the stored entry if it is still fresh.
func (c *Cell) Get(ctx context.Context) (Entry, bool, error) {
	entry, ok, err := c.backend.Load(ctx)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set stores a new entry stamped with the current time and returns it.
func (c *Cell) Set(ctx context.Context, active bool, message string) (Entry, error) {
	entry := Entry{
		Active:    active,
		Message:   message,
		FetchedAt: c.now(),
	}
	return entry, c.backend.Save(ctx, entry)
}

// Invalidate drops the stored entry so the next Get misses.
func (c *Cell) Invalidate(ctx context.Context) error {
	return c.backend.Clear(ctx)
}
