package cache

import (
	"context"
	"sync/atomic"
)

// LocalBackend keeps the entry in process memory. Entries are swapped as a
// whole, so concurrent readers never observe a partial write.
type LocalBackend struct {
	entry atomic.Pointer[Entry]
}

// NewLocalBackend creates an empty process-local backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

// Load returns the current entry.
func (b *LocalBackend) Load(ctx context.Context) (Entry, bool, error) {
	e := b.entry.Load()
	if e == nil {
		return Entry{}, false, nil
	}
	return *e, true, nil
}

// Save replaces the current entry. Last writer wins.
func (b *LocalBackend) Save(ctx context.Context, entry Entry) error {
	b.entry.Store(&entry)
	return nil
}

// Clear removes the current entry.
func (b *LocalBackend) Clear(ctx context.Context) error {
	b.entry.Store(nil)
	return nil
}
