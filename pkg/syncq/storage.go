package syncq

import (
	"context"
	"sync"
)

// Storage persists pending records.
type Storage interface {
	// Add appends a record.
	Add(ctx context.Context, rec Record) error

	// List returns every record, oldest first.
	List(ctx context.Context) ([]Record, error)

	// Remove deletes the given ids. Unknown ids are ignored.
	Remove(ctx context.Context, ids []string) error

	Close() error
}

// MemoryStorage keeps records in process memory.
type MemoryStorage struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Add implements Storage.
func (m *MemoryStorage) Add(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Payload = append([]byte(nil), rec.Payload...)
	m.records = append(m.records, rec)
	return nil
}

// List implements Storage.
func (m *MemoryStorage) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...), nil
}

// Remove implements Storage.
func (m *MemoryStorage) Remove(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, rec := range m.records {
		if _, ok := drop[rec.ID]; !ok {
			kept = append(kept, rec)
		}
	}
	m.records = kept
	return nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error {
	return nil
}
