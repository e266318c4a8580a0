package store

import (
	"context"
	"sync"
)

type memoryBackend struct {
	mu     sync.RWMutex
	order  []string
	stores map[string]map[string][]byte
}

// NewMemoryBackend returns a process-local Backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{stores: make(map[string]map[string][]byte)}
}

func (b *memoryBackend) CreateStore(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createLocked(name)
	return nil
}

func (b *memoryBackend) createLocked(name string) map[string][]byte {
	entries, ok := b.stores[name]
	if !ok {
		entries = make(map[string][]byte)
		b.stores[name] = entries
		b.order = append(b.order, name)
	}
	return entries
}

func (b *memoryBackend) HasStore(_ context.Context, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.stores[name]
	return ok, nil
}

func (b *memoryBackend) ListStores(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out, nil
}

func (b *memoryBackend) DeleteStore(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.stores[name]; !ok {
		return false, nil
	}
	delete(b.stores, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (b *memoryBackend) GetEntry(_ context.Context, name, field string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.stores[name][field]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *memoryBackend) PutEntry(_ context.Context, name, field string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	b.createLocked(name)[field] = stored
	return nil
}

func (b *memoryBackend) DeleteEntry(_ context.Context, name, field string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, ok := b.stores[name]
	if !ok {
		return false, nil
	}
	if _, ok := entries[field]; !ok {
		return false, nil
	}
	delete(entries, field)
	return true, nil
}

func (b *memoryBackend) Close() error {
	return nil
}
