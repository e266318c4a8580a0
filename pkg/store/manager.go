package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
)

// Manager owns the lifecycle of named stores.
type Manager struct {
	backend Backend
	logger  zerolog.Logger
}

// NewManager creates a new store manager on top of backend.
func NewManager(backend Backend) *Manager {
	if backend == nil {
		panic("store backend cannot be nil")
	}
	return &Manager{
		backend: backend,
		logger:  logging.NewLogger("store"),
	}
}

// Store is a borrowed handle to one named store.
type Store struct {
	name    string
	manager *Manager
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Open returns a handle to name, creating the store on first access.
func (m *Manager) Open(ctx context.Context, name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}
	if err := m.backend.CreateStore(ctx, name); err != nil {
		return nil, storageErr("open", name, err)
	}
	return &Store{name: name, manager: m}, nil
}

// HasStore reports whether name exists.
func (m *Manager) HasStore(ctx context.Context, name string) (bool, error) {
	ok, err := m.backend.HasStore(ctx, name)
	if err != nil {
		return false, storageErr("list", name, err)
	}
	return ok, nil
}

// ListStores returns every store name in creation order.
func (m *Manager) ListStores(ctx context.Context) ([]string, error) {
	names, err := m.backend.ListStores(ctx)
	if err != nil {
		return nil, storageErr("list", "", err)
	}
	return names, nil
}

// DeleteStore irreversibly removes name and its entries.
// It reports whether the store existed.
func (m *Manager) DeleteStore(ctx context.Context, name string) (bool, error) {
	existed, err := m.backend.DeleteStore(ctx, name)
	if err != nil {
		return false, storageErr("drop", name, err)
	}
	if existed {
		storesDeleted.Inc()
		m.logger.Debug().Str("store", name).Msg("Store deleted")
	}
	return existed, nil
}

// Match looks key up in every store, oldest first, and returns the first
// matching entry. Stores that fail to answer are skipped.
func (m *Manager) Match(ctx context.Context, key RequestKey) (*Entry, error) {
	names, err := m.ListStores(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, name := range names {
		entry, err := m.get(ctx, name, key)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrCacheMiss
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

// Get retrieves the entry for key.
// Returns ErrCacheMiss if the key doesn't exist or its Vary constraints fail.
func (s *Store) Get(ctx context.Context, key RequestKey) (*Entry, error) {
	return s.manager.get(ctx, s.name, key)
}

// Put stores entry under key, replacing any existing entry.
func (s *Store) Put(ctx context.Context, key RequestKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return storageErr("put", s.name, fmt.Errorf("marshal cache entry: %w", err))
	}

	if err := s.manager.backend.PutEntry(ctx, s.name, key.String(), data); err != nil {
		return storageErr("put", s.name, err)
	}

	storeWrites.WithLabelValues(s.name).Inc()
	s.manager.logger.Debug().
		Str("store", s.name).
		Str("key", key.String()).
		Int("size", len(entry.Data)).
		Msg("Stored response")
	return nil
}

// Delete removes the entry for key. It reports whether an entry existed.
func (s *Store) Delete(ctx context.Context, key RequestKey) (bool, error) {
	ok, err := s.manager.backend.DeleteEntry(ctx, s.name, key.String())
	if err != nil {
		return false, storageErr("delete", s.name, err)
	}
	return ok, nil
}

func (m *Manager) get(ctx context.Context, name string, key RequestKey) (*Entry, error) {
	data, err := m.backend.GetEntry(ctx, name, key.String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			storeMisses.WithLabelValues(name).Inc()
			return nil, ErrCacheMiss
		}
		return nil, storageErr("get", name, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, storageErr("get", name, fmt.Errorf("%w: %v", ErrInvalidEntry, err))
	}

	if !entry.Matches(key.Header) {
		storeMisses.WithLabelValues(name).Inc()
		return nil, ErrCacheMiss
	}

	storeHits.WithLabelValues(name).Inc()
	return &entry, nil
}
