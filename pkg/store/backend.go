package store

import "context"

// Backend persists stores and their serialized entries.
// Implementations return ErrCacheMiss from GetEntry when the field is absent
// and plain errors for every other failure; the Manager classifies them.
type Backend interface {
	// CreateStore registers name. Creating an existing store is a no-op.
	CreateStore(ctx context.Context, name string) error

	// HasStore reports whether name exists.
	HasStore(ctx context.Context, name string) (bool, error)

	// ListStores returns store names in creation order.
	ListStores(ctx context.Context) ([]string, error)

	// DeleteStore removes name and all of its entries.
	// It reports whether the store existed.
	DeleteStore(ctx context.Context, name string) (bool, error)

	GetEntry(ctx context.Context, name, field string) ([]byte, error)
	PutEntry(ctx context.Context, name, field string, data []byte) error
	DeleteEntry(ctx context.Context, name, field string) (bool, error)

	Close() error
}
