package kv

import "context"

// Repository describes the key/value operations the stores rely on.
type Repository interface {
	// Get returns the value of key, or (nil, nil) if it is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value of key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every key with its value.
	List(ctx context.Context) (map[string][]byte, error)

	// Clear removes every key.
	Clear(ctx context.Context) error
}
