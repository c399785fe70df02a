package domain

import "context"

// KVStore is the persistence contract shared by every backend. Values are
// opaque JSON documents addressed by collection key; a write replaces the
// whole document. Backends are scoped to a single operator and provide no
// cross-key atomicity.
type KVStore interface {
	// Get returns the stored bytes and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Keys lists the keys currently present in ascending order.
	Keys(ctx context.Context) ([]string, error)
}
