// Package state provides the key/value world-state backends the identity
// contract runs against. The contract serializes transactions on top of
// these; backends only need plain reads, writes, and prefix scans.
package state

import "context"

// Store is the world-state surface the contract writes through. Keys are
// namespaced strings (see the contract package for the layout); values are
// opaque bytes. Implementations return sentinel.ErrNotFound for missing
// keys and must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Keys returns every key starting with prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
