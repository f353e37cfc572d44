package objstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound indicates the requested object does not exist.
var ErrKeyNotFound = errors.New("object key not found")

// Store is a minimal object store: list keys, fetch an object, put an
// object. Listing returns keys in lexicographic order so polling cycles
// are deterministic.
type Store interface {
	// List returns all object keys under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get returns the object's contents, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores contents under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error
}
