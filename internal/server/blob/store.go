// Package blob abstracts the object store holding encrypted file bodies.
// The store has no encryption responsibility: it persists exactly the
// nonce || tag || ciphertext wire bytes handed to it.
package blob

import "context"

// Store is the blob-store interface consumed by the file pipeline.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
