// Package storage provides key-value persistence for reading progress and notes.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// KV is a key-value store of JSON-serializable blobs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}
