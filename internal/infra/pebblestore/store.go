// Package pebblestore persists reading state in an embedded PebbleDB.
//
// Key Schema (all values are JSON):
//   - progress.read -> sorted array of read verse numbers
//   - notes         -> object of verse number to note
//   - chat:<id>:... -> the same keys scoped to a bot chat
//   - reminders.chats -> array of subscribed chat ids
package pebblestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/aliskhannn/quran-companion/internal/storage"
)

// Store implements storage.KV on top of PebbleDB.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a PebbleDB store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()

	// value is only valid until closer is closed.
	return append([]byte(nil), value...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes all keys in a single synced batch.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, k := range keys {
		if err := batch.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("delete %q: %w", k, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}
