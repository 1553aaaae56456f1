package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var ErrInvalidJSON = errors.New("value is not valid JSON")

// File keeps all values in a single JSON document on disk.
// Every write rewrites the document atomically.
type File struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// OpenFile reads the state document at path.
// If the file does not exist, the store starts empty.
// If the file exists but cannot be parsed, it returns an error so callers can log it.
func OpenFile(path string) (*File, error) {
	values, err := load(path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, values: values}, nil
}

func (s *File) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *File) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("set %q: %w", key, ErrInvalidJSON)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = append(json.RawMessage(nil), value...)
	if err := save(s.path, s.values); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *File) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			removed[k] = v
			delete(s.values, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := save(s.path, s.values); err != nil {
		for k, v := range removed {
			s.values[k] = v
		}
		return err
	}
	return nil
}

func load(path string) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("open state: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return values, nil
}

// save writes values to path atomically.
func save(path string, values map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(values); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
