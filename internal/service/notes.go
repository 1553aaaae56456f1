package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

const notesKey = "notes"

// NoteStore keeps one free-text note per verse, persisted as a single JSON
// object keyed by the global verse number.
type NoteStore struct {
	kv  Persistence
	now func() time.Time

	mu    sync.Mutex
	notes map[int]entities.Note
}

// NewNoteStore creates an empty NoteStore over kv.
func NewNoteStore(kv Persistence) *NoteStore {
	return &NoteStore{
		kv:    kv,
		now:   time.Now,
		notes: make(map[int]entities.Note),
	}
}

// Load replaces the in-memory notes with the persisted ones.
func (s *NoteStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, notesKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.notes = make(map[int]entities.Note)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}

	var raw map[string]entities.Note
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode notes: %w", err)
	}

	notes := make(map[int]entities.Note, len(raw))
	for k, note := range raw {
		n, err := strconv.Atoi(k)
		if err != nil || !entities.ValidVerseNumber(n) {
			continue
		}
		note.VerseNumber = n
		notes[n] = note
	}
	s.notes = notes
	return nil
}

// Put stores the note of verse n. Blank text removes the note.
func (s *NoteStore) Put(ctx context.Context, n int, text string) (*entities.Note, error) {
	if !entities.ValidVerseNumber(n) {
		return nil, fmt.Errorf("verse %d: %w", n, entities.ErrInvalidReference)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, s.Delete(ctx, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.notes[n]
	note := entities.Note{VerseNumber: n, Text: text, UpdatedAt: s.now().UTC()}
	s.notes[n] = note

	if err := s.persistLocked(ctx); err != nil {
		if had {
			s.notes[n] = prev
		} else {
			delete(s.notes, n)
		}
		return nil, err
	}
	return &note, nil
}

// Delete removes the note of verse n, if any.
func (s *NoteStore) Delete(ctx context.Context, n int) error {
	if !entities.ValidVerseNumber(n) {
		return fmt.Errorf("verse %d: %w", n, entities.ErrInvalidReference)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.notes[n]
	if !had {
		return nil
	}
	delete(s.notes, n)

	if err := s.persistLocked(ctx); err != nil {
		s.notes[n] = prev
		return err
	}
	return nil
}

// Get returns the note of verse n.
func (s *NoteStore) Get(n int) (entities.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[n]
	return note, ok
}

// All returns every note ordered by verse.
func (s *NoteStore) All() []entities.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := slices.Sorted(maps.Keys(s.notes))
	notes := make([]entities.Note, 0, len(keys))
	for _, k := range keys {
		notes = append(notes, s.notes[k])
	}
	return notes
}

func (s *NoteStore) persistLocked(ctx context.Context) error {
	raw := make(map[string]entities.Note, len(s.notes))
	for n, note := range s.notes {
		raw[strconv.Itoa(n)] = note
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	if err := s.kv.Set(ctx, notesKey, data); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}
	return nil
}
