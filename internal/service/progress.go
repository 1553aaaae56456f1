package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

const progressKey = "progress.read"

// ProgressStore tracks which verses have been read. Every mutation is
// written through to persistence before it returns; a failed write leaves
// the set unchanged.
type ProgressStore struct {
	kv Persistence

	mu   sync.Mutex
	read map[int]struct{}
}

// NewProgressStore creates an empty ProgressStore over kv. Call Load to read
// the persisted set.
func NewProgressStore(kv Persistence) *ProgressStore {
	return &ProgressStore{
		kv:   kv,
		read: make(map[int]struct{}),
	}
}

// Load replaces the in-memory set with the persisted one.
func (s *ProgressStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, progressKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.read = make(map[int]struct{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	var numbers []int
	if err := json.Unmarshal(data, &numbers); err != nil {
		return fmt.Errorf("decode progress: %w", err)
	}

	read := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if entities.ValidVerseNumber(n) {
			read[n] = struct{}{}
		}
	}
	s.read = read
	return nil
}

// Toggle flips the read state of verse n and returns the new state.
func (s *ProgressStore) Toggle(ctx context.Context, n int) (bool, error) {
	if !entities.ValidVerseNumber(n) {
		return false, fmt.Errorf("verse %d: %w", n, entities.ErrInvalidReference)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, wasRead := s.read[n]
	if wasRead {
		delete(s.read, n)
	} else {
		s.read[n] = struct{}{}
	}

	if err := s.persistLocked(ctx); err != nil {
		if wasRead {
			s.read[n] = struct{}{}
		} else {
			delete(s.read, n)
		}
		return wasRead, err
	}
	return !wasRead, nil
}

// MarkRange marks every verse in numbers as read. Verses already read are
// left alone and nothing is written when no verse changes.
func (s *ProgressStore) MarkRange(ctx context.Context, numbers []int) (int, error) {
	for _, n := range numbers {
		if !entities.ValidVerseNumber(n) {
			return 0, fmt.Errorf("verse %d: %w", n, entities.ErrInvalidReference)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added []int
	for _, n := range numbers {
		if _, ok := s.read[n]; ok {
			continue
		}
		s.read[n] = struct{}{}
		added = append(added, n)
	}
	if len(added) == 0 {
		return 0, nil
	}

	if err := s.persistLocked(ctx); err != nil {
		for _, n := range added {
			delete(s.read, n)
		}
		return 0, err
	}
	return len(added), nil
}

// Reset forgets every read verse.
func (s *ProgressStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, progressKey); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	s.read = make(map[int]struct{})
	return nil
}

// IsRead reports whether verse n is marked as read.
func (s *ProgressStore) IsRead(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.read[n]
	return ok
}

// Count returns the number of read verses.
func (s *ProgressStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.read)
}

// Snapshot returns the read verses in ascending order.
func (s *ProgressStore) Snapshot() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked()
}

// Summary returns the progress over the whole text.
func (s *ProgressStore) Summary() entities.ReadingSummary {
	return entities.NewReadingSummary(s.Count(), entities.TotalVerses)
}

// ChapterProgress returns the progress of the chapter spanning global verses first..last.
func (s *ProgressStore) ChapterProgress(chapter, first, last int) entities.ChapterProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	read := 0
	for n := first; n <= last; n++ {
		if _, ok := s.read[n]; ok {
			read++
		}
	}
	return entities.ChapterProgress{
		Chapter:        chapter,
		ReadingSummary: entities.NewReadingSummary(read, max(0, last-first+1)),
	}
}

func (s *ProgressStore) sortedLocked() []int {
	numbers := make([]int, 0, len(s.read))
	for n := range s.read {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers
}

func (s *ProgressStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.sortedLocked())
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.kv.Set(ctx, progressKey, data); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
