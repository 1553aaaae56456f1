package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrInvalidNumber   = fmt.Errorf("invalid chapter number: %w", entities.ErrInvalidReference)
	ErrInvalidVerse    = fmt.Errorf("invalid verse number: %w", entities.ErrInvalidReference)
)

// ChapterSource lists the chapter reference data, usually the remote provider.
type ChapterSource interface {
	ListChapters(ctx context.Context) ([]entities.Chapter, error)
}

// ChapterRepository provides access to the 114 chapters.
// The list is fetched from the source on first use and kept for the process
// lifetime. Concurrent callers share one fetch. A failed fetch is not cached.
type ChapterRepository struct {
	source ChapterSource
	fetch  singleflight.Group

	mu       sync.Mutex
	chapters []entities.Chapter // chapters[n-1] is chapter n
	first    []int              // first[n-1] is the global number of the first verse of chapter n
}

// NewChapterRepository creates a new ChapterRepository backed by source.
func NewChapterRepository(source ChapterSource) *ChapterRepository {
	return &ChapterRepository{source: source}
}

// GetByNumber retrieves a chapter by its number (1-114).
func (r *ChapterRepository) GetByNumber(ctx context.Context, number int) (*entities.Chapter, error) {
	if !entities.ValidChapter(number) {
		return nil, ErrInvalidNumber
	}

	if err := r.ensure(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.chapters[number-1]
	return &ch, nil
}

// GetAll retrieves all 114 chapters in order.
func (r *ChapterRepository) GetAll(ctx context.Context) ([]entities.Chapter, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entities.Chapter(nil), r.chapters...), nil
}

// VerseRange returns the global numbers of the first and last verse of a chapter.
func (r *ChapterRepository) VerseRange(ctx context.Context, number int) (int, int, error) {
	ch, err := r.GetByNumber(ctx, number)
	if err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	first := r.first[number-1]
	r.mu.Unlock()

	return first, first + ch.VerseCount - 1, nil
}

// Locate converts a global verse number into its chapter address.
func (r *ChapterRepository) Locate(ctx context.Context, verseNumber int) (entities.Location, error) {
	if !entities.ValidVerseNumber(verseNumber) {
		return entities.Location{}, ErrInvalidVerse
	}

	if err := r.ensure(ctx); err != nil {
		return entities.Location{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// first chapter whose range starts after verseNumber, minus one
	i := sort.SearchInts(r.first, verseNumber+1) - 1
	return entities.Location{Chapter: i + 1, Verse: verseNumber - r.first[i] + 1}, nil
}

func (r *ChapterRepository) ensure(ctx context.Context) error {
	r.mu.Lock()
	loaded := r.chapters != nil
	r.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := r.fetch.Do("chapters", func() (any, error) {
		r.mu.Lock()
		loaded := r.chapters != nil
		r.mu.Unlock()
		if loaded {
			return nil, nil
		}

		chapters, err := r.source.ListChapters(ctx)
		if err != nil {
			return nil, err
		}

		first, err := validateChapters(chapters)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		if r.chapters == nil {
			r.chapters = chapters
			r.first = first
		}
		return nil, nil
	})
	return err
}

// validateChapters sorts chapters by number and checks that they describe the
// whole text. It returns the global number of each chapter's first verse.
func validateChapters(chapters []entities.Chapter) ([]int, error) {
	if len(chapters) != entities.TotalChapters {
		return nil, fmt.Errorf("%w: expected %d chapters, got %d",
			entities.ErrDataInconsistency, entities.TotalChapters, len(chapters))
	}

	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })

	first := make([]int, len(chapters))
	next := 1
	for i, ch := range chapters {
		if ch.Number != i+1 {
			return nil, fmt.Errorf("%w: chapter %d missing", entities.ErrDataInconsistency, i+1)
		}
		if ch.VerseCount <= 0 {
			return nil, fmt.Errorf("%w: chapter %d has no verses", entities.ErrDataInconsistency, ch.Number)
		}
		first[i] = next
		next += ch.VerseCount
	}

	if total := next - 1; total != entities.TotalVerses {
		return nil, fmt.Errorf("%w: expected %d verses, got %d",
			entities.ErrDataInconsistency, entities.TotalVerses, total)
	}

	return first, nil
}
