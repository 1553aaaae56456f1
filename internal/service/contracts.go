package service

import (
	"context"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

// VerseProvider fetches verse text from a remote source keyed by chapter and edition.
type VerseProvider interface {
	GetChapterText(ctx context.Context, chapter int, edition string) ([]entities.EditionVerse, error)
	GetVerse(ctx context.Context, chapter, verse int, edition string) (*entities.Verse, error)
	SearchKeyword(ctx context.Context, text, edition string) ([]entities.VerseMatch, error)
}

// ChapterCatalog provides the chapter reference data.
type ChapterCatalog interface {
	GetByNumber(ctx context.Context, number int) (*entities.Chapter, error)
	VerseRange(ctx context.Context, number int) (first, last int, err error)
}

// Persistence is a key-value store of JSON blobs that survives restarts.
type Persistence interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// AudioBackend starts playback of a single audio resource.
type AudioBackend interface {
	Open(ctx context.Context, src AudioSource, speed float64) (AudioStream, error)
}

// AudioSource identifies the resource a backend plays.
type AudioSource struct {
	VerseNumber int
	URL         string
}

// AudioStream is one playing resource. Events is closed once the stream is
// closed or has ended.
type AudioStream interface {
	Events() <-chan entities.AudioEvent
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	SetSpeed(ctx context.Context, speed float64) error
	Close() error
}

// ReminderNotifier delivers reading reminders to chats.
type ReminderNotifier interface {
	SendReminder(ctx context.Context, chatID int64, summary entities.ReadingSummary) error
}
