package entities

import "time"

// Note is a free-text note attached to a verse.
type Note struct {
	VerseNumber int       `json:"verse_number"` // global verse number the note belongs to
	Text        string    `json:"text"`
	UpdatedAt   time.Time `json:"updated_at"`
}
