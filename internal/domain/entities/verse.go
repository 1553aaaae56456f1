// Package entities contains domain entities used across the application.
package entities

const (
	TotalChapters = 114  // number of chapters (surahs) in the text
	TotalVerses   = 6236 // number of verses (ayahs) in the whole text
)

// Verse represents a single ayah with its original text and translation.
// Number is the global identity used for progress and audio, while
// ChapterNumber and NumberInChapter address the verse for navigation.
type Verse struct {
	Number          int    `json:"number"`            // global verse number (from 1 to 6236)
	Text            string `json:"text"`              // original script
	Translation     string `json:"translation"`       // text of the translation edition
	ChapterNumber   int    `json:"chapter_number"`    // chapter the verse belongs to (from 1 to 114)
	NumberInChapter int    `json:"number_in_chapter"` // 1-based position inside the chapter
}

// Location returns the navigation address of the verse.
func (v Verse) Location() Location {
	return Location{Chapter: v.ChapterNumber, Verse: v.NumberInChapter}
}

// EditionVerse is one verse as returned by a single edition, before the
// original text and the translation are merged.
type EditionVerse struct {
	Number          int
	Text            string
	NumberInChapter int
}

// Chapter represents a surah. Chapters are read-only reference data.
type Chapter struct {
	Number                 int    `json:"number"`                   // chapter number (from 1 to 114)
	Name                   string `json:"name"`                     // name in the original script
	EnglishName            string `json:"english_name"`             // transliterated name
	EnglishNameTranslation string `json:"english_name_translation"` // meaning of the name
	VerseCount             int    `json:"verse_count"`              // number of verses in the chapter
	RevelationType         string `json:"revelation_type"`          // "Meccan" or "Medinan"
}

// VerseMatch is one element of a search result: a verse with the label of
// the chapter it was found in.
type VerseMatch struct {
	Verse
	ChapterName string `json:"chapter_name"`
}

// ValidChapter reports whether n addresses an existing chapter.
func ValidChapter(n int) bool {
	return n >= 1 && n <= TotalChapters
}

// ValidVerseNumber reports whether n is a valid global verse number.
func ValidVerseNumber(n int) bool {
	return n >= 1 && n <= TotalVerses
}
