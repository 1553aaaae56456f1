package service

import (
	"fmt"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

// mergeEditions joins the original text and the translation of a chapter by
// their in-chapter index. Both editions must cover exactly 1..verseCount.
func mergeEditions(chapter, verseCount int, text, translation []entities.EditionVerse) ([]entities.Verse, error) {
	if len(text) != len(translation) {
		return nil, fmt.Errorf("%w: chapter %d: %d verses in text, %d in translation",
			entities.ErrDataInconsistency, chapter, len(text), len(translation))
	}
	if verseCount > 0 && len(text) != verseCount {
		return nil, fmt.Errorf("%w: chapter %d: expected %d verses, got %d",
			entities.ErrDataInconsistency, chapter, verseCount, len(text))
	}

	byIndex, err := indexEdition(chapter, text)
	if err != nil {
		return nil, err
	}
	translated, err := indexEdition(chapter, translation)
	if err != nil {
		return nil, err
	}

	verses := make([]entities.Verse, len(text))
	for i := range verses {
		idx := i + 1

		orig, ok := byIndex[idx]
		if !ok {
			return nil, fmt.Errorf("%w: chapter %d: verse %d missing in text", entities.ErrDataInconsistency, chapter, idx)
		}
		tr, ok := translated[idx]
		if !ok {
			return nil, fmt.Errorf("%w: chapter %d: verse %d missing in translation", entities.ErrDataInconsistency, chapter, idx)
		}
		if orig.Number != tr.Number {
			return nil, fmt.Errorf("%w: chapter %d: verse %d has numbers %d and %d",
				entities.ErrDataInconsistency, chapter, idx, orig.Number, tr.Number)
		}

		verses[i] = entities.Verse{
			Number:          orig.Number,
			Text:            orig.Text,
			Translation:     tr.Text,
			ChapterNumber:   chapter,
			NumberInChapter: idx,
		}
	}

	return verses, nil
}

func indexEdition(chapter int, verses []entities.EditionVerse) (map[int]entities.EditionVerse, error) {
	m := make(map[int]entities.EditionVerse, len(verses))
	for _, v := range verses {
		if _, dup := m[v.NumberInChapter]; dup {
			return nil, fmt.Errorf("%w: chapter %d: verse %d listed twice",
				entities.ErrDataInconsistency, chapter, v.NumberInChapter)
		}
		m[v.NumberInChapter] = v
	}
	return m, nil
}
