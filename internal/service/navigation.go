package service

import "github.com/aliskhannn/quran-companion/internal/domain/entities"

// Resolve computes the location one step away from (chapter, index) in dir.
// loaded is the verse list of the currently displayed chapter.
//
// A step past the last loaded verse resolves to the first verse of the next
// chapter, a step before the first verse to the previous chapter with an
// unknown index. At the two ends of the text, or when chapter is not the
// loaded one, the current location is returned unchanged.
func Resolve(loaded []entities.Verse, chapter, index int, dir entities.Direction) entities.Resolution {
	target := index + 1
	if dir == entities.DirectionPrev {
		target = index - 1
	}

	last := 0
	for _, v := range loaded {
		if v.ChapterNumber != chapter {
			continue
		}
		if v.NumberInChapter == target {
			return entities.Resolution{Chapter: chapter, Index: target}
		}
		last = max(last, v.NumberInChapter)
	}

	stay := entities.Resolution{Chapter: chapter, Index: index}
	if last == 0 {
		return stay
	}

	switch {
	case dir == entities.DirectionNext && target > last && chapter < entities.TotalChapters:
		return entities.Resolution{Chapter: chapter + 1, Index: 1, RequiresChapterLoad: true}
	case dir == entities.DirectionPrev && target < 1 && chapter > 1:
		return entities.Resolution{Chapter: chapter - 1, Index: entities.UnknownIndex, RequiresChapterLoad: true}
	default:
		return stay
	}
}
