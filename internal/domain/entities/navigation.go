package entities

import "fmt"

// UnknownIndex marks a verse index that cannot be known before the target
// chapter is fetched (the last verse of the previous chapter).
const UnknownIndex = 0

// Location addresses a verse by chapter and position inside the chapter.
type Location struct {
	Chapter int
	Verse   int
}

// IsZero reports whether no verse is addressed.
func (l Location) IsZero() bool {
	return l.Chapter == 0 && l.Verse == 0
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Chapter, l.Verse)
}

// Direction is the direction of verse navigation.
type Direction int

const (
	DirectionNext Direction = iota
	DirectionPrev
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionNext:
		return "next"
	case DirectionPrev:
		return "prev"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of resolving a navigation step.
type Resolution struct {
	Chapter             int
	Index               int  // UnknownIndex when the chapter must be fetched first
	RequiresChapterLoad bool // target lies in a chapter other than the loaded one
}
