package entities

// ReadingSummary describes how much of the whole text has been marked as read.
type ReadingSummary struct {
	Read       int     // number of verses marked as read
	Total      int     // number of verses in scope
	Percentage float64 // Read / Total * 100
}

// Remaining returns the number of verses not read yet.
func (s ReadingSummary) Remaining() int {
	return max(0, s.Total-s.Read)
}

// ChapterProgress is the reading progress within a single chapter.
type ChapterProgress struct {
	Chapter int
	ReadingSummary
}

// NewReadingSummary calculates the percentage for read out of total.
func NewReadingSummary(read, total int) ReadingSummary {
	s := ReadingSummary{Read: read, Total: total}
	if total > 0 {
		s.Percentage = float64(read) / float64(total) * 100
	}
	return s
}
