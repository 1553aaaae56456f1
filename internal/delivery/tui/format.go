package tui

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

// noteLookup returns the note of a global verse number.
type noteLookup func(n int) (entities.Note, bool)

// formatChapter renders the verses of st and returns the line the selected
// verse starts on.
func formatChapter(st service.ReaderState, width int, notes noteLookup) (string, int) {
	if width <= 0 {
		width = 80
	}
	w := max(20, width-8)

	var (
		sb       strings.Builder
		lines    int
		selected int
	)
	for _, v := range st.Verses {
		if v.Location() == st.Selected {
			selected = lines
		}

		num := verseNumStyle.Render(fmt.Sprintf("%3d", v.NumberInChapter))
		if v.Location() == st.Selected {
			num = selectedNumStyle.Render(fmt.Sprintf("▶%2d", v.NumberInChapter))
		}
		mark := " "
		if isRead(st.Progress, v.Number) {
			mark = readMark
		}

		block := textStyle.Width(w).Render(v.Text) + "\n" +
			translationStyle.Width(w).Render(v.Translation)
		if notes != nil {
			if n, ok := notes(v.Number); ok {
				block += "\n" + noteStyle.Width(w).Render("✎ "+n.Text)
			}
		}

		entry := lipgloss.JoinHorizontal(lipgloss.Top, num+" "+mark+" ", block)
		sb.WriteString(entry)
		sb.WriteString("\n\n")
		lines += lipgloss.Height(entry) + 1
	}

	return sb.String(), selected
}

// formatResults renders search results with the cursor on index cursor.
func formatResults(matches []entities.VerseMatch, cursor int) string {
	if len(matches) == 0 {
		return "No verses found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d result(s), enter to open, esc to close\n\n", len(matches))
	for i, m := range matches {
		text := m.Translation
		if text == "" {
			text = m.Text
		}
		ref := verseNumStyle.Render(fmt.Sprintf("%-7s", m.Location()))
		if i == cursor {
			ref = selectedNumStyle.Render(fmt.Sprintf("%-7s", m.Location()))
		}
		fmt.Fprintf(&sb, "%s %s  %s\n", ref, m.ChapterName, truncate(text, 100))
	}
	return sb.String()
}

// formatPlayback renders the playback line.
func formatPlayback(ps entities.PlaybackState) string {
	if !ps.HasSession() {
		return fmt.Sprintf("■ stopped   repeat %s", ps.Repeat)
	}

	icon := "▶"
	switch ps.Status {
	case entities.StatusPaused:
		icon = "⏸"
	case entities.StatusLoading:
		icon = "…"
	case entities.StatusCompleted:
		icon = "■"
	}

	return fmt.Sprintf("%s #%d  %s / %s  %.2fx  repeat %s",
		icon, ps.ActiveVerse, clock(ps.Position), clock(ps.Duration), ps.Speed, ps.Repeat)
}

func formatSummary(s entities.ReadingSummary) string {
	return fmt.Sprintf("%d/%d read (%.1f%%)", s.Read, s.Total, s.Percentage)
}

// errorText turns err into the line shown under the reader.
func errorText(err error) string {
	switch {
	case errors.Is(err, entities.ErrInvalidReference):
		return "Invalid reference (chapters 1-114, e.g. 2:255)"
	case errors.Is(err, entities.ErrNetworkFailure):
		return "Verse service unreachable, try again later"
	case errors.Is(err, entities.ErrDataInconsistency):
		return "Received inconsistent verse data"
	case errors.Is(err, entities.ErrPlaybackFailure):
		return "Playback failed: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

// parseLocation parses "18" or "2:255". A missing verse is returned as 0.
func parseLocation(s string) (entities.Location, bool) {
	s = strings.TrimSpace(s)
	chapter, verse, found := strings.Cut(s, ":")

	c, err := strconv.Atoi(strings.TrimSpace(chapter))
	if err != nil {
		return entities.Location{}, false
	}
	if !found {
		return entities.Location{Chapter: c}, true
	}

	v, err := strconv.Atoi(strings.TrimSpace(verse))
	if err != nil {
		return entities.Location{}, false
	}
	return entities.Location{Chapter: c, Verse: v}, true
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func isRead(progress []int, n int) bool {
	i := sort.SearchInts(progress, n)
	return i < len(progress) && progress[i] == n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
