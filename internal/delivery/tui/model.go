// Package tui is the terminal reader: a bubbletea view over one ReaderSession.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

const (
	seekStep  = 5.0
	speedStep = 0.25
)

type viewMode int

const (
	modeReader viewMode = iota
	modeResults
	modeSearch
	modeGoto
	modeNote
)

// Session is the part of a reader session the view drives.
type Session interface {
	State() service.ReaderState
	LoadChapter(ctx context.Context, n int) error
	JumpTo(ctx context.Context, chapter, verse int, autoPlay bool) error
	NavigateVerse(ctx context.Context, dir entities.Direction, autoPlay bool) (entities.Resolution, error)
	SearchByKeyword(ctx context.Context, text string) error
	SearchByReference(ctx context.Context, chapter, verse int) (entities.VerseMatch, error)
	SelectSearchResult(ctx context.Context, m entities.VerseMatch) error
	ClearSearch()
	ToggleRead(ctx context.Context, n int) (bool, error)
	MarkChapterRead(ctx context.Context, n int) (int, error)
	ReadingSummary() entities.ReadingSummary
	AddOrUpdateNote(ctx context.Context, n int, text string) (*entities.Note, error)
	Note(n int) (entities.Note, bool)
	TogglePlay(ctx context.Context) error
	SeekBy(ctx context.Context, delta float64) error
	SetSpeed(ctx context.Context, x float64) (float64, error)
	CycleRepeat() entities.RepeatMode
	Stop(ctx context.Context) error
}

// StateChanged tells the model to re-read the session. Send it from the
// session observer.
type StateChanged struct{}

type doneMsg struct {
	err    error
	status string
}

type Model struct {
	ctx      context.Context
	session  Session
	start    int
	viewport viewport.Model
	input    textinput.Model
	mode     viewMode
	state    service.ReaderState
	cursor   int
	status   string
	err      error
	width    int
	height   int
	ready    bool
}

// NewModel creates the reader opened on chapter start.
func NewModel(ctx context.Context, session Session, start int) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50

	return Model{
		ctx:     ctx,
		session: session,
		start:   start,
		input:   ti,
		mode:    modeReader,
		state:   session.State(),
	}
}

func (m Model) Init() tea.Cmd {
	start := m.start
	return m.run("", func(ctx context.Context) error {
		return m.session.LoadChapter(ctx, start)
	})
}

// run executes fn off the event loop. Session calls notify the observer,
// which sends back into the program.
func (m Model) run(status string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{err: fn(ctx), status: status}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch, modeGoto, modeNote:
			return m.updateInput(msg)
		case modeResults:
			return m.updateResults(msg)
		default:
			return m.updateReader(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(1, msg.Height-7))
			m.viewport.YPosition = 3
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(1, msg.Height-7)
		}
		m.refresh()

	case StateChanged:
		m.refresh()

	case doneMsg:
		switch {
		case msg.err == nil:
			m.err = nil
			if msg.status != "" {
				m.status = msg.status
			}
		case errors.Is(msg.err, service.ErrSuperseded):
		default:
			m.err = msg.err
			m.status = ""
		}
		m.refresh()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) updateReader(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.state
	selected, hasVerse := st.SelectedVerse()
	autoPlay := st.Playback.IsPlaying

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "n", "down", "j":
		return m, m.run("", func(ctx context.Context) error {
			_, err := m.session.NavigateVerse(ctx, entities.DirectionNext, autoPlay)
			return err
		})

	case "p", "up", "k":
		return m, m.run("", func(ctx context.Context) error {
			_, err := m.session.NavigateVerse(ctx, entities.DirectionPrev, autoPlay)
			return err
		})

	case "N", "P":
		if st.Chapter == nil {
			return m, nil
		}
		target := st.Chapter.Number + 1
		if msg.String() == "P" {
			target = st.Chapter.Number - 1
		}
		if !entities.ValidChapter(target) {
			return m, nil
		}
		return m, m.run("", func(ctx context.Context) error {
			return m.session.LoadChapter(ctx, target)
		})

	case " ", "enter":
		return m, m.run("", m.session.TogglePlay)

	case "s":
		return m, m.run("", m.session.Stop)

	case "left", "right":
		delta := seekStep
		if msg.String() == "left" {
			delta = -seekStep
		}
		return m, m.run("", func(ctx context.Context) error {
			return m.session.SeekBy(ctx, delta)
		})

	case "+", "=", "-":
		base := st.Playback.Speed
		if base == 0 {
			base = entities.DefaultSpeed
		}
		x := base + speedStep
		if msg.String() == "-" {
			x = base - speedStep
		}
		return m, func() tea.Msg {
			got, err := m.session.SetSpeed(m.ctx, x)
			return doneMsg{err: err, status: fmt.Sprintf("Speed %.2fx", got)}
		}

	case "r":
		return m, func() tea.Msg {
			mode := m.session.CycleRepeat()
			return doneMsg{status: "Repeat " + mode.String()}
		}

	case "m":
		if !hasVerse {
			return m, nil
		}
		return m, func() tea.Msg {
			read, err := m.session.ToggleRead(m.ctx, selected.Number)
			status := fmt.Sprintf("%s marked unread", selected.Location())
			if read {
				status = fmt.Sprintf("%s marked read", selected.Location())
			}
			return doneMsg{err: err, status: status}
		}

	case "M":
		if st.Chapter == nil {
			return m, nil
		}
		chapter := st.Chapter.Number
		return m, func() tea.Msg {
			added, err := m.session.MarkChapterRead(m.ctx, chapter)
			return doneMsg{err: err, status: fmt.Sprintf("%d verse(s) marked read", added)}
		}

	case "/":
		return m.openInput(modeSearch, "keyword or 2:255", "")

	case "g":
		return m.openInput(modeGoto, "chapter or chapter:verse", "")

	case "e":
		if !hasVerse {
			return m, nil
		}
		current := ""
		if n, ok := m.session.Note(selected.Number); ok {
			current = n.Text
		}
		return m.openInput(modeNote, "note, empty to delete", current)

	case "tab":
		if len(st.SearchResults) > 0 {
			m.mode = modeResults
			m.refresh()
		}
	}

	return m, nil
}

func (m Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	results := m.state.SearchResults

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc", "q":
		m.mode = modeReader
		m.cursor = 0
		m.refresh()
		return m, func() tea.Msg {
			m.session.ClearSearch()
			return doneMsg{}
		}

	case "tab":
		m.mode = modeReader
		m.refresh()

	case "down", "j":
		if m.cursor < len(results)-1 {
			m.cursor++
			m.refresh()
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.refresh()
		}

	case "enter":
		if m.cursor >= len(results) {
			return m, nil
		}
		match := results[m.cursor]
		m.mode = modeReader
		m.cursor = 0
		return m, m.run("", func(ctx context.Context) error {
			return m.session.SelectSearchResult(ctx, match)
		})
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.mode = modeReader
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.mode = modeReader
		m.input.Blur()
		m.input.SetValue("")
		return m.submit(mode, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) openInput(mode viewMode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) submit(mode viewMode, value string) (tea.Model, tea.Cmd) {
	value = strings.TrimSpace(value)

	switch mode {
	case modeSearch:
		if value == "" {
			return m, nil
		}
		m.cursor = 0
		if loc, ok := parseLocation(value); ok && loc.Verse > 0 {
			m.mode = modeResults
			return m, m.run("", func(ctx context.Context) error {
				_, err := m.session.SearchByReference(ctx, loc.Chapter, loc.Verse)
				return err
			})
		}
		m.mode = modeResults
		return m, m.run("", func(ctx context.Context) error {
			return m.session.SearchByKeyword(ctx, value)
		})

	case modeGoto:
		loc, ok := parseLocation(value)
		if !ok {
			m.err = entities.ErrInvalidReference
			return m, nil
		}
		if loc.Verse == 0 {
			return m, m.run("", func(ctx context.Context) error {
				return m.session.LoadChapter(ctx, loc.Chapter)
			})
		}
		return m, m.run("", func(ctx context.Context) error {
			return m.session.JumpTo(ctx, loc.Chapter, loc.Verse, false)
		})

	case modeNote:
		v, ok := m.state.SelectedVerse()
		if !ok {
			return m, nil
		}
		status := fmt.Sprintf("Note saved on %s", v.Location())
		if value == "" {
			status = fmt.Sprintf("Note removed from %s", v.Location())
		}
		return m, m.run(status, func(ctx context.Context) error {
			_, err := m.session.AddOrUpdateNote(ctx, v.Number, value)
			return err
		})
	}

	return m, nil
}

// refresh re-reads the session and re-renders the body.
func (m *Model) refresh() {
	m.state = m.session.State()
	if m.cursor >= len(m.state.SearchResults) {
		m.cursor = max(0, len(m.state.SearchResults)-1)
	}
	if !m.ready {
		return
	}

	if m.mode == modeResults {
		m.viewport.SetContent(formatResults(m.state.SearchResults, m.cursor))
		m.viewport.SetYOffset(max(0, m.cursor+2-m.viewport.Height/2))
		return
	}

	content, line := formatChapter(m.state, m.width, m.session.Note)
	m.viewport.SetContent(content)
	m.viewport.SetYOffset(max(0, line-m.viewport.Height/3))
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var header string
	switch m.mode {
	case modeSearch:
		header = headerStyle.Render("Search - keyword or chapter:verse") + "\n" + m.input.View()
	case modeGoto:
		header = headerStyle.Render("Go to - chapter or chapter:verse") + "\n" + m.input.View()
	case modeNote:
		header = headerStyle.Render("Note on "+m.state.Selected.String()) + "\n" + m.input.View()
	case modeResults:
		header = headerStyle.Render("Search results")
	default:
		title := "Quran"
		if ch := m.state.Chapter; ch != nil {
			title = fmt.Sprintf("%d. %s  %s  (%d verses)", ch.Number, ch.EnglishName, ch.Name, ch.VerseCount)
		}
		header = headerStyle.Render(titleStyle.Render(title) + "   " + formatSummary(m.session.ReadingSummary()))
	}

	var help string
	switch {
	case m.state.Loading:
		help = helpStyle.Render("Loading...")
	case m.state.Searching:
		help = helpStyle.Render("Searching...")
	case m.mode == modeResults:
		help = helpStyle.Render("↑/↓: move | enter: open | tab: back to reader | esc: close")
	default:
		help = helpStyle.Render("n/p: verse | N/P: chapter | space: play | ←/→: seek | +/-: speed | r: repeat | " +
			"m/M: read | e: note | /: search | g: go to | q: quit")
	}

	line := helpStyle.Render(formatPlayback(m.state.Playback))
	if m.status != "" {
		line += "   " + statusStyle.Render(m.status)
	}

	err := m.err
	if err == nil {
		err = m.state.Err
	}
	var errorMsg string
	if err != nil {
		errorMsg = "\n" + errorStyle.Render(errorText(err))
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s%s", header, m.viewport.View(), line, help, errorMsg)
}
