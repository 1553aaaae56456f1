package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

// Editions selects the text variants a session reads.
type Editions struct {
	Text        string // original script
	Translation string // shown next to the original
	Search      string // keyword search runs against this edition
}

// ReaderConfig configures a ReaderSession.
type ReaderConfig struct {
	Editions     Editions
	FetchTimeout time.Duration // upper bound of every provider call, 0 disables it
}

// ReaderState is a snapshot of everything a view renders.
type ReaderState struct {
	SessionID     string
	Loading       bool
	Searching     bool
	Chapter       *entities.Chapter // nil until the first chapter is loaded
	Verses        []entities.Verse
	Selected      entities.Location
	Playback      entities.PlaybackState
	SearchResults []entities.VerseMatch
	Progress      []int // read verses in ascending order
	Err           error // last failure, cleared by the next successful request
}

// SelectedVerse returns the selected verse of the loaded chapter.
func (s ReaderState) SelectedVerse() (entities.Verse, bool) {
	for _, v := range s.Verses {
		if v.Location() == s.Selected {
			return v, true
		}
	}
	return entities.Verse{}, false
}

type pendingTarget struct {
	gen      uint64
	verse    int // entities.UnknownIndex selects the last verse
	autoPlay bool
}

// ReaderSession is the reading experience driven by a view: the loaded
// chapter, the selected verse, search results, playback and progress.
//
// Chapter loads and searches carry a generation; a response that is no
// longer the latest is dropped with ErrSuperseded. The session lock is never
// held while calling the player, the provider or the observer.
type ReaderSession struct {
	id       string
	provider VerseProvider
	catalog  ChapterCatalog
	player   *PlaybackController
	progress *ProgressStore
	notes    *NoteStore
	cfg      ReaderConfig
	logger   *zap.Logger

	mu        sync.Mutex
	loading   bool
	searching bool
	chapter   *entities.Chapter
	verses    []entities.Verse
	selected  entities.Location
	results   []entities.VerseMatch
	err       error
	loadGen   uint64
	searchGen uint64
	pending   *pendingTarget
	observer  func()
}

// NewReaderSession creates a session and takes over the player's handlers.
func NewReaderSession(
	provider VerseProvider,
	catalog ChapterCatalog,
	player *PlaybackController,
	progress *ProgressStore,
	notes *NoteStore,
	cfg ReaderConfig,
	logger *zap.Logger,
) *ReaderSession {
	s := &ReaderSession{
		id:       uuid.NewString(),
		provider: provider,
		catalog:  catalog,
		player:   player,
		progress: progress,
		notes:    notes,
		cfg:      cfg,
	}
	s.logger = logger.With(zap.String("session_id", s.id))

	player.SetStateHandler(func(entities.PlaybackState) { s.notify() })
	player.SetAdvanceHandler(s.onAdvance)
	player.SetErrorHandler(func(err error) {
		s.setErr(err)
		s.notify()
	})

	return s
}

// ID returns the session identifier used in logs.
func (s *ReaderSession) ID() string { return s.id }

// Start loads the persisted progress and notes.
func (s *ReaderSession) Start(ctx context.Context) error {
	if err := s.progress.Load(ctx); err != nil {
		return err
	}
	if err := s.notes.Load(ctx); err != nil {
		return err
	}
	s.logger.Info("reader session started", zap.Int("read_verses", s.progress.Count()))
	return nil
}

// SetObserver registers a function called after every state change.
func (s *ReaderSession) SetObserver(fn func()) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// State returns a snapshot of the session.
func (s *ReaderSession) State() ReaderState {
	s.mu.Lock()
	st := ReaderState{
		SessionID:     s.id,
		Loading:       s.loading,
		Searching:     s.searching,
		Chapter:       s.chapter,
		Verses:        s.verses,
		Selected:      s.selected,
		SearchResults: s.results,
		Err:           s.err,
	}
	s.mu.Unlock()

	st.Playback = s.player.State()
	st.Progress = s.progress.Snapshot()
	return st
}

// LoadChapter replaces the displayed chapter with chapter n and selects its
// first verse. While the fetch runs the previous chapter stays displayed.
func (s *ReaderSession) LoadChapter(ctx context.Context, n int) error {
	if !entities.ValidChapter(n) {
		return s.fail(fmt.Errorf("chapter %d: %w", n, entities.ErrInvalidReference))
	}
	return s.load(ctx, n, nil)
}

// JumpTo selects verse of chapter, loading the chapter first when it is not
// the displayed one. The request claims its generation before validating, so
// a later jump or load wins even over a jump still checking the catalog.
func (s *ReaderSession) JumpTo(ctx context.Context, chapter, verse int, autoPlay bool) error {
	if !entities.ValidChapter(chapter) {
		return s.fail(fmt.Errorf("chapter %d: %w", chapter, entities.ErrInvalidReference))
	}

	gen := s.claim(&pendingTarget{verse: verse, autoPlay: autoPlay})

	ch, err := s.chapterInfo(ctx, chapter)
	if err == nil && (verse < 1 || verse > ch.VerseCount) {
		err = fmt.Errorf("verse %d:%d: %w", chapter, verse, entities.ErrInvalidReference)
	}
	if err != nil {
		s.mu.Lock()
		if gen != s.loadGen {
			s.mu.Unlock()
			return ErrSuperseded
		}
		s.loading = false
		s.pending = nil
		s.err = err
		s.mu.Unlock()

		s.notify()
		return err
	}

	return s.jump(ctx, chapter, verse, autoPlay, gen)
}

// claim starts a new load generation that abandons every earlier load or jump.
func (s *ReaderSession) claim(target *pendingTarget) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadGen++
	s.pending = target
	if target != nil {
		target.gen = s.loadGen
	}
	return s.loadGen
}

func (s *ReaderSession) jump(ctx context.Context, chapter, verse int, autoPlay bool, gen uint64) error {
	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if s.chapter == nil || s.chapter.Number != chapter {
		s.loading = true
		s.err = nil
		s.mu.Unlock()
		s.notify()
		return s.fetch(ctx, chapter, gen)
	}

	// Same chapter: the claimed generation already dropped any load in flight.
	s.loading = false
	s.pending = nil
	target, ok := s.selectLocked(verse)
	s.err = nil
	s.mu.Unlock()

	s.notify()
	if ok && autoPlay {
		return s.startVerse(ctx, target.Number)
	}
	return nil
}

func (s *ReaderSession) load(ctx context.Context, n int, target *pendingTarget) error {
	gen := s.claim(target)

	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
	s.notify()

	return s.fetch(ctx, n, gen)
}

// fetch loads chapter n for generation gen and applies it if gen is still
// the latest.
func (s *ReaderSession) fetch(ctx context.Context, n int, gen uint64) error {
	s.logger.Debug("loading chapter", zap.Int("chapter", n), zap.Uint64("generation", gen))
	ch, verses, err := s.fetchChapter(ctx, n)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		s.logger.Debug("dropping stale chapter", zap.Int("chapter", n), zap.Uint64("generation", gen))
		return ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.pending = nil
		s.err = err
		s.mu.Unlock()

		s.logger.Error("failed to load chapter", zap.Int("chapter", n), zap.Error(err))
		s.notify()
		return err
	}

	s.chapter = ch
	s.verses = verses

	selectVerse, autoPlay := 1, false
	if p := s.pending; p != nil && p.gen == gen {
		selectVerse, autoPlay = p.verse, p.autoPlay
	}
	s.pending = nil
	selected, ok := s.selectLocked(selectVerse)
	s.mu.Unlock()

	s.player.SetQueue(verses)
	s.logger.Info("chapter loaded", zap.Int("chapter", n), zap.Int("verses", len(verses)))
	s.notify()

	if ok && autoPlay {
		return s.startVerse(ctx, selected.Number)
	}
	return nil
}

// selectLocked selects the verse with the given in-chapter index of the
// loaded chapter. UnknownIndex selects the last verse.
func (s *ReaderSession) selectLocked(index int) (entities.Verse, bool) {
	if len(s.verses) == 0 {
		return entities.Verse{}, false
	}
	if index == entities.UnknownIndex {
		index = s.verses[len(s.verses)-1].NumberInChapter
	}
	for _, v := range s.verses {
		if v.NumberInChapter == index {
			s.selected = v.Location()
			return v, true
		}
	}
	s.selected = s.verses[0].Location()
	return s.verses[0], true
}

func (s *ReaderSession) fetchChapter(ctx context.Context, n int) (*entities.Chapter, []entities.Verse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ch, err := s.catalog.GetByNumber(ctx, n)
	if err != nil {
		return nil, nil, networkFailure(err)
	}

	var text, translation []entities.EditionVerse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = s.provider.GetChapterText(gctx, n, s.cfg.Editions.Text)
		return err
	})
	g.Go(func() error {
		var err error
		translation, err = s.provider.GetChapterText(gctx, n, s.cfg.Editions.Translation)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, networkFailure(err)
	}

	verses, err := mergeEditions(n, ch.VerseCount, text, translation)
	if err != nil {
		return nil, nil, err
	}
	return ch, verses, nil
}

// NavigateVerse moves the selection one verse in dir, crossing into the
// adjacent chapter at an edge. Moving back from a first verse selects the
// last verse of the previous chapter.
func (s *ReaderSession) NavigateVerse(ctx context.Context, dir entities.Direction, autoPlay bool) (entities.Resolution, error) {
	s.mu.Lock()
	verses := s.verses
	cur := s.selected
	s.mu.Unlock()

	res := Resolve(verses, cur.Chapter, cur.Verse, dir)
	if res.Chapter == cur.Chapter && res.Index == cur.Verse {
		return res, nil
	}
	gen := s.claim(&pendingTarget{verse: res.Index, autoPlay: autoPlay})
	return res, s.jump(ctx, res.Chapter, res.Index, autoPlay, gen)
}

// SearchByKeyword replaces the search results with the verses matching text.
// Blank text is ignored.
func (s *ReaderSession) SearchByKeyword(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	gen := s.beginSearch()

	fctx, cancel := s.withTimeout(ctx)
	matches, err := s.provider.SearchKeyword(fctx, text, s.cfg.Editions.Search)
	cancel()
	if err != nil {
		err = networkFailure(err)
	}

	if s.cfg.Editions.Search != s.cfg.Editions.Text {
		for i := range matches {
			matches[i].Translation, matches[i].Text = matches[i].Text, ""
		}
	}
	return s.finishSearch(gen, matches, err)
}

// SearchByReference looks up a single verse by its chapter address and makes
// it the only search result.
func (s *ReaderSession) SearchByReference(ctx context.Context, chapter, verse int) (entities.VerseMatch, error) {
	if !entities.ValidChapter(chapter) {
		return entities.VerseMatch{}, s.fail(fmt.Errorf("chapter %d: %w", chapter, entities.ErrInvalidReference))
	}

	gen := s.beginSearch()
	m, err := s.lookupVerse(ctx, chapter, verse)
	if err != nil {
		return entities.VerseMatch{}, s.finishSearch(gen, nil, err)
	}
	return m, s.finishSearch(gen, []entities.VerseMatch{m}, nil)
}

func (s *ReaderSession) lookupVerse(ctx context.Context, chapter, verse int) (entities.VerseMatch, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ch, err := s.catalog.GetByNumber(ctx, chapter)
	if err != nil {
		return entities.VerseMatch{}, networkFailure(err)
	}
	if verse < 1 || verse > ch.VerseCount {
		return entities.VerseMatch{}, fmt.Errorf("verse %d:%d: %w", chapter, verse, entities.ErrInvalidReference)
	}

	var text, translation *entities.Verse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = s.provider.GetVerse(gctx, chapter, verse, s.cfg.Editions.Text)
		return err
	})
	g.Go(func() error {
		var err error
		translation, err = s.provider.GetVerse(gctx, chapter, verse, s.cfg.Editions.Translation)
		return err
	})
	if err := g.Wait(); err != nil {
		return entities.VerseMatch{}, networkFailure(err)
	}

	if text.Number != translation.Number {
		return entities.VerseMatch{}, fmt.Errorf("%w: verse %d:%d has numbers %d and %d",
			entities.ErrDataInconsistency, chapter, verse, text.Number, translation.Number)
	}

	return entities.VerseMatch{
		Verse: entities.Verse{
			Number:          text.Number,
			Text:            text.Text,
			Translation:     translation.Text,
			ChapterNumber:   chapter,
			NumberInChapter: verse,
		},
		ChapterName: ch.EnglishName,
	}, nil
}

func (s *ReaderSession) beginSearch() uint64 {
	s.mu.Lock()
	s.searchGen++
	gen := s.searchGen
	s.searching = true
	s.err = nil
	s.mu.Unlock()

	s.notify()
	return gen
}

func (s *ReaderSession) finishSearch(gen uint64, matches []entities.VerseMatch, err error) error {
	s.mu.Lock()
	if gen != s.searchGen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.searching = false
	if err != nil {
		s.err = err
	} else {
		s.results = matches
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
	}
	s.notify()
	return err
}

// ClearSearch drops the search results.
func (s *ReaderSession) ClearSearch() {
	s.mu.Lock()
	s.results = nil
	s.mu.Unlock()

	s.notify()
}

// SelectSearchResult jumps to m and starts playing it.
func (s *ReaderSession) SelectSearchResult(ctx context.Context, m entities.VerseMatch) error {
	s.mu.Lock()
	s.results = nil
	s.mu.Unlock()

	return s.JumpTo(ctx, m.ChapterNumber, m.NumberInChapter, true)
}

// ToggleRead flips the read state of verse n.
func (s *ReaderSession) ToggleRead(ctx context.Context, n int) (bool, error) {
	read, err := s.progress.Toggle(ctx, n)
	if err != nil {
		return read, s.fail(err)
	}
	s.notify()
	return read, nil
}

// MarkChapterRead marks every verse of chapter n as read and returns how many
// verses changed.
func (s *ReaderSession) MarkChapterRead(ctx context.Context, n int) (int, error) {
	first, last, err := s.chapterRange(ctx, n)
	if err != nil {
		return 0, s.fail(err)
	}

	numbers := make([]int, 0, last-first+1)
	for v := first; v <= last; v++ {
		numbers = append(numbers, v)
	}

	added, err := s.progress.MarkRange(ctx, numbers)
	if err != nil {
		return 0, s.fail(err)
	}
	s.notify()
	return added, nil
}

// ReadingSummary returns the progress over the whole text.
func (s *ReaderSession) ReadingSummary() entities.ReadingSummary {
	return s.progress.Summary()
}

// ChapterProgress returns the progress within chapter n.
func (s *ReaderSession) ChapterProgress(ctx context.Context, n int) (entities.ChapterProgress, error) {
	first, last, err := s.chapterRange(ctx, n)
	if err != nil {
		return entities.ChapterProgress{}, err
	}
	return s.progress.ChapterProgress(n, first, last), nil
}

// ResetProgress forgets every read verse.
func (s *ReaderSession) ResetProgress(ctx context.Context) error {
	if err := s.progress.Reset(ctx); err != nil {
		return s.fail(err)
	}
	s.logger.Info("reading progress reset")
	s.notify()
	return nil
}

// Reset forgets the reading progress and every note. The progress and note
// stores share one Persistence; both keys go in a single Delete so a
// transactional store drops them together.
func (s *ReaderSession) Reset(ctx context.Context) error {
	s.progress.mu.Lock()
	s.notes.mu.Lock()
	err := s.progress.kv.Delete(ctx, progressKey, notesKey)
	if err == nil {
		s.progress.read = make(map[int]struct{})
		s.notes.notes = make(map[int]entities.Note)
	}
	s.notes.mu.Unlock()
	s.progress.mu.Unlock()

	if err != nil {
		return s.fail(fmt.Errorf("reset reader: %w", err))
	}
	s.logger.Info("reading progress and notes reset")
	s.notify()
	return nil
}

// AddOrUpdateNote sets the note of verse n. Blank text removes it.
func (s *ReaderSession) AddOrUpdateNote(ctx context.Context, n int, text string) (*entities.Note, error) {
	note, err := s.notes.Put(ctx, n, text)
	if err != nil {
		return nil, s.fail(err)
	}
	s.notify()
	return note, nil
}

// DeleteNote removes the note of verse n.
func (s *ReaderSession) DeleteNote(ctx context.Context, n int) error {
	if err := s.notes.Delete(ctx, n); err != nil {
		return s.fail(err)
	}
	s.notify()
	return nil
}

// Note returns the note of verse n.
func (s *ReaderSession) Note(n int) (entities.Note, bool) {
	return s.notes.Get(n)
}

// Notes returns every note ordered by verse.
func (s *ReaderSession) Notes() []entities.Note {
	return s.notes.All()
}

// PlayVerse plays verse n, or toggles pause when it is already active.
// A verse of the loaded chapter also becomes the selection.
func (s *ReaderSession) PlayVerse(ctx context.Context, n int) error {
	s.mu.Lock()
	for _, v := range s.verses {
		if v.Number == n {
			s.selected = v.Location()
			break
		}
	}
	s.mu.Unlock()

	return s.startVerse(ctx, n)
}

// TogglePlay pauses or resumes the active verse, or plays the selected one
// when nothing is active.
func (s *ReaderSession) TogglePlay(ctx context.Context) error {
	if ps := s.player.State(); ps.HasSession() {
		return s.startVerse(ctx, ps.ActiveVerse)
	}

	v, ok := s.State().SelectedVerse()
	if !ok {
		return nil
	}
	return s.startVerse(ctx, v.Number)
}

func (s *ReaderSession) startVerse(ctx context.Context, n int) error {
	err := s.player.Play(ctx, n)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		return s.fail(err)
	}
	return nil
}

// Pause pauses playback.
func (s *ReaderSession) Pause(ctx context.Context) error {
	return s.failIf(s.player.Pause(ctx))
}

// Resume resumes paused playback.
func (s *ReaderSession) Resume(ctx context.Context) error {
	return s.failIf(s.player.Resume(ctx))
}

// SeekBy moves the playback position by delta seconds.
func (s *ReaderSession) SeekBy(ctx context.Context, delta float64) error {
	return s.failIf(s.player.SeekBy(ctx, delta))
}

// SetSpeed sets the playback speed and returns the applied value.
func (s *ReaderSession) SetSpeed(ctx context.Context, x float64) (float64, error) {
	applied, err := s.player.SetSpeed(ctx, x)
	return applied, s.failIf(err)
}

// CycleRepeat moves to the next repeat mode.
func (s *ReaderSession) CycleRepeat() entities.RepeatMode {
	return s.player.CycleRepeatMode()
}

// Stop ends playback.
func (s *ReaderSession) Stop(ctx context.Context) error {
	return s.player.Stop(ctx)
}

// Close tears playback down. The session must not be used afterwards.
func (s *ReaderSession) Close() error {
	s.logger.Info("reader session closed")
	return s.player.Close()
}

func (s *ReaderSession) onAdvance(v entities.Verse) {
	s.mu.Lock()
	if s.chapter != nil && s.chapter.Number == v.ChapterNumber {
		s.selected = v.Location()
	}
	s.mu.Unlock()

	s.notify()
}

func (s *ReaderSession) chapterInfo(ctx context.Context, n int) (*entities.Chapter, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ch, err := s.catalog.GetByNumber(ctx, n)
	if err != nil {
		return nil, networkFailure(err)
	}
	return ch, nil
}

func (s *ReaderSession) chapterRange(ctx context.Context, n int) (int, int, error) {
	if !entities.ValidChapter(n) {
		return 0, 0, fmt.Errorf("chapter %d: %w", n, entities.ErrInvalidReference)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	first, last, err := s.catalog.VerseRange(ctx, n)
	if err != nil {
		return 0, 0, networkFailure(err)
	}
	return first, last, nil
}

func (s *ReaderSession) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.FetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.FetchTimeout)
}

// fail records err in the state and returns it.
func (s *ReaderSession) fail(err error) error {
	s.setErr(err)
	s.notify()
	return err
}

func (s *ReaderSession) failIf(err error) error {
	if err == nil {
		return nil
	}
	return s.fail(err)
}

func (s *ReaderSession) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.logger.Warn("reader request failed", zap.Error(err))
}

func (s *ReaderSession) notify() {
	s.mu.Lock()
	fn := s.observer
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// networkFailure classifies deadline and cancellation errors as network failures.
func networkFailure(err error) error {
	if errors.Is(err, entities.ErrNetworkFailure) || errors.Is(err, entities.ErrInvalidReference) ||
		errors.Is(err, entities.ErrDataInconsistency) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", entities.ErrNetworkFailure, err)
	}
	return err
}
