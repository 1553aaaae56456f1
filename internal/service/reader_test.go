package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

var verseCounts = []int{
	7, 286, 200, 176, 120, 165, 206, 75, 129, 109, 123, 111, 43, 52, 99, 128, 111, 110, 98, 135,
	112, 78, 118, 64, 77, 227, 93, 88, 69, 60, 34, 30, 73, 54, 45, 83, 182, 88, 75, 85,
	54, 53, 89, 59, 37, 35, 38, 29, 18, 45, 60, 49, 62, 55, 78, 96, 29, 22, 24, 13,
	14, 11, 11, 18, 12, 12, 30, 52, 52, 44, 28, 28, 20, 56, 40, 31, 50, 40, 46, 42,
	29, 19, 36, 25, 22, 17, 19, 26, 30, 20, 15, 21, 11, 8, 8, 19, 5, 8, 8, 11,
	11, 8, 3, 9, 5, 4, 7, 3, 6, 3, 5, 4, 5, 6,
}

const (
	textEdition  = "quran-uthmani"
	transEdition = "fr.hamidullah"
)

func firstVerse(chapter int) int {
	n := 1
	for _, c := range verseCounts[:chapter-1] {
		n += c
	}
	return n
}

// fakeCatalog describes every chapter. A chapter with a gate blocks its
// lookup until the gate is closed or the request is cancelled.
type fakeCatalog struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	blocked chan int
}

func (c *fakeCatalog) gate(chapter int) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gates == nil {
		c.gates = make(map[int]chan struct{})
		c.blocked = make(chan int, 16)
	}
	g := make(chan struct{})
	c.gates[chapter] = g
	return g
}

func (c *fakeCatalog) GetByNumber(ctx context.Context, n int) (*entities.Chapter, error) {
	if !entities.ValidChapter(n) {
		return nil, entities.ErrInvalidReference
	}

	c.mu.Lock()
	gate := c.gates[n]
	c.mu.Unlock()
	if gate != nil {
		c.blocked <- n
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &entities.Chapter{
		Number:      n,
		EnglishName: fmt.Sprintf("Chapter %d", n),
		VerseCount:  verseCounts[n-1],
	}, nil
}

func (c *fakeCatalog) VerseRange(_ context.Context, n int) (int, int, error) {
	if !entities.ValidChapter(n) {
		return 0, 0, entities.ErrInvalidReference
	}
	first := firstVerse(n)
	return first, first + verseCounts[n-1] - 1, nil
}

// fakeProvider serves generated verses. A chapter with a gate blocks until
// the gate is closed or the request is cancelled.
type fakeProvider struct {
	mu       sync.Mutex
	gates    map[int]chan struct{}
	started  chan int
	failures map[int]error
	short    map[string]int // edition -> verses to drop from every chapter
	matches  []entities.VerseMatch
	searches []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		gates:    make(map[int]chan struct{}),
		started:  make(chan int, 64),
		failures: make(map[int]error),
		short:    make(map[string]int),
	}
}

func (p *fakeProvider) gate(chapter int) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := make(chan struct{})
	p.gates[chapter] = g
	return g
}

func (p *fakeProvider) GetChapterText(ctx context.Context, chapter int, edition string) ([]entities.EditionVerse, error) {
	p.mu.Lock()
	gate := p.gates[chapter]
	failure := p.failures[chapter]
	short := p.short[edition]
	p.mu.Unlock()

	p.started <- chapter
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("get chapter %d: %w: %w", chapter, entities.ErrNetworkFailure, ctx.Err())
		}
	}
	if failure != nil {
		return nil, failure
	}

	count := verseCounts[chapter-1] - short
	first := firstVerse(chapter)
	verses := make([]entities.EditionVerse, count)
	for i := range verses {
		verses[i] = entities.EditionVerse{
			Number:          first + i,
			Text:            fmt.Sprintf("%s %d:%d", edition, chapter, i+1),
			NumberInChapter: i + 1,
		}
	}
	return verses, nil
}

func (p *fakeProvider) GetVerse(_ context.Context, chapter, verse int, edition string) (*entities.Verse, error) {
	return &entities.Verse{
		Number:          firstVerse(chapter) + verse - 1,
		Text:            fmt.Sprintf("%s %d:%d", edition, chapter, verse),
		ChapterNumber:   chapter,
		NumberInChapter: verse,
	}, nil
}

func (p *fakeProvider) SearchKeyword(_ context.Context, text, _ string) ([]entities.VerseMatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches = append(p.searches, text)
	return append([]entities.VerseMatch(nil), p.matches...), nil
}

type readerFixture struct {
	session  *ReaderSession
	provider *fakeProvider
	catalog  *fakeCatalog
	backend  *fakeBackend
	kv       *storage.Memory
}

func newReaderFixture(t *testing.T, timeout time.Duration) *readerFixture {
	t.Helper()

	provider := newFakeProvider()
	catalog := &fakeCatalog{}
	backend := &fakeBackend{}
	kv := storage.NewMemory()
	player := NewPlaybackController(backend, testAddress, zap.NewNop())

	s := NewReaderSession(provider, catalog, player, NewProgressStore(kv), NewNoteStore(kv), ReaderConfig{
		Editions:     Editions{Text: textEdition, Translation: transEdition, Search: transEdition},
		FetchTimeout: timeout,
	}, zap.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return &readerFixture{session: s, provider: provider, catalog: catalog, backend: backend, kv: kv}
}

func TestReaderSession_LoadChapter(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	for _, n := range []int{1, 2, 114} {
		if err := f.session.LoadChapter(ctx, n); err != nil {
			t.Fatal(err)
		}

		st := f.session.State()
		if st.Loading || st.Err != nil {
			t.Fatalf("chapter %d: unexpected state loading=%v err=%v", n, st.Loading, st.Err)
		}
		if len(st.Verses) != verseCounts[n-1] {
			t.Fatalf("chapter %d: expected %d verses, got %d", n, verseCounts[n-1], len(st.Verses))
		}
		for i, v := range st.Verses {
			if v.NumberInChapter != i+1 || v.ChapterNumber != n {
				t.Fatalf("chapter %d: unexpected verse at %d: %+v", n, i, v)
			}
			if v.Text != fmt.Sprintf("%s %d:%d", textEdition, n, i+1) || v.Translation != fmt.Sprintf("%s %d:%d", transEdition, n, i+1) {
				t.Fatalf("chapter %d: editions not merged at %d: %+v", n, i, v)
			}
		}
		if st.Selected != (entities.Location{Chapter: n, Verse: 1}) {
			t.Fatalf("expected first verse selected, got %v", st.Selected)
		}
	}
}

func TestReaderSession_LoadChapterInvalid(t *testing.T) {
	f := newReaderFixture(t, time.Second)

	err := f.session.LoadChapter(context.Background(), 115)
	if !errors.Is(err, entities.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if st := f.session.State(); !errors.Is(st.Err, entities.ErrInvalidReference) {
		t.Fatalf("expected error in state, got %v", st.Err)
	}
}

func TestReaderSession_LoadFailureKeepsPreviousChapter(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	if err := f.session.LoadChapter(ctx, 1); err != nil {
		t.Fatal(err)
	}
	f.provider.failures[3] = fmt.Errorf("dial: %w", entities.ErrNetworkFailure)

	if err := f.session.LoadChapter(ctx, 3); !errors.Is(err, entities.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}

	st := f.session.State()
	if st.Loading {
		t.Fatal("loading flag must be cleared on failure")
	}
	if st.Chapter == nil || st.Chapter.Number != 1 || len(st.Verses) != 7 {
		t.Fatal("previous chapter must stay displayed")
	}
	if !errors.Is(st.Err, entities.ErrNetworkFailure) {
		t.Fatalf("expected error in state, got %v", st.Err)
	}

	// retrying is the recovery path
	delete(f.provider.failures, 3)
	if err := f.session.LoadChapter(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if st := f.session.State(); st.Err != nil || st.Chapter.Number != 3 {
		t.Fatalf("retry did not recover: %+v", st.Err)
	}
}

func TestReaderSession_LoadTimeout(t *testing.T) {
	f := newReaderFixture(t, 30*time.Millisecond)
	f.provider.gate(4)

	err := f.session.LoadChapter(context.Background(), 4)
	if !errors.Is(err, entities.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
	if st := f.session.State(); st.Loading {
		t.Fatal("a hung fetch must not leave the loading flag set")
	}
}

func TestReaderSession_EditionMismatch(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	f.provider.short[transEdition] = 1

	err := f.session.LoadChapter(context.Background(), 2)
	if !errors.Is(err, entities.ErrDataInconsistency) {
		t.Fatalf("expected ErrDataInconsistency, got %v", err)
	}
}

func TestReaderSession_OverlappingLoadsKeepLatest(t *testing.T) {
	f := newReaderFixture(t, 5*time.Second)
	ctx := context.Background()
	gate := f.provider.gate(5)

	first := make(chan error, 1)
	go func() { first <- f.session.LoadChapter(ctx, 5) }()

	// both editions of chapter 5 are in flight
	<-f.provider.started
	<-f.provider.started

	if err := f.session.LoadChapter(ctx, 9); err != nil {
		t.Fatal(err)
	}
	close(gate)

	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected the chapter 5 load to be superseded, got %v", err)
	}

	st := f.session.State()
	if st.Chapter.Number != 9 || len(st.Verses) != verseCounts[8] {
		t.Fatalf("expected chapter 9 displayed, got chapter %d with %d verses", st.Chapter.Number, len(st.Verses))
	}
	for _, v := range st.Verses {
		if v.ChapterNumber != 9 {
			t.Fatalf("found verse of chapter %d", v.ChapterNumber)
		}
	}
	if st.Loading {
		t.Fatal("loading flag must be cleared")
	}
}

func TestReaderSession_JumpToLastWriteWins(t *testing.T) {
	f := newReaderFixture(t, 5*time.Second)
	ctx := context.Background()
	gate := f.provider.gate(18)

	first := make(chan error, 1)
	go func() { first <- f.session.JumpTo(ctx, 18, 10, false) }()
	<-f.provider.started
	<-f.provider.started

	if err := f.session.JumpTo(ctx, 36, 12, true); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", err)
	}

	st := f.session.State()
	if st.Selected != (entities.Location{Chapter: 36, Verse: 12}) {
		t.Fatalf("expected 36:12 selected, got %v", st.Selected)
	}
	if want := firstVerse(36) + 11; st.Playback.ActiveVerse != want {
		t.Fatalf("expected verse %d playing, got %d", want, st.Playback.ActiveVerse)
	}
}

func TestReaderSession_LaterJumpWinsOverSlowValidation(t *testing.T) {
	f := newReaderFixture(t, 5*time.Second)
	ctx := context.Background()
	gate := f.catalog.gate(5)

	first := make(chan error, 1)
	go func() { first <- f.session.JumpTo(ctx, 5, 3, false) }()
	<-f.catalog.blocked

	if err := f.session.JumpTo(ctx, 9, 2, false); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", err)
	}

	st := f.session.State()
	if st.Chapter == nil || st.Chapter.Number != 9 {
		t.Fatalf("expected chapter 9 displayed, got %+v", st.Chapter)
	}
	if st.Selected != (entities.Location{Chapter: 9, Verse: 2}) {
		t.Fatalf("expected 9:2 selected, got %v", st.Selected)
	}
	if st.Loading {
		t.Fatal("loading flag must be cleared")
	}
}

func TestReaderSession_JumpWithinChapterDiscardsPendingLoad(t *testing.T) {
	f := newReaderFixture(t, 5*time.Second)
	ctx := context.Background()

	if err := f.session.LoadChapter(ctx, 2); err != nil {
		t.Fatal(err)
	}
	gate := f.provider.gate(3)

	pending := make(chan error, 1)
	go func() { pending <- f.session.JumpTo(ctx, 3, 5, false) }()
	<-f.provider.started
	<-f.provider.started

	if err := f.session.JumpTo(ctx, 2, 255, false); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-pending; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", err)
	}

	st := f.session.State()
	if st.Chapter.Number != 2 || st.Selected != (entities.Location{Chapter: 2, Verse: 255}) {
		t.Fatalf("expected 2:255, got %v", st.Selected)
	}
	if st.Loading {
		t.Fatal("loading flag must be cleared")
	}
}

func TestReaderSession_JumpToInvalid(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	if err := f.session.JumpTo(ctx, 1, 8, false); !errors.Is(err, entities.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if err := f.session.JumpTo(ctx, 0, 1, false); !errors.Is(err, entities.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestReaderSession_NavigateAcrossChapters(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	if err := f.session.JumpTo(ctx, 2, 286, false); err != nil {
		t.Fatal(err)
	}

	res, err := f.session.NavigateVerse(ctx, entities.DirectionNext, false)
	if err != nil {
		t.Fatal(err)
	}
	if res != (entities.Resolution{Chapter: 3, Index: 1, RequiresChapterLoad: true}) {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if st := f.session.State(); st.Selected != (entities.Location{Chapter: 3, Verse: 1}) {
		t.Fatalf("expected 3:1 selected, got %v", st.Selected)
	}

	// back across the boundary selects the last verse of chapter 2
	res, err = f.session.NavigateVerse(ctx, entities.DirectionPrev, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chapter != 2 || res.Index != entities.UnknownIndex || !res.RequiresChapterLoad {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if st := f.session.State(); st.Selected != (entities.Location{Chapter: 2, Verse: 286}) {
		t.Fatalf("expected 2:286 selected, got %v", st.Selected)
	}

	res, err = f.session.NavigateVerse(ctx, entities.DirectionPrev, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.RequiresChapterLoad || res.Index != 285 {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if st := f.session.State(); st.Playback.ActiveVerse != firstVerse(2)+284 {
		t.Fatalf("expected 2:285 to play, got %d", st.Playback.ActiveVerse)
	}
}

func TestReaderSession_NavigateAtEdgesIsNoop(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	if err := f.session.JumpTo(ctx, 114, 6, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.NavigateVerse(ctx, entities.DirectionNext, false); err != nil {
		t.Fatal(err)
	}
	if st := f.session.State(); st.Selected != (entities.Location{Chapter: 114, Verse: 6}) {
		t.Fatalf("expected 114:6 to stay selected, got %v", st.Selected)
	}

	if err := f.session.JumpTo(ctx, 1, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.NavigateVerse(ctx, entities.DirectionPrev, false); err != nil {
		t.Fatal(err)
	}
	if st := f.session.State(); st.Selected != (entities.Location{Chapter: 1, Verse: 1}) {
		t.Fatalf("expected 1:1 to stay selected, got %v", st.Selected)
	}
}

func TestReaderSession_SearchByReference(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	m, err := f.session.SearchByReference(ctx, 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if m.ChapterNumber != 1 || m.NumberInChapter != 7 || m.Number != 7 {
		t.Fatalf("unexpected match %+v", m)
	}
	if m.Text != textEdition+" 1:7" || m.Translation != transEdition+" 1:7" {
		t.Fatalf("editions not merged: %+v", m)
	}

	st := f.session.State()
	if len(st.SearchResults) != 1 || st.SearchResults[0].Location() != (entities.Location{Chapter: 1, Verse: 7}) {
		t.Fatalf("expected exactly one result for 1:7, got %+v", st.SearchResults)
	}

	if _, err := f.session.SearchByReference(ctx, 115, 1); !errors.Is(err, entities.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if _, err := f.session.SearchByReference(ctx, 1, 8); !errors.Is(err, entities.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if st := f.session.State(); len(st.SearchResults) != 1 {
		t.Fatal("failed lookups must keep the previous results")
	}
}

func TestReaderSession_SearchByKeyword(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	f.provider.matches = []entities.VerseMatch{
		{Verse: entities.Verse{Number: 262, Text: "Allah ! Point de divinité", ChapterNumber: 2, NumberInChapter: 255}, ChapterName: "Al-Baqara"},
	}
	if err := f.session.SearchByKeyword(ctx, " divinité "); err != nil {
		t.Fatal(err)
	}

	st := f.session.State()
	if len(st.SearchResults) != 1 || st.SearchResults[0].Translation != "Allah ! Point de divinité" {
		t.Fatalf("unexpected results %+v", st.SearchResults)
	}
	if f.provider.searches[0] != "divinité" {
		t.Fatalf("expected trimmed query, got %q", f.provider.searches[0])
	}

	// blank input neither clears the results nor issues a request
	if err := f.session.SearchByKeyword(ctx, "   "); err != nil {
		t.Fatal(err)
	}
	if len(f.provider.searches) != 1 || len(f.session.State().SearchResults) != 1 {
		t.Fatal("blank search must be a no-op")
	}

	// results are replaced wholesale
	f.provider.matches = nil
	if err := f.session.SearchByKeyword(ctx, "introuvable"); err != nil {
		t.Fatal(err)
	}
	if len(f.session.State().SearchResults) != 0 {
		t.Fatal("expected results to be replaced")
	}
}

func TestReaderSession_SelectSearchResult(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	m, err := f.session.SearchByReference(ctx, 2, 255)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.session.SelectSearchResult(ctx, m); err != nil {
		t.Fatal(err)
	}

	st := f.session.State()
	if len(st.SearchResults) != 0 {
		t.Fatal("expected results to be cleared")
	}
	if st.Selected != (entities.Location{Chapter: 2, Verse: 255}) {
		t.Fatalf("expected 2:255 selected, got %v", st.Selected)
	}
	if st.Playback.ActiveVerse != 262 || !st.Playback.IsPlaying {
		t.Fatalf("expected verse 262 playing, got %+v", st.Playback)
	}
}

func TestReaderSession_AutoAdvanceMovesSelection(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	if err := f.session.JumpTo(ctx, 1, 6, true); err != nil {
		t.Fatal(err)
	}
	player := f.session.player
	if err := player.OnCompleted(ctx, player.Token()); err != nil {
		t.Fatal(err)
	}

	st := f.session.State()
	if st.Selected != (entities.Location{Chapter: 1, Verse: 7}) || st.Playback.ActiveVerse != 7 {
		t.Fatalf("expected 1:7 selected and playing, got %v / %d", st.Selected, st.Playback.ActiveVerse)
	}

	if err := player.OnCompleted(ctx, player.Token()); err != nil {
		t.Fatal(err)
	}
	if st := f.session.State(); st.Playback.HasSession() {
		t.Fatalf("expected playback to stop at the end of the chapter, got %+v", st.Playback)
	}
}

func TestReaderSession_TogglePlay(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	if err := f.session.TogglePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if f.backend.openCount() != 0 {
		t.Fatal("nothing selected, nothing to play")
	}

	if err := f.session.LoadChapter(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := f.session.TogglePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if st := f.session.State().Playback; st.ActiveVerse != 1 || !st.IsPlaying {
		t.Fatalf("expected verse 1 playing, got %+v", st)
	}
	if err := f.session.TogglePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if st := f.session.State().Playback; st.Status != entities.StatusPaused {
		t.Fatalf("expected paused, got %+v", st)
	}
}

func TestReaderSession_ProgressAndNotes(t *testing.T) {
	f := newReaderFixture(t, time.Second)
	ctx := context.Background()

	read, err := f.session.ToggleRead(ctx, 1)
	if err != nil || !read {
		t.Fatalf("expected verse 1 read, got %v %v", read, err)
	}

	added, err := f.session.MarkChapterRead(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if added != 6 {
		t.Fatalf("expected 6 newly read verses, got %d", added)
	}
	cp, err := f.session.ChapterProgress(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cp.Percentage != 100 {
		t.Fatalf("expected chapter 1 complete, got %+v", cp)
	}
	if got := f.session.ReadingSummary().Read; got != 7 {
		t.Fatalf("expected 7 read, got %d", got)
	}
	if got := len(f.session.State().Progress); got != 7 {
		t.Fatalf("expected 7 in snapshot, got %d", got)
	}

	if _, err := f.session.AddOrUpdateNote(ctx, 3, "Ar-Rahman"); err != nil {
		t.Fatal(err)
	}
	if n, ok := f.session.Note(3); !ok || n.Text != "Ar-Rahman" {
		t.Fatalf("unexpected note %+v", n)
	}
	if err := f.session.DeleteNote(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.session.Note(3); ok {
		t.Fatal("expected note to be deleted")
	}

	if err := f.session.ResetProgress(ctx); err != nil {
		t.Fatal(err)
	}
	if f.session.ReadingSummary().Read != 0 {
		t.Fatal("expected progress to be reset")
	}
}

// deleteRecorder records the keys of every Delete call.
type deleteRecorder struct {
	*storage.Memory
	mu      sync.Mutex
	deletes [][]string
}

func (r *deleteRecorder) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	r.deletes = append(r.deletes, keys)
	r.mu.Unlock()
	return r.Memory.Delete(ctx, keys...)
}

func TestReaderSession_ResetClearsProgressAndNotes(t *testing.T) {
	ctx := context.Background()
	kv := &deleteRecorder{Memory: storage.NewMemory()}
	player := NewPlaybackController(&fakeBackend{}, testAddress, zap.NewNop())
	s := NewReaderSession(newFakeProvider(), &fakeCatalog{}, player, NewProgressStore(kv), NewNoteStore(kv), ReaderConfig{
		Editions: Editions{Text: textEdition, Translation: transEdition, Search: transEdition},
	}, zap.NewNop())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.ToggleRead(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddOrUpdateNote(ctx, 7, "Al-Fatiha"); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	if s.ReadingSummary().Read != 0 {
		t.Fatal("expected progress to be reset")
	}
	if _, ok := s.Note(7); ok {
		t.Fatal("expected notes to be reset")
	}
	if len(kv.deletes) != 1 || len(kv.deletes[0]) != 2 {
		t.Fatalf("expected one delete of both keys, got %v", kv.deletes)
	}
	for _, key := range []string{progressKey, notesKey} {
		if _, err := kv.Get(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected %s to be deleted, got %v", key, err)
		}
	}
}

func TestReaderSession_ObserverIsNotified(t *testing.T) {
	f := newReaderFixture(t, time.Second)

	var mu sync.Mutex
	calls := 0
	f.session.SetObserver(func() {
		// observers may read the state from the callback
		_ = f.session.State()
		mu.Lock()
		calls++
		mu.Unlock()
	})

	if err := f.session.LoadChapter(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if err := f.session.PlayVerse(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls < 3 {
		t.Fatalf("expected several notifications, got %d", calls)
	}
}
