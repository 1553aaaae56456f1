package telegram

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
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

func firstVerse(chapter int) int {
	n := 1
	for _, c := range verseCounts[:chapter-1] {
		n += c
	}
	return n
}

// fakeBot records everything the handler sends.
type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
	sendErr  error
	duration int
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 16)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.sent = append(b.sent, c)

	msg := tgbotapi.Message{MessageID: len(b.sent)}
	if _, ok := c.(tgbotapi.AudioConfig); ok && b.duration > 0 {
		msg.Audio = &tgbotapi.Audio{Duration: b.duration}
	}
	return msg, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) sentMessages() []tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), b.sent...)
}

func (b *fakeBot) last(t *testing.T) tgbotapi.Chattable {
	t.Helper()
	sent := b.sentMessages()
	if len(sent) == 0 {
		t.Fatal("nothing sent")
	}
	return sent[len(sent)-1]
}

// lastText returns the text of the last message or edit.
func (b *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	switch c := b.last(t).(type) {
	case tgbotapi.MessageConfig:
		return c.Text
	case tgbotapi.EditMessageTextConfig:
		return c.Text
	default:
		t.Fatalf("last sent is %T, want a text message", c)
		return ""
	}
}

// fakeIndex serves chapter reference data from verseCounts.
type fakeIndex struct{}

func (fakeIndex) GetByNumber(_ context.Context, n int) (*entities.Chapter, error) {
	if !entities.ValidChapter(n) {
		return nil, entities.ErrInvalidReference
	}
	return &entities.Chapter{Number: n, EnglishName: fmt.Sprintf("Chapter %d", n), VerseCount: verseCounts[n-1]}, nil
}

func (i fakeIndex) GetAll(ctx context.Context) ([]entities.Chapter, error) {
	chapters := make([]entities.Chapter, 0, entities.TotalChapters)
	for n := 1; n <= entities.TotalChapters; n++ {
		ch, _ := i.GetByNumber(ctx, n)
		chapters = append(chapters, *ch)
	}
	return chapters, nil
}

func (fakeIndex) VerseRange(_ context.Context, n int) (int, int, error) {
	if !entities.ValidChapter(n) {
		return 0, 0, entities.ErrInvalidReference
	}
	first := firstVerse(n)
	return first, first + verseCounts[n-1] - 1, nil
}

func (fakeIndex) Locate(_ context.Context, global int) (entities.Location, error) {
	if !entities.ValidVerseNumber(global) {
		return entities.Location{}, entities.ErrInvalidReference
	}
	for ch := entities.TotalChapters; ch >= 1; ch-- {
		if first := firstVerse(ch); global >= first {
			return entities.Location{Chapter: ch, Verse: global - first + 1}, nil
		}
	}
	return entities.Location{}, entities.ErrInvalidReference
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	matches []entities.VerseMatch
}

func (p *fakeProvider) GetChapterText(_ context.Context, chapter int, edition string) ([]entities.EditionVerse, error) {
	p.mu.Lock()
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	first := firstVerse(chapter)
	verses := make([]entities.EditionVerse, verseCounts[chapter-1])
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

func (p *fakeProvider) SearchKeyword(context.Context, string, string) ([]entities.VerseMatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entities.VerseMatch(nil), p.matches...), nil
}

type fakeReminders struct {
	mu   sync.Mutex
	subs map[int64]bool
}

func (r *fakeReminders) Subscribe(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[chatID] = true
	return nil
}

func (r *fakeReminders) Unsubscribe(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, chatID)
	return nil
}

func (r *fakeReminders) IsSubscribed(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[chatID]
}

const testChat = int64(42)

type handlerFixture struct {
	handler   *Handler
	bot       *fakeBot
	provider  *fakeProvider
	reminders *fakeReminders
	sessions  *Sessions
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	bot := newFakeBot()
	provider := &fakeProvider{}
	kv := storage.NewMemory()
	address := service.AudioAddress{BaseURL: "https://cdn.test/audio", Bitrate: 128, Reciter: "ar.alafasy"}

	factory := func(ctx context.Context, chatID int64) (*service.ReaderSession, error) {
		scoped := storage.NewPrefixed(kv, fmt.Sprintf("chat:%d:", chatID))
		player := service.NewPlaybackController(NewAudioBackend(bot, chatID), address, zap.NewNop())
		rs := service.NewReaderSession(
			provider,
			fakeIndex{},
			player,
			service.NewProgressStore(scoped),
			service.NewNoteStore(scoped),
			service.ReaderConfig{Editions: service.Editions{
				Text:        "quran-uthmani",
				Translation: "fr.hamidullah",
				Search:      "fr.hamidullah",
			}},
			zap.NewNop(),
		)
		if err := rs.Start(ctx); err != nil {
			return nil, err
		}
		return rs, nil
	}

	sessions := NewSessions(factory, zap.NewNop())
	t.Cleanup(sessions.Close)

	reminders := &fakeReminders{subs: make(map[int64]bool)}
	return &handlerFixture{
		handler:   NewHandler(bot, zap.NewNop(), sessions, fakeIndex{}, reminders),
		bot:       bot,
		provider:  provider,
		reminders: reminders,
		sessions:  sessions,
	}
}

func command(text string) tgbotapi.Update {
	length := len(text)
	for i, r := range text {
		if r == ' ' {
			length = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: testChat},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func textMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: testChat},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testChat},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: testChat}},
	}}
}
