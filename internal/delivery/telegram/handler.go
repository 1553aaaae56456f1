package telegram

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

var errNoVerse = errors.New("no verse selected")

// ChapterIndex lists chapters and converts global verse numbers to addresses.
type ChapterIndex interface {
	GetAll(ctx context.Context) ([]entities.Chapter, error)
	Locate(ctx context.Context, global int) (entities.Location, error)
}

// ReminderRegistry manages the chats receiving daily reminders.
type ReminderRegistry interface {
	Subscribe(ctx context.Context, chatID int64) error
	Unsubscribe(ctx context.Context, chatID int64) error
	IsSubscribed(chatID int64) bool
}

type Handler struct {
	bot       Bot
	logger    *zap.Logger
	sessions  *Sessions
	chapters  ChapterIndex
	reminders ReminderRegistry
}

func NewHandler(
	bot Bot,
	logger *zap.Logger,
	sessions *Sessions,
	chapters ChapterIndex,
	reminders ReminderRegistry,
) *Handler {
	return &Handler{
		bot:       bot,
		logger:    logger,
		sessions:  sessions,
		chapters:  chapters,
		reminders: reminders,
	}
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)
	defer h.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	h.logger.Debug("update received",
		zap.Int64("chat_id", update.Message.Chat.ID),
		zap.String("text", update.Message.Text),
	)

	chatID := update.Message.Chat.ID
	msg := newHTMLMessage(chatID, "")

	if update.Message.IsCommand() {
		args := strings.TrimSpace(update.Message.CommandArguments())

		switch update.Message.Command() {
		case "start":
			msg.Text = msgWelcome
			h.send(msg)

		case "help":
			msg.Text = msgHelp
			h.send(msg)

		case "surah":
			_ = h.withErrorHandling(h.surahHandler(args))(ctx, chatID)

		case "verse":
			_ = h.withErrorHandling(h.verseHandler(args))(ctx, chatID)

		case "search":
			_ = h.withErrorHandling(h.searchHandler(args))(ctx, chatID)

		case "progress":
			_ = h.withErrorHandling(h.progressHandler())(ctx, chatID)

		case "note":
			_ = h.withErrorHandling(h.noteHandler(args))(ctx, chatID)

		case "delnote":
			_ = h.withErrorHandling(h.deleteNoteHandler())(ctx, chatID)

		case "notes":
			_ = h.withErrorHandling(h.notesHandler())(ctx, chatID)

		case "remind":
			_ = h.withErrorHandling(h.remindHandler())(ctx, chatID)

		case "reset":
			msg.Text = msgResetConfirm
			msg.ReplyMarkup = buildResetConfirmKeyboard()
			h.send(msg)

		default:
			msg.Text = msgUnknownCommand
			h.send(msg)
		}

		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}
	if _, ok := parseReference(text); ok {
		_ = h.withErrorHandling(h.verseHandler(text))(ctx, chatID)
		return
	}
	_ = h.withErrorHandling(h.searchHandler(text))(ctx, chatID)
}

func (h *Handler) surahHandler(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if args == "" {
			return h.sendChapterPage(ctx, chatID, 0, 0)
		}

		n, err := strconv.Atoi(args)
		if err != nil {
			h.sendError(chatID, msgUseSurah)
			return nil
		}

		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if err := rs.LoadChapter(ctx, n); err != nil {
			return err
		}
		return h.showVerse(chatID, 0, rs)
	}
}

func (h *Handler) verseHandler(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		loc, ok := parseReference(args)
		if !ok {
			return entities.ErrInvalidReference
		}

		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if err := rs.JumpTo(ctx, loc.Chapter, loc.Verse, false); err != nil {
			return err
		}
		return h.showVerse(chatID, 0, rs)
	}
}

func (h *Handler) searchHandler(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if args == "" {
			h.sendError(chatID, msgUseSearch)
			return nil
		}

		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}

		var matches []entities.VerseMatch
		if loc, ok := parseReference(args); ok {
			m, err := rs.SearchByReference(ctx, loc.Chapter, loc.Verse)
			if err != nil {
				return err
			}
			matches = []entities.VerseMatch{m}
		} else {
			if err := rs.SearchByKeyword(ctx, args); err != nil {
				return err
			}
			matches = rs.State().SearchResults
		}

		msg := newHTMLMessage(chatID, formatSearchResults(matches))
		if kb := buildSearchKeyboard(matches); kb != nil {
			msg.ReplyMarkup = kb
		}
		h.send(msg)
		return nil
	}
}

func (h *Handler) progressHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		text, kb, err := h.renderProgress(ctx, chatID)
		if err != nil {
			return err
		}
		msg := newHTMLMessage(chatID, text)
		msg.ReplyMarkup = kb
		h.send(msg)
		return nil
	}
}

func (h *Handler) noteHandler(args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if args == "" {
			h.sendError(chatID, msgUseNote)
			return nil
		}

		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		v, ok := rs.State().SelectedVerse()
		if !ok {
			return errNoVerse
		}
		if _, err := rs.AddOrUpdateNote(ctx, v.Number, args); err != nil {
			return err
		}

		h.send(newHTMLMessage(chatID, formatNoteSaved(v.Location())))
		return nil
	}
}

func (h *Handler) deleteNoteHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		v, ok := rs.State().SelectedVerse()
		if !ok {
			return errNoVerse
		}
		if err := rs.DeleteNote(ctx, v.Number); err != nil {
			return err
		}

		h.send(newHTMLMessage(chatID, msgNoteDeleted))
		return nil
	}
}

func (h *Handler) notesHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		h.send(newHTMLMessage(chatID, formatNotes(rs.Notes())))
		return nil
	}
}

func (h *Handler) remindHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		text, err := h.toggleReminder(ctx, chatID)
		if err != nil {
			return err
		}
		h.send(newHTMLMessage(chatID, text))
		return nil
	}
}

func (h *Handler) toggleReminder(ctx context.Context, chatID int64) (string, error) {
	if h.reminders.IsSubscribed(chatID) {
		if err := h.reminders.Unsubscribe(ctx, chatID); err != nil {
			return "", err
		}
		return msgReminderOff, nil
	}
	if err := h.reminders.Subscribe(ctx, chatID); err != nil {
		return "", err
	}
	return msgReminderOn, nil
}

// showVerse renders the selected verse of rs, editing msgID when it is set.
func (h *Handler) showVerse(chatID int64, msgID int, rs *service.ReaderSession) error {
	st := rs.State()
	v, ok := st.SelectedVerse()
	if !ok {
		return errNoVerse
	}

	var note *entities.Note
	if n, ok := rs.Note(v.Number); ok {
		note = &n
	}
	read := isRead(st.Progress, v.Number)

	text := formatVerse(st, v, read, note)
	kb := buildVerseKeyboard(v, read)

	if msgID == 0 {
		msg := newHTMLMessage(chatID, text)
		msg.ReplyMarkup = kb
		h.send(msg)
		return nil
	}

	edit := newHTMLEdit(chatID, msgID, text)
	edit.ReplyMarkup = &kb
	h.send(edit)
	return nil
}

// sendChapterPage sends page of the chapter list, editing msgID when it is set.
func (h *Handler) sendChapterPage(ctx context.Context, chatID int64, msgID, page int) error {
	chapters, err := h.chapters.GetAll(ctx)
	if err != nil {
		return err
	}

	text, totalPages := formatChapterPage(chapters, page)
	if text == "" {
		h.logger.Warn("chapter page out of range", zap.Int("page", page), zap.Int("total_pages", totalPages))
		return nil
	}
	kb := buildChapterListKeyboard(chapters, page, totalPages)

	if msgID == 0 {
		msg := newHTMLMessage(chatID, text)
		msg.ReplyMarkup = kb
		h.send(msg)
		return nil
	}

	edit := newHTMLEdit(chatID, msgID, text)
	edit.ReplyMarkup = &kb
	h.send(edit)
	return nil
}

func (h *Handler) renderProgress(ctx context.Context, chatID int64) (string, tgbotapi.InlineKeyboardMarkup, error) {
	rs, err := h.sessions.Get(ctx, chatID)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}

	st := rs.State()
	var (
		chapter *entities.ChapterProgress
		name    string
	)
	if st.Chapter != nil {
		cp, err := rs.ChapterProgress(ctx, st.Chapter.Number)
		if err != nil {
			h.logger.Warn("failed to get chapter progress", zap.Int("chapter", st.Chapter.Number), zap.Error(err))
		} else {
			chapter = &cp
			name = st.Chapter.EnglishName
		}
	}

	text := formatProgress(rs.ReadingSummary(), chapter, name)
	return text, buildProgressKeyboard(h.reminders.IsSubscribed(chatID)), nil
}

// SendReminder sends the daily reading reminder to chatID.
func (h *Handler) SendReminder(_ context.Context, chatID int64, summary entities.ReadingSummary) error {
	msg := newHTMLMessage(chatID, formatReminder(summary))
	msg.ReplyMarkup = buildReminderKeyboard()
	_, err := h.bot.Send(msg)
	return err
}

func (h *Handler) sendError(chatID int64, err string) {
	msg := newHTMLMessage(chatID, err)
	h.send(msg)
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
	}
}

func isRead(progress []int, n int) bool {
	i := sort.SearchInts(progress, n)
	return i < len(progress) && progress[i] == n
}

// firstUnread returns the lowest verse number missing from progress, 0 when
// every verse is read.
func firstUnread(progress []int) int {
	next := 1
	for _, n := range progress {
		if n != next {
			break
		}
		next++
	}
	if next > entities.TotalVerses {
		return 0
	}
	return next
}
