package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		h.answer(cb.ID, "")
		return
	}

	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	data := decodeCallback(cb.Data)

	var notice string
	fn := func(ctx context.Context, chatID int64) error {
		var err error
		notice, err = h.dispatchCallback(ctx, chatID, msgID, data)
		return err
	}
	_ = h.withErrorHandling(fn)(ctx, chatID)

	// Remove the user's "clock".
	h.answer(cb.ID, notice)
}

// dispatchCallback runs the action of data and returns the text of the
// callback answer.
func (h *Handler) dispatchCallback(ctx context.Context, chatID int64, msgID int, data callbackData) (string, error) {
	switch data.Action {
	case actionSurahs:
		page, ok := data.intParam(0)
		if !ok || page < 0 {
			return "", h.invalidCallback(data)
		}
		return "", h.sendChapterPage(ctx, chatID, msgID, page)

	case actionReminder:
		if len(data.Params) == 0 {
			return "", h.invalidCallback(data)
		}
		return h.handleReminderCallback(ctx, chatID, msgID, data.Params[0])

	case actionReset:
		if len(data.Params) == 0 {
			return "", h.invalidCallback(data)
		}
		return "", h.handleResetCallback(ctx, chatID, msgID, data.Params[0])
	}

	rs, err := h.sessions.Get(ctx, chatID)
	if err != nil {
		return "", err
	}

	switch data.Action {
	case actionNav:
		dir := entities.DirectionNext
		if len(data.Params) > 0 && data.Params[0] == navPrev {
			dir = entities.DirectionPrev
		}
		if _, err := rs.NavigateVerse(ctx, dir, false); err != nil {
			return "", err
		}
		return "", h.showVerse(chatID, msgID, rs)

	case actionPlay:
		n, ok := data.intParam(0)
		if !ok {
			return "", h.invalidCallback(data)
		}
		// Every press sends the recitation again.
		if err := rs.Stop(ctx); err != nil {
			return "", err
		}
		return "", rs.PlayVerse(ctx, n)

	case actionRead:
		n, ok := data.intParam(0)
		if !ok {
			return "", h.invalidCallback(data)
		}
		if _, err := rs.ToggleRead(ctx, n); err != nil {
			return "", err
		}
		return "", h.showVerse(chatID, msgID, rs)

	case actionReadSurah:
		n, ok := data.intParam(0)
		if !ok {
			return "", h.invalidCallback(data)
		}
		added, err := rs.MarkChapterRead(ctx, n)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(msgMarkedRead, added), h.showVerse(chatID, msgID, rs)

	case actionSurah:
		n, ok := data.intParam(0)
		if !ok {
			return "", h.invalidCallback(data)
		}
		if err := rs.LoadChapter(ctx, n); err != nil {
			return "", err
		}
		return "", h.showVerse(chatID, msgID, rs)

	case actionSelect:
		chapter, ok1 := data.intParam(0)
		verse, ok2 := data.intParam(1)
		if !ok1 || !ok2 {
			return "", h.invalidCallback(data)
		}
		if err := rs.JumpTo(ctx, chapter, verse, false); err != nil {
			return "", err
		}
		return "", h.showVerse(chatID, 0, rs)

	case actionContinue:
		if _, ok := rs.State().SelectedVerse(); !ok {
			n := firstUnread(rs.State().Progress)
			if n == 0 {
				n = 1
			}
			loc, err := h.chapters.Locate(ctx, n)
			if err != nil {
				return "", err
			}
			if err := rs.JumpTo(ctx, loc.Chapter, loc.Verse, false); err != nil {
				return "", err
			}
		}
		return "", h.showVerse(chatID, 0, rs)

	default:
		return "", h.invalidCallback(data)
	}
}

func (h *Handler) handleReminderCallback(ctx context.Context, chatID int64, msgID int, sub string) (string, error) {
	switch sub {
	case reminderToggle:
		notice, err := h.toggleReminder(ctx, chatID)
		if err != nil {
			return "", err
		}
		text, kb, err := h.renderProgress(ctx, chatID)
		if err != nil {
			return "", err
		}
		edit := newHTMLEdit(chatID, msgID, text)
		edit.ReplyMarkup = &kb
		h.send(edit)
		return notice, nil

	case reminderDisable:
		if err := h.reminders.Unsubscribe(ctx, chatID); err != nil {
			return "", err
		}
		h.send(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		}))
		return msgReminderOff, nil

	default:
		return "", nil
	}
}

func (h *Handler) handleResetCallback(ctx context.Context, chatID int64, msgID int, sub string) error {
	text := msgResetCancelled
	if sub == resetConfirm {
		rs, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if err := rs.Reset(ctx); err != nil {
			return err
		}
		text = msgResetDone
	}

	h.send(newHTMLEdit(chatID, msgID, text))
	return nil
}

func (h *Handler) invalidCallback(data callbackData) error {
	h.logger.Warn("invalid callback data", zap.String("data", data.Raw))
	return nil
}

func (h *Handler) answer(id, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		h.logger.Warn("callback answer error", zap.Error(err))
	}
}
