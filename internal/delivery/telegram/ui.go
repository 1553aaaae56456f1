package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

// buildVerseKeyboard builds the navigation keyboard shown under a verse.
func buildVerseKeyboard(v entities.Verse, read bool) tgbotapi.InlineKeyboardMarkup {
	readLabel := "☑️ Marquer lu"
	if read {
		readLabel = "↩️ Non lu"
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", buildNavCallback(navPrev)),
			tgbotapi.NewInlineKeyboardButtonData("🔊 Écouter", buildPlayCallback(v.Number)),
			tgbotapi.NewInlineKeyboardButtonData("▶️", buildNavCallback(navNext)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(readLabel, buildReadCallback(v.Number)),
			tgbotapi.NewInlineKeyboardButtonData("✅ Sourate lue", buildReadSurahCallback(v.ChapterNumber)),
		),
	)
}

// buildChapterListKeyboard builds one page of chapter buttons with pagination.
func buildChapterListKeyboard(chapters []entities.Chapter, page, totalPages int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	start := page * chaptersPerPage
	end := min(start+chaptersPerPage, len(chapters))
	for i := start; i < end; i += 2 {
		row := []tgbotapi.InlineKeyboardButton{chapterButton(chapters[i])}
		if i+1 < end {
			row = append(row, chapterButton(chapters[i+1]))
		}
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️ Précédent", buildSurahsCallback(page-1)))
	}
	if page < totalPages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Suivant ▶️", buildSurahsCallback(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func chapterButton(ch entities.Chapter) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(
		fmt.Sprintf("%d. %s", ch.Number, ch.EnglishName),
		buildSurahCallback(ch.Number),
	)
}

// buildSearchKeyboard builds one button per search result.
func buildSearchKeyboard(matches []entities.VerseMatch) *tgbotapi.InlineKeyboardMarkup {
	if len(matches) == 0 {
		return nil
	}

	var row []tgbotapi.InlineKeyboardButton
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, m := range matches {
		if i == maxSearchButtons {
			break
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			m.Location().String(),
			buildSelectCallback(m.ChapterNumber, m.NumberInChapter),
		))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// buildProgressKeyboard builds keyboard for progress screen.
func buildProgressKeyboard(subscribed bool) tgbotapi.InlineKeyboardMarkup {
	reminder := "🔔 Activer le rappel"
	if subscribed {
		reminder = "🔕 Désactiver le rappel"
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 Continuer la lecture", buildContinueCallback()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(reminder, buildReminderToggleCallback()),
		),
	)
}

// buildReminderKeyboard builds keyboard attached to reminder messages.
func buildReminderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 Continuer la lecture", buildContinueCallback()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔕 Désactiver", buildReminderDisableCallback()),
		),
	)
}

// buildResetConfirmKeyboard builds keyboard for the reset confirmation.
func buildResetConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Oui, effacer", buildResetConfirmCallback()),
			tgbotapi.NewInlineKeyboardButtonData("Annuler", buildResetCancelCallback()),
		),
	)
}
