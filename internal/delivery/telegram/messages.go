// messages.go contains message templates and formatting functions for Telegram.

package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

// Error messages.
const (
	msgInvalidReference = "Référence invalide. Exemple : <code>2:255</code> (sourate 1 à 114)."
	msgUseSurah         = "Utilisez : /surah 18"
	msgUseSearch        = "Utilisez : /search miséricorde ou /search 2:255"
	msgUseNote          = "Utilisez : /note votre texte (sur le verset affiché)."
	msgNoVerse          = "Aucun verset affiché. Ouvrez une sourate avec /surah."
	msgNetwork          = "Le service des versets ne répond pas. Réessayez plus tard."
	msgDataInconsistent = "Les données reçues sont incohérentes. Réessayez plus tard."
	msgPlayback         = "Impossible d'envoyer la récitation."
	msgNoResults        = "Aucun verset trouvé."
	msgNoNotes          = "Aucune note pour le moment."
	msgInternalError    = "Une erreur est survenue. Réessayez plus tard."
	msgUnknownCommand   = "Commande inconnue.\n\n" + msgHelp
)

// Informational messages.
const (
	msgWelcome = "<b>السلام عليكم ورحمة الله وبركاته</b>\n\n" +
		"Ce bot vous accompagne dans la lecture du Coran : texte arabe, traduction, récitation " +
		"et suivi des versets lus.\n\n" + msgHelp
	msgHelp = "/surah N : ouvrir une sourate (sans N : la liste)\n" +
		"/verse C:V : ouvrir un verset\n" +
		"/search mot ou C:V : rechercher\n" +
		"/progress : votre progression\n" +
		"/note texte : annoter le verset affiché\n" +
		"/delnote : supprimer la note du verset affiché\n" +
		"/notes : vos notes\n" +
		"/remind : rappel quotidien de lecture\n" +
		"/reset : effacer la progression et les notes"
	msgNoteSaved       = "📝 Note enregistrée pour le verset %s."
	msgNoteDeleted     = "🗑 Note supprimée."
	msgMarkedRead      = "✅ %d verset(s) marqué(s) comme lu(s)."
	msgResetConfirm    = "Effacer toute votre progression de lecture et vos notes ?"
	msgResetDone       = "Progression et notes effacées."
	msgResetCancelled  = "Rien n'a été effacé."
	msgReminderOn      = "🔔 Rappel quotidien activé."
	msgReminderOff     = "🔕 Rappel quotidien désactivé."
	msgSearchHeader    = "<b>🔎 %d résultat(s)</b>\n\n"
	msgChaptersHeader  = "<b>📚 Sourates</b> (page %d/%d)"
	msgNotesHeader     = "<b>📝 Vos notes</b>\n\n"
	msgReminderHeading = "<b>📖 C'est l'heure de votre lecture</b>\n\n"
)

const (
	chaptersPerPage   = 10
	maxSearchButtons  = 10
	maxSearchSnippet  = 160
	progressBarLength = 20
)

func newHTMLMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

func newHTMLEdit(chatID int64, msgID int, text string) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	return edit
}

// formatVerse renders the selected verse of st.
func formatVerse(st service.ReaderState, v entities.Verse, read bool, note *entities.Note) string {
	var sb strings.Builder

	name := ""
	if st.Chapter != nil {
		name = st.Chapter.EnglishName + " "
	}
	fmt.Fprintf(&sb, "<b>%s(%s)</b>\n\n", html.EscapeString(name), v.Location())
	sb.WriteString(html.EscapeString(v.Text))
	sb.WriteString("\n\n<i>")
	sb.WriteString(html.EscapeString(v.Translation))
	sb.WriteString("</i>")

	if read {
		sb.WriteString("\n\n✅ Lu")
	}
	if note != nil {
		sb.WriteString("\n\n📝 ")
		sb.WriteString(html.EscapeString(note.Text))
	}
	if st.Chapter != nil {
		fmt.Fprintf(&sb, "\n\n<code>%d/%d</code>", v.NumberInChapter, st.Chapter.VerseCount)
	}
	return sb.String()
}

// formatSearchResults renders search results as a numbered list.
func formatSearchResults(matches []entities.VerseMatch) string {
	if len(matches) == 0 {
		return msgNoResults
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, msgSearchHeader, len(matches))
	for i, m := range matches {
		if i == maxSearchButtons {
			fmt.Fprintf(&sb, "… et %d autre(s)", len(matches)-maxSearchButtons)
			break
		}
		text := m.Translation
		if text == "" {
			text = m.Text
		}
		fmt.Fprintf(&sb, "<b>%s</b> %s\n%s\n\n",
			m.Location(),
			html.EscapeString(m.ChapterName),
			html.EscapeString(truncate(text, maxSearchSnippet)))
	}
	return strings.TrimSpace(sb.String())
}

// formatProgress renders the reading summary and, when known, the progress
// of the current chapter.
func formatProgress(total entities.ReadingSummary, chapter *entities.ChapterProgress, chapterName string) string {
	var sb strings.Builder

	sb.WriteString("<b>📊 Votre progression</b>\n\n")
	sb.WriteString(buildProgressBar(total.Read, total.Total, progressBarLength))
	fmt.Fprintf(&sb, "\n\n✅ <b>Versets lus :</b> %d / %d (%.1f%%)\n", total.Read, total.Total, total.Percentage)
	fmt.Fprintf(&sb, "⏳ <b>Restants :</b> %d", total.Remaining())

	if chapter != nil {
		fmt.Fprintf(&sb, "\n\n📖 <b>%s :</b> %d / %d (%.1f%%)",
			html.EscapeString(chapterName), chapter.Read, chapter.Total, chapter.Percentage)
	}
	return sb.String()
}

func formatReminder(summary entities.ReadingSummary) string {
	return msgReminderHeading +
		buildProgressBar(summary.Read, summary.Total, progressBarLength) +
		fmt.Sprintf("\n\n%d versets lus, encore %d à découvrir.", summary.Read, summary.Remaining())
}

func formatNotes(notes []entities.Note) string {
	if len(notes) == 0 {
		return msgNoNotes
	}

	var sb strings.Builder
	sb.WriteString(msgNotesHeader)
	for _, n := range notes {
		fmt.Fprintf(&sb, "<b>#%d</b> %s\n", n.VerseNumber, html.EscapeString(n.Text))
	}
	return strings.TrimSpace(sb.String())
}

// formatChapterPage renders one page of the chapter list.
func formatChapterPage(chapters []entities.Chapter, page int) (string, int) {
	totalPages := (len(chapters) + chaptersPerPage - 1) / chaptersPerPage
	if page < 0 || page >= totalPages {
		return "", totalPages
	}
	return fmt.Sprintf(msgChaptersHeader, page+1, totalPages), totalPages
}

// buildProgressBar creates ASCII progress bar.
func buildProgressBar(current, total, length int) string {
	if total == 0 {
		return "[" + strings.Repeat("░", length) + "]"
	}

	filled := int(float64(current) / float64(total) * float64(length))
	if filled > length {
		filled = length
	}

	empty := length - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("[%s]", bar)
}

// parseReference parses "2:255", "2 255" or "2.255" into a chapter address.
func parseReference(s string) (entities.Location, bool) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, ": .")
	if sep <= 0 {
		return entities.Location{}, false
	}

	chapter, err1 := strconv.Atoi(s[:sep])
	verse, err2 := strconv.Atoi(strings.TrimSpace(s[sep+1:]))
	if err1 != nil || err2 != nil {
		return entities.Location{}, false
	}
	return entities.Location{Chapter: chapter, Verse: verse}, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func formatNoteSaved(loc entities.Location) string {
	return fmt.Sprintf(msgNoteSaved, loc)
}
