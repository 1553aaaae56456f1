package telegram

import (
	"strconv"
	"strings"
)

// Callback action constants.
const (
	actionNav       = "nav"
	actionPlay      = "play"
	actionRead      = "read"
	actionReadSurah = "readsurah"
	actionSurahs    = "surahs"
	actionSurah     = "surah"
	actionSelect    = "select"
	actionReminder  = "reminder"
	actionContinue  = "continue"
	actionReset     = "reset"
)

// Navigation sub-actions.
const (
	navNext = "next"
	navPrev = "prev"
)

// Reminder sub-actions.
const (
	reminderToggle  = "toggle"
	reminderDisable = "disable"
)

const (
	resetConfirm = "confirm"
	resetCancel  = "cancel"
)

// callbackData represents structured callback data.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

// encode creates callback string.
func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + ":" + strings.Join(cd.Params, ":")
}

// decodeCallback parses callback data string.
func decodeCallback(data string) callbackData {
	parts := strings.Split(data, ":")
	if len(parts) == 0 || parts[0] == "" {
		return callbackData{Raw: data}
	}

	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

// intParam returns the i-th parameter as an integer.
func (cd callbackData) intParam(i int) (int, bool) {
	if i >= len(cd.Params) {
		return 0, false
	}
	n, err := strconv.Atoi(cd.Params[i])
	if err != nil {
		return 0, false
	}
	return n, true
}

func buildNavCallback(direction string) string {
	return callbackData{Action: actionNav, Params: []string{direction}}.encode()
}

func buildPlayCallback(verse int) string {
	return callbackData{Action: actionPlay, Params: []string{strconv.Itoa(verse)}}.encode()
}

func buildReadCallback(verse int) string {
	return callbackData{Action: actionRead, Params: []string{strconv.Itoa(verse)}}.encode()
}

func buildReadSurahCallback(chapter int) string {
	return callbackData{Action: actionReadSurah, Params: []string{strconv.Itoa(chapter)}}.encode()
}

// buildSurahsCallback builds callback data for a page of the chapter list.
func buildSurahsCallback(page int) string {
	return callbackData{Action: actionSurahs, Params: []string{strconv.Itoa(page)}}.encode()
}

// buildSurahCallback builds callback data for opening a chapter.
func buildSurahCallback(chapter int) string {
	return callbackData{Action: actionSurah, Params: []string{strconv.Itoa(chapter)}}.encode()
}

// buildSelectCallback builds callback data for opening a search result.
func buildSelectCallback(chapter, verse int) string {
	return callbackData{
		Action: actionSelect,
		Params: []string{strconv.Itoa(chapter), strconv.Itoa(verse)},
	}.encode()
}

func buildReminderToggleCallback() string {
	return callbackData{Action: actionReminder, Params: []string{reminderToggle}}.encode()
}

func buildReminderDisableCallback() string {
	return callbackData{Action: actionReminder, Params: []string{reminderDisable}}.encode()
}

func buildContinueCallback() string {
	return actionContinue
}

func buildResetConfirmCallback() string {
	return callbackData{Action: actionReset, Params: []string{resetConfirm}}.encode()
}

func buildResetCancelCallback() string {
	return callbackData{Action: actionReset, Params: []string{resetCancel}}.encode()
}
