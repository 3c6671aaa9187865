package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/domain/entities"
)

// Onboarding runs in three steps: language, timezone, calendar. The first
// two reuse the same screens from /settings after setup.

func (h *Handler) sendLanguageKeyboard(chatID int64, lang string) {
	msg := tgbotapi.NewMessage(chatID, h.tr.T(lang, "msg_choose_language", nil))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("فارسی", "lang_fa"),
			tgbotapi.NewInlineKeyboardButtonData("English", "lang_en"),
		),
	)
	h.send(msg)
}

func (h *Handler) sendCalendarKeyboard(chatID int64, lang string) {
	msg := tgbotapi.NewMessage(chatID, h.tr.T(lang, "msg_choose_calendar", nil))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "cal_shamsi", nil), "cal_shamsi"),
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "cal_qamari", nil), "cal_qamari"),
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "cal_gregorian", nil), "cal_gregorian"),
		),
	)
	h.send(msg)
}

func (h *Handler) handleSettings(chatID int64, lang string) {
	msg := tgbotapi.NewMessage(chatID, h.tr.T(lang, "msg_settings", nil))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "btn_language", nil), "settings_language"),
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "btn_timezone", nil), "settings_timezone"),
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "btn_calendar", nil), "settings_calendar"),
		),
	)
	h.send(msg)
}

// handleTimezoneInput accepts either a raw offset like "+03:30" or a city
// name resolved through the parser's timezone-detection mode.
func (h *Handler) handleTimezoneInput(ctx context.Context, chatID int64, settings *entities.UserSettings, text string) {
	lang := settings.Language
	city := "UTC" + text

	offset, err := entities.NormalizeOffset(text)
	if err != nil {
		city, offset, err = h.parser.DetectTimezone(ctx, text)
		if err != nil {
			h.logger.Debug("timezone not recognized", zap.String("input", text), zap.Error(err))
			h.reply(chatID, h.tr.T(lang, "msg_timezone_unknown", nil))
			h.sessions.StartTimezone(settings.UserID)
			return
		}
	}

	if _, err := h.settings.SetTimezone(ctx, settings.UserID, offset); err != nil {
		h.logger.Error("failed to set timezone", zap.Int64("user_id", settings.UserID), zap.Error(err))
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	h.reply(chatID, h.tr.T(lang, "msg_timezone_set", map[string]any{"City": city, "Offset": offset}))

	if !settings.SetupComplete {
		h.sendCalendarKeyboard(chatID, lang)
	}
}
