package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	settings, err := h.settings.GetOrCreate(ctx, userID, cb.From.LanguageCode)
	if err != nil {
		h.logger.Error("failed to load settings", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	lang := settings.Language

	// Acknowledge early so the client stops its spinner.
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		h.logger.Debug("failed to answer callback", zap.Error(err))
	}

	prefix, arg, _ := strings.Cut(cb.Data, "_")

	switch prefix {
	case "lang":
		updated, err := h.settings.SetLanguage(ctx, userID, arg)
		if err != nil {
			h.logger.Error("failed to set language", zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		lang = updated.Language
		if updated.SetupComplete {
			h.reply(chatID, h.tr.T(lang, "msg_language_set", nil))
			return
		}
		h.reply(chatID, h.tr.T(lang, "msg_choose_timezone", nil))
		h.sessions.StartTimezone(userID)

	case "cal":
		if _, err := h.settings.SetCalendar(ctx, userID, arg); err != nil {
			h.logger.Error("failed to set calendar", zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		if settings.SetupComplete {
			h.reply(chatID, h.tr.T(lang, "msg_calendar_set", nil))
			return
		}
		if _, err := h.settings.CompleteSetup(ctx, userID); err != nil {
			h.logger.Error("failed to complete setup", zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		h.reply(chatID, h.tr.T(lang, "msg_setup_done", nil))

	case "settings":
		switch arg {
		case "language":
			h.sendLanguageKeyboard(chatID, lang)
		case "timezone":
			h.reply(chatID, h.tr.T(lang, "msg_choose_timezone", nil))
			h.sessions.StartTimezone(userID)
		case "calendar":
			h.sendCalendarKeyboard(chatID, lang)
		}

	case "confirm":
		h.handleConfirm(ctx, chatID, settings, arg == "yes")

	case "taken":
		h.handleAction(ctx, chatID, lang, arg, h.reminders.MarkTaken, "msg_taken_ack")

	case "paid":
		h.handleAction(ctx, chatID, lang, arg, h.reminders.MarkPaid, "msg_paid_ack")

	case "stop":
		h.handleAction(ctx, chatID, lang, arg, h.reminders.Stop, "msg_stopped_ack")

	case "edit":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		h.sessions.StartEdit(userID, id)
		h.reply(chatID, h.tr.T(lang, "msg_edit_prompt", nil))

	default:
		h.logger.Debug("unknown callback", zap.String("data", cb.Data))
	}
}

// handleAction runs a status transition bound to a notification button.
func (h *Handler) handleAction(ctx context.Context, chatID int64, lang, arg string, fn func(context.Context, int64) error, ackID string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}

	if err := fn(ctx, id); err != nil {
		h.logger.Error("failed to apply reminder action",
			zap.Int64("reminder_id", id), zap.Error(err))
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	h.reply(chatID, h.tr.T(lang, ackID, nil))
}
