package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/ai"
	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

// renderReminder formats one reminder line: emoji, content, local time in
// the row's calendar and the repeat phrase.
func (h *Handler) renderReminder(lang string, rem *entities.Reminder) string {
	id, data := rem.Repeat.DisplayID()
	return fmt.Sprintf("%s %s — %s (%s)",
		rem.Category.NotificationPayload().Emoji,
		rem.Content,
		calendar.FormatDate(rem.LocalFireTime(), rem.Calendar),
		h.tr.T(lang, id, data),
	)
}

func (h *Handler) listItemKeyboard(lang string, id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "btn_edit", nil), fmt.Sprintf("edit_%d", id)),
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "action_stop", nil), fmt.Sprintf("stop_%d", id)),
		),
	)
}

// sendConfirmation shows the parsed drafts and asks the user to save or
// discard them.
func (h *Handler) sendConfirmation(chatID int64, settings *entities.UserSettings, drafts []*entities.Reminder) {
	lang := settings.Language

	var b strings.Builder
	b.WriteString(h.tr.T(lang, "msg_confirm_prompt", nil))
	for _, d := range drafts {
		b.WriteString("\n")
		b.WriteString(h.renderReminder(lang, d))
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "msg_confirm_yes", nil), "confirm_yes"),
			tgbotapi.NewInlineKeyboardButtonData(h.tr.T(lang, "msg_confirm_no", nil), "confirm_no"),
		),
	)
	h.send(msg)
}

func (h *Handler) handleConfirm(ctx context.Context, chatID int64, settings *entities.UserSettings, save bool) {
	lang := settings.Language

	drafts, ok := h.sessions.TakePending(settings.UserID)
	if !ok {
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	if !save {
		h.reply(chatID, h.tr.T(lang, "msg_discarded", nil))
		return
	}

	for _, draft := range drafts {
		rows, err := h.reminders.Create(ctx, draft)
		if err != nil {
			h.logger.Error("failed to create reminder",
				zap.Int64("user_id", settings.UserID), zap.Error(err))
			h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
			return
		}

		created := rows[0]
		id, data := created.Repeat.DisplayID()
		h.reply(chatID, h.tr.T(lang, "msg_reminder_created", map[string]any{
			"Content": created.Content,
			"Time":    calendar.FormatDate(created.LocalFireTime(), created.Calendar),
			"Repeat":  h.tr.T(lang, id, data),
		}))
	}
}

func (h *Handler) handleEditText(ctx context.Context, chatID int64, settings *entities.UserSettings, reminderID int64, text string) {
	lang := settings.Language

	current, err := h.reminders.GetByID(ctx, reminderID)
	if err != nil {
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	edit, err := h.parser.ParseEdit(ctx, current, settings, text)
	if err != nil {
		h.replyParseError(chatID, lang, err, settings)
		return
	}

	if err := h.reminders.ApplyEdit(ctx, reminderID, edit.Category, edit.Content, edit.LocalFireTime, edit.Repeat); err != nil {
		h.logger.Error("failed to apply edit",
			zap.Int64("reminder_id", reminderID), zap.Error(err))
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	id, data := edit.Repeat.DisplayID()
	h.reply(chatID, h.tr.T(lang, "msg_edit_applied", map[string]any{
		"Content": edit.Content,
		"Time":    calendar.FormatDate(edit.LocalFireTime, current.Calendar),
		"Repeat":  h.tr.T(lang, id, data),
	}))
}

func (h *Handler) replyParseError(chatID int64, lang string, err error, settings *entities.UserSettings) {
	var pastErr *ai.PastDateError
	if errors.As(err, &pastErr) {
		h.reply(chatID, h.tr.T(lang, "msg_past_date_error", map[string]any{
			"Detected": pastErr.Detected,
			"Current":  pastErr.Current,
		}))
		return
	}

	h.logger.Debug("parse failed", zap.Int64("user_id", settings.UserID), zap.Error(err))
	h.reply(chatID, h.tr.T(lang, "msg_ai_error", nil))
}
