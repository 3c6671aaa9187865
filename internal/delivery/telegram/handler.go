package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/ai"
	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/i18n"
	"github.com/yaadak/yaadak/internal/infra/postgres/repository"
	"github.com/yaadak/yaadak/internal/session"
)

type ReminderService interface {
	Create(ctx context.Context, draft *entities.Reminder) ([]*entities.Reminder, error)
	List(ctx context.Context, userID int64, status entities.Status) ([]*entities.Reminder, error)
	GetByID(ctx context.Context, id int64) (*entities.Reminder, error)
	Stats(ctx context.Context, userID int64) (*repository.Stats, error)
	ApplyEdit(ctx context.Context, id int64, category entities.Category, content string, local time.Time, repeat entities.Repeat) error
	MarkTaken(ctx context.Context, id int64) error
	MarkPaid(ctx context.Context, id int64) error
	Stop(ctx context.Context, id int64) error
}

type SettingsService interface {
	GetOrCreate(ctx context.Context, userID int64, languageCode string) (*entities.UserSettings, error)
	SetLanguage(ctx context.Context, userID int64, lang string) (*entities.UserSettings, error)
	SetTimezone(ctx context.Context, userID int64, offset string) (*entities.UserSettings, error)
	SetCalendar(ctx context.Context, userID int64, cal string) (*entities.UserSettings, error)
	CompleteSetup(ctx context.Context, userID int64) (*entities.UserSettings, error)
}

type Parser interface {
	Parse(ctx context.Context, userID int64, settings *entities.UserSettings, utterance string) ([]*entities.Reminder, error)
	ParseEdit(ctx context.Context, current *entities.Reminder, settings *entities.UserSettings, utterance string) (*ai.Edit, error)
	DetectTimezone(ctx context.Context, place string) (city, offset string, err error)
}

type Handler struct {
	bot       *tgbotapi.BotAPI
	logger    *zap.Logger
	tr        *i18n.Translator
	reminders ReminderService
	settings  SettingsService
	parser    Parser
	sessions  *session.Store
}

func NewHandler(
	bot *tgbotapi.BotAPI,
	logger *zap.Logger,
	tr *i18n.Translator,
	reminders ReminderService,
	settings SettingsService,
	parser Parser,
	sessions *session.Store,
) *Handler {
	return &Handler{
		bot:       bot,
		logger:    logger,
		tr:        tr,
		reminders: reminders,
		settings:  settings,
		parser:    parser,
		sessions:  sessions,
	}
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
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
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID

	settings, err := h.settings.GetOrCreate(ctx, from.ID, from.LanguageCode)
	if err != nil {
		h.logger.Error("failed to load settings",
			zap.Int64("user_id", from.ID), zap.Error(err))
		return
	}
	lang := settings.Language

	if update.Message.IsCommand() {
		switch update.Message.Command() {
		case "start":
			h.handleStart(ctx, chatID, settings)
		case "list":
			h.handleList(ctx, chatID, settings)
		case "stats":
			h.handleStats(ctx, chatID, settings)
		case "settings":
			h.handleSettings(chatID, lang)
		case "help":
			h.reply(chatID, h.tr.T(lang, "msg_help", nil))
		default:
			h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		}
		return
	}

	h.handleText(ctx, chatID, settings, update.Message.Text)
}

// handleText routes a free-text message: onboarding timezone input, an edit
// in progress, or a new reminder utterance.
func (h *Handler) handleText(ctx context.Context, chatID int64, settings *entities.UserSettings, text string) {
	userID := settings.UserID
	lang := settings.Language

	if !settings.SetupComplete || h.sessions.TakeTimezone(userID) {
		h.handleTimezoneInput(ctx, chatID, settings, text)
		return
	}

	if !h.sessions.Allow(userID) {
		h.reply(chatID, h.tr.T(lang, "msg_rate_limited", nil))
		return
	}

	if reminderID, ok := h.sessions.TakeEdit(userID); ok {
		h.handleEditText(ctx, chatID, settings, reminderID, text)
		return
	}

	drafts, err := h.parser.Parse(ctx, userID, settings, text)
	if err != nil {
		h.replyParseError(chatID, lang, err, settings)
		return
	}

	h.sessions.PutPending(userID, drafts)
	h.sendConfirmation(chatID, settings, drafts)
}

func (h *Handler) handleStart(ctx context.Context, chatID int64, settings *entities.UserSettings) {
	if settings.SetupComplete {
		h.reply(chatID, h.tr.T(settings.Language, "msg_welcome", nil))
		return
	}
	h.sendLanguageKeyboard(chatID, settings.Language)
}

func (h *Handler) handleList(ctx context.Context, chatID int64, settings *entities.UserSettings) {
	lang := settings.Language

	reminders, err := h.reminders.List(ctx, settings.UserID, entities.StatusActive)
	if err != nil {
		h.logger.Error("failed to list reminders", zap.Int64("user_id", settings.UserID), zap.Error(err))
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	if len(reminders) == 0 {
		h.reply(chatID, h.tr.T(lang, "msg_reminders_empty", nil))
		return
	}

	h.reply(chatID, h.tr.T(lang, "msg_list_header", nil))
	for _, rem := range reminders {
		msg := tgbotapi.NewMessage(chatID, h.renderReminder(lang, rem))
		msg.ReplyMarkup = h.listItemKeyboard(lang, rem.ID)
		h.send(msg)
	}
}

func (h *Handler) handleStats(ctx context.Context, chatID int64, settings *entities.UserSettings) {
	lang := settings.Language

	stats, err := h.reminders.Stats(ctx, settings.UserID)
	if err != nil {
		h.logger.Error("failed to get stats", zap.Int64("user_id", settings.UserID), zap.Error(err))
		h.reply(chatID, h.tr.T(lang, "msg_unknown", nil))
		return
	}

	h.reply(chatID, h.tr.T(lang, "msg_stats", map[string]any{
		"Active":    stats.Active,
		"Completed": stats.Completed,
		"Cancelled": stats.Cancelled,
	}))
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message", zap.Error(err))
	}
}
