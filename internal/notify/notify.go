package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/i18n"
)

// ErrBlocked is a terminal delivery failure: the user blocked the bot.
// The scheduler cancels the row instead of retrying forever.
var ErrBlocked = errors.New("user blocked the bot")

// Strategy delivers a due reminder to its user.
type Strategy interface {
	Send(ctx context.Context, userID int64, rem *entities.Reminder, lang string) error
}

// Sender is the transport surface Standard needs; *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Standard builds the category-specific payload and delivers it over
// Telegram with the category's inline actions attached.
type Standard struct {
	bot Sender
	tr  *i18n.Translator
}

func NewStandard(bot Sender, tr *i18n.Translator) *Standard {
	return &Standard{bot: bot, tr: tr}
}

func (s *Standard) Send(_ context.Context, userID int64, rem *entities.Reminder, lang string) error {
	payload := rem.Category.NotificationPayload()

	var b strings.Builder
	b.WriteString(payload.Emoji)
	b.WriteString(" ")
	if rem.Category == entities.CategoryInstallmentRetry {
		b.WriteString(s.tr.T(lang, "notify_retry_prefix", nil))
		b.WriteString(": ")
	}
	b.WriteString(rem.Content)
	b.WriteString("\n")
	b.WriteString(calendar.FormatDate(rem.LocalFireTime(), rem.Calendar))

	msg := tgbotapi.NewMessage(userID, b.String())
	if kb, ok := actionKeyboard(s.tr, lang, rem); ok {
		msg.ReplyMarkup = kb
	}

	if _, err := s.bot.Send(msg); err != nil {
		if isBlockedErr(err) {
			return fmt.Errorf("send reminder %d: %w", rem.ID, ErrBlocked)
		}
		return fmt.Errorf("send reminder %d: %w", rem.ID, err)
	}

	return nil
}

// actionKeyboard builds the inline action row for a category, resolving
// button labels in the user's language. Callback data is "<prefix>_<id>".
func actionKeyboard(tr *i18n.Translator, lang string, rem *entities.Reminder) (tgbotapi.InlineKeyboardMarkup, bool) {
	actions := rem.Category.NotificationPayload().Actions
	if len(actions) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}

	row := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		data := fmt.Sprintf("%s_%d", a.CallbackPrefix, rem.ID)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, a.LabelID, nil), data))
	}

	return tgbotapi.NewInlineKeyboardMarkup(row), true
}

func isBlockedErr(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403
	}
	return strings.Contains(err.Error(), "blocked by the user")
}

// Silent logs instead of delivering. Useful for dry runs and load tests.
type Silent struct {
	logger *zap.Logger
}

func NewSilent(logger *zap.Logger) *Silent {
	return &Silent{logger: logger}
}

func (s *Silent) Send(_ context.Context, userID int64, rem *entities.Reminder, _ string) error {
	s.logger.Info("silent dispatch",
		zap.Int64("user_id", userID),
		zap.Int64("reminder_id", rem.ID),
		zap.String("category", string(rem.Category)),
	)
	return nil
}

// Priority wraps another strategy with fixed-backoff retries. A terminal
// failure (blocked user) is never retried.
type Priority struct {
	inner      Strategy
	maxRetries int
	backoff    time.Duration
}

func NewPriority(inner Strategy, maxRetries int) *Priority {
	return &Priority{inner: inner, maxRetries: maxRetries, backoff: 2 * time.Second}
}

func (p *Priority) Send(ctx context.Context, userID int64, rem *entities.Reminder, lang string) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff):
			}
		}

		lastErr = p.inner.Send(ctx, userID, rem, lang)
		if lastErr == nil || errors.Is(lastErr, ErrBlocked) {
			return lastErr
		}
	}
	return lastErr
}

// New selects a strategy by its configured name, defaulting to standard.
func New(name string, bot Sender, tr *i18n.Translator, maxRetries int, logger *zap.Logger) Strategy {
	switch name {
	case "silent":
		return NewSilent(logger)
	case "priority":
		return NewPriority(NewStandard(bot, tr), maxRetries)
	default:
		return NewStandard(bot, tr)
	}
}
