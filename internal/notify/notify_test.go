package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
	"github.com/yaadak/yaadak/internal/i18n"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func testReminder(cat entities.Category) *entities.Reminder {
	return &entities.Reminder{
		ID:          42,
		UserID:      7,
		Category:    cat,
		Content:     "take pill",
		FireTimeUTC: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		Timezone:    "+00:00",
		Repeat:      entities.Repeat{Type: entities.RepeatDaily},
		Calendar:    calendar.Gregorian,
		Status:      entities.StatusActive,
	}
}

func newTranslator(t *testing.T) *i18n.Translator {
	tr, err := i18n.New()
	require.NoError(t, err)
	return tr
}

func TestStandardSendsWithActions(t *testing.T) {
	sender := &fakeSender{}
	s := NewStandard(sender, newTranslator(t))

	err := s.Send(context.Background(), 7, testReminder(entities.CategoryMedicine), "en")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Contains(t, msg.Text, "💊")
	assert.Contains(t, msg.Text, "take pill")

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 1)
	assert.Equal(t, "taken_42", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestStandardInstallmentButtons(t *testing.T) {
	sender := &fakeSender{}
	s := NewStandard(sender, newTranslator(t))

	err := s.Send(context.Background(), 7, testReminder(entities.CategoryInstallment), "en")
	require.NoError(t, err)

	msg := sender.sent[0].(tgbotapi.MessageConfig)
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "paid_42", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "stop_42", *kb.InlineKeyboard[0][1].CallbackData)
}

func TestStandardGeneralHasNoKeyboard(t *testing.T) {
	sender := &fakeSender{}
	s := NewStandard(sender, newTranslator(t))

	err := s.Send(context.Background(), 7, testReminder(entities.CategoryGeneral), "en")
	require.NoError(t, err)

	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Nil(t, msg.ReplyMarkup)
}

func TestStandardRetryPrefix(t *testing.T) {
	sender := &fakeSender{}
	s := NewStandard(sender, newTranslator(t))

	err := s.Send(context.Background(), 7, testReminder(entities.CategoryInstallmentRetry), "en")
	require.NoError(t, err)

	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "💳⚠️")
	assert.Contains(t, msg.Text, "Reminder (retry)")
}

func TestStandardBlockedUser(t *testing.T) {
	sender := &fakeSender{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	s := NewStandard(sender, newTranslator(t))

	err := s.Send(context.Background(), 7, testReminder(entities.CategoryGeneral), "en")
	assert.ErrorIs(t, err, ErrBlocked)
}

type flakyStrategy struct {
	failures int
	calls    int
}

func (f *flakyStrategy) Send(context.Context, int64, *entities.Reminder, string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return nil
}

func TestPriorityRetries(t *testing.T) {
	inner := &flakyStrategy{failures: 2}
	p := NewPriority(inner, 3)
	p.backoff = time.Millisecond

	err := p.Send(context.Background(), 7, testReminder(entities.CategoryGeneral), "en")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestPriorityStopsOnBlocked(t *testing.T) {
	calls := 0
	inner := strategyFunc(func() error {
		calls++
		return ErrBlocked
	})
	p := NewPriority(inner, 3)
	p.backoff = time.Millisecond

	err := p.Send(context.Background(), 7, testReminder(entities.CategoryGeneral), "en")
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, 1, calls)
}

type strategyFunc func() error

func (f strategyFunc) Send(context.Context, int64, *entities.Reminder, string) error {
	return f()
}

func TestSilentNeverTouchesTransport(t *testing.T) {
	s := NewSilent(zap.NewNop())
	err := s.Send(context.Background(), 7, testReminder(entities.CategoryMedicine), "fa")
	assert.NoError(t, err)
}

func TestStrategySelection(t *testing.T) {
	tr := newTranslator(t)
	bot := &fakeSender{}
	log := zap.NewNop()

	assert.IsType(t, &Silent{}, New("silent", bot, tr, 3, log))
	assert.IsType(t, &Priority{}, New("priority", bot, tr, 3, log))
	assert.IsType(t, &Standard{}, New("standard", bot, tr, 3, log))
	assert.IsType(t, &Standard{}, New("", bot, tr, 3, log))
}
