package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

const (
	maxUtteranceLen = 1000
	maxAIContentLen = 40
)

// Parser turns free-text utterances into reminder drafts using an external
// completion service. It owns validation, normalization and the conversion
// of parsed descriptors into concrete UTC fire instants.
type Parser struct {
	completer Completer
	now       func() time.Time
}

func NewParser(completer Completer) *Parser {
	return &Parser{completer: completer, now: func() time.Time { return time.Now().UTC() }}
}

// Parse resolves an utterance into zero or more reminder drafts for the
// given user. Drafts carry no id and StatusActive; the service layer
// persists them.
func (p *Parser) Parse(ctx context.Context, userID int64, settings *entities.UserSettings, utterance string) ([]*entities.Reminder, error) {
	utterance = truncateRunes(strings.TrimSpace(utterance), maxUtteranceLen)
	if utterance == "" {
		return nil, fmt.Errorf("%w: empty utterance", ErrAIParse)
	}

	cal := calendar.ParseCalendar(settings.Calendar)
	offset := settings.Offset()
	nowUTC := p.now()
	nowLocal := calendar.UTCToLocal(nowUTC, offset)

	raw, err := p.completer.Complete(ctx, parseSystemPrompt(settings.Language, nowLocal, cal), utterance)
	if err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIParse, err)
	}
	if len(resp.Reminders) == 0 {
		return nil, fmt.Errorf("%w: no reminders in response", ErrAIParse)
	}

	out := make([]*entities.Reminder, 0, len(resp.Reminders))
	for _, w := range resp.Reminders {
		rp := parseRawRepeat(w.Repeat)
		fireUTC, err := resolveFireTime(w, rp, nowUTC, offset, cal)
		if err != nil {
			return nil, err
		}

		out = append(out, &entities.Reminder{
			UserID:      userID,
			Category:    entities.ParseCategory(w.Category),
			Content:     cleanContent(w.Content),
			FireTimeUTC: fireUTC,
			Timezone:    settings.Timezone,
			Repeat:      rp,
			Calendar:    cal,
			Status:      entities.StatusActive,
		})
	}

	return out, nil
}

// wireEdit is the delta the model emits in edit mode; every field optional.
type wireEdit struct {
	Category     *string         `json:"category"`
	Content      *string         `json:"content"`
	Time         *string         `json:"time"`
	SpecificDate *wireDate       `json:"specific_date"`
	Repeat       json.RawMessage `json:"repeat"`
}

// Edit is the merged result of applying an edit utterance to a reminder.
// LocalFireTime is on the reminder's own wall clock.
type Edit struct {
	Category      entities.Category
	Content       string
	LocalFireTime time.Time
	Repeat        entities.Repeat
}

// ParseEdit asks the model which fields of an existing reminder the
// utterance changes and merges the delta over the current values.
func (p *Parser) ParseEdit(ctx context.Context, current *entities.Reminder, settings *entities.UserSettings, utterance string) (*Edit, error) {
	utterance = truncateRunes(strings.TrimSpace(utterance), maxUtteranceLen)
	if utterance == "" {
		return nil, fmt.Errorf("%w: empty utterance", ErrAIParse)
	}

	cal := current.Calendar
	offset := current.Offset()
	nowLocal := calendar.UTCToLocal(p.now(), offset)

	raw, err := p.completer.Complete(ctx, editSystemPrompt(settings.Language, nowLocal, cal, current), utterance)
	if err != nil {
		return nil, err
	}

	var delta wireEdit
	if err := json.Unmarshal([]byte(raw), &delta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIParse, err)
	}
	if delta.Category == nil && delta.Content == nil && delta.Time == nil &&
		delta.SpecificDate == nil && len(delta.Repeat) == 0 {
		return nil, fmt.Errorf("%w: empty edit delta", ErrAIParse)
	}

	edit := &Edit{
		Category:      current.Category,
		Content:       current.Content,
		LocalFireTime: current.LocalFireTime(),
		Repeat:        current.Repeat,
	}

	if delta.Category != nil {
		edit.Category = entities.ParseCategory(*delta.Category)
	}
	if delta.Content != nil {
		edit.Content = cleanContent(*delta.Content)
	}
	if len(delta.Repeat) != 0 {
		edit.Repeat = parseRawRepeat(delta.Repeat)
	}

	hour, min := edit.LocalFireTime.Hour(), edit.LocalFireTime.Minute()
	if delta.Time != nil {
		if h, m, ok := parseClock(*delta.Time); ok {
			hour, min = h, m
		}
	}
	if delta.SpecificDate != nil {
		local, err := materializeDate(*delta.SpecificDate, hour, min, nowLocal, cal, edit.Category)
		if err != nil {
			return nil, err
		}
		edit.LocalFireTime = local
	} else if delta.Time != nil {
		edit.LocalFireTime = atClock(edit.LocalFireTime, hour, min)
	}

	return edit, nil
}

// DetectTimezone resolves a free-text place name to a canonical city and a
// validated UTC offset.
func (p *Parser) DetectTimezone(ctx context.Context, place string) (city, offset string, err error) {
	place = truncateRunes(strings.TrimSpace(place), 100)
	if place == "" {
		return "", "", fmt.Errorf("%w: empty place", ErrAIParse)
	}

	raw, err := p.completer.Complete(ctx, timezoneSystemPrompt, place)
	if err != nil {
		return "", "", err
	}

	var resp struct {
		City   *string `json:"city"`
		Offset *string `json:"offset"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrAIParse, err)
	}
	if resp.City == nil || resp.Offset == nil {
		return "", "", fmt.Errorf("%w: unknown place", ErrAIParse)
	}

	normalized, err := entities.NormalizeOffset(*resp.Offset)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrAIParse, err)
	}

	return *resp.City, normalized, nil
}

// cleanContent trims model-emitted content down to a short label.
func cleanContent(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`))
	s = truncateRunes(s, maxAIContentLen)
	if s == "" {
		return "⏰"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
