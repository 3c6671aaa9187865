package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

// mockCompleter answers from a lookup table keyed by the user message.
type mockCompleter struct {
	responses map[string]string
}

func (m *mockCompleter) Complete(_ context.Context, _, user string) (string, error) {
	if resp, ok := m.responses[user]; ok {
		return resp, nil
	}
	return "", errors.New("transport down")
}

func newTestParser(responses map[string]string, nowUTC time.Time) *Parser {
	p := NewParser(&mockCompleter{responses: responses})
	p.now = func() time.Time { return nowUTC }
	return p
}

func settingsFor(lang, tz, cal string) *entities.UserSettings {
	return &entities.UserSettings{UserID: 7, Language: lang, Timezone: tz, Calendar: cal, SetupComplete: true}
}

func TestParseDailyMedicine(t *testing.T) {
	// Local 2025-01-10 12:00 at +03:30 is 08:30 UTC.
	now := time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"هر روز ساعت ۸ صبح قرص بخور": `{"reminders":[{"category":"medicine","content":"قرص بخور","time":"08:00","repeat":{"type":"daily"}}],"message":null}`,
	}, now)

	drafts, err := p.Parse(context.Background(), 7, settingsFor("fa", "+03:30", "shamsi"), "هر روز ساعت ۸ صبح قرص بخور")
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	r := drafts[0]
	assert.Equal(t, entities.CategoryMedicine, r.Category)
	assert.Equal(t, entities.RepeatDaily, r.Repeat.Type)
	assert.Equal(t, calendar.Shamsi, r.Calendar)
	// 08:00 local already passed today, so tomorrow 08:00 local = 04:30 UTC.
	assert.Equal(t, "2025-01-11 04:30", calendar.FormatTime(r.FireTimeUTC))
}

func TestParseIntervalHours(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"remind me every 8 hours": `{"reminders":[{"category":"general","content":"reminder","repeat":{"type":"interval","value":8,"unit":"hours"}}],"message":null}`,
	}, now)

	drafts, err := p.Parse(context.Background(), 7, settingsFor("en", "+00:00", "gregorian"), "remind me every 8 hours")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "2025-06-01 18:00", calendar.FormatTime(drafts[0].FireTimeUTC))
}

func TestParsePastDateRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"pay rent on march 3rd 2025": `{"reminders":[{"category":"bill","content":"pay rent","time":"09:00","specific_date":{"day":3,"month":3,"year":2025},"repeat":{"type":"none"}}],"message":null}`,
	}, now)

	_, err := p.Parse(context.Background(), 7, settingsFor("en", "+00:00", "gregorian"), "pay rent on march 3rd 2025")

	var pastErr *PastDateError
	require.ErrorAs(t, err, &pastErr)
	assert.Equal(t, "2025-03-03 09:00", pastErr.Detected)
}

func TestParseBirthdayRollsYearForward(t *testing.T) {
	// Local 2025-03-01; 15 Khordad 1403 already passed, expect 1404.
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"تولد علی ۱۵ خرداد": `{"reminders":[{"category":"birthday","content":"تولد علی","specific_date":{"day":15,"month":3},"repeat":{"type":"yearly"}}],"message":null}`,
	}, now)

	drafts, err := p.Parse(context.Background(), 7, settingsFor("fa", "+03:30", "shamsi"), "تولد علی ۱۵ خرداد")
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	r := drafts[0]
	assert.Equal(t, entities.CategoryBirthday, r.Category)
	assert.True(t, r.FireTimeUTC.After(now))

	local := calendar.UTCToLocal(r.FireTimeUTC, r.Offset())
	d := calendar.FromGregorian(calendar.Shamsi, calendar.Date{Year: local.Year(), Month: int(local.Month()), Day: local.Day()})
	assert.Equal(t, 3, d.Month)
	assert.Equal(t, 15, d.Day)
}

func TestParseWeeklyOnWeekday(t *testing.T) {
	// 2025-06-02 is a Monday. Asking for Monday 09:00 at 10:00 local must
	// land on the next Monday, not today.
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"standup every monday at 9": `{"reminders":[{"category":"work","content":"standup","time":"09:00","repeat":{"type":"weekly","weekday":1}}],"message":null}`,
	}, now)

	drafts, err := p.Parse(context.Background(), 7, settingsFor("en", "+00:00", "gregorian"), "standup every monday at 9")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-09 09:00", calendar.FormatTime(drafts[0].FireTimeUTC))
}

func TestParseRelativeMinutes(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"in 20 minutes check the oven": `{"reminders":[{"category":"general","content":"check the oven","relative_minutes":20,"repeat":{"type":"none"}}],"message":null}`,
	}, now)

	drafts, err := p.Parse(context.Background(), 7, settingsFor("en", "+03:30", "gregorian"), "in 20 minutes check the oven")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01 10:20", calendar.FormatTime(drafts[0].FireTimeUTC))
}

func TestParseEmptyRemindersIsAIError(t *testing.T) {
	p := newTestParser(map[string]string{
		"blah": `{"reminders":[],"message":"ai_error"}`,
	}, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	_, err := p.Parse(context.Background(), 7, settingsFor("en", "+00:00", "gregorian"), "blah")
	assert.ErrorIs(t, err, ErrAIParse)
}

func TestParseTransportFailure(t *testing.T) {
	p := newTestParser(nil, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	_, err := p.Parse(context.Background(), 7, settingsFor("en", "+00:00", "gregorian"), "anything")
	assert.Error(t, err)
}

func TestParseBareStringRepeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := newTestParser(map[string]string{
		"walk daily at 7": `{"reminders":[{"category":"exercise","content":"walk","time":"07:00","repeat":"daily"}],"message":null}`,
	}, now)

	drafts, err := p.Parse(context.Background(), 7, settingsFor("en", "+00:00", "gregorian"), "walk daily at 7")
	require.NoError(t, err)
	assert.Equal(t, entities.RepeatDaily, drafts[0].Repeat.Type)
	assert.Equal(t, "2025-06-02 07:00", calendar.FormatTime(drafts[0].FireTimeUTC))
}

func TestParseEditChangesOnlyTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := &entities.Reminder{
		ID:          42,
		UserID:      7,
		Category:    entities.CategoryMedicine,
		Content:     "take pill",
		FireTimeUTC: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		Timezone:    "+00:00",
		Repeat:      entities.Repeat{Type: entities.RepeatDaily},
		Calendar:    calendar.Gregorian,
		Status:      entities.StatusActive,
	}

	p := newTestParser(map[string]string{
		"change it to 9 instead of 8": `{"time":"09:00"}`,
	}, now)

	edit, err := p.ParseEdit(context.Background(), current, settingsFor("en", "+00:00", "gregorian"), "change it to 9 instead of 8")
	require.NoError(t, err)

	assert.Equal(t, entities.CategoryMedicine, edit.Category)
	assert.Equal(t, "take pill", edit.Content)
	assert.Equal(t, entities.RepeatDaily, edit.Repeat.Type)
	assert.Equal(t, 9, edit.LocalFireTime.Hour())
	assert.Equal(t, current.LocalFireTime().Day(), edit.LocalFireTime.Day())
}

func TestParseEditEmptyDelta(t *testing.T) {
	current := &entities.Reminder{
		Timezone: "+00:00",
		Repeat:   entities.NoRepeat(),
		Calendar: calendar.Gregorian,
	}
	p := newTestParser(map[string]string{"mumble": `{}`}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	_, err := p.ParseEdit(context.Background(), current, settingsFor("en", "+00:00", "gregorian"), "mumble")
	assert.ErrorIs(t, err, ErrAIParse)
}

func TestDetectTimezone(t *testing.T) {
	p := newTestParser(map[string]string{
		"tehran":  `{"city":"Tehran","offset":"+03:30"}`,
		"nowhere": `{"city":null,"offset":null}`,
	}, time.Now())

	city, offset, err := p.DetectTimezone(context.Background(), "tehran")
	require.NoError(t, err)
	assert.Equal(t, "Tehran", city)
	assert.Equal(t, "+03:30", offset)

	_, _, err = p.DetectTimezone(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrAIParse)
}

func TestStripFences(t *testing.T) {
	in := "```json\n{\"reminders\":[]}\n```"
	assert.Equal(t, `{"reminders":[]}`, stripFences(in))
	assert.Equal(t, `{"a":1}`, stripFences("{\"a\":1}"))
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "short", cleanContent(`  "short"  `))
	long := cleanContent("a very long content string that exceeds the forty character limit easily")
	assert.LessOrEqual(t, len([]rune(long)), 40)
}
