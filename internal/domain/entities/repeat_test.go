package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaadak/yaadak/internal/calendar"
)

func TestParseRepeatPermissive(t *testing.T) {
	tests := []struct {
		in   string
		want Repeat
	}{
		{"daily", Repeat{Type: RepeatDaily}},
		{"none", Repeat{Type: RepeatNone}},
		{"", Repeat{Type: RepeatNone}},
		{"yearly", Repeat{Type: RepeatYearly}},
		{`{"type":"daily"}`, Repeat{Type: RepeatDaily}},
		{`{"type":"interval","value":8,"unit":"hours"}`, Repeat{Type: RepeatInterval, Value: 8, Unit: UnitHours}},
		{`{"type":"weekly","weekday":1}`, Repeat{Type: RepeatWeekly, Weekday: 1}},
		{`{"type":"monthly","day":31}`, Repeat{Type: RepeatMonthly, Day: 31}},
		{"every_8_hours", Repeat{Type: RepeatInterval, Value: 8, Unit: UnitHours}},
		{"every_2_weeks", Repeat{Type: RepeatInterval, Value: 14, Unit: UnitDays}},
		{"garbage", Repeat{Type: RepeatNone}},
		{`{"type":"interval","value":0,"unit":"hours"}`, Repeat{Type: RepeatNone}},
		{`{"type":"interval","value":5,"unit":"weeks"}`, Repeat{Type: RepeatNone}},
		{`{"type":"weekly","weekday":9}`, Repeat{Type: RepeatWeekly}},
		{`{"type":"sometimes"}`, Repeat{Type: RepeatNone}},
		{`{broken`, Repeat{Type: RepeatNone}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseRepeat(tc.in), tc.in)
	}
}

func TestSerializeCanonical(t *testing.T) {
	// P3: serialize(parse(x)) is canonical for all well-formed x.
	tests := []struct {
		in   string
		want string
	}{
		{"daily", `{"type":"daily"}`},
		{`{"type":"none"}`, `{"type":"none"}`},
		{"every_30_minutes", `{"type":"interval","value":30,"unit":"minutes"}`},
		{`{"type":"weekly","weekday":7}`, `{"type":"weekly","weekday":7}`},
		{`{"type":"monthly","day":15}`, `{"type":"monthly","day":15}`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseRepeat(tc.in).Serialize(), tc.in)
	}
}

func TestNextAfterStrictlyFuture(t *testing.T) {
	// P4: next_after(b, p, cal) > b whenever it returns a value.
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // a Monday
	patterns := []Repeat{
		{Type: RepeatDaily},
		{Type: RepeatWeekly},
		{Type: RepeatWeekly, Weekday: 1},
		{Type: RepeatMonthly},
		{Type: RepeatMonthly, Day: 2},
		{Type: RepeatYearly},
		{Type: RepeatInterval, Value: 1, Unit: UnitMinutes},
	}
	for _, cal := range []calendar.Calendar{calendar.Gregorian, calendar.Shamsi, calendar.Qamari} {
		for _, p := range patterns {
			next, ok := p.NextAfter(base, cal)
			require.True(t, ok, "%v %s", p, cal)
			assert.True(t, next.After(base), "%v %s -> %v", p, cal, next)
		}
	}

	_, ok := NoRepeat().NextAfter(base, calendar.Gregorian)
	assert.False(t, ok)
}

func TestNextAfterWeekdayTieBreak(t *testing.T) {
	// B3: a Monday pattern evaluated on a Monday moves to next Monday.
	monday := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	next, ok := Repeat{Type: RepeatWeekly, Weekday: 1}.NextAfter(monday, calendar.Gregorian)
	require.True(t, ok)
	assert.Equal(t, monday.AddDate(0, 0, 7), next)

	// Wednesday from Monday is two days out.
	next, ok = Repeat{Type: RepeatWeekly, Weekday: 3}.NextAfter(monday, calendar.Gregorian)
	require.True(t, ok)
	assert.Equal(t, monday.AddDate(0, 0, 2), next)

	// Sunday is ISO weekday 7.
	next, ok = Repeat{Type: RepeatWeekly, Weekday: 7}.NextAfter(monday, calendar.Gregorian)
	require.True(t, ok)
	assert.Equal(t, monday.AddDate(0, 0, 6), next)
}

func TestNextAfterMonthlyDayClamp(t *testing.T) {
	// B1: monthly-on-31 fires on the last day of shorter months.
	base := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	p := Repeat{Type: RepeatMonthly, Day: 31}

	next, ok := p.NextAfter(base, calendar.Gregorian)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC), next)

	next, ok = p.NextAfter(next, calendar.Gregorian)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC), next)
}

func TestNextAfterYearlyFeb29(t *testing.T) {
	// B2: Feb-29 yearly anchors fire on Feb 28 in non-leap years.
	base := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)
	next, ok := Repeat{Type: RepeatYearly}.NextAfter(base, calendar.Gregorian)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC), next)
}

func TestNextAfterMonotonicSequence(t *testing.T) {
	// P2: successive occurrences are strictly increasing.
	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	for _, p := range []Repeat{
		{Type: RepeatDaily},
		{Type: RepeatMonthly, Day: 31},
		{Type: RepeatInterval, Value: 90, Unit: UnitMinutes},
	} {
		cur := base
		for i := 0; i < 50; i++ {
			next, ok := p.NextAfter(cur, calendar.Shamsi)
			require.True(t, ok)
			require.True(t, next.After(cur), "%v at step %d", p, i)
			cur = next
		}
	}
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryMedicine, ParseCategory("medicine"))
	assert.Equal(t, CategoryGeneral, ParseCategory("nonsense"))
	assert.Equal(t, CategoryGeneral, ParseCategory(""))
}

func TestNotificationPayloadTable(t *testing.T) {
	p := CategoryInstallment.NotificationPayload()
	assert.Equal(t, "💳", p.Emoji)
	require.Len(t, p.Actions, 2)
	assert.Equal(t, "paid", p.Actions[0].CallbackPrefix)
	assert.Equal(t, "stop", p.Actions[1].CallbackPrefix)

	assert.Empty(t, CategoryWork.NotificationPayload().Actions)
}

func TestNormalizeOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+03:30", "+03:30", false},
		{"+3", "+03:00", false},
		{"-7", "-07:00", false},
		{"UTC", "+00:00", false},
		{"UTC+5:30", "+05:30", false},
		{"GMT-3", "-03:00", false},
		{"+15", "", true},
		{"tehran", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := NormalizeOffset(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
		} else {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestSanitizeContent(t *testing.T) {
	assert.Equal(t, "take the pill", SanitizeContent("  take the pill \n"))
	long := make([]rune, 0, 600)
	for i := 0; i < 600; i++ {
		long = append(long, 'x')
	}
	assert.Len(t, []rune(SanitizeContent(string(long))), MaxContentLen)
}
