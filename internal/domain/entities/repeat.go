package entities

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yaadak/yaadak/internal/calendar"
)

// RepeatType tags the recurrence variant of a reminder.
type RepeatType string

const (
	RepeatNone     RepeatType = "none"
	RepeatDaily    RepeatType = "daily"
	RepeatWeekly   RepeatType = "weekly"
	RepeatMonthly  RepeatType = "monthly"
	RepeatYearly   RepeatType = "yearly"
	RepeatInterval RepeatType = "interval"
)

// IntervalUnit is the unit of an interval repeat.
type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
)

// Repeat is the recurrence pattern of a reminder. The zero value is not
// meaningful; use NoRepeat or ParseRepeat.
type Repeat struct {
	Type    RepeatType   `json:"type"`
	Value   int          `json:"value,omitempty"`   // interval length
	Unit    IntervalUnit `json:"unit,omitempty"`    // interval unit
	Day     int          `json:"day,omitempty"`     // monthly: day of month 1..31
	Weekday int          `json:"weekday,omitempty"` // weekly: ISO weekday 1..7
}

// NoRepeat is the one-shot pattern.
func NoRepeat() Repeat {
	return Repeat{Type: RepeatNone}
}

var intervalWordRe = regexp.MustCompile(`^every_(\d+)_(minutes|hours|days|weeks)$`)

// ParseRepeat reads a serialized repeat pattern permissively: bare words
// ("daily"), legacy "every_N_unit" strings and JSON blobs are all accepted.
// Anything malformed degrades to the one-shot pattern.
func ParseRepeat(s string) Repeat {
	s = strings.TrimSpace(s)

	switch RepeatType(s) {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return Repeat{Type: RepeatType(s)}
	}
	if s == "" {
		return NoRepeat()
	}

	if m := intervalWordRe.FindStringSubmatch(s); m != nil {
		v, _ := strconv.Atoi(m[1])
		unit := m[2]
		if unit == "weeks" {
			v *= 7
			unit = "days"
		}
		return normalize(Repeat{Type: RepeatInterval, Value: v, Unit: IntervalUnit(unit)})
	}

	var r Repeat
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return NoRepeat()
	}
	return normalize(r)
}

func normalize(r Repeat) Repeat {
	switch r.Type {
	case RepeatNone:
		return NoRepeat()
	case RepeatInterval:
		if r.Value <= 0 {
			return NoRepeat()
		}
		switch r.Unit {
		case UnitMinutes, UnitHours, UnitDays:
			return Repeat{Type: RepeatInterval, Value: r.Value, Unit: r.Unit}
		}
		return NoRepeat()
	case RepeatWeekly:
		if r.Weekday < 1 || r.Weekday > 7 {
			return Repeat{Type: RepeatWeekly}
		}
		return Repeat{Type: RepeatWeekly, Weekday: r.Weekday}
	case RepeatMonthly:
		if r.Day < 1 || r.Day > 31 {
			return Repeat{Type: RepeatMonthly}
		}
		return Repeat{Type: RepeatMonthly, Day: r.Day}
	case RepeatDaily, RepeatYearly:
		return Repeat{Type: r.Type}
	default:
		return NoRepeat()
	}
}

// Serialize renders the canonical JSON form written at every system boundary.
func (r Repeat) Serialize() string {
	b, err := json.Marshal(normalize(r))
	if err != nil {
		return `{"type":"none"}`
	}
	return string(b)
}

// IsRecurring reports whether the pattern produces further occurrences.
func (r Repeat) IsRecurring() bool {
	return r.Type != RepeatNone && r.Type != ""
}

// Period returns the fixed duration of an interval pattern.
func (r Repeat) Period() time.Duration {
	if r.Type != RepeatInterval {
		return 0
	}
	switch r.Unit {
	case UnitMinutes:
		return time.Duration(r.Value) * time.Minute
	case UnitHours:
		return time.Duration(r.Value) * time.Hour
	case UnitDays:
		return time.Duration(r.Value) * 24 * time.Hour
	}
	return 0
}

// DisplayID returns the i18n message id and template data for the pattern's
// human-readable phrase.
func (r Repeat) DisplayID() (string, map[string]any) {
	switch r.Type {
	case RepeatInterval:
		return "repeat_interval_" + string(r.Unit), map[string]any{"Value": r.Value}
	case RepeatWeekly:
		if r.Weekday != 0 {
			return "repeat_weekly_on", map[string]any{"Weekday": r.Weekday}
		}
		return "repeat_weekly", nil
	case RepeatMonthly:
		if r.Day != 0 {
			return "repeat_monthly_on", map[string]any{"Day": r.Day}
		}
		return "repeat_monthly", nil
	case RepeatDaily, RepeatYearly:
		return "repeat_" + string(r.Type), nil
	default:
		return "repeat_none", nil
	}
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NextAfter computes the next local wall-clock occurrence strictly after
// base. Month and year steps are taken in cal, with day clamping. A base
// that already sits on the target weekday or month day advances a full
// period, never returning base itself.
func (r Repeat) NextAfter(base time.Time, cal calendar.Calendar) (time.Time, bool) {
	switch r.Type {
	case RepeatInterval:
		p := r.Period()
		if p <= 0 {
			return time.Time{}, false
		}
		return base.Add(p), true

	case RepeatDaily:
		return base.AddDate(0, 0, 1), true

	case RepeatWeekly:
		if r.Weekday == 0 {
			return base.AddDate(0, 0, 7), true
		}
		ahead := (r.Weekday - isoWeekday(base) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return base.AddDate(0, 0, ahead), true

	case RepeatMonthly:
		next := calendar.AddMonths(base, 1, cal)
		if r.Day != 0 {
			d := calendar.FromGregorian(cal, calendar.Date{Year: next.Year(), Month: int(next.Month()), Day: next.Day()})
			d.Day = r.Day
			if max := calendar.MonthLength(cal, d.Year, d.Month); d.Day > max {
				d.Day = max
			}
			g, err := calendar.ToGregorian(cal, d)
			if err != nil {
				return time.Time{}, false
			}
			next = time.Date(g.Year, time.Month(g.Month), g.Day, base.Hour(), base.Minute(), 0, 0, base.Location())
		}
		return next, true

	case RepeatYearly:
		return calendar.AddYears(base, 1, cal), true

	default:
		return time.Time{}, false
	}
}
