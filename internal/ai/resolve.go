package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

// PastDateError reports a concrete date that already passed. Both dates are
// rendered in the user's calendar for the error message.
type PastDateError struct {
	Detected string
	Current  string
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("past date: %s (now %s)", e.Detected, e.Current)
}

// wireDate is the specific_date descriptor from the model.
type wireDate struct {
	Day      int     `json:"day"`
	Month    int     `json:"month"`
	Year     *int    `json:"year"`
	Calendar *string `json:"calendar"`
}

// wireReminder is one parsed reminder descriptor. Repeat arrives either as
// a JSON object or a bare string, so it stays raw until normalization.
type wireReminder struct {
	Category        string          `json:"category"`
	Content         string          `json:"content"`
	Time            *string         `json:"time"`
	SpecificDate    *wireDate       `json:"specific_date"`
	RelativeDays    *int            `json:"relative_days"`
	RelativeMinutes *int            `json:"relative_minutes"`
	Today           *bool           `json:"today"`
	Repeat          json.RawMessage `json:"repeat"`
}

type wireResponse struct {
	Reminders []wireReminder `json:"reminders"`
	Message   *string        `json:"message"`
}

// parseRawRepeat normalizes the raw repeat field into the canonical pattern.
func parseRawRepeat(raw json.RawMessage) entities.Repeat {
	if len(raw) == 0 {
		return entities.NoRepeat()
	}
	s := string(raw)
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		s = bare
	}
	return entities.ParseRepeat(s)
}

// parseClock splits "HH:MM" into hour and minute.
func parseClock(s string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

func atClock(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

// resolveFireTime materializes the UTC fire instant of one descriptor.
// Descriptors are tried in a fixed priority order: interval anchor, repeat
// with a day field, specific date, relative minutes, relative days, today,
// and finally "today at the given time".
func resolveFireTime(w wireReminder, rp entities.Repeat, nowUTC time.Time, offset time.Duration, cal calendar.Calendar) (time.Time, error) {
	nowUTC = nowUTC.Truncate(time.Minute)
	nowLocal := calendar.UTCToLocal(nowUTC, offset)

	hour, min := nowLocal.Hour(), nowLocal.Minute()
	hasClock := false
	if w.Time != nil {
		if h, m, ok := parseClock(*w.Time); ok {
			hour, min, hasClock = h, m, true
		}
	}

	category := entities.ParseCategory(w.Category)

	// a. Interval patterns anchor at an explicit date, a relative day
	// offset, or now, then skip whole periods until the future.
	if rp.Type == entities.RepeatInterval {
		anchor := nowLocal
		switch {
		case w.SpecificDate != nil:
			a, err := materializeDate(*w.SpecificDate, hour, min, nowLocal, cal, category)
			if err != nil {
				return time.Time{}, err
			}
			anchor = a
		case w.RelativeDays != nil:
			anchor = atClock(nowLocal.AddDate(0, 0, *w.RelativeDays), hour, min)
		case hasClock:
			anchor = atClock(nowLocal, hour, min)
		}

		period := rp.Period()
		if period <= 0 {
			return time.Time{}, &invalidDescriptorError{"interval without period"}
		}
		if !anchor.After(nowLocal) {
			k := int64(nowLocal.Sub(anchor)/period) + 1
			anchor = anchor.Add(time.Duration(k) * period)
		}
		return calendar.LocalToUTC(anchor, offset), nil
	}

	// b. Monthly-on-day and weekly-on-weekday patterns without an explicit
	// date take the first matching occurrence.
	if w.SpecificDate == nil {
		if rp.Type == entities.RepeatMonthly && rp.Day != 0 {
			day := rp.Day
			if max := calendar.MonthLength(cal, calendar.CurrentYear(cal, nowLocal), currentMonth(cal, nowLocal)); day > max {
				day = max
			}
			d := calendar.FromGregorian(cal, calendar.Date{Year: nowLocal.Year(), Month: int(nowLocal.Month()), Day: nowLocal.Day()})
			d.Day = day
			g, err := calendar.ToGregorian(cal, d)
			if err != nil {
				return time.Time{}, &invalidDescriptorError{err.Error()}
			}
			candidate := time.Date(g.Year, time.Month(g.Month), g.Day, hour, min, 0, 0, time.UTC)
			if !candidate.After(nowLocal) {
				next, ok := rp.NextAfter(candidate, cal)
				if !ok {
					return time.Time{}, &invalidDescriptorError{"monthly advance failed"}
				}
				candidate = next
			}
			return calendar.LocalToUTC(candidate, offset), nil
		}

		if rp.Type == entities.RepeatWeekly && rp.Weekday != 0 {
			candidate := atClock(nowLocal, hour, min)
			ahead := (rp.Weekday - isoWeekdayOf(nowLocal) + 7) % 7
			candidate = candidate.AddDate(0, 0, ahead)
			if !candidate.After(nowLocal) {
				candidate = candidate.AddDate(0, 0, 7)
			}
			return calendar.LocalToUTC(candidate, offset), nil
		}
	}

	// c. Explicit date in the user's (or the descriptor's own) calendar.
	if w.SpecificDate != nil {
		local, err := materializeDate(*w.SpecificDate, hour, min, nowLocal, cal, category)
		if err != nil {
			return time.Time{}, err
		}
		return calendar.LocalToUTC(local, offset), nil
	}

	// d. Pure minute offset from now.
	if w.RelativeMinutes != nil && *w.RelativeMinutes > 0 {
		return nowUTC.Add(time.Duration(*w.RelativeMinutes) * time.Minute), nil
	}

	// e. Day offset from now.
	if w.RelativeDays != nil && *w.RelativeDays > 0 {
		local := atClock(nowLocal.AddDate(0, 0, *w.RelativeDays), hour, min)
		return calendar.LocalToUTC(local, offset), nil
	}

	// f/g. Today at the given time, bumped a day if already past.
	local := atClock(nowLocal, hour, min)
	if !local.After(nowLocal) {
		local = local.AddDate(0, 0, 1)
	}
	return calendar.LocalToUTC(local, offset), nil
}

// materializeDate turns a specific_date descriptor into a local wall-clock
// moment. A past date rolls a year forward for birthdays and anniversaries,
// or when the year was left implicit; otherwise it is an error.
func materializeDate(d wireDate, hour, min int, nowLocal time.Time, cal calendar.Calendar, category entities.Category) (time.Time, error) {
	dcal := cal
	if d.Calendar != nil {
		dcal = calendar.ParseCalendar(*d.Calendar)
	}

	year := calendar.CurrentYear(dcal, nowLocal)
	yearGiven := d.Year != nil && *d.Year > 0
	if yearGiven {
		year = *d.Year
	}

	g, err := calendar.ToGregorian(dcal, calendar.Date{Year: year, Month: d.Month, Day: d.Day})
	if err != nil {
		return time.Time{}, &invalidDescriptorError{err.Error()}
	}
	local := time.Date(g.Year, time.Month(g.Month), g.Day, hour, min, 0, 0, time.UTC)

	if local.After(nowLocal) {
		return local, nil
	}

	rollable := category == entities.CategoryBirthday || category == entities.CategoryAnniversary
	if rollable || !yearGiven {
		for !local.After(nowLocal) {
			local = calendar.AddYears(local, 1, dcal)
		}
		return local, nil
	}

	return time.Time{}, &PastDateError{
		Detected: calendar.FormatDate(local, cal),
		Current:  calendar.FormatDate(nowLocal, cal),
	}
}

func currentMonth(cal calendar.Calendar, t time.Time) int {
	return calendar.FromGregorian(cal, calendar.Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}).Month
}

func isoWeekdayOf(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// invalidDescriptorError marks self-contradictory model output; surfaced to
// the caller as ErrAIParse.
type invalidDescriptorError struct{ reason string }

func (e *invalidDescriptorError) Error() string { return "invalid descriptor: " + e.reason }

func (e *invalidDescriptorError) Is(target error) bool { return target == ErrAIParse }
