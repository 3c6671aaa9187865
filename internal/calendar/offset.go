package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Offsets are fixed "±HH:MM" strings in the range -12:00..+14:00. A user's
// zone never carries DST rules, so all wall-clock math is plain addition.

// ParseOffset parses a "±HH:MM" offset. Malformed or out-of-range input
// yields a zero duration and an error; callers decide whether to warn.
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}

	h, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}
	m, err := strconv.Atoi(s[4:6])
	if err != nil {
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}
	if m > 59 {
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if s[0] == '-' {
		d = -d
	}
	if d < -12*time.Hour || d > 14*time.Hour {
		return 0, fmt.Errorf("timezone offset %q out of range", s)
	}

	return d, nil
}

// FormatOffset renders a duration as a "±HH:MM" offset string.
func FormatOffset(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}

// ValidOffset reports whether s is a well-formed in-range offset.
func ValidOffset(s string) bool {
	_, err := ParseOffset(s)
	return err == nil
}

// UTCToLocal shifts a UTC instant to the wall clock of the given offset.
func UTCToLocal(t time.Time, offset time.Duration) time.Time {
	return t.Add(offset)
}

// LocalToUTC shifts a wall-clock moment at the given offset back to UTC.
func LocalToUTC(t time.Time, offset time.Duration) time.Time {
	return t.Add(-offset)
}

// ParseTime parses the canonical "YYYY-MM-DD HH:MM" timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// FormatTime renders a moment in the canonical minute-precision form.
// Seconds are always dropped, never rounded.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
