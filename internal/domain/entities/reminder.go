package entities

import (
	"strings"
	"time"

	"github.com/yaadak/yaadak/internal/calendar"
)

// Status is the lifecycle state of a reminder. Transitions are monotonic:
// active -> completed or cancelled, never back.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// MaxContentLen bounds the stored reminder text.
const MaxContentLen = 500

// Meta is the optional per-row JSON blob. It links auxiliary rows to the
// row that spawned them and keeps the original anchor date for yearly rows.
type Meta struct {
	BaseID     int64  `json:"base_id,omitempty"`     // installment_retry -> base installment row
	BirthdayOf string `json:"birthday_of,omitempty"` // pre-notice -> person named in the birthday row
	Retry      int    `json:"retry,omitempty"`       // installment retry ordinal 1..3
	Anchor     string `json:"anchor,omitempty"`      // original date in the anchor calendar, "YYYY-MM-DD"
}

// IsZero reports whether the blob carries nothing worth storing.
func (m Meta) IsZero() bool {
	return m == Meta{}
}

// Reminder is the primary stored entity. FireTimeUTC is the canonical
// schedule moment; Timezone and Calendar are immutable insert-time metadata
// used for display and calendar-aware advances.
type Reminder struct {
	ID          int64
	UserID      int64
	Category    Category
	Content     string
	FireTimeUTC time.Time
	Timezone    string // fixed offset "±HH:MM"
	Repeat      Repeat
	Calendar    calendar.Calendar
	Status      Status
	Meta        Meta
	CreatedAt   time.Time
}

// Offset returns the row's fixed zone offset; a malformed stored value
// degrades to UTC.
func (r *Reminder) Offset() time.Duration {
	off, err := calendar.ParseOffset(r.Timezone)
	if err != nil {
		return 0
	}
	return off
}

// LocalFireTime is the fire moment on the row's own wall clock.
func (r *Reminder) LocalFireTime() time.Time {
	return calendar.UTCToLocal(r.FireTimeUTC, r.Offset())
}

// SanitizeContent trims, collapses control characters and bounds the text.
func SanitizeContent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	if len(s) > MaxContentLen {
		runes := []rune(s)
		if len(runes) > MaxContentLen {
			runes = runes[:MaxContentLen]
		}
		s = string(runes)
	}
	return s
}
