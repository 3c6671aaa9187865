package entities

import (
	"time"

	"github.com/yaadak/yaadak/internal/calendar"
)

// UserSettings is the per-user preferences document. One document exists per
// user id; it is created with deployment defaults on first interaction.
type UserSettings struct {
	UserID        int64             `json:"user_id"`
	Language      string            `json:"language"`
	Timezone      string            `json:"timezone"` // fixed offset "±HH:MM"
	Calendar      string            `json:"calendar"`
	SetupComplete bool              `json:"setup_complete"`
	CreatedAt     time.Time         `json:"-"`
	UpdatedAt     time.Time         `json:"-"`
}

// DefaultSettings builds a fresh document with deployment defaults.
func DefaultSettings(userID int64, language, timezone string) *UserSettings {
	if !calendar.ValidOffset(timezone) {
		timezone = "+00:00"
	}
	return &UserSettings{
		UserID:   userID,
		Language: language,
		Timezone: timezone,
		Calendar: string(calendar.Gregorian),
	}
}

// Offset returns the user's fixed zone offset, zero when malformed.
func (s *UserSettings) Offset() time.Duration {
	off, err := calendar.ParseOffset(s.Timezone)
	if err != nil {
		return 0
	}
	return off
}
