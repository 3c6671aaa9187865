package entities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yaadak/yaadak/internal/calendar"
)

// NormalizeOffset turns loose user input into the canonical "±HH:MM" form.
// Accepted forms:
//   - canonical: "+03:30", "-05:00"
//   - bare: "+3", "-7", "+5:30"
//   - prefixed: "UTC+3", "GMT-7", "UTC", "GMT"
//
// The result is range-checked against -12:00..+14:00.
func NormalizeOffset(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("empty timezone")
	}

	upper := strings.ToUpper(s)
	if upper == "UTC" || upper == "GMT" {
		return "+00:00", nil
	}
	if strings.HasPrefix(upper, "UTC") || strings.HasPrefix(upper, "GMT") {
		s = strings.TrimSpace(s[3:])
		if s == "" {
			return "+00:00", nil
		}
	}

	if !strings.HasPrefix(s, "+") && !strings.HasPrefix(s, "-") {
		return "", fmt.Errorf("unsupported timezone %q", input)
	}
	sign := s[:1]
	s = s[1:]

	hh := s
	mm := "0"
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		hh, mm = parts[0], parts[1]
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return "", fmt.Errorf("unsupported timezone %q", input)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || h < 0 || m < 0 || m > 59 {
		return "", fmt.Errorf("unsupported timezone %q", input)
	}

	candidate := fmt.Sprintf("%s%02d:%02d", sign, h, m)
	if !calendar.ValidOffset(candidate) {
		return "", fmt.Errorf("timezone %q out of range", input)
	}
	return candidate, nil
}
