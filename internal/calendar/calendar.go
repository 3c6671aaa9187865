// Package calendar converts dates between the Gregorian, Solar Hijri (shamsi)
// and tabular Lunar Hijri (qamari) calendars and handles fixed-offset
// wall-clock arithmetic. Conversions go through the Julian day number using
// the Fourmilab arithmetic algorithms, so they are table-driven and exact.
package calendar

import (
	"fmt"
	"time"
)

// Calendar identifies one of the supported calendar systems.
type Calendar string

const (
	Gregorian Calendar = "gregorian"
	Shamsi    Calendar = "shamsi"
	Qamari    Calendar = "qamari"
)

// TimeLayout is the canonical minute-precision timestamp format used
// everywhere a time crosses a system boundary (storage, parser output).
const TimeLayout = "2006-01-02 15:04"

// ParseCalendar maps a stored calendar name onto a Calendar.
// Unknown values fall back to Gregorian.
func ParseCalendar(s string) Calendar {
	switch Calendar(s) {
	case Shamsi, Qamari:
		return Calendar(s)
	default:
		return Gregorian
	}
}

// Date is a calendar-local date triple.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Julian day epochs, integer (noon-based) convention.
const (
	persianEpoch = 1948320
	islamicEpoch = 1948440
)

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// gregorianToJDN converts a proleptic Gregorian date to a Julian day number.
func gregorianToJDN(y, m, d int) int {
	a := floorDiv(14-m, 12)
	y2 := y + 4800 - a
	m2 := m + 12*a - 3
	return d + floorDiv(153*m2+2, 5) + 365*y2 + floorDiv(y2, 4) - floorDiv(y2, 100) + floorDiv(y2, 400) - 32045
}

func jdnToGregorian(jdn int) Date {
	a := jdn + 32044
	b := floorDiv(4*a+3, 146097)
	c := a - floorDiv(146097*b, 4)
	d := floorDiv(4*c+3, 1461)
	e := c - floorDiv(1461*d, 4)
	m := floorDiv(5*e+2, 153)
	return Date{
		Year:  100*b + d - 4800 + floorDiv(m, 10),
		Month: m + 3 - 12*floorDiv(m, 10),
		Day:   e - floorDiv(153*m+2, 5) + 1,
	}
}

// IsLeapShamsi reports whether the given Solar Hijri year is a leap year
// under the 2820-year arithmetic cycle.
func IsLeapShamsi(year int) bool {
	base := year - 474
	if year <= 0 {
		base = year - 473
	}
	return mod((mod(base, 2820)+474+38)*682, 2816) < 682
}

func shamsiToJDN(y, m, d int) int {
	base := y - 474
	if y <= 0 {
		base = y - 473
	}
	epyear := 474 + mod(base, 2820)

	md := (m - 1) * 31
	if m > 7 {
		md = (m-1)*30 + 6
	}

	return d + md +
		floorDiv(epyear*682-110, 2816) +
		(epyear-1)*365 +
		floorDiv(base, 2820)*1029983 +
		persianEpoch
}

func jdnToShamsi(jdn int) Date {
	depoch := jdn - shamsiToJDN(475, 1, 1)
	cycle := floorDiv(depoch, 1029983)
	cyear := mod(depoch, 1029983)

	var ycycle int
	if cyear == 1029982 {
		ycycle = 2820
	} else {
		aux1 := floorDiv(cyear, 366)
		aux2 := mod(cyear, 366)
		ycycle = floorDiv(2134*aux1+2816*aux2+2815, 1028522) + aux1 + 1
	}

	year := ycycle + 2820*cycle + 474
	if year <= 0 {
		year--
	}

	yday := jdn - shamsiToJDN(year, 1, 1) + 1
	var month int
	if yday <= 186 {
		month = (yday + 30) / 31
	} else {
		month = (yday - 6 + 29) / 30
	}
	day := jdn - shamsiToJDN(year, month, 1) + 1

	return Date{Year: year, Month: month, Day: day}
}

// IsLeapQamari reports whether the given Lunar Hijri year is a leap year
// under the tabular 30-year cycle.
func IsLeapQamari(year int) bool {
	return mod(11*year+14, 30) < 11
}

func qamariToJDN(y, m, d int) int {
	return d + floorDiv(59*(m-1)+1, 2) + (y-1)*354 + floorDiv(3+11*y, 30) + islamicEpoch - 1
}

func jdnToQamari(jdn int) Date {
	year := floorDiv(30*(jdn-islamicEpoch)+10646, 10631)
	num := jdn - qamariToJDN(year, 1, 1) - 29
	month := floorDiv(2*num+58, 59) + 1 // ceil(num/29.5) + 1
	if month > 12 {
		month = 12
	}
	if month < 1 {
		month = 1
	}
	day := jdn - qamariToJDN(year, month, 1) + 1
	return Date{Year: year, Month: month, Day: day}
}

// MonthLength returns the number of days of the given month in the given
// calendar and year.
func MonthLength(cal Calendar, year, month int) int {
	switch cal {
	case Shamsi:
		switch {
		case month <= 6:
			return 31
		case month <= 11:
			return 30
		default:
			if IsLeapShamsi(year) {
				return 30
			}
			return 29
		}
	case Qamari:
		if month == 12 && IsLeapQamari(year) {
			return 30
		}
		if month%2 == 1 {
			return 30
		}
		return 29
	default:
		switch month {
		case 1, 3, 5, 7, 8, 10, 12:
			return 31
		case 4, 6, 9, 11:
			return 30
		default:
			y := year
			if y%4 == 0 && (y%100 != 0 || y%400 == 0) {
				return 29
			}
			return 28
		}
	}
}

// ValidDate reports whether the triple is a real date in the calendar.
func ValidDate(cal Calendar, d Date) bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	return d.Day <= MonthLength(cal, d.Year, d.Month)
}

// ToGregorian converts a calendar-local date to a Gregorian date.
// The input day is clamped to the month's length rather than rolling over.
func ToGregorian(cal Calendar, d Date) (Date, error) {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return Date{}, fmt.Errorf("invalid date %d-%02d-%02d in %s", d.Year, d.Month, d.Day, cal)
	}
	if max := MonthLength(cal, d.Year, d.Month); d.Day > max {
		d.Day = max
	}

	switch cal {
	case Shamsi:
		return jdnToGregorian(shamsiToJDN(d.Year, d.Month, d.Day)), nil
	case Qamari:
		return jdnToGregorian(qamariToJDN(d.Year, d.Month, d.Day)), nil
	default:
		return d, nil
	}
}

// FromGregorian converts a Gregorian date to the given calendar.
func FromGregorian(cal Calendar, d Date) Date {
	jdn := gregorianToJDN(d.Year, d.Month, d.Day)
	switch cal {
	case Shamsi:
		return jdnToShamsi(jdn)
	case Qamari:
		return jdnToQamari(jdn)
	default:
		return d
	}
}

// CurrentYear returns the current year number of the calendar for the given
// Gregorian wall-clock moment.
func CurrentYear(cal Calendar, now time.Time) int {
	return FromGregorian(cal, Date{Year: now.Year(), Month: int(now.Month()), Day: now.Day()}).Year
}

// AddMonths advances a wall-clock moment by n months in the given calendar.
// The day is clamped to the target month's length; the time of day is kept.
func AddMonths(t time.Time, n int, cal Calendar) time.Time {
	d := FromGregorian(cal, Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()})

	m := d.Month - 1 + n
	d.Year += floorDiv(m, 12)
	d.Month = mod(m, 12) + 1
	if max := MonthLength(cal, d.Year, d.Month); d.Day > max {
		d.Day = max
	}

	g, _ := ToGregorian(cal, d)
	return time.Date(g.Year, time.Month(g.Month), g.Day, t.Hour(), t.Minute(), 0, 0, t.Location())
}

// AddYears advances a wall-clock moment by n years in the given calendar,
// keeping month and day. A day past the target month's end is clamped
// (Feb 29 anchors land on Feb 28 in non-leap years, 30 Esfand on 29).
func AddYears(t time.Time, n int, cal Calendar) time.Time {
	d := FromGregorian(cal, Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()})

	d.Year += n
	if max := MonthLength(cal, d.Year, d.Month); d.Day > max {
		d.Day = max
	}

	g, _ := ToGregorian(cal, d)
	return time.Date(g.Year, time.Month(g.Month), g.Day, t.Hour(), t.Minute(), 0, 0, t.Location())
}

// FormatDate renders a wall-clock moment as "YYYY-MM-DD HH:MM" with the date
// part expressed in the given calendar. Used for user-facing lists.
func FormatDate(t time.Time, cal Calendar) string {
	d := FromGregorian(cal, Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()})
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", d.Year, d.Month, d.Day, t.Hour(), t.Minute())
}
