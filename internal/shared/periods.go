package shared

import (
	"strconv"
	"time"
)

// Document date and clock layouts used across the ledger collections.
const (
	DateLayout  = "02-01-2006"
	ClockLayout = "15:04"
)

// FormatDate renders t in the ledger date layout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatClock renders t in the ledger clock layout.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// ParseDate parses a ledger-formatted date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DayKey returns the day-of-month bucket key for the sales rollup.
func DayKey(t time.Time) string {
	return strconv.Itoa(t.Day())
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
