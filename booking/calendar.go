/*
calendar.go - Date arithmetic for the booking engine

PURPOSE:
  All date handling for availability and pricing goes through this file.
  Bookings occupy half-open intervals [check_in, check_out): a guest
  checking out on the 5th frees the room for a guest checking in on the
  5th. Every range comparison in the engine must use the same rule, or
  changeover days get double counted (or lost).

KEY CONCEPTS:
  - Date: a calendar day, normalized to UTC midnight. Comparable, usable
    as a map key.
  - Overlaps: the half-open interval intersection test.
  - Nights: enumeration of the nights a stay covers (excludes checkout day).
  - DaysInclusive: enumeration of report days (availability uses an
    inclusive day range as its input).

SEE ALSO:
  - availability.go: per-day occupancy over DaysInclusive
  - pricing.go: per-night rates over Nights
*/
package booking

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day at UTC midnight
// =============================================================================

// Date is a calendar day. The zero value is the zero time.
type Date struct {
	t time.Time
}

// NewDate constructs a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysUntil returns the number of days from d to other (negative if other
// is earlier). For a stay this is the night count:
// checkIn.DaysUntil(checkOut).
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t) / (24 * time.Hour))
}

// Properties
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

// IsWeekend reports whether the night of d bills at the weekend rate.
// Friday and Saturday nights count as weekend: those are the nights a
// resort guest stays over into a non-working morning.
func (d Date) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Friday || wd == time.Saturday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date JSON: %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// INTERVAL ARITHMETIC - Half-open [start, end)
// =============================================================================

// Overlaps reports whether half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Occupies reports whether a stay [checkIn, checkOut) occupies day d:
// checkIn <= d < checkOut.
func Occupies(d, checkIn, checkOut Date) bool {
	return checkIn.BeforeOrEqual(d) && d.Before(checkOut)
}

// WithinInclusive reports whether d falls in the closed range [start, end].
// Rate adjustments are stored as inclusive date ranges.
func WithinInclusive(d, start, end Date) bool {
	return start.BeforeOrEqual(d) && d.BeforeOrEqual(end)
}

// Nights enumerates the nights of a stay: every day in [checkIn, checkOut).
// Returns nil if checkOut is not after checkIn.
func Nights(checkIn, checkOut Date) []Date {
	if !checkIn.Before(checkOut) {
		return nil
	}
	nights := make([]Date, 0, checkIn.DaysUntil(checkOut))
	for d := checkIn; d.Before(checkOut); d = d.AddDays(1) {
		nights = append(nights, d)
	}
	return nights
}

// DaysInclusive enumerates every day in the closed range [start, end].
// Returns nil if end is before start.
func DaysInclusive(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	days := make([]Date, 0, start.DaysUntil(end)+1)
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
