package pricing

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (birth dates, event dates, booking dates)
// =============================================================================

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. Time of day is always midnight.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date { return NewDate(t.Year(), t.Month(), t.Day()) }

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format(DateLayout) }

// =============================================================================
// AGE
// =============================================================================

// Age returns the age in completed years on the reference date. The year
// difference is reduced by one while the birthday has not been reached in
// the reference year.
func Age(birth, reference Date) int {
	age := reference.Year() - birth.Year()
	if reference.Month() < birth.Month() ||
		(reference.Month() == birth.Month() && reference.Day() < birth.Day()) {
		age--
	}
	return age
}
