package core

import (
	"fmt"
	"time"
)

// DateLayout is the only date format accepted at the boundary.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time of day and no zone.
// Arithmetic is done on the year/month/day components.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate creates a new Date from year, month, day.
// Out of range components are normalized the way time.Date does it.
func NewDate(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime extracts the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date as seen from loc.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(time.Now().In(loc))
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return FromTime(t), nil
}

// DaysIn returns the number of days of month in year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// OccurrenceIn returns day-of-month in the given month, clamped to the month's last day.
func OccurrenceIn(year int, month time.Month, day int) Date {
	// normalize month overflow (e.g. month 13) before clamping
	first := NewDate(year, month, 1)
	if last := DaysIn(first.Year, first.Month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date{Year: first.Year, Month: first.Month, Day: day}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Validate reports whether d names a real calendar day.
func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	if d.Month < time.January || d.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidDate, d.Month)
	}
	if d.Day < 1 || d.Day > DaysIn(d.Year, d.Month) {
		return fmt.Errorf("%w: day %d", ErrInvalidDate, d.Day)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MonthKey returns the YYYY-MM bucket key of d.
func (d Date) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// dayNumber counts days since 1970-01-01 in the proleptic Gregorian
// calendar, using integer math only so any four digit year fits.
func (d Date) dayNumber() int {
	y, m := d.Year, int(d.Month)
	if m <= 2 {
		y--
	}
	era := floorDiv(y, 400)
	yoe := y - era*400
	mp := (m + 9) % 12 // March is 0
	doy := (153*mp+2)/5 + d.Day - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func fromDayNumber(n int) Date {
	n += 719468
	era := floorDiv(n, 146097)
	doe := n - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day := doy - (153*mp+2)/5 + 1
	month := (mp+2)%12 + 1
	year := yoe + era*400
	if month <= 2 {
		year++
	}
	return Date{Year: year, Month: time.Month(month), Day: day}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// AddDays moves d by n calendar days.
func (d Date) AddDays(n int) Date {
	return fromDayNumber(d.dayNumber() + n)
}

// AddMonths moves d by n calendar months keeping the day, clamped to the target month.
func (d Date) AddMonths(n int) Date {
	return OccurrenceIn(d.Year, d.Month+time.Month(n), d.Day)
}

// AddYears moves d by n years; Feb 29 becomes Feb 28 in non-leap years.
func (d Date) AddYears(n int) Date {
	return OccurrenceIn(d.Year+n, d.Month, d.Day)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// DaysUntil returns the number of days from d to o (negative when o is earlier).
func (d Date) DaysUntil(o Date) int {
	return o.dayNumber() - d.dayNumber()
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
