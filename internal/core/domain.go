package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the only accepted wire format for calendar dates.
const DateLayout = "2006-01-02"

const (
	UnitExchange Unit = "exchange"
	UnitGrams    Unit = "grams"
	UnitML       Unit = "ml"
)

type (
	Unit string

	// Date is a calendar date without a time component, stored at UTC midnight.
	Date struct {
		time.Time
	}

	// Entry is one ledger row. For a given Date there is at most one Entry per
	// canonical Category.
	Entry struct {
		Date      Date      `json:"date"`
		Category  string    `json:"category"`
		FoodItem  string    `json:"food_item"`
		Amount    float64   `json:"amount"`
		Unit      Unit      `json:"unit"`
		Notes     string    `json:"notes,omitempty"`
		UpdatedAt time.Time `json:"updated_at"`
	}
)

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	switch u {
	case UnitExchange, UnitGrams, UnitML:
		return true
	default:
		return false
	}
}

// ParseUnit accepts the common spellings seen in user input.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exchange", "exchanges":
		return UnitExchange, nil
	case "grams", "gram", "g":
		return UnitGrams, nil
	case "ml", "milliliters", "millilitres":
		return UnitML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date t falls on in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Any other shape, including
// out-of-range days such as 2024-02-30, yields ErrInvalidDate.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// ParseRange parses both bounds and rejects start > end.
func ParseRange(start, end string) (Date, Date, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Date{}, Date{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Date{}, Date{}, err
	}
	if s.After(e.Time) {
		return Date{}, Date{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidDate, s, e)
	}
	return s, e, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Day() int {
	return d.Time.Day()
}

func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Validate checks a normalized entry before it reaches a store.
func (e Entry) Validate() error {
	var errs []error
	if err := e.Date.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(e.Category) == "" {
		errs = append(errs, ErrEmptyCategory)
	}
	if e.Amount < 0 || math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidAmount, e.Amount))
	}
	if !e.Unit.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidUnit, e.Unit))
	}
	return errors.Join(errs...)
}
