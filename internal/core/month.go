package core

import (
	"fmt"
	"time"
)

// MonthData holds the per-day weighted completion of one calendar month.
// A nil day value means the day is in the future or could not be fetched.
type MonthData struct {
	Year      int              `json:"year"`
	Month     int              `json:"month"`
	Days      map[int]*float64 `json:"days"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// NewMonthData returns a month with every day unresolved.
func NewMonthData(year, month int) MonthData {
	n := DaysIn(year, month)
	days := make(map[int]*float64, n)
	for d := 1; d <= n; d++ {
		days[d] = nil
	}
	return MonthData{Year: year, Month: month, Days: days}
}

// Set records the completion for day.
func (m MonthData) Set(day int, pct float64) {
	v := pct
	m.Days[day] = &v
}

// Value returns the completion for day and whether it is resolved.
func (m MonthData) Value(day int) (float64, bool) {
	p := m.Days[day]
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Clone returns a deep copy so cached maps are never shared with callers.
func (m MonthData) Clone() MonthData {
	out := MonthData{Year: m.Year, Month: m.Month, FetchedAt: m.FetchedAt, Days: make(map[int]*float64, len(m.Days))}
	for d, p := range m.Days {
		if p != nil {
			v := *p
			out.Days[d] = &v
		} else {
			out.Days[d] = nil
		}
	}
	return out
}

// MonthKey identifies the month in caches and logs, e.g. "2024-05".
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ValidateMonth rejects months outside 1..12 and non-positive years.
func ValidateMonth(year, month int) error {
	if year < 1 || month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d-%d", ErrInvalidDate, year, month)
	}
	return nil
}
