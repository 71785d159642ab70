package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Checkpoint says how much of the day's target should be done before At,
// an offset from local midnight.
type Checkpoint struct {
	At      time.Duration
	Percent float64
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("%s=%g", formatClock(c.At), c.Percent)
}

// Schedule maps a time of day to the expected weighted completion.
type Schedule struct {
	checkpoints []Checkpoint
}

func clock(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

var defaultCheckpoints = []Checkpoint{
	{clock(7, 0), 15},
	{clock(10, 30), 25},
	{clock(13, 0), 50},
	{clock(16, 30), 65},
	{clock(19, 30), 85},
	{clock(21, 0), 100},
}

// DefaultSchedule follows a school day: breakfast, mid-morning, lunch,
// evening snack, dinner, bed.
func DefaultSchedule() *Schedule {
	s, _ := NewSchedule(defaultCheckpoints)
	return s
}

// NewSchedule validates that checkpoints are strictly ascending in time,
// non-decreasing in percent and within [0, 100].
func NewSchedule(cps []Checkpoint) (*Schedule, error) {
	if len(cps) == 0 {
		return nil, errors.New("schedule needs at least one checkpoint")
	}
	for i, cp := range cps {
		if cp.At < 0 || cp.At >= 24*time.Hour {
			return nil, fmt.Errorf("checkpoint %d: time %s outside the day", i, cp.At)
		}
		if cp.Percent < 0 || cp.Percent > 100 {
			return nil, fmt.Errorf("checkpoint %d: percent %g outside [0, 100]", i, cp.Percent)
		}
		if i == 0 {
			continue
		}
		prev := cps[i-1]
		if cp.At <= prev.At {
			return nil, fmt.Errorf("checkpoint %d: %s is not after %s", i, formatClock(cp.At), formatClock(prev.At))
		}
		if cp.Percent < prev.Percent {
			return nil, fmt.Errorf("checkpoint %d: percent %g drops below %g", i, cp.Percent, prev.Percent)
		}
	}
	out := make([]Checkpoint, len(cps))
	copy(out, cps)
	return &Schedule{checkpoints: out}, nil
}

// ParseSchedule reads "07:00=15,10:30=25,..." as used in configuration.
func ParseSchedule(s string) (*Schedule, error) {
	var cps []Checkpoint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		at, pct, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("checkpoint %q: want HH:MM=percent", part)
		}
		t, err := time.Parse("15:04", strings.TrimSpace(at))
		if err != nil {
			return nil, fmt.Errorf("checkpoint %q: %w", part, err)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %q: %w", part, err)
		}
		cps = append(cps, Checkpoint{At: clock(t.Hour(), t.Minute()), Percent: p})
	}
	return NewSchedule(cps)
}

// Checkpoints returns a copy of the table.
func (s *Schedule) Checkpoints() []Checkpoint {
	out := make([]Checkpoint, len(s.checkpoints))
	copy(out, s.checkpoints)
	return out
}

// TargetFor returns the percent of the first checkpoint strictly after t's
// time of day, or 100 once the last checkpoint has passed.
func (s *Schedule) TargetFor(t time.Time) float64 {
	now := sinceMidnight(t)
	for _, cp := range s.checkpoints {
		if cp.At > now {
			return cp.Percent
		}
	}
	return 100
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return clock(h, m) + time.Duration(sec)*time.Second + time.Duration(t.Nanosecond())
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// UntilMidnight is the time left before the day's ledger rolls over, also
// rendered as "5h 12m".
func UntilMidnight(t time.Time) (time.Duration, string) {
	y, m, d := t.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	left := next.Sub(t)
	return left, fmt.Sprintf("%dh %dm", int(left.Hours()), int(left.Minutes())%60)
}
