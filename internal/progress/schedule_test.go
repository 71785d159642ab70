package progress

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 5, 1, h, m, 0, 0, time.UTC)
}

func TestTargetFor(t *testing.T) {
	s := DefaultSchedule()

	tests := []struct {
		name string
		t    time.Time
		want float64
	}{
		{"midnight", at(0, 0), 15},
		{"just before breakfast", at(6, 59), 15},
		{"at breakfast checkpoint", at(7, 0), 25},
		{"mid morning", at(10, 29), 25},
		{"at 10:30", at(10, 30), 50},
		{"lunch", at(12, 59), 50},
		{"at 13:00", at(13, 0), 65},
		{"afternoon", at(16, 29), 65},
		{"at 16:30", at(16, 30), 85},
		{"at 19:30", at(19, 30), 100},
		{"before bed", at(20, 59), 100},
		{"at 21:00", at(21, 0), 100},
		{"late night", at(23, 59), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.TargetFor(tt.t); got != tt.want {
				t.Errorf("TargetFor(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestTargetForSecondsBeforeCheckpoint(t *testing.T) {
	s := DefaultSchedule()
	almost := time.Date(2024, 5, 1, 6, 59, 59, 0, time.UTC)
	if got := s.TargetFor(almost); got != 15 {
		t.Fatalf("TargetFor(06:59:59) = %v, want 15", got)
	}
	past := time.Date(2024, 5, 1, 7, 0, 1, 0, time.UTC)
	if got := s.TargetFor(past); got != 25 {
		t.Fatalf("TargetFor(07:00:01) = %v, want 25", got)
	}
}

func TestTargetMonotonic(t *testing.T) {
	s := DefaultSchedule()
	prev := -1.0
	for minute := 0; minute < 24*60; minute++ {
		tm := at(minute/60, minute%60)
		got := s.TargetFor(tm)
		if got < prev {
			t.Fatalf("target dropped at %s: %v < %v", tm.Format("15:04"), got, prev)
		}
		prev = got
		if minute >= 21*60 && got != 100 {
			t.Fatalf("target at %s = %v, want 100", tm.Format("15:04"), got)
		}
	}
}

func TestNewScheduleValidation(t *testing.T) {
	tests := []struct {
		name string
		cps  []Checkpoint
	}{
		{"empty", nil},
		{"not ascending", []Checkpoint{{clock(10, 0), 10}, {clock(9, 0), 20}}},
		{"same time", []Checkpoint{{clock(10, 0), 10}, {clock(10, 0), 20}}},
		{"percent drops", []Checkpoint{{clock(9, 0), 50}, {clock(10, 0), 20}}},
		{"percent over 100", []Checkpoint{{clock(9, 0), 120}}},
		{"outside day", []Checkpoint{{25 * time.Hour, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSchedule(tt.cps); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("08:00=20, 12:00=60,20:00=100")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if got := s.TargetFor(at(9, 0)); got != 60 {
		t.Fatalf("TargetFor(09:00) = %v, want 60", got)
	}
	if len(s.Checkpoints()) != 3 {
		t.Fatalf("expected 3 checkpoints")
	}
	if s.Checkpoints()[0].String() != "08:00=20" {
		t.Fatalf("String() = %q", s.Checkpoints()[0].String())
	}

	for _, bad := range []string{"", "08:00", "8am=20", "08:00=x"} {
		if _, err := ParseSchedule(bad); err == nil {
			t.Errorf("ParseSchedule(%q) expected error", bad)
		}
	}
}

func TestUntilMidnight(t *testing.T) {
	d, s := UntilMidnight(at(18, 48))
	if d != 5*time.Hour+12*time.Minute {
		t.Fatalf("duration = %v", d)
	}
	if s != "5h 12m" {
		t.Fatalf("formatted = %q, want 5h 12m", s)
	}
}
