package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"6", 6, true},
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{" 0 ", 0, true},
		{"0.25", 0.25, true},
		{"-1", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d (%q) expected ok, got %v", i, tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("case %d (%q) = %v, want %v", i, tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("case %d (%q) expected ErrInvalidAmount, got %v", i, tc.in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		6.5:  "6.5",
		3:    "3.0",
		0.04: "0.0",
		12.5: "12.5",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRoundPercent(t *testing.T) {
	if got := RoundPercent(33.333333); got != 33.3 {
		t.Fatalf("RoundPercent = %v, want 33.3", got)
	}
	if got := RoundPercent(48); got != 48 {
		t.Fatalf("RoundPercent = %v, want 48", got)
	}
}
