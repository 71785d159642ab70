package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONFormatCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentStorage, Output: &buf})
	l.Info("saved", FieldCategory, "cereal")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentStorage || rec[FieldCategory] != "cereal" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf}).WithComponent(ComponentHistory)
	l.Warn("slow fetch")
	if n := strings.Count(buf.String(), "component="); n != 1 {
		t.Fatalf("expected one component attribute, got %d in %q", n, buf.String())
	}
	if !strings.Contains(buf.String(), "component=history") {
		t.Fatalf("missing component: %q", buf.String())
	}
}

func TestDebugFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf})
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record leaked: %q", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
	l := Discard()
	if FromContext(IntoContext(context.Background(), l)) != l {
		t.Fatal("expected stored logger")
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	req := httptest.NewRequest("GET", "/progress/2024-05-01", nil)

	sl.LogHTTPEnd(context.Background(), req, 503, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("5xx should log at error: %q", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "write failed", errors.New("disk full"), ComponentStorage, OpUpsert, nil)
	for _, want := range []string{"error=\"disk full\"", "operation=upsert", "component=storage"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %s in %q", want, buf.String())
		}
	}
}
