package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dietledger/internal/core"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 15 {
		t.Fatalf("expected 15 categories, got %d", c.Len())
	}

	tests := []struct {
		category string
		want     Requirement
	}{
		{"cereal", Requirement{12.5, core.UnitExchange}},
		{"Cereal Exchange", Requirement{12.5, core.UnitExchange}},
		{"dried fruits", Requirement{1, core.UnitExchange}},
		{"soy milk", Requirement{120, core.UnitML}},
		{"cal-c formula", Requirement{24, core.UnitGrams}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := c.RequirementFor(tt.category); got != tt.want {
				t.Errorf("RequirementFor(%q) = %+v, want %+v", tt.category, got, tt.want)
			}
		})
	}
}

func TestUnknownCategoryFallsBack(t *testing.T) {
	c := Default()
	got, err := c.Lookup("candies")
	if !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if got != Fallback {
		t.Fatalf("expected fallback requirement, got %+v", got)
	}
	if c.RequirementFor("candies") != Fallback {
		t.Fatalf("RequirementFor should return fallback")
	}
	if c.Has("candies") {
		t.Fatalf("candies should not be in the catalog")
	}
}

func TestDefaultUnit(t *testing.T) {
	exchange := []string{"cereal", "dried fruit", "fresh fruit", "legumes", "other vegetables", "root vegetables", "free group", "Juices"}
	for _, c := range exchange {
		if got := DefaultUnit(c); got != core.UnitExchange {
			t.Errorf("DefaultUnit(%q) = %q, want exchange", c, got)
		}
	}
	grams := []string{"jaggery", "soy milk", "sugar", "valine", "unknown"}
	for _, c := range grams {
		if got := DefaultUnit(c); got != core.UnitGrams {
			t.Errorf("DefaultUnit(%q) = %q, want grams", c, got)
		}
	}
}

func TestCategoriesSortedAndCopied(t *testing.T) {
	c := Default()
	names := c.Categories()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("categories not sorted: %q before %q", names[i-1], names[i])
		}
	}
	names[0] = "mutated"
	if c.Categories()[0] == "mutated" {
		t.Fatalf("Categories must return a copy")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		reqs    map[string]Requirement
		wantErr string
	}{
		{"empty", map[string]Requirement{}, "catalog is empty"},
		{"zero amount", map[string]Requirement{"cereal": {0, core.UnitExchange}}, "amount must be positive"},
		{"bad unit", map[string]Requirement{"cereal": {1, "cups"}}, "unknown unit"},
		{"not canonical", map[string]Requirement{"Dried Fruits": {1, core.UnitExchange}}, "not canonical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.reqs)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.toml")
	content := `
[requirements."cereal"]
amount = 10.0
unit = "exchange"

[requirements."soy milk"]
amount = 100.0
unit = "ml"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 categories, got %d", c.Len())
	}
	if got := c.RequirementFor("cereal"); got.Amount != 10 {
		t.Fatalf("cereal amount = %v, want 10", got.Amount)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if c, err := LoadFile(""); err != nil || c.Len() != 15 {
		t.Fatalf("empty path should give default catalog, got %v", err)
	}
}

func TestWriteTOMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Default().WriteTOML(&buf); err != nil {
		t.Fatalf("WriteTOML: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Len() != Default().Len() {
		t.Fatalf("round trip lost categories: %d", c.Len())
	}
	if c.RequirementFor("cereal").Amount != 12.5 {
		t.Fatalf("cereal amount lost in round trip")
	}
}
