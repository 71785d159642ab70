package foods

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("cereal.json", `[
		{"category": "Cereal Exchange", "food_item": "Rice", "portion_size": "30 g"},
		{"category": "cereal", "food_item": "rice", "portion_size": "35 g"},
		{"category": "cereal", "food_item": "Oats", "portion_size": ""}
	]`)
	write("fruit.json", `[{"category": "Fresh Fruits", "food_item": "Apple", "portion_size": "1 small"}]`)
	write("notes.txt", `ignored`)

	c, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	if got := c.Categories(); len(got) != 2 || got[0] != "cereal" || got[1] != "fresh fruit" {
		t.Fatalf("categories = %v", got)
	}
	cereal := c.FoodsInCategory("CEREAL")
	if len(cereal) != 2 {
		t.Fatalf("expected duplicate rice dropped, got %+v", cereal)
	}
	if cereal[0].Label() != "Rice (30 g)" {
		t.Errorf("label = %q", cereal[0].Label())
	}
	if cereal[1].Label() != "Oats (portion size not specified)" {
		t.Errorf("label = %q", cereal[1].Label())
	}
}

func TestFoodsInUnknownCategory(t *testing.T) {
	c := New(nil)
	got := c.FoodsInCategory("legumes")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestLoadDirErrors(t *testing.T) {
	c, err := LoadDir("")
	if err != nil || len(c.Categories()) != 0 {
		t.Fatalf("empty dir setting should give empty catalog, got %v", err)
	}

	c, err = LoadDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(c.Categories()) != 0 {
		t.Fatalf("missing dir should give empty catalog, got %v", err)
	}

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{`), 0o600)
	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFoodsInCategoryReturnsCopy(t *testing.T) {
	c := New([]Food{{Category: "legumes", FoodItem: "dal", PortionSize: "1 cup"}})
	got := c.FoodsInCategory("legumes")
	got[0].FoodItem = "changed"
	if c.FoodsInCategory("legumes")[0].FoodItem != "dal" {
		t.Fatal("catalog mutated through returned slice")
	}
}
