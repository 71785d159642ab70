// Package foods indexes the food choices available in each category.
package foods

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dietledger/internal/core"
)

// Food is one choice within a category.
type Food struct {
	Category    string `json:"category"`
	FoodItem    string `json:"food_item"`
	PortionSize string `json:"portion_size"`
}

// Label renders "food (portion)".
func (f Food) Label() string {
	portion := strings.TrimSpace(f.PortionSize)
	if portion == "" {
		portion = "portion size not specified"
	}
	return fmt.Sprintf("%s (%s)", f.FoodItem, portion)
}

// Catalog is an immutable index of foods by canonical category.
type Catalog struct {
	byCategory map[string][]Food
}

// New indexes foods, normalizing categories and dropping rows without a
// food name. Duplicate names inside a category keep the first row.
func New(items []Food) *Catalog {
	c := &Catalog{byCategory: make(map[string][]Food)}
	seen := make(map[string]bool)
	for _, f := range items {
		f.Category = core.Normalize(f.Category)
		f.FoodItem = strings.TrimSpace(f.FoodItem)
		if f.Category == "" || f.FoodItem == "" {
			continue
		}
		key := f.Category + "\x00" + strings.ToLower(f.FoodItem)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.byCategory[f.Category] = append(c.byCategory[f.Category], f)
	}
	return c
}

// LoadDir reads every *.json file in dir. Each file holds an array of Food
// rows. A missing directory yields an empty catalog.
func LoadDir(dir string) (*Catalog, error) {
	if strings.TrimSpace(dir) == "" {
		return New(nil), nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list food files: %w", err)
	}
	sort.Strings(paths)

	var all []Food
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var rows []Food
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(p), err)
		}
		all = append(all, rows...)
	}
	return New(all), nil
}

// FoodsInCategory returns a copy of the foods for category. Unknown
// categories yield an empty, non-nil slice.
func (c *Catalog) FoodsInCategory(category string) []Food {
	list := c.byCategory[core.Normalize(category)]
	out := make([]Food, len(list))
	copy(out, list)
	return out
}

// Categories lists the categories that have at least one food, sorted.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.byCategory))
	for k := range c.byCategory {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
