// Package catalog holds the daily requirement table: how much of each food
// category the child should get per day and in which unit.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"dietledger/internal/core"
)

// Requirement is the daily target for one category.
type Requirement struct {
	Amount float64   `json:"amount" toml:"amount"`
	Unit   core.Unit `json:"unit" toml:"unit"`
}

// Fallback is returned for categories the catalog does not know, so that
// percentage math never divides by zero.
var Fallback = Requirement{Amount: 1.0, Unit: core.UnitExchange}

// exchangeCategories are counted in exchanges; everything else in grams
// when a reset has to synthesize a unit.
var exchangeCategories = map[string]bool{
	"cereal":           true,
	"dried fruit":      true,
	"fresh fruit":      true,
	"legumes":          true,
	"other vegetables": true,
	"root vegetables":  true,
	"free group":       true,
}

var builtin = map[string]Requirement{
	"cereal":           {12.5, core.UnitExchange},
	"dried fruit":      {1, core.UnitExchange},
	"fresh fruit":      {1, core.UnitExchange},
	"legumes":          {3, core.UnitExchange},
	"other vegetables": {3, core.UnitExchange},
	"root vegetables":  {2, core.UnitExchange},
	"free group":       {3, core.UnitExchange},
	"jaggery":          {20, core.UnitGrams},
	"soy milk":         {120, core.UnitML},
	"sugar":            {10, core.UnitGrams},
	"oil ghee":         {30, core.UnitGrams},
	"pa formula":       {32, core.UnitGrams},
	"cal-c formula":    {24, core.UnitGrams},
	"isoleucine":       {4, core.UnitGrams},
	"valine":           {4, core.UnitGrams},
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	reqs  map[string]Requirement
	names []string
}

// New validates reqs and builds a catalog from them.
func New(reqs map[string]Requirement) (*Catalog, error) {
	if len(reqs) == 0 {
		return nil, errors.New("catalog is empty")
	}

	var problems []string
	c := &Catalog{reqs: make(map[string]Requirement, len(reqs))}
	for name, r := range reqs {
		canonical := core.Normalize(name)
		switch {
		case canonical == "":
			problems = append(problems, "empty category name")
			continue
		case canonical != name:
			problems = append(problems, fmt.Sprintf("category %q is not canonical (want %q)", name, canonical))
			continue
		}
		if r.Amount <= 0 || math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
			problems = append(problems, fmt.Sprintf("category %q: amount must be positive, got %v", name, r.Amount))
		}
		if !r.Unit.Valid() {
			problems = append(problems, fmt.Sprintf("category %q: unknown unit %q", name, r.Unit))
		}
		c.reqs[name] = r
		c.names = append(c.names, name)
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("invalid catalog:\n- %s", strings.Join(problems, "\n- "))
	}
	sort.Strings(c.names)
	return c, nil
}

// Default returns the built-in requirement table.
func Default() *Catalog {
	c, err := New(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

type fileFormat struct {
	Requirements map[string]Requirement `toml:"requirements"`
}

// LoadFile reads a TOML requirement table:
//
//	[requirements."cereal"]
//	amount = 12.5
//	unit = "exchange"
//
// An empty path yields the built-in table.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(f.Requirements)
}

// WriteTOML encodes the catalog in the format LoadFile reads.
func (c *Catalog) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(fileFormat{Requirements: c.reqs})
}

// RequirementFor returns the requirement for category, or Fallback.
func (c *Catalog) RequirementFor(category string) Requirement {
	r, _ := c.Lookup(category)
	return r
}

// Lookup is RequirementFor with the miss made visible as ErrUnknownCategory.
// The returned requirement is always usable.
func (c *Catalog) Lookup(category string) (Requirement, error) {
	if r, ok := c.reqs[core.Normalize(category)]; ok {
		return r, nil
	}
	return Fallback, fmt.Errorf("%w: %q", core.ErrUnknownCategory, category)
}

// Has reports whether category is part of the catalog.
func (c *Catalog) Has(category string) bool {
	_, ok := c.reqs[core.Normalize(category)]
	return ok
}

// Categories returns the catalog keys in name order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Len() int {
	return len(c.names)
}

// DefaultUnit classifies a category for synthesized entries.
func DefaultUnit(category string) core.Unit {
	if exchangeCategories[core.Normalize(category)] {
		return core.UnitExchange
	}
	return core.UnitGrams
}
