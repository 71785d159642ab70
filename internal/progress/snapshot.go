// Package progress turns ledger entries into completion numbers: per-category
// and weighted percentages, the expected percentage for a time of day and the
// suggestions derived from both.
package progress

import (
	"math"
	"sort"

	"dietledger/internal/catalog"
	"dietledger/internal/core"
)

// Catalog is the part of the requirement catalog progress math needs.
type Catalog interface {
	RequirementFor(category string) catalog.Requirement
	Categories() []string
}

type CategoryProgress struct {
	Category   string    `json:"category"`
	Consumed   float64   `json:"consumed"`
	Required   float64   `json:"required"`
	Unit       core.Unit `json:"unit"`
	Percentage float64   `json:"percentage"`
}

// Snapshot is derived on demand and never persisted.
type Snapshot struct {
	Categories         []CategoryProgress `json:"categories"`
	WeightedCompletion float64            `json:"weighted_completion"`
}

// Category returns the progress row for a canonical category name.
func (s Snapshot) Category(name string) (CategoryProgress, bool) {
	for _, cp := range s.Categories {
		if cp.Category == name {
			return cp, true
		}
	}
	return CategoryProgress{}, false
}

// ComputeSnapshot groups entries by canonical category, sums their amounts and
// scores them against the catalog. Only categories that have entries appear.
// Both the live view and the month history go through here.
func ComputeSnapshot(entries []core.Entry, c Catalog) Snapshot {
	consumed := make(map[string]float64)
	for _, e := range entries {
		consumed[core.Normalize(e.Category)] += e.Amount
	}

	names := make([]string, 0, len(consumed))
	for name := range consumed {
		names = append(names, name)
	}
	sort.Strings(names)

	snap := Snapshot{Categories: make([]CategoryProgress, 0, len(names))}
	var weighted, total float64
	for _, name := range names {
		req := c.RequirementFor(name)
		pct := Percent(consumed[name], req.Amount)
		snap.Categories = append(snap.Categories, CategoryProgress{
			Category:   name,
			Consumed:   consumed[name],
			Required:   req.Amount,
			Unit:       req.Unit,
			Percentage: pct,
		})
		weighted += pct * req.Amount
		total += req.Amount
	}
	if total > 0 {
		snap.WeightedCompletion = clip(weighted / total)
	}
	return snap
}

// Percent is consumed/required as a percentage clipped to [0, 100].
func Percent(consumed, required float64) float64 {
	if required <= 0 {
		return 0
	}
	// multiply first: 6*100/12.5 is exactly 48
	return clip(consumed * 100 / required)
}

func clip(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// SortByCompletion lists every catalog category, missing ones at zero,
// with unfinished categories first. Each group is ordered by name.
func SortByCompletion(s Snapshot, c Catalog) []CategoryProgress {
	var incomplete, complete []CategoryProgress
	for _, name := range c.Categories() {
		cp, ok := s.Category(name)
		if !ok {
			req := c.RequirementFor(name)
			cp = CategoryProgress{Category: name, Required: req.Amount, Unit: req.Unit}
		}
		if cp.Percentage < 100 {
			incomplete = append(incomplete, cp)
		} else {
			complete = append(complete, cp)
		}
	}
	byName := func(list []CategoryProgress) {
		sort.Slice(list, func(i, j int) bool { return list[i].Category < list[j].Category })
	}
	byName(incomplete)
	byName(complete)
	return append(incomplete, complete...)
}

// Remaining returns what is still missing for each catalog category, ordered
// by name. Categories already met are left out.
func Remaining(s Snapshot, c Catalog) []Gap {
	var gaps []Gap
	for _, name := range c.Categories() {
		req := c.RequirementFor(name)
		cp, _ := s.Category(name)
		if cp.Consumed >= req.Amount {
			continue
		}
		gaps = append(gaps, Gap{
			Category:   name,
			Remaining:  req.Amount - cp.Consumed,
			Unit:       req.Unit,
			Percentage: cp.Percentage,
		})
	}
	return gaps
}

// Band maps a completion percentage to the calendar colour class.
func Band(pct float64) string {
	switch {
	case pct >= 90:
		return "green"
	case pct >= 70:
		return "limegreen"
	case pct >= 50:
		return "orange"
	default:
		return "red"
	}
}
