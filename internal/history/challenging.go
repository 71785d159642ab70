package history

import (
	"context"
	"sort"

	"dietledger/internal/core"
	"dietledger/internal/progress"
)

const (
	DefaultChallengingDays = 7
	ChallengingThreshold   = 80.0
)

// CategoryAverage is the mean daily completion of one category over a window.
type CategoryAverage struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
}

// Challenging averages each catalog category over the days ending at end and
// returns those below ChallengingThreshold, lowest first. Days without
// entries count as 0%.
func (a *Aggregator) Challenging(ctx context.Context, end core.Date, days int) ([]CategoryAverage, error) {
	if err := end.Validate(); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultChallengingDays
	}
	start := end.AddDays(-(days - 1))

	entries, err := a.store.ReadByRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	names := a.catalog.Categories()
	sums := make(map[string]float64, len(names))
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		snap := progress.ComputeSnapshot(entries[d.String()], a.catalog)
		for _, name := range names {
			if cp, ok := snap.Category(name); ok {
				sums[name] += cp.Percentage
			}
		}
	}

	var out []CategoryAverage
	for _, name := range names {
		avg := sums[name] / float64(days)
		if avg < ChallengingThreshold {
			out = append(out, CategoryAverage{Category: name, Average: core.RoundPercent(avg)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average < out[j].Average
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}
