// Package ledger defines the storage port for daily entries and the helpers
// every store implementation shares.
package ledger

import (
	"context"
	"fmt"
	"time"

	"dietledger/internal/catalog"
	"dietledger/internal/core"
)

// ResetNote marks rows synthesized by Reset.
const ResetNote = "Reset to 0"

type (
	// Store keeps at most one entry per (date, canonical category).
	// Implementations wrap every persistence failure in core.ErrStorage and
	// never retry.
	Store interface {
		// Upsert replaces amount, notes and timestamp of the existing row for
		// (date, category) or inserts a new one.
		Upsert(ctx context.Context, date core.Date, e core.Entry) error

		// BatchUpsert reads the date once and applies Upsert semantics to each
		// entry. When a category repeats in entries the last one wins.
		BatchUpsert(ctx context.Context, date core.Date, entries []core.Entry) error

		// Reset replaces everything stored for date with one zero row per
		// catalog category.
		Reset(ctx context.Context, date core.Date) error

		ReadByDate(ctx context.Context, date core.Date) ([]core.Entry, error)

		// ReadByRange returns entries for start..end inclusive keyed by
		// "YYYY-MM-DD". Dates without entries are absent from the map.
		ReadByRange(ctx context.Context, start, end core.Date) (map[string][]core.Entry, error)
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// CategoryLister supplies the category set a reset fills in.
	CategoryLister interface {
		Categories() []string
	}
)

// Prepare canonicalizes e for storage on date and validates it.
func Prepare(date core.Date, e core.Entry, now time.Time) (core.Entry, error) {
	e.Date = date
	e.Category = core.Normalize(e.Category)
	if e.FoodItem == "" {
		e.FoodItem = e.Category
	}
	e.UpdatedAt = now.UTC()
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

// Dedupe keeps the last entry per canonical category, preserving the order
// in which each category first appeared.
func Dedupe(entries []core.Entry) []core.Entry {
	index := make(map[string]int, len(entries))
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Category]; ok {
			out[i] = e
			continue
		}
		index[e.Category] = len(out)
		out = append(out, e)
	}
	return out
}

// ResetEntries builds the zero rows Reset writes for date.
func ResetEntries(date core.Date, categories CategoryLister, now time.Time) []core.Entry {
	names := categories.Categories()
	out := make([]core.Entry, 0, len(names))
	for _, name := range names {
		out = append(out, core.Entry{
			Date:      date,
			Category:  name,
			FoodItem:  name,
			Amount:    0,
			Unit:      catalog.DefaultUnit(name),
			Notes:     ResetNote,
			UpdatedAt: now.UTC(),
		})
	}
	return out
}

// ValidateRange rejects zero dates and start after end.
func ValidateRange(start, end core.Date) error {
	if err := start.Validate(); err != nil {
		return err
	}
	if err := end.Validate(); err != nil {
		return err
	}
	if start.After(end.Time) {
		return fmt.Errorf("%w: start %s is after end %s", core.ErrInvalidDate, start, end)
	}
	return nil
}
