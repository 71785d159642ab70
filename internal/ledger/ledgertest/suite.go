// Package ledgertest is a behavioural suite every ledger.Store must pass.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"dietledger/internal/catalog"
	"dietledger/internal/core"
	"dietledger/internal/ledger"
)

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T, categories ledger.CategoryLister) ledger.Store

func day(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func entry(category, food string, amount float64, notes string) core.Entry {
	return core.Entry{Category: category, FoodItem: food, Amount: amount, Unit: core.UnitExchange, Notes: notes}
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	cat := catalog.Default()
	ctx := context.Background()

	t.Run("upsert replaces instead of accumulating", func(t *testing.T) {
		s := newStore(t, cat)
		d := day("2024-05-01")
		if err := s.Upsert(ctx, d, entry("cereal", "rice", 3, "first")); err != nil {
			t.Fatalf("first upsert: %v", err)
		}
		if err := s.Upsert(ctx, d, entry("Cereal Exchange", "oats", 5, "second")); err != nil {
			t.Fatalf("second upsert: %v", err)
		}
		got, err := s.ReadByDate(ctx, d)
		if err != nil {
			t.Fatalf("ReadByDate: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 row, got %d: %+v", len(got), got)
		}
		if got[0].Amount != 5 || got[0].Notes != "second" {
			t.Fatalf("expected amount 5 and notes 'second', got %+v", got[0])
		}
		if got[0].FoodItem != "rice" {
			t.Fatalf("food item should keep the first write, got %q", got[0].FoodItem)
		}
	})

	t.Run("dates are independent", func(t *testing.T) {
		s := newStore(t, cat)
		if err := s.Upsert(ctx, day("2024-05-01"), entry("cereal", "rice", 3, "")); err != nil {
			t.Fatal(err)
		}
		if err := s.Upsert(ctx, day("2024-05-02"), entry("cereal", "rice", 4, "")); err != nil {
			t.Fatal(err)
		}
		got, _ := s.ReadByDate(ctx, day("2024-05-01"))
		if len(got) != 1 || got[0].Amount != 3 {
			t.Fatalf("unexpected rows for 05-01: %+v", got)
		}
	})

	t.Run("upsert rejects bad input", func(t *testing.T) {
		s := newStore(t, cat)
		if err := s.Upsert(ctx, core.Date{}, entry("cereal", "rice", 1, "")); !errors.Is(err, core.ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate, got %v", err)
		}
		if err := s.Upsert(ctx, day("2024-05-01"), entry("cereal", "rice", -1, "")); !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("batch upsert replaces and inserts", func(t *testing.T) {
		s := newStore(t, cat)
		d := day("2024-05-01")
		if err := s.Upsert(ctx, d, entry("cereal", "rice", 3, "")); err != nil {
			t.Fatal(err)
		}
		batch := []core.Entry{
			entry("cereal", "rice", 6, "batch"),
			entry("legumes", "dal", 1, ""),
			entry("Legumes", "dal", 2, "later"),
		}
		if err := s.BatchUpsert(ctx, d, batch); err != nil {
			t.Fatalf("BatchUpsert: %v", err)
		}
		got, _ := s.ReadByDate(ctx, d)
		if len(got) != 2 {
			t.Fatalf("expected 2 rows, got %d: %+v", len(got), got)
		}
		amounts := map[string]float64{}
		for _, e := range got {
			amounts[e.Category] = e.Amount
		}
		if amounts["cereal"] != 6 || amounts["legumes"] != 2 {
			t.Fatalf("unexpected amounts %v", amounts)
		}
	})

	t.Run("batch with invalid entry writes nothing", func(t *testing.T) {
		s := newStore(t, cat)
		d := day("2024-05-01")
		err := s.BatchUpsert(ctx, d, []core.Entry{
			entry("cereal", "rice", 2, ""),
			entry("legumes", "dal", -1, ""),
		})
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		got, _ := s.ReadByDate(ctx, d)
		if len(got) != 0 {
			t.Fatalf("expected no rows, got %+v", got)
		}
	})

	t.Run("reset yields one zero row per catalog category", func(t *testing.T) {
		s := newStore(t, cat)
		d := day("2024-05-01")
		if err := s.Upsert(ctx, d, entry("candies", "toffee", 2, "")); err != nil {
			t.Fatal(err)
		}
		if err := s.Upsert(ctx, d, entry("cereal", "rice", 7, "")); err != nil {
			t.Fatal(err)
		}
		if err := s.Reset(ctx, d); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		got, err := s.ReadByDate(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != cat.Len() {
			t.Fatalf("expected %d rows after reset, got %d", cat.Len(), len(got))
		}
		seen := map[string]bool{}
		for _, e := range got {
			if seen[e.Category] {
				t.Fatalf("duplicate row for %s", e.Category)
			}
			seen[e.Category] = true
			if !cat.Has(e.Category) {
				t.Fatalf("non-catalog category %q survived reset", e.Category)
			}
			if e.Amount != 0 || e.Notes != ledger.ResetNote || e.FoodItem != e.Category {
				t.Fatalf("unexpected reset row %+v", e)
			}
			if e.Unit != catalog.DefaultUnit(e.Category) {
				t.Fatalf("%s: unit %s, want %s", e.Category, e.Unit, catalog.DefaultUnit(e.Category))
			}
		}

		if err := s.Upsert(ctx, d, entry("cereal", "rice", 4, "")); err != nil {
			t.Fatal(err)
		}
		got, _ = s.ReadByDate(ctx, d)
		if len(got) != cat.Len() {
			t.Fatalf("upsert after reset changed row count to %d", len(got))
		}
	})

	t.Run("range read groups by date", func(t *testing.T) {
		s := newStore(t, cat)
		for _, ds := range []string{"2024-04-30", "2024-05-01", "2024-05-03"} {
			if err := s.Upsert(ctx, day(ds), entry("cereal", "rice", 1, "")); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.Upsert(ctx, day("2024-05-03"), entry("legumes", "dal", 1, "")); err != nil {
			t.Fatal(err)
		}
		got, err := s.ReadByRange(ctx, day("2024-05-01"), day("2024-05-03"))
		if err != nil {
			t.Fatalf("ReadByRange: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 dates, got %v", got)
		}
		if len(got["2024-05-01"]) != 1 || len(got["2024-05-03"]) != 2 {
			t.Fatalf("unexpected grouping %v", got)
		}
		if _, ok := got["2024-04-30"]; ok {
			t.Fatalf("date outside range returned")
		}

		if _, err := s.ReadByRange(ctx, day("2024-05-01"), day("2024-04-30")); !errors.Is(err, core.ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate, got %v", err)
		}
	})

	t.Run("read of empty date", func(t *testing.T) {
		s := newStore(t, cat)
		got, err := s.ReadByDate(ctx, day("2030-01-01"))
		if err != nil || len(got) != 0 {
			t.Fatalf("expected empty result, got %v, %v", got, err)
		}
	})

	t.Run("concurrent upserts keep at most one row", func(t *testing.T) {
		s := newStore(t, cat)
		d := day("2024-05-01")
		const writers = 32

		written := make(map[float64]bool, writers)
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			amount := float64(i + 1)
			written[amount] = true
			wg.Add(1)
			go func(i int, amount float64) {
				defer wg.Done()
				var err error
				if i%2 == 0 {
					err = s.Upsert(ctx, d, entry("cereal", fmt.Sprintf("w%d", i), amount, ""))
				} else {
					err = s.BatchUpsert(ctx, d, []core.Entry{
						entry("Cereal", fmt.Sprintf("w%d", i), amount, ""),
						entry("legumes", "dal", amount, ""),
					})
				}
				if err != nil {
					errs <- err
				}
			}(i, amount)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent write failed: %v", err)
		}

		got, err := s.ReadByDate(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		count := map[string]int{}
		for _, e := range got {
			count[e.Category]++
			if !written[e.Amount] {
				t.Fatalf("stored amount %v was never written", e.Amount)
			}
		}
		if count["cereal"] != 1 || count["legumes"] != 1 {
			t.Fatalf("expected exactly one row per category, got %v", count)
		}
	})
}
