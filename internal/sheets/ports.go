// Package sheets exports daily progress to a spreadsheet-shaped sink.
package sheets

import (
	"context"

	"dietledger/internal/core"
	"dietledger/internal/progress"
)

// Ports for outbound adapters.
type (
	// ProgressExporter writes one row per date, replacing the row when the
	// date was exported before.
	ProgressExporter interface {
		ExportDay(ctx context.Context, r DayReport) (rowRef string, err error)
	}
)

// DayReport is one exported row: the weighted completion of a date followed
// by the percentage of every catalog category in catalog order.
type DayReport struct {
	Date       core.Date
	Weighted   float64
	Categories []progress.CategoryProgress
}

// NewDayReport lays snap out against every category of c. Categories without
// entries report 0.
func NewDayReport(date core.Date, snap progress.Snapshot, c progress.Catalog) DayReport {
	names := c.Categories()
	cats := make([]progress.CategoryProgress, 0, len(names))
	for _, name := range names {
		cp, ok := snap.Category(name)
		if !ok {
			req := c.RequirementFor(name)
			cp = progress.CategoryProgress{Category: name, Required: req.Amount, Unit: req.Unit}
		}
		cats = append(cats, cp)
	}
	return DayReport{Date: date, Weighted: snap.WeightedCompletion, Categories: cats}
}

// Header returns the column titles matching Values.
func (r DayReport) Header() []string {
	out := make([]string, 0, len(r.Categories)+2)
	out = append(out, "Date", "Weighted %")
	for _, cp := range r.Categories {
		out = append(out, cp.Category)
	}
	return out
}

// Values returns the row cells, percentages rounded to one decimal.
func (r DayReport) Values() []any {
	out := make([]any, 0, len(r.Categories)+2)
	out = append(out, r.Date.String(), core.RoundPercent(r.Weighted))
	for _, cp := range r.Categories {
		out = append(out, core.RoundPercent(cp.Percentage))
	}
	return out
}
