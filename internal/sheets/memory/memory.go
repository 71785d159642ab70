package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dietledger/internal/sheets"
)

// Exporter keeps exported rows in memory, keyed by date. It stands in for
// the spreadsheet when none is configured.
type Exporter struct {
	mu   sync.Mutex
	rows map[string]sheets.DayReport
}

var _ sheets.ProgressExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[string]sheets.DayReport)}
}

// ExportDay stores r and returns a synthetic row reference.
func (e *Exporter) ExportDay(_ context.Context, r sheets.DayReport) (string, error) {
	if err := r.Date.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[r.Date.String()] = r
	return fmt.Sprintf("mem:%s", r.Date), nil
}

// Row returns the last report exported for date.
func (e *Exporter) Row(date string) (sheets.DayReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rows[date]
	return r, ok
}

// Dates lists exported dates in ascending order.
func (e *Exporter) Dates() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.rows))
	for d := range e.rows {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
