package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dietledger/internal/amqp"
	"dietledger/internal/core"
	"dietledger/internal/log"
	"dietledger/internal/progress"
	"dietledger/internal/sheets"
)

// DefaultConcurrency bounds parallel exports during a backfill.
const DefaultConcurrency = 4

// DayReader is the read side of the ledger the worker needs.
type DayReader interface {
	ReadByDate(ctx context.Context, date core.Date) ([]core.Entry, error)
	ReadByRange(ctx context.Context, start, end core.Date) (map[string][]core.Entry, error)
}

// ExportWorker keeps the progress spreadsheet in line with the ledger. It
// never trusts event payloads: every export reads the date back from the
// store.
type ExportWorker struct {
	store       DayReader
	exporter    sheets.ProgressExporter
	catalog     progress.Catalog
	logger      *log.Logger
	concurrency int
}

func NewExportWorker(store DayReader, exporter sheets.ProgressExporter, catalog progress.Catalog, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		store:       store,
		exporter:    exporter,
		catalog:     catalog,
		logger:      logger.WithComponent(log.ComponentWorker),
		concurrency: DefaultConcurrency,
	}
}

// HandleLedgerChanged is the amqp.Handler for change events. Events with an
// unusable date are dropped; store and export failures are returned so the
// message is redelivered.
func (w *ExportWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	date, err := core.ParseDate(msg.Date)
	if err != nil {
		w.logger.WarnContext(ctx, "Dropping change event with invalid date",
			log.FieldMessageID, msg.ID,
			log.FieldDate, msg.Date,
			log.FieldError, err)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger change",
		log.FieldMessageID, msg.ID,
		log.FieldDate, msg.Date,
		"reason", msg.Reason)

	entries, err := w.store.ReadByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("read %s: %w", date, err)
	}
	return w.export(ctx, date, entries)
}

// Backfill exports every day of the last days days ending at end, so a
// worker that was down catches up. Days without entries are exported as
// zero rows.
func (w *ExportWorker) Backfill(ctx context.Context, end core.Date, days int) error {
	if days <= 0 {
		return nil
	}
	start := end.AddDays(-(days - 1))
	byDate, err := w.store.ReadByRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("read %s..%s: %w", start, end, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	var (
		errs   = make([]error, days)
		i      int
		before = time.Now()
	)
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		idx, day := i, d
		g.Go(func() error {
			errs[idx] = w.export(gctx, day, byDate[day.String()])
			return nil
		})
		i++
	}
	_ = g.Wait()

	err = errors.Join(errs...)
	w.logger.InfoContext(ctx, "Backfill finished",
		"days", days,
		log.FieldDuration, time.Since(before).Milliseconds(),
		log.FieldSuccess, err == nil)
	return err
}

func (w *ExportWorker) export(ctx context.Context, date core.Date, entries []core.Entry) error {
	snap := progress.ComputeSnapshot(entries, w.catalog)
	ref, err := w.exporter.ExportDay(ctx, sheets.NewDayReport(date, snap, w.catalog))
	if err != nil {
		return fmt.Errorf("export %s: %w", date, err)
	}

	w.logger.InfoContext(ctx, "Exported day",
		log.FieldOperation, log.OpExport,
		log.FieldDate, date.String(),
		"ref", ref,
		"weighted", core.RoundPercent(snap.WeightedCompletion))
	return nil
}
