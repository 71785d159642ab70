package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dietledger/internal/core"
	"dietledger/internal/ledger"
	"dietledger/internal/log"

	_ "modernc.org/sqlite"
)

// Transactions begin IMMEDIATE so a read-then-write batch takes the write
// lock up front and waits on busy_timeout when another process holds it.
const dsnPragmas = "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)&_txlock=immediate"

// SQLiteRepository is the durable ledger.Store. Writes to one date are
// serialized in-process and each mutation runs in a single transaction.
type SQLiteRepository struct {
	db         *sql.DB
	queries    *Queries
	categories ledger.CategoryLister
	locks      ledger.DateLocks
	logger     *log.Logger
	now        func() time.Time
}

var (
	_ ledger.Store  = (*SQLiteRepository)(nil)
	_ ledger.Pinger = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, categories ledger.CategoryLister, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single connection per process; other processes are handled by the
	// immediate transaction lock.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite ledger ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:         db,
		queries:    New(db),
		categories: categories,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithClock overrides the timestamp source.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.StorageErr("ping", err)
	}
	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, date core.Date, e core.Entry) error {
	e, err := ledger.Prepare(date, e, r.now())
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(date)
	defer unlock()

	if err := r.queries.UpsertEntry(ctx, toParams(e)); err != nil {
		return core.StorageErr("upsert entry", err)
	}

	r.logger.DebugContext(ctx, "Entry upserted",
		log.FieldDate, e.Date.String(),
		log.FieldCategory, e.Category,
		log.FieldAmount, e.Amount)
	return nil
}

func (r *SQLiteRepository) BatchUpsert(ctx context.Context, date core.Date, entries []core.Entry) error {
	now := r.now()
	prepared := make([]core.Entry, 0, len(entries))
	for i, e := range entries {
		p, err := ledger.Prepare(date, e, now)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		prepared = append(prepared, p)
	}
	prepared = ledger.Dedupe(prepared)

	unlock := r.locks.Lock(date)
	defer unlock()

	var inserted, updated int
	err := r.inTx(ctx, func(q *Queries) error {
		existing, err := q.GetCategoriesByDate(ctx, date.String())
		if err != nil {
			return fmt.Errorf("read date: %w", err)
		}
		present := make(map[string]bool, len(existing))
		for _, c := range existing {
			present[c] = true
		}

		for _, e := range prepared {
			if present[e.Category] {
				err = q.UpdateEntryAmount(ctx, UpdateEntryAmountParams{
					Amount:    e.Amount,
					Notes:     e.Notes,
					UpdatedAt: formatTime(e.UpdatedAt),
					EntryDate: e.Date.String(),
					Category:  e.Category,
				})
				updated++
			} else {
				err = q.InsertEntry(ctx, toParams(e))
				present[e.Category] = true
				inserted++
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", e.Category, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.StorageErr("batch upsert", err)
	}

	r.logger.InfoContext(ctx, "Batch applied",
		log.FieldDate, date.String(),
		"inserted", inserted,
		"updated", updated)
	return nil
}

func (r *SQLiteRepository) Reset(ctx context.Context, date core.Date) error {
	if err := date.Validate(); err != nil {
		return err
	}
	rows := ledger.ResetEntries(date, r.categories, r.now())

	unlock := r.locks.Lock(date)
	defer unlock()

	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteEntriesByDate(ctx, date.String()); err != nil {
			return fmt.Errorf("clear date: %w", err)
		}
		for _, e := range rows {
			if err := q.InsertEntry(ctx, toParams(e)); err != nil {
				return fmt.Errorf("insert %s: %w", e.Category, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.StorageErr("reset", err)
	}

	r.logger.InfoContext(ctx, "Date reset", log.FieldDate, date.String(), log.FieldEntries, len(rows))
	return nil
}

func (r *SQLiteRepository) ReadByDate(ctx context.Context, date core.Date) ([]core.Entry, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.queries.GetEntriesByDate(ctx, date.String())
	if err != nil {
		return nil, core.StorageErr("read date", err)
	}
	out := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := fromRow(row)
		if err != nil {
			return nil, core.StorageErr("decode row", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *SQLiteRepository) ReadByRange(ctx context.Context, start, end core.Date) (map[string][]core.Entry, error) {
	if err := ledger.ValidateRange(start, end); err != nil {
		return nil, err
	}
	rows, err := r.queries.GetEntriesByRange(ctx, start.String(), end.String())
	if err != nil {
		return nil, core.StorageErr("read range", err)
	}
	out := make(map[string][]core.Entry)
	for _, row := range rows {
		e, err := fromRow(row)
		if err != nil {
			return nil, core.StorageErr("decode row", err)
		}
		out[row.EntryDate] = append(out[row.EntryDate], e)
	}
	return out, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func toParams(e core.Entry) UpsertEntryParams {
	return UpsertEntryParams{
		EntryDate: e.Date.String(),
		Category:  e.Category,
		FoodItem:  e.FoodItem,
		Amount:    e.Amount,
		Unit:      string(e.Unit),
		Notes:     e.Notes,
		UpdatedAt: formatTime(e.UpdatedAt),
	}
}

func fromRow(row LedgerEntry) (core.Entry, error) {
	date, err := core.ParseDate(row.EntryDate)
	if err != nil {
		return core.Entry{}, err
	}
	updated, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse updated_at %q: %w", row.UpdatedAt, err)
	}
	return core.Entry{
		Date:      date,
		Category:  row.Category,
		FoodItem:  row.FoodItem,
		Amount:    row.Amount,
		Unit:      core.Unit(row.Unit),
		Notes:     row.Notes,
		UpdatedAt: updated,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
