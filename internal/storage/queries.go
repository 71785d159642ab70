package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// LedgerEntry mirrors one row of ledger_entries.
type LedgerEntry struct {
	ID        int64
	EntryDate string
	Category  string
	FoodItem  string
	Amount    float64
	Unit      string
	Notes     string
	UpdatedAt string
}

const upsertEntry = `
INSERT INTO ledger_entries (entry_date, category, food_item, amount, unit, notes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (entry_date, category) DO UPDATE SET
    amount = excluded.amount,
    notes = excluded.notes,
    updated_at = excluded.updated_at
`

type UpsertEntryParams struct {
	EntryDate string
	Category  string
	FoodItem  string
	Amount    float64
	Unit      string
	Notes     string
	UpdatedAt string
}

func (q *Queries) UpsertEntry(ctx context.Context, arg UpsertEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertEntry,
		arg.EntryDate,
		arg.Category,
		arg.FoodItem,
		arg.Amount,
		arg.Unit,
		arg.Notes,
		arg.UpdatedAt,
	)
	return err
}

const insertEntry = `
INSERT INTO ledger_entries (entry_date, category, food_item, amount, unit, notes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertEntry(ctx context.Context, arg UpsertEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertEntry,
		arg.EntryDate,
		arg.Category,
		arg.FoodItem,
		arg.Amount,
		arg.Unit,
		arg.Notes,
		arg.UpdatedAt,
	)
	return err
}

const updateEntryAmount = `
UPDATE ledger_entries
SET amount = ?, notes = ?, updated_at = ?
WHERE entry_date = ? AND category = ?
`

type UpdateEntryAmountParams struct {
	Amount    float64
	Notes     string
	UpdatedAt string
	EntryDate string
	Category  string
}

func (q *Queries) UpdateEntryAmount(ctx context.Context, arg UpdateEntryAmountParams) error {
	_, err := q.db.ExecContext(ctx, updateEntryAmount,
		arg.Amount,
		arg.Notes,
		arg.UpdatedAt,
		arg.EntryDate,
		arg.Category,
	)
	return err
}

const deleteEntriesByDate = `DELETE FROM ledger_entries WHERE entry_date = ?`

func (q *Queries) DeleteEntriesByDate(ctx context.Context, entryDate string) error {
	_, err := q.db.ExecContext(ctx, deleteEntriesByDate, entryDate)
	return err
}

const getCategoriesByDate = `SELECT category FROM ledger_entries WHERE entry_date = ?`

func (q *Queries) GetCategoriesByDate(ctx context.Context, entryDate string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getCategoriesByDate, entryDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		items = append(items, category)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getEntriesByDate = `
SELECT id, entry_date, category, food_item, amount, unit, notes, updated_at
FROM ledger_entries
WHERE entry_date = ?
ORDER BY category
`

func (q *Queries) GetEntriesByDate(ctx context.Context, entryDate string) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, getEntriesByDate, entryDate)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

const getEntriesByRange = `
SELECT id, entry_date, category, food_item, amount, unit, notes, updated_at
FROM ledger_entries
WHERE entry_date BETWEEN ? AND ?
ORDER BY entry_date, category
`

func (q *Queries) GetEntriesByRange(ctx context.Context, start, end string) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, getEntriesByRange, start, end)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]LedgerEntry, error) {
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(
			&i.ID,
			&i.EntryDate,
			&i.Category,
			&i.FoodItem,
			&i.Amount,
			&i.Unit,
			&i.Notes,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
