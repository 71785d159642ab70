package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dietledger/internal/amqp"
	"dietledger/internal/catalog"
	"dietledger/internal/core"
	"dietledger/internal/foods"
	"dietledger/internal/history"
	"dietledger/internal/ledger"
	"dietledger/internal/log"
	"dietledger/internal/progress"
	"dietledger/internal/recommend"
)

// Publisher announces that the entries of a date changed.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, date, reason string) error
}

// EntryInput is an entry as callers submit it: free-form category and a
// decimal amount string such as "6", "12.5" or "12,5".
type EntryInput struct {
	Category string `json:"category"`
	FoodItem string `json:"food_item"`
	Amount   string `json:"amount"`
	Unit     string `json:"unit"`
	Notes    string `json:"notes"`
}

// DayProgress is everything the dashboard shows for one date.
type DayProgress struct {
	Date       string                      `json:"date"`
	Snapshot   progress.Snapshot           `json:"snapshot"`
	Categories []progress.CategoryProgress `json:"categories"`
	Band       string                      `json:"band"`
	Target     float64                     `json:"target"`
	TimeLeft   string                      `json:"time_left"`
}

type Suggestions struct {
	Date   string   `json:"date"`
	Target float64  `json:"target"`
	Lines  []string `json:"lines"`
}

type DayCompletion struct {
	Day        int      `json:"day"`
	Percentage *float64 `json:"percentage"`
	Band       string   `json:"band,omitempty"`
}

type MonthView struct {
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Days      []DayCompletion `json:"days"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type CategoryRequirement struct {
	Category string    `json:"category"`
	Amount   float64   `json:"amount"`
	Unit     core.Unit `json:"unit"`
}

// Tracker is the single entry point for the HTTP server and the CLI. Every
// mutation drops the affected month from the history cache and publishes a
// change event; publishing problems are logged and never fail the write.
type Tracker struct {
	store       ledger.Store
	catalog     *catalog.Catalog
	schedule    *progress.Schedule
	months      *history.Aggregator
	foods       *foods.Catalog
	recommender *recommend.Recommender
	publisher   Publisher
	logger      *log.Logger
	now         func() time.Time
	loc         *time.Location
}

type Option func(*Tracker)

func WithPublisher(p Publisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

func WithSchedule(s *progress.Schedule) Option {
	return func(t *Tracker) { t.schedule = s }
}

// WithAggregator replaces the month aggregator built from the store.
func WithAggregator(a *history.Aggregator) Option {
	return func(t *Tracker) { t.months = a }
}

func WithFoods(f *foods.Catalog) Option {
	return func(t *Tracker) { t.foods = f }
}

func WithRecommender(r *recommend.Recommender) Option {
	return func(t *Tracker) { t.recommender = r }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func NewTracker(store ledger.Store, cat *catalog.Catalog, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		catalog: cat,
		now:     time.Now,
		loc:     time.Local,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent(log.ComponentLedger)

	if t.schedule == nil {
		t.schedule = progress.DefaultSchedule()
	}
	if t.foods == nil {
		t.foods = foods.New(nil)
	}
	if t.months == nil {
		t.months = history.New(store, cat,
			history.WithClock(t.now),
			history.WithLocation(t.loc),
			history.WithLogger(t.logger))
	}
	if t.recommender == nil {
		t.recommender = recommend.New(nil, t.foods, cat, t.logger)
	}
	return t
}

func (t *Tracker) clock() time.Time {
	return t.now().In(t.loc)
}

// Today is the current calendar date in the configured time zone.
func (t *Tracker) Today() core.Date {
	return core.DateOf(t.clock())
}

// AddEntry stores one entry, replacing whatever the date held for the same
// category.
func (t *Tracker) AddEntry(ctx context.Context, date string, in EntryInput) (core.Entry, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Entry{}, err
	}
	e, err := t.toEntry(d, in)
	if err != nil {
		return core.Entry{}, err
	}
	if err := t.store.Upsert(ctx, d, e); err != nil {
		return core.Entry{}, fmt.Errorf("add entry: %w", err)
	}

	log.NewStructuredLogger(t.logger).LogEntryWritten(ctx, log.OpUpsert, d.String(), e.Category, e.Amount, string(e.Unit))
	t.changed(ctx, d, amqp.ReasonUpsert)
	return t.stored(ctx, d, []core.Entry{e})[0], nil
}

// AddEntriesBatch applies AddEntry semantics to every input in one write.
// A repeated category keeps its last value.
func (t *Tracker) AddEntriesBatch(ctx context.Context, date string, in []EntryInput) ([]core.Entry, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, err
	}

	entries := make([]core.Entry, 0, len(in))
	var errs []error
	for i, item := range in {
		e, err := t.toEntry(d, item)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		entries = append(entries, e)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if err := t.store.BatchUpsert(ctx, d, entries); err != nil {
		return nil, fmt.Errorf("add entries: %w", err)
	}

	t.logger.InfoContext(ctx, "Entries written",
		log.FieldOperation, log.OpBatch,
		log.FieldDate, d.String(),
		log.FieldEntries, len(entries))
	t.changed(ctx, d, amqp.ReasonBatch)
	return t.stored(ctx, d, ledger.Dedupe(entries)), nil
}

// ResetDay replaces the date with one zero row per catalog category.
func (t *Tracker) ResetDay(ctx context.Context, date string) error {
	d, err := core.ParseDate(date)
	if err != nil {
		return err
	}
	if err := t.store.Reset(ctx, d); err != nil {
		return fmt.Errorf("reset day: %w", err)
	}

	t.logger.InfoContext(ctx, "Day reset",
		log.FieldOperation, log.OpReset,
		log.FieldDate, d.String())
	t.changed(ctx, d, amqp.ReasonReset)
	return nil
}

func (t *Tracker) GetDay(ctx context.Context, date string) ([]core.Entry, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return t.store.ReadByDate(ctx, d)
}

// GetRange returns entries for start..end inclusive grouped by date.
func (t *Tracker) GetRange(ctx context.Context, start, end string) (map[string][]core.Entry, error) {
	s, e, err := core.ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	return t.store.ReadByRange(ctx, s, e)
}

func (t *Tracker) GetSnapshot(ctx context.Context, date string) (progress.Snapshot, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return t.snapshot(ctx, d)
}

func (t *Tracker) snapshot(ctx context.Context, d core.Date) (progress.Snapshot, error) {
	entries, err := t.store.ReadByDate(ctx, d)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return progress.ComputeSnapshot(entries, t.catalog), nil
}

// GetProgress combines the snapshot with the expected target for the
// date and the time left before midnight.
func (t *Tracker) GetProgress(ctx context.Context, date string) (DayProgress, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return DayProgress{}, err
	}
	snap, err := t.snapshot(ctx, d)
	if err != nil {
		return DayProgress{}, err
	}

	now := t.clock()
	_, left := progress.UntilMidnight(now)
	return DayProgress{
		Date:       d.String(),
		Snapshot:   snap,
		Categories: progress.SortByCompletion(snap, t.catalog),
		Band:       progress.Band(snap.WeightedCompletion),
		Target:     t.targetFor(d, now),
		TimeLeft:   left,
	}, nil
}

// targetFor uses the schedule for today. Past days are expected complete and
// future days have no expectation yet.
func (t *Tracker) targetFor(d core.Date, now time.Time) float64 {
	today := core.DateOf(now)
	switch {
	case d.Before(today.Time):
		return 100
	case d.After(today.Time):
		return 0
	default:
		return t.schedule.TargetFor(now)
	}
}

func (t *Tracker) GetSuggestions(ctx context.Context, date string) (Suggestions, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return Suggestions{}, err
	}
	snap, err := t.snapshot(ctx, d)
	if err != nil {
		return Suggestions{}, err
	}
	now := t.clock()
	target := t.targetFor(d, now)
	return Suggestions{
		Date:   d.String(),
		Target: target,
		Lines:  progress.Suggest(snap, target, now),
	}, nil
}

// GetMonth returns per-day completion for a month. On ErrFetch the view
// is still filled with whatever could be resolved.
func (t *Tracker) GetMonth(ctx context.Context, year, month int) (MonthView, error) {
	data, err := t.months.MonthData(ctx, year, month)
	if data.Days == nil {
		return MonthView{}, err
	}

	view := MonthView{Year: year, Month: month, FetchedAt: data.FetchedAt}
	for day := 1; day <= core.DaysIn(year, month); day++ {
		dc := DayCompletion{Day: day}
		if v, ok := data.Value(day); ok {
			dc.Percentage = &v
			dc.Band = progress.Band(v)
		}
		view.Days = append(view.Days, dc)
	}
	return view, err
}

// Challenging lists categories averaging under the threshold over the days
// ending at end. An empty end means today.
func (t *Tracker) Challenging(ctx context.Context, end string, days int) ([]history.CategoryAverage, error) {
	d := t.Today()
	if end != "" {
		var err error
		if d, err = core.ParseDate(end); err != nil {
			return nil, err
		}
	}
	return t.months.Challenging(ctx, d, days)
}

// Categories lists the catalog in name order.
func (t *Tracker) Categories() []CategoryRequirement {
	names := t.catalog.Categories()
	out := make([]CategoryRequirement, 0, len(names))
	for _, name := range names {
		req := t.catalog.RequirementFor(name)
		out = append(out, CategoryRequirement{Category: name, Amount: req.Amount, Unit: req.Unit})
	}
	return out
}

func (t *Tracker) Foods(category string) []foods.Food {
	return t.foods.FoodsInCategory(category)
}

// Recommendations asks for meal ideas covering what the date still lacks.
// Only bad input and storage failures are returned as errors.
func (t *Tracker) Recommendations(ctx context.Context, date string) (recommend.Result, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return recommend.Result{}, err
	}
	snap, err := t.snapshot(ctx, d)
	if err != nil {
		return recommend.Result{}, err
	}
	return t.recommender.Recommend(ctx, snap, t.clock()), nil
}

// Ping reports store readiness when the store supports it.
func (t *Tracker) Ping(ctx context.Context) error {
	if p, ok := t.store.(ledger.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (t *Tracker) toEntry(d core.Date, in EntryInput) (core.Entry, error) {
	category := core.Normalize(in.Category)
	if category == "" {
		return core.Entry{}, core.ErrEmptyCategory
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Entry{}, err
	}

	unit := t.catalog.RequirementFor(category).Unit
	if in.Unit != "" {
		if unit, err = core.ParseUnit(in.Unit); err != nil {
			return core.Entry{}, err
		}
	}
	if _, err := t.catalog.Lookup(category); err != nil {
		t.logger.Warn("Entry for category outside the catalog",
			log.FieldCategory, category,
			log.FieldError, err)
	}

	return core.Entry{
		Date:     d,
		Category: category,
		FoodItem: in.FoodItem,
		Amount:   amount,
		Unit:     unit,
		Notes:    in.Notes,
	}, nil
}

// stored returns the rows the store now holds for written, in the same
// order. When the date cannot be read back the entries are canonicalized
// locally instead.
func (t *Tracker) stored(ctx context.Context, d core.Date, written []core.Entry) []core.Entry {
	rows, err := t.store.ReadByDate(ctx, d)
	if err != nil {
		t.logger.WarnContext(ctx, "Could not read back written entries",
			log.FieldDate, d.String(),
			log.FieldError, err)
	}
	byCategory := make(map[string]core.Entry, len(rows))
	for _, row := range rows {
		byCategory[row.Category] = row
	}

	out := make([]core.Entry, 0, len(written))
	for _, e := range written {
		if row, ok := byCategory[e.Category]; ok {
			out = append(out, row)
			continue
		}
		if p, err := ledger.Prepare(d, e, t.clock()); err == nil {
			e = p
		}
		out = append(out, e)
	}
	return out
}

func (t *Tracker) changed(ctx context.Context, d core.Date, reason string) {
	t.months.Invalidate(d)

	if t.publisher == nil {
		t.logger.DebugContext(ctx, "No publisher configured, skipping change event", log.FieldDate, d.String())
		return
	}
	if err := t.publisher.PublishLedgerChanged(ctx, d.String(), reason); err != nil {
		t.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldDate, d.String(),
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}
