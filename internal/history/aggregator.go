// Package history turns stored entries into per-day completion figures over
// calendar months and longer windows.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"dietledger/internal/cache"
	"dietledger/internal/core"
	"dietledger/internal/log"
	"dietledger/internal/progress"
)

const (
	DefaultTTL       = 300 * time.Second
	DefaultCacheSize = 24
)

// RangeReader is the slice of ledger.Store the aggregator needs.
type RangeReader interface {
	ReadByRange(ctx context.Context, start, end core.Date) (map[string][]core.Entry, error)
}

// Aggregator serves month views from a TTL cache, refreshing each month with
// a single range read retried under the configured policy.
type Aggregator struct {
	store   RangeReader
	catalog progress.Catalog
	months  *cache.LRUCache[core.MonthData]
	group   singleflight.Group
	retry   RetryPolicy
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	loc     *time.Location
	logger  *log.Logger

	genMu sync.Mutex
	gen   map[string]uint64
}

type config struct {
	ttl    time.Duration
	size   int
	retry  RetryPolicy
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	loc    *time.Location
	logger *log.Logger
}

// Option configures an Aggregator.
type Option func(*config)

func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

func WithCacheSize(n int) Option {
	return func(c *config) { c.size = n }
}

func WithRetry(p RetryPolicy) Option {
	return func(c *config) { c.retry = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithSleep replaces the wait between attempts. fn must return ctx's error
// when ctx ends first.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *config) { c.sleep = fn }
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.loc = loc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

func New(store RangeReader, catalog progress.Catalog, opts ...Option) *Aggregator {
	cfg := config{
		ttl:    DefaultTTL,
		size:   DefaultCacheSize,
		retry:  DefaultRetryPolicy(),
		now:    time.Now,
		sleep:  sleepCtx,
		loc:    time.Local,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Aggregator{
		store:   store,
		catalog: catalog,
		months:  cache.NewLRUCache[core.MonthData](cfg.size, cfg.ttl, cache.WithClock(cfg.now)),
		retry:   cfg.retry,
		now:     cfg.now,
		sleep:   cfg.sleep,
		loc:     cfg.loc,
		logger:  cfg.logger.WithComponent(log.ComponentHistory),
		gen:     make(map[string]uint64),
	}
}

// Today is the current calendar date in the aggregator's time zone.
func (a *Aggregator) Today() core.Date {
	return core.DateOf(a.now().In(a.loc))
}

// MonthData returns the weighted completion of every day of the month.
// Days after today are nil. A fetch that exhausts its retries yields
// ErrFetch together with the partially resolved map, which is cached like a
// success. When ctx ends first the last cached map (or an all-nil one) is
// returned with ctx's error.
func (a *Aggregator) MonthData(ctx context.Context, year, month int) (core.MonthData, error) {
	if err := core.ValidateMonth(year, month); err != nil {
		return core.MonthData{}, err
	}
	key := core.MonthKey(year, month)

	if data, ok := a.months.Get(key); ok {
		return data.Clone(), nil
	}

	first := core.NewDate(year, month, 1)
	if first.After(a.Today().Time) {
		return core.NewMonthData(year, month), nil
	}

	if err := ctx.Err(); err != nil {
		return a.fallback(key, year, month), err
	}

	for {
		ch := a.group.DoChan(key, func() (interface{}, error) {
			return a.fetch(ctx, key, year, month)
		})
		select {
		case <-ctx.Done():
			return a.fallback(key, year, month), ctx.Err()
		case res := <-ch:
			// The shared fetch belonged to a caller that went away.
			if isContextErr(res.Err) && ctx.Err() == nil {
				continue
			}
			data := res.Val.(core.MonthData)
			return data.Clone(), res.Err
		}
	}
}

// Invalidate drops the cached month containing date. A refresh already in
// flight for that month will not repopulate the cache.
func (a *Aggregator) Invalidate(date core.Date) {
	key := core.MonthKey(date.Year(), date.Month())
	a.genMu.Lock()
	a.gen[key]++
	a.genMu.Unlock()
	a.months.Delete(key)
	a.group.Forget(key)
}

func (a *Aggregator) generation(key string) uint64 {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	return a.gen[key]
}

func (a *Aggregator) fallback(key string, year, month int) core.MonthData {
	if data, ok := a.months.Peek(key); ok {
		return data.Clone()
	}
	return core.NewMonthData(year, month)
}

func (a *Aggregator) fetch(ctx context.Context, key string, year, month int) (core.MonthData, error) {
	// Another caller may have finished a refresh between our cache miss and
	// joining the group.
	if data, ok := a.months.Get(key); ok {
		return data, nil
	}
	gen := a.generation(key)

	start := core.NewDate(year, month, 1)
	end := core.NewDate(year, month, core.DaysIn(year, month))
	if today := a.Today(); end.After(today.Time) {
		end = today
	}

	data := core.NewMonthData(year, month)
	var lastErr error
	for attempt := 1; attempt <= a.retry.attempts(); attempt++ {
		entries, err := a.store.ReadByRange(ctx, start, end)
		if err == nil {
			for d := start; !d.After(end.Time); d = d.AddDays(1) {
				snap := progress.ComputeSnapshot(entries[d.String()], a.catalog)
				data.Set(d.Day(), snap.WeightedCompletion)
			}
			lastErr = nil
			break
		}
		if ctx.Err() != nil {
			return a.fallback(key, year, month), ctx.Err()
		}
		lastErr = err
		a.logger.WarnContext(ctx, "Month fetch failed",
			log.FieldYear, year,
			log.FieldMonth, month,
			log.FieldAttempt, attempt,
			log.FieldError, err)

		if attempt < a.retry.attempts() {
			if err := a.sleep(ctx, a.retry.Delay(attempt)); err != nil {
				return a.fallback(key, year, month), err
			}
		}
	}

	data.FetchedAt = a.now()
	if a.generation(key) == gen {
		a.months.Set(key, data)
	}

	if lastErr != nil {
		a.logger.ErrorContext(ctx, "Month fetch exhausted retries",
			log.FieldYear, year,
			log.FieldMonth, month,
			log.FieldError, lastErr)
		return data, fmt.Errorf("%w: month %s after %d attempts: %w", core.ErrFetch, key, a.retry.attempts(), lastErr)
	}
	return data, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
