package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dietledger/internal/catalog"
	"dietledger/internal/core"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	fails   int // number of leading calls that fail
	entries map[string][]core.Entry
	block   chan struct{}
	ranges  [][2]string
}

func (f *fakeStore) ReadByRange(ctx context.Context, start, end core.Date) (map[string][]core.Entry, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.ranges = append(f.ranges, [2]string{start.String(), end.String()})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if call <= f.fails {
		return nil, core.StorageErr("read range", errors.New("connection reset"))
	}
	out := make(map[string][]core.Entry)
	for d, es := range f.entries {
		if d >= start.String() && d <= end.String() {
			out[d] = es
		}
	}
	return out, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func cereal(date string, amount float64) core.Entry {
	d, _ := core.ParseDate(date)
	return core.Entry{Date: d, Category: "cereal", FoodItem: "rice", Amount: amount, Unit: core.UnitExchange}
}

func newTestAggregator(store *fakeStore, clock *testClock, sleep *recordingSleep) *Aggregator {
	return New(store, catalog.Default(),
		WithClock(clock.Now),
		WithSleep(sleep.Sleep),
		WithLocation(time.UTC),
	)
}

func may20() *testClock {
	return &testClock{now: time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)}
}

func TestMonthDataClampsToToday(t *testing.T) {
	store := &fakeStore{entries: map[string][]core.Entry{
		"2024-05-01": {cereal("2024-05-01", 6)},
		"2024-05-20": {cereal("2024-05-20", 12.5)},
	}}
	agg := newTestAggregator(store, may20(), &recordingSleep{})

	data, err := agg.MonthData(context.Background(), 2024, 5)
	if err != nil {
		t.Fatalf("MonthData: %v", err)
	}
	if len(data.Days) != 31 {
		t.Fatalf("expected 31 days, got %d", len(data.Days))
	}
	if v, ok := data.Value(1); !ok || v != 48 {
		t.Errorf("day 1 = %v, %v; want 48", v, ok)
	}
	if v, ok := data.Value(2); !ok || v != 0 {
		t.Errorf("day without entries should score 0, got %v, %v", v, ok)
	}
	if v, ok := data.Value(20); !ok || v != 100 {
		t.Errorf("day 20 = %v, %v; want 100", v, ok)
	}
	for d := 21; d <= 31; d++ {
		if _, ok := data.Value(d); ok {
			t.Errorf("future day %d should be nil", d)
		}
	}
	if got := store.ranges[0]; got != [2]string{"2024-05-01", "2024-05-20"} {
		t.Errorf("read range %v, want clamped window", got)
	}
}

func TestMonthDataCacheTTL(t *testing.T) {
	store := &fakeStore{}
	clock := may20()
	agg := newTestAggregator(store, clock, &recordingSleep{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := agg.MonthData(ctx, 2024, 4); err != nil {
			t.Fatal(err)
		}
	}
	if store.callCount() != 1 {
		t.Fatalf("expected 1 fetch within ttl, got %d", store.callCount())
	}

	clock.Advance(DefaultTTL)
	agg.MonthData(ctx, 2024, 4)
	if store.callCount() != 1 {
		t.Fatalf("entry aged exactly ttl should still be fresh, got %d fetches", store.callCount())
	}

	clock.Advance(time.Second)
	agg.MonthData(ctx, 2024, 4)
	if store.callCount() != 2 {
		t.Fatalf("expected refetch after ttl, got %d fetches", store.callCount())
	}
}

func TestMonthDataFutureMonthSkipsFetch(t *testing.T) {
	store := &fakeStore{}
	agg := newTestAggregator(store, may20(), &recordingSleep{})

	data, err := agg.MonthData(context.Background(), 2024, 6)
	if err != nil {
		t.Fatal(err)
	}
	if store.callCount() != 0 {
		t.Fatalf("future month must not hit the store, got %d calls", store.callCount())
	}
	for d, v := range data.Days {
		if v != nil {
			t.Fatalf("day %d should be nil", d)
		}
	}
}

func TestMonthDataRejectsBadMonth(t *testing.T) {
	agg := newTestAggregator(&fakeStore{}, may20(), &recordingSleep{})
	if _, err := agg.MonthData(context.Background(), 2024, 13); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMonthDataRetryBound(t *testing.T) {
	store := &fakeStore{fails: 100}
	sleep := &recordingSleep{}
	agg := newTestAggregator(store, may20(), sleep)

	data, err := agg.MonthData(context.Background(), 2024, 4)
	if !errors.Is(err, core.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("cause should stay matchable, got %v", err)
	}
	if store.callCount() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", store.callCount())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleep.delays) != len(want) || sleep.delays[0] != want[0] || sleep.delays[1] != want[1] {
		t.Fatalf("backoff = %v, want %v", sleep.delays, want)
	}
	for d, v := range data.Days {
		if v != nil {
			t.Fatalf("unresolved day %d should be nil", d)
		}
	}

	// The failed result is cached as fresh.
	if _, err := agg.MonthData(context.Background(), 2024, 4); err != nil {
		t.Fatalf("cached failure should be served without error, got %v", err)
	}
	if store.callCount() != 3 {
		t.Fatalf("cached failure should not refetch, got %d calls", store.callCount())
	}
}

func TestMonthDataRecoversWithinRetries(t *testing.T) {
	store := &fakeStore{fails: 2, entries: map[string][]core.Entry{
		"2024-04-10": {cereal("2024-04-10", 6)},
	}}
	agg := newTestAggregator(store, may20(), &recordingSleep{})

	data, err := agg.MonthData(context.Background(), 2024, 4)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if v, _ := data.Value(10); v != 48 {
		t.Fatalf("day 10 = %v, want 48", v)
	}
	if store.callCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", store.callCount())
	}
}

func TestMonthDataCanceledContext(t *testing.T) {
	store := &fakeStore{}
	clock := may20()
	agg := newTestAggregator(store, clock, &recordingSleep{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data, err := agg.MonthData(ctx, 2024, 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(data.Days) != 30 {
		t.Fatalf("expected all-nil map of 30 days, got %d", len(data.Days))
	}
	if store.callCount() != 0 {
		t.Fatalf("canceled caller should not fetch, got %d calls", store.callCount())
	}

	// With a stale entry cached the caller gets that instead.
	store.entries = map[string][]core.Entry{"2024-04-02": {cereal("2024-04-02", 12.5)}}
	if _, err := agg.MonthData(context.Background(), 2024, 4); err != nil {
		t.Fatal(err)
	}
	clock.Advance(DefaultTTL + time.Second)
	data, err = agg.MonthData(ctx, 2024, 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if v, ok := data.Value(2); !ok || v != 100 {
		t.Fatalf("expected stale cached value 100, got %v %v", v, ok)
	}
}

func TestMonthDataCancelDuringBackoff(t *testing.T) {
	store := &fakeStore{fails: 100}
	agg := New(store, catalog.Default(),
		WithClock(may20().Now),
		WithLocation(time.UTC),
		WithRetry(RetryPolicy{Attempts: 3, BaseDelay: time.Hour}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := agg.MonthData(ctx, 2024, 4)
		done <- err
	}()

	deadline := time.After(5 * time.Second)
	for store.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("fetch never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not interrupt the backoff wait")
	}
	if store.callCount() != 1 {
		t.Fatalf("no further attempts after cancel, got %d", store.callCount())
	}
}

func TestMonthDataSharesInFlightFetch(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	agg := newTestAggregator(store, may20(), &recordingSleep{})

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agg.MonthData(context.Background(), 2024, 4); err != nil {
				t.Errorf("MonthData: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(store.block)
	wg.Wait()

	if store.callCount() != 1 {
		t.Fatalf("expected one shared fetch, got %d", store.callCount())
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	store := &fakeStore{}
	agg := newTestAggregator(store, may20(), &recordingSleep{})
	ctx := context.Background()

	agg.MonthData(ctx, 2024, 5)
	agg.Invalidate(core.NewDate(2024, 4, 30))
	agg.MonthData(ctx, 2024, 5)
	if store.callCount() != 1 {
		t.Fatalf("invalidating another month should not refetch, got %d", store.callCount())
	}

	agg.Invalidate(core.NewDate(2024, 5, 3))
	agg.MonthData(ctx, 2024, 5)
	if store.callCount() != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", store.callCount())
	}
}

func TestMonthDataReturnsCopies(t *testing.T) {
	agg := newTestAggregator(&fakeStore{}, may20(), &recordingSleep{})
	first, _ := agg.MonthData(context.Background(), 2024, 5)
	first.Set(1, 99)

	second, _ := agg.MonthData(context.Background(), 2024, 5)
	if v, _ := second.Value(1); v != 0 {
		t.Fatalf("cached month was mutated through a returned copy: %v", v)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if (RetryPolicy{}).attempts() != 1 {
		t.Error("zero policy should still make one attempt")
	}
}
