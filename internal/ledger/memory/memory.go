package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"dietledger/internal/core"
	"dietledger/internal/ledger"
)

// Store is a process-local ledger. One mutex guards every read-modify-write,
// which is enough to keep a single row per (date, category).
type Store struct {
	mu         sync.Mutex
	days       map[string]map[string]core.Entry
	categories ledger.CategoryLister
	now        func() time.Time
}

var (
	_ ledger.Store  = (*Store)(nil)
	_ ledger.Pinger = (*Store)(nil)
)

func New(categories ledger.CategoryLister) *Store {
	return &Store{
		days:       make(map[string]map[string]core.Entry),
		categories: categories,
		now:        time.Now,
	}
}

// NewFromFiles seeds the store from base/seed_entries.json when present.
// A missing or unreadable seed leaves the store empty.
func NewFromFiles(base string, categories ledger.CategoryLister) *Store {
	s := New(categories)
	data, err := os.ReadFile(filepath.Join(base, "seed_entries.json"))
	if err != nil {
		return s
	}
	var seed []core.Entry
	if err := json.Unmarshal(data, &seed); err != nil {
		return s
	}
	for _, e := range seed {
		_ = s.Upsert(context.Background(), e.Date, e)
	}
	return s
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Upsert(_ context.Context, date core.Date, e core.Entry) error {
	e, err := ledger.Prepare(date, e, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(e)
	return nil
}

func (s *Store) BatchUpsert(_ context.Context, date core.Date, entries []core.Entry) error {
	now := s.now()
	prepared := make([]core.Entry, 0, len(entries))
	for i, e := range entries {
		p, err := ledger.Prepare(date, e, now)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		prepared = append(prepared, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range ledger.Dedupe(prepared) {
		s.put(e)
	}
	return nil
}

// put must be called with mu held.
func (s *Store) put(e core.Entry) {
	key := e.Date.String()
	day, ok := s.days[key]
	if !ok {
		day = make(map[string]core.Entry)
		s.days[key] = day
	}
	if existing, ok := day[e.Category]; ok {
		existing.Amount = e.Amount
		existing.Notes = e.Notes
		existing.UpdatedAt = e.UpdatedAt
		day[e.Category] = existing
		return
	}
	day[e.Category] = e
}

func (s *Store) Reset(_ context.Context, date core.Date) error {
	if err := date.Validate(); err != nil {
		return err
	}
	rows := ledger.ResetEntries(date, s.categories, s.now())
	day := make(map[string]core.Entry, len(rows))
	for _, r := range rows {
		day[r.Category] = r
	}
	s.mu.Lock()
	s.days[date.String()] = day
	s.mu.Unlock()
	return nil
}

func (s *Store) ReadByDate(_ context.Context, date core.Date) ([]core.Entry, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedDay(s.days[date.String()]), nil
}

func (s *Store) ReadByRange(_ context.Context, start, end core.Date) (map[string][]core.Entry, error) {
	if err := ledger.ValidateRange(start, end); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]core.Entry)
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		if day, ok := s.days[d.String()]; ok && len(day) > 0 {
			out[d.String()] = sortedDay(day)
		}
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func sortedDay(day map[string]core.Entry) []core.Entry {
	out := make([]core.Entry, 0, len(day))
	for _, e := range day {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
