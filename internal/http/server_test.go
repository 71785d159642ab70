package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dietledger/internal/catalog"
	"dietledger/internal/core"
	"dietledger/internal/ledger/memory"
	"dietledger/internal/log"
	"dietledger/internal/middleware/ratelimit"
	"dietledger/internal/services"
)

var noon = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cat := catalog.Default()
	tracker := services.NewTracker(memory.New(cat), cat,
		services.WithClock(func() time.Time { return noon }),
		services.WithLocation(time.UTC))
	return newServerFor(t, tracker, opts...)
}

func newServerFor(t *testing.T, tracker Tracker, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(":0", tracker, nil, opts...)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: response is not a JSON object: %s", method, path, rec.Body.String())
		}
	}
	return rec, out
}

func TestAddEntryAndProgress(t *testing.T) {
	srv := newTestServer(t)

	rec, body := do(t, srv, http.MethodPost, "/entries", `{"date":"2024-05-10","category":"Cereal Exchange","food_item":"rice","amount":"6"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["category"] != "cereal" || body["amount"] != 6.0 {
		t.Fatalf("unexpected entry %v", body)
	}
	if stamp, _ := body["updated_at"].(string); stamp == "" || strings.HasPrefix(stamp, "0001-") {
		t.Fatalf("created entry should carry its stored timestamp, got %v", body["updated_at"])
	}

	rec, body = do(t, srv, http.MethodGet, "/progress/2024-05-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := body["snapshot"].(map[string]any)
	if snap["weighted_completion"] != 48.0 {
		t.Fatalf("weighted = %v, want 48", snap["weighted_completion"])
	}
	if body["target"] != 50.0 || body["band"] != "red" {
		t.Fatalf("unexpected progress %v", body)
	}

	rec, _ = do(t, srv, http.MethodPost, "/entries", `{"date":"2024-05-10","category":"cereal","amount":12.5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("numeric amount: status = %d", rec.Code)
	}
	_, body = do(t, srv, http.MethodGet, "/entries/2024-05-10", "")
	entries := body["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["amount"] != 12.5 {
		t.Fatalf("expected one replaced entry, got %v", entries)
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"reversed range", http.MethodGet, "/entries/range?start=2024-05-01&end=2024-04-30", ""},
		{"malformed day", http.MethodGet, "/entries/2024-13-01", ""},
		{"bad entry date", http.MethodPost, "/entries", `{"date":"05/01/2024","category":"cereal","amount":"1"}`},
		{"bad amount", http.MethodPost, "/entries", `{"date":"2024-05-01","category":"cereal","amount":"-2"}`},
		{"unknown field", http.MethodPost, "/entries", `{"date":"2024-05-01","category":"cereal","amount":"1","qty":3}`},
		{"not json", http.MethodPost, "/entries", `date=2024-05-01`},
		{"empty batch", http.MethodPost, "/entries/batch", `{"date":"2024-05-01","entries":[]}`},
		{"month not a number", http.MethodGet, "/months/2024/may", ""},
		{"month out of range", http.MethodGet, "/months/2024/13", ""},
		{"negative days", http.MethodGet, "/challenging?days=-1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, srv, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %v", rec.Code, body)
			}
			if body["error"] == "" || body["request_id"] == "" {
				t.Fatalf("error body should carry a message and request id: %v", body)
			}
		})
	}
}

func TestBatchAndReset(t *testing.T) {
	srv := newTestServer(t)

	rec, body := do(t, srv, http.MethodPost, "/entries/batch",
		`{"date":"2024-05-01","entries":[{"category":"legumes","amount":"1"},{"category":"legumes","amount":"2,5"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, %v", rec.Code, body)
	}
	entries := body["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["amount"] != 2.5 {
		t.Fatalf("last entry should win, got %v", entries)
	}

	rec, body = do(t, srv, http.MethodPost, "/entries/reset", `{"date":"2024-05-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if n := len(body["entries"].([]any)); n != catalog.Default().Len() {
		t.Fatalf("reset rows = %d, want %d", n, catalog.Default().Len())
	}

	rec, body = do(t, srv, http.MethodGet, "/entries/range?start=2024-05-01&end=2024-05-02", "")
	if rec.Code != http.StatusOK || len(body["days"].(map[string]any)) != 1 {
		t.Fatalf("range: %d %v", rec.Code, body)
	}
}

func TestMonthAndChallenging(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/entries", `{"date":"2024-05-01","category":"cereal","amount":"12.5"}`)

	rec, body := do(t, srv, http.MethodGet, "/months/2024/5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	days := body["days"].([]any)
	if len(days) != 31 {
		t.Fatalf("days = %d", len(days))
	}
	first := days[0].(map[string]any)
	if first["percentage"] != 100.0 || first["band"] != "green" {
		t.Fatalf("day 1 = %v", first)
	}
	if days[30].(map[string]any)["percentage"] != nil {
		t.Fatal("future days should be null")
	}

	rec, body = do(t, srv, http.MethodGet, "/challenging?end=2024-05-01&days=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("challenging status = %d", rec.Code)
	}
	for _, c := range body["categories"].([]any) {
		if c.(map[string]any)["category"] == "cereal" {
			t.Fatal("cereal is complete and should not be challenging")
		}
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	_, body := do(t, srv, http.MethodGet, "/categories", "")
	if n := len(body["categories"].([]any)); n != catalog.Default().Len() {
		t.Fatalf("categories = %d", n)
	}

	rec, body := do(t, srv, http.MethodGet, "/foods/Cereal%20Exchange", "")
	if rec.Code != http.StatusOK || body["category"] != "cereal" {
		t.Fatalf("foods: %d %v", rec.Code, body)
	}
	if foods, ok := body["foods"].([]any); !ok || len(foods) != 0 {
		t.Fatalf("foods should be an empty list, got %v", body["foods"])
	}

	rec, body = do(t, srv, http.MethodGet, "/recommendations/2024-05-10", "")
	if rec.Code != http.StatusOK || body["available"] != false || body["meal_time"] != "lunch" {
		t.Fatalf("recommendations: %d %v", rec.Code, body)
	}

	rec, body = do(t, srv, http.MethodGet, "/suggestions/2024-05-10", "")
	if rec.Code != http.StatusOK || body["target"] != 50.0 {
		t.Fatalf("suggestions: %d %v", rec.Code, body)
	}
}

// stubTracker fails the calls a test needs and panics on the rest.
type stubTracker struct {
	Tracker
	err   error
	month services.MonthView
}

func (s stubTracker) GetDay(context.Context, string) ([]core.Entry, error) { return nil, s.err }

func (s stubTracker) GetMonth(context.Context, int, int) (services.MonthView, error) {
	return s.month, s.err
}

func (s stubTracker) Ping(context.Context) error { return s.err }

func TestErrorMapping(t *testing.T) {
	storageErr := core.StorageErr("read", errors.New("database is locked"))
	srv := newServerFor(t, stubTracker{err: storageErr})

	rec, body := do(t, srv, http.MethodGet, "/entries/2024-05-01", "")
	if rec.Code != http.StatusInternalServerError || body["error"] != "internal error" {
		t.Fatalf("storage: %d %v", rec.Code, body)
	}

	rec, _ = do(t, srv, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: %d", rec.Code)
	}

	v := 40.0
	partial := services.MonthView{Year: 2024, Month: 5, Days: []services.DayCompletion{{Day: 1, Percentage: &v}, {Day: 2}}}
	fetchErr := fmt.Errorf("%w: month 2024-05 after 3 attempts", core.ErrFetch)
	srv = newServerFor(t, stubTracker{err: fetchErr, month: partial})

	rec, body = do(t, srv, http.MethodGet, "/months/2024/5", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("fetch: %d", rec.Code)
	}
	p, ok := body["partial"].(map[string]any)
	if !ok || len(p["days"].([]any)) != 2 {
		t.Fatalf("partial body missing: %v", body)
	}
}

func TestServerErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})
	srv := NewServer(":0", stubTracker{err: core.StorageErr("read", errors.New("database is locked"))}, logger)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/entries/2024-05-01", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	out := buf.String()
	for _, want := range []string{"Request failed", "database is locked", "/entries/{date}", "status_code=500", "component=http"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
	if strings.Contains(rec.Body.String(), "database is locked") {
		t.Errorf("storage detail leaked to client: %s", rec.Body.String())
	}
}

func TestRateLimitAppliesToPostOnly(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(ratelimit.Config{RequestsPerMinute: 2}))

	for i := 0; i < 2; i++ {
		rec, _ := do(t, srv, http.MethodPost, "/entries", `{"date":"2024-05-01","category":"sugar","amount":"1"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: %d", i+1, rec.Code)
		}
	}
	rec, body := do(t, srv, http.MethodPost, "/entries", `{"date":"2024-05-01","category":"sugar","amount":"1"}`)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("third POST: %d %v", rec.Code, body)
	}

	for i := 0; i < 5; i++ {
		if rec, _ := do(t, srv, http.MethodGet, "/categories", ""); rec.Code != http.StatusOK {
			t.Fatalf("GET should not be limited, got %d", rec.Code)
		}
	}
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, WithVersion("1.2.3"))

	rec, body := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", rec.Code, body)
	}
	rec, body = do(t, srv, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("readyz: %d %v", rec.Code, body)
	}
	rec, body = do(t, srv, http.MethodGet, "/version", "")
	if body["version"] != "1.2.3" {
		t.Fatalf("version: %v", body)
	}
	for _, h := range []string{"X-Content-Type-Options", "Content-Security-Policy", "X-Request-ID"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/entries", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /entries: %d", rec.Code)
	}
}
