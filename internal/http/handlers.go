package http

import (
	"errors"
	"fmt"
	"net/http"

	"dietledger/internal/core"
	"dietledger/internal/history"
	"dietledger/internal/log"
	"dietledger/internal/middleware/trace"
	"dietledger/internal/services"
)

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.tracker.AddEntry(r.Context(), req.Date, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, entry)
}

func (s *Server) handleAddBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, r, fmt.Errorf("%w: entries must not be empty", errBadRequest))
		return
	}

	ctx := r.Context()
	inputs := make([]services.EntryInput, 0, len(req.Entries))
	for _, e := range req.Entries {
		inputs = append(inputs, e.input())
	}
	entries, err := s.tracker.AddEntriesBatch(ctx, req.Date, inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"date": req.Date, "entries": entries})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.ResetDay(r.Context(), req.Date); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.tracker.GetDay(r.Context(), req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"date": req.Date, "entries": entries})
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	entries, err := s.tracker.GetDay(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"date": date, "entries": entries})
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	byDate, err := s.tracker.GetRange(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"start": q.Get("start"), "end": q.Get("end"), "days": byDate})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.GetProgress(r.Context(), r.PathValue("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sg, err := s.tracker.GetSuggestions(r.Context(), r.PathValue("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sg)
}

// handleMonth answers 503 with the partially resolved month when the history
// fetch gave up.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.tracker.GetMonth(r.Context(), year, month)
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, view)
	case errors.Is(err, core.ErrFetch) && view.Days != nil:
		log.FromContext(r.Context()).WarnContext(r.Context(), "Serving partial month",
			log.FieldYear, year,
			log.FieldMonth, month,
			log.FieldError, err)
		writeJSON(w, r, http.StatusServiceUnavailable, partialBody{
			Error:     err.Error(),
			RequestID: trace.GetRequestID(r.Context()),
			Partial:   view,
		})
	default:
		writeError(w, r, err)
	}
}

func (s *Server) handleChallenging(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.tracker.Challenging(r.Context(), r.URL.Query().Get("end"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []history.CategoryAverage{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": list})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": s.tracker.Categories()})
}

func (s *Server) handleFoods(w http.ResponseWriter, r *http.Request) {
	category := core.Normalize(r.PathValue("category"))
	writeJSON(w, r, http.StatusOK, map[string]any{"category": category, "foods": s.tracker.Foods(category)})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	res, err := s.tracker.Recommendations(r.Context(), r.PathValue("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Ping(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"version": s.version})
}
