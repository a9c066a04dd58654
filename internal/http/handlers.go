package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports whether the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.records.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleSummary serves the month aggregate, cached per user and month until
// a mutation in that month invalidates it.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, claimed, err := s.parseMonthQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ownerID, err := owner(r, claimed)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := summaryKey(ownerID, month)
	if sum, ok := s.summaries.Get(key); ok {
		s.logger.DebugContext(r.Context(), "Summary cache hit", applog.FieldUserID, ownerID, applog.FieldMonth, month.String())
		writeJSON(w, http.StatusOK, sum)
		return
	}

	// Concurrent misses of one generation share a single computation.
	gen := s.summaryGeneration(ownerID)
	v, err, _ := s.flights.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		sum, err := s.records.Summary(context.WithoutCancel(r.Context()), ownerID, month)
		if err != nil {
			return nil, err
		}
		if !s.storeSummary(ownerID, key, gen, sum) {
			s.logger.DebugContext(r.Context(), "Summary changed while computing, not cached",
				applog.FieldUserID, ownerID, applog.FieldMonth, month.String())
		}
		return sum, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.(core.Summary))
}
