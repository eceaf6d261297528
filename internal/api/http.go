package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BENZOOgataga/DeepSearch/internal/search"
)

// Router builds the control-plane HTTP handler served on the session's
// Unix socket.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleStartJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{kind}", s.handleGetJob)
		r.Post("/jobs/{kind}/cancel", s.handleCancelJob)

		r.Get("/channels", s.handleChannels)
		r.Get("/archive/search", s.handleArchiveSearch)

		r.Get("/stats", s.handleStats)
		r.Get("/status", s.handleStatus)
		r.Get("/hits", s.handleHits)

		r.Get("/keywords", s.handleGetKeywords)
		r.Put("/keywords", s.handlePutKeywords)

		r.Get("/caches", s.handleCaches)
		r.Post("/caches/clear", s.handleClearCaches)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP codes: input errors 400,
// cooldown 429, busy slot 409, idle cancel 404, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	var inputErr *InputError
	var cooldownErr *search.CooldownError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &cooldownErr):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	case errors.Is(err, search.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, search.ErrNotRunning):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, search.ErrNoChannels):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Service) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var jr JobRequest
	if err := json.NewDecoder(r.Body).Decode(&jr); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	accepted, err := s.StartJob(r.Context(), jr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (s *Service) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Snapshots())
}

func (s *Service) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Snapshot(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if err := s.Cancel(kind); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"kind": kind, "status": "cancelling"})
}

func (s *Service) handleChannels(w http.ResponseWriter, r *http.Request) {
	withMembers := r.URL.Query().Get("members") == "true"
	channels, err := s.ListChannels(r.Context(), withMembers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// ArchiveMatch is the wire form of one full-text archive result.
type ArchiveMatch struct {
	ChannelJID string `json:"channel_jid"`
	MsgID      string `json:"msg_id"`
	SenderJID  string `json:"sender_jid"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
	Snippet    string `json:"snippet"`
	Timestamp  int64  `json:"timestamp"`
	FromMe     bool   `json:"from_me"`
}

func (s *Service) handleArchiveSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	results, err := s.ArchiveSearch(q.Get("q"), q.Get("channel"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	matches := make([]ArchiveMatch, 0, len(results))
	for _, res := range results {
		matches = append(matches, ArchiveMatch{
			ChannelJID: res.Message.ChannelJID,
			MsgID:      res.Message.MsgID,
			SenderJID:  res.Message.SenderJID,
			SenderName: res.Message.SenderName,
			Body:       res.Message.Body,
			Snippet:    res.Snippet,
			Timestamp:  res.Message.Timestamp,
			FromMe:     res.Message.FromMe,
		})
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	agg, err := s.StatsSnapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	info, err := s.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Service) handleHits(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	hits, err := s.Hits(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Service) handleGetKeywords(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"keywords": s.Keywords()})
}

func (s *Service) handlePutKeywords(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.SetKeywords(body.Keywords); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keywords": s.Keywords()})
}

func (s *Service) handleCaches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Caches())
}

func (s *Service) handleClearCaches(w http.ResponseWriter, _ *http.Request) {
	s.ClearCaches()
	writeJSON(w, http.StatusOK, s.Caches())
}
