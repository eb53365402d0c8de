package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roasting-id/roasting-service/internal/admission"
	"github.com/roasting-id/roasting-service/internal/config"
	"github.com/roasting-id/roasting-service/internal/metrics"
	"github.com/roasting-id/roasting-service/internal/roast"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
	requestTimeout          = 60 * time.Second
)

// RoastCreator runs the roast pipeline for one URL.
type RoastCreator interface {
	CreateRoast(ctx context.Context, url string, userID *string) (roast.Roast, error)
}

// Admitter gates requests before the pipeline starts.
type Admitter interface {
	Admit(clientKey string) admission.Decision
	RemainingBudget() int
}

// Server wires HTTP handlers to the orchestrator and store.
type Server struct {
	router       chi.Router
	creator      RoastCreator
	store        roast.Store
	admitter     Admitter
	defaultLimit int
	logger       *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(creator RoastCreator, store roast.Store, admitter Admitter, cfg config.RoastConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.LeaderboardLimit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	s := &Server{
		creator:      creator,
		store:        store,
		admitter:     admitter,
		defaultLimit: min(limit, maxLeaderboardLimit),
		logger:       logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/roasts", s.createRoast)
		r.Get("/roasts/{roast_id}", s.getRoast)
		r.Post("/roasts/{roast_id}/votes", s.toggleVote)
		r.Get("/leaderboard", s.leaderboard)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ready",
		"daily_budget_remaining": s.admitter.RemainingBudget(),
	})
}

type createRoastRequest struct {
	URL    string  `json:"url"`
	UserID *string `json:"user_id"`
}

type voteRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) createRoast(w http.ResponseWriter, r *http.Request) {
	var req createRoastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	key := clientKey(r)
	decision := s.admitter.Admit(key)
	if !decision.Allowed {
		metrics.ObserveAdmissionRejection(string(decision.Reason))
		s.writeAdmissionRejection(w, decision.Reason, decision.RetryAfter)
		return
	}

	created, err := s.creator.CreateRoast(r.Context(), req.URL, req.UserID)
	if err != nil {
		s.writePipelineError(w, key, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"roast_id":     created.ID,
		"startup_name": created.StartupName,
		"roast_text":   created.RoastText,
	})
}

func (s *Server) getRoast(w http.ResponseWriter, r *http.Request) {
	roastID := chi.URLParam(r, "roast_id")
	var viewerID *string
	if v := strings.TrimSpace(r.URL.Query().Get("user_id")); v != "" {
		viewerID = &v
	}

	d, err := s.store.GetRoast(r.Context(), roastID, viewerID)
	if errors.Is(err, roast.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Roasting tidak ditemukan.")
		return
	}
	if err != nil {
		s.logger.Error("get roast failed", zap.String("roast_id", roastID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ada masalah di server. Coba lagi nanti.")
		return
	}
	writeJSON(w, http.StatusOK, toRoastDTO(d))
}

func (s *Server) toggleVote(w http.ResponseWriter, r *http.Request) {
	roastID := chi.URLParam(r, "roast_id")
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	res, err := s.store.ToggleVote(r.Context(), req.UserID, roastID)
	if errors.Is(err, roast.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Roasting tidak ditemukan.")
		return
	}
	if err != nil {
		s.logger.Error("toggle vote failed", zap.String("roast_id", roastID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ada masalah di server. Coba lagi nanti.")
		return
	}
	direction := "removed"
	if res.Voted {
		direction = "added"
	}
	metrics.ObserveVoteToggle(direction)
	writeJSON(w, http.StatusOK, map[string]any{
		"fire_count": res.FireCount,
		"voted":      res.Voted,
	})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxLeaderboardLimit)
	}
	var viewerID *string
	if v := strings.TrimSpace(r.URL.Query().Get("user_id")); v != "" {
		viewerID = &v
	}

	out, err := s.store.Leaderboard(r.Context(), limit, viewerID)
	if err != nil {
		s.logger.Error("leaderboard failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ada masalah di server. Coba lagi nanti.")
		return
	}
	dtos := make([]roastDTO, 0, len(out))
	for _, d := range out {
		dtos = append(dtos, toRoastDTO(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"roasts": dtos})
}

func (s *Server) writeAdmissionRejection(w http.ResponseWriter, reason roast.AdmissionReason, retryAfter time.Duration) {
	msg := "Kamu sudah mencapai batas harian. Coba lagi besok."
	if retryAfter > 0 {
		secs := int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		switch reason {
		case roast.ReasonPerHourExceeded:
			msg = fmt.Sprintf("Kamu sudah mencapai batas per jam. Tunggu %d menit lagi.", (secs+59)/60)
		default:
			msg = fmt.Sprintf("Terlalu banyak request! Tunggu %d detik lagi.", secs)
		}
	}
	writeJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":  msg,
		"reason": string(reason),
	})
}

// writePipelineError maps the pipeline error taxonomy onto HTTP status
// codes and user-facing messages.
func (s *Server) writePipelineError(w http.ResponseWriter, clientKey string, err error) {
	var (
		admErr   *roast.AdmissionError
		inputErr *roast.InvalidInputError
		fetchErr *roast.FetchError
		genErr   *roast.GenerationError
		persErr  *roast.PersistenceError
	)
	switch {
	case errors.As(err, &admErr):
		metrics.ObserveAdmissionRejection(string(admErr.Reason))
		s.writeAdmissionRejection(w, admErr.Reason, admErr.RetryAfter)
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, "URL yang kamu masukkan tidak valid. Coba lagi!")
	case errors.As(err, &fetchErr):
		s.logger.Warn("fetch failed", zap.String("client", clientKey), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Gagal mengakses website. Pastikan URL bisa diakses.")
	case errors.As(err, &genErr):
		s.logger.Warn("generation failed", zap.String("client", clientKey), zap.Error(err))
		writeError(w, http.StatusBadGateway, "AI sedang sibuk. Coba lagi nanti.")
	case errors.As(err, &persErr):
		s.logger.Error("persistence failed", zap.String("client", clientKey), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ada masalah di server. Coba lagi nanti.")
	default:
		s.logger.Error("pipeline failed", zap.String("client", clientKey), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ada masalah di server. Coba lagi nanti.")
	}
}

type roastDTO struct {
	ID          string    `json:"id"`
	StartupName string    `json:"startup_name"`
	StartupURL  string    `json:"startup_url"`
	RoastText   string    `json:"roast_text"`
	FireCount   int       `json:"fire_count"`
	CreatedAt   time.Time `json:"created_at"`
	AuthorName  *string   `json:"author_name,omitempty"`
	Voted       bool      `json:"voted"`
}

func toRoastDTO(d roast.RoastDetails) roastDTO {
	return roastDTO{
		ID:          d.ID,
		StartupName: d.StartupName,
		StartupURL:  d.StartupURL,
		RoastText:   d.RoastText,
		FireCount:   d.FireCount,
		CreatedAt:   d.CreatedAt,
		AuthorName:  d.AuthorName,
		Voted:       d.Voted,
	}
}

// clientKey identifies the caller for rate limiting. The first
// X-Forwarded-For hop wins when the service sits behind a proxy.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
