// Package ops serves the operator endpoints: liveness and live statistics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/dreambot/core/buildinfo"
	"github.com/m3rciful/dreambot/core/logger"
)

// StatsFunc returns a JSON-encodable snapshot.
type StatsFunc func(ctx context.Context) (any, error)

// Server is the ops HTTP listener. A zero Addr disables it.
type Server struct {
	Addr  string
	Stats StatsFunc

	srv     *http.Server
	started time.Time
}

// NewRouter builds the ops routes.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Get("/stats", s.stats)
	return r
}

// Start listens in the background. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	if s.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.started = time.Now()
	s.srv = &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info(ctx, logger.CompOps, "ops.listen", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), logger.CompOps, "ops.serve", slog.String("err", err.Error()))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	}
	if !s.started.IsZero() {
		body["uptime_seconds"] = int64(time.Since(s.started).Seconds())
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stats unavailable"})
		return
	}
	snap, err := s.Stats(r.Context())
	if err != nil {
		logger.Warn(r.Context(), logger.CompOps, "ops.stats", slog.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats failed"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		logger.Debug(ctx, logger.CompOps, "ops.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", ww.Status()),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}
