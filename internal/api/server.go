// Package api serves scan control and scan history over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eargollo/dupfind/internal/api/handlers"
	"github.com/eargollo/dupfind/internal/config"
	"github.com/eargollo/dupfind/internal/scan"
	"github.com/eargollo/dupfind/internal/scheduler"
	"github.com/eargollo/dupfind/internal/store"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr    string
	srv     *http.Server
	handler http.Handler
	logger  *zap.Logger
}

// New wires all routes and returns a Server ready to Run.
// sched may be nil when no schedule is configured.
func New(
	addr string,
	st *store.Store,
	mgr *scan.Manager,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	version string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	statusH := &handlers.StatusHandler{Store: st, Manager: mgr, Sched: sched, Version: version}
	scansH := &handlers.ScansHandler{Store: st, Manager: mgr}
	configH := &handlers.ConfigHandler{Cfg: cfg, Manager: mgr}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/scans", scansH.Create)
		r.Get("/scans", scansH.List)
		r.Delete("/scans/current", scansH.Cancel)
		r.Get("/scans/{id}", scansH.Get)
		r.Get("/scans/{id}/pairs", scansH.Pairs)
		r.Get("/scans/{id}/groups", scansH.Groups)

		r.Get("/config", configH.Get)
	})

	return &Server{
		addr:    addr,
		srv:     &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second},
		handler: r,
		logger:  logger,
	}
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requestLogger logs one line per request at debug level, warn for 5xx.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn("http request", fields...)
				return
			}
			logger.Debug("http request", fields...)
		})
	}
}
