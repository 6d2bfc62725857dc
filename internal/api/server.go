// Package api serves the prompt store and the sync coordinator over a
// local HTTP JSON API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/jetprompt/internal/cloudsync"
	"github.com/dmitrijs2005/jetprompt/internal/logging"
	"github.com/dmitrijs2005/jetprompt/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Syncer is the part of cloudsync.Coordinator the API drives.
type Syncer interface {
	SyncFromRemote(ctx context.Context) cloudsync.Result
	SyncToRemote(ctx context.Context) cloudsync.Result
	SyncNow(ctx context.Context) cloudsync.Result
	AutoPush(ctx context.Context) (cloudsync.Result, bool)
	Enable(ctx context.Context) cloudsync.Result
	Disconnect(ctx context.Context) cloudsync.Result
	Status(ctx context.Context) cloudsync.Status
}

// SettingsStore reads and writes user preferences.
type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, st models.Settings) error
}

// Server wires the HTTP handlers to their dependencies.
type Server struct {
	store    PromptStore
	settings SettingsStore
	sync     Syncer
	metrics  http.Handler
	log      logging.Logger
}

// New builds a Server. metrics may be nil, in which case /metrics is not
// mounted.
func New(store PromptStore, settings SettingsStore, sync Syncer, metrics http.Handler, log logging.Logger) *Server {
	return &Server{
		store:    store,
		settings: settings,
		sync:     sync,
		metrics:  metrics,
		log:      log.With("component", "api"),
	}
}

// Router returns the chi router serving every endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", s.listPrompts)
			r.Post("/", s.addPrompt)
			r.Put("/{id}", s.updatePrompt)
			r.Delete("/{id}", s.deletePrompt)
			r.Post("/{id}/favorite", s.toggleFavorite)
		})
		r.Get("/stats", s.stats)
		r.Get("/export", s.exportPrompts)
		r.Post("/import", s.importPrompts)

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.saveSettings)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.syncStatus)
			r.Post("/pull", s.syncAction(s.sync.SyncFromRemote))
			r.Post("/push", s.syncAction(s.sync.SyncToRemote))
			r.Post("/now", s.syncAction(s.sync.SyncNow))
			r.Post("/enable", s.syncAction(s.sync.Enable))
			r.Post("/disconnect", s.syncAction(s.sync.Disconnect))
		})
	})
	return r
}

// ListenAndServe serves the router on addr until ctx is done, then shuts
// the listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info(ctx, "http api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
