// Package api exposes the pipeline over HTTP: validation, run submission,
// run history and the latest report.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/ledger"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/runner"
)

// Submitter queues runs. *runner.Runner satisfies it.
type Submitter interface {
	Submit(job runner.Job) (*runner.Ticket, error)
}

// History lists past runs. *ledger.Store satisfies it.
type History interface {
	Recent(limit int) ([]ledger.Run, error)
}

// Server serves the HTTP control surface.
type Server struct {
	cfg      *config.Config
	runs     Submitter
	history  History
	validate *validator.Validate
}

// New creates a server. history may be nil, in which case /v1/runs reports
// the ledger as unavailable.
func New(cfg *config.Config, runs Submitter, history History) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{cfg: cfg, runs: runs, history: history, validate: v}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.API.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/validate", s.validateHandler)
		r.Get("/campaigns", s.listCampaignsHandler)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.submitRunHandler)
			r.Get("/", s.listRunsHandler)
		})
		r.Get("/reports/latest", s.latestReportHandler)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Get(logging.CategoryAPI).Info("API listening on %s", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logging.Get(logging.CategoryAPI).Info("API shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Get(logging.CategoryAPI).Debug("%s %s -> %d (%v, request_id=%s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
