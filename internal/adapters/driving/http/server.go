// Package httpapi serves the engine over HTTP. Reads return JSON;
// pipeline operations stream progress as plain text lines.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/logger"
	"github.com/sspi-index/sspi-engine/internal/metrics"
)

// TokenValidator resolves bearer tokens to principals.
type TokenValidator interface {
	Validate(token string) (domain.Principal, error)
}

// Config wires the router to the services.
type Config struct {
	Query    driving.QueryService
	Metadata driving.MetadataService
	Runner   driving.Runner
	Jobs     driving.JobService
	Tokens   TokenValidator
	Metrics  *metrics.Metrics

	// LoginURL receives unauthenticated browser requests.
	LoginURL string
	// PublicReads lets anonymous callers use the query and metadata routes.
	PublicReads bool
}

type handler struct {
	cfg Config
}

// NewRouter builds the route table.
func NewRouter(cfg Config) http.Handler {
	h := &handler{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog(cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authenticate(cfg.Tokens))

		r.Group(func(r chi.Router) {
			if !cfg.PublicReads {
				r.Use(requirePrincipal(cfg.LoginURL))
			}
			r.Get("/query/indicator/{code}", h.queryIndicator)
			r.Get("/query/country/{code}", h.queryCountry)
			r.Get("/query/summary/{code}", h.querySummary)
			r.Get("/query/{collection}", h.query)
			r.Get("/metadata/{kind}", h.metadata)
			r.Get("/metadata/{kind}/{key}", h.metadata)
			r.Get("/jobs/{id}", h.jobStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(requirePrincipal(cfg.LoginURL))
			r.Get("/collect/{code}", h.stream(domain.VerbCollect))
			r.Get("/clean/{code}", h.stream(domain.VerbClean))
			r.Get("/score/{code}", h.stream(domain.VerbScore))
			r.Get("/rebuild/{code}", h.stream(domain.VerbRebuild))
			r.Post("/delete/series/{collection}/{code}", h.deleteSeries)
			r.Post("/jobs/rebuild/{code}", h.enqueueRebuild)
		})
	})
	return r
}

// NewServer builds an HTTP server for handler.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return nil
}
