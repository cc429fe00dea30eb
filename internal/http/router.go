package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-ha/entitycache/internal/http/handlers"
)

// NewRouter builds the HTTP routing tree for the cache API. metrics may be
// nil.
func NewRouter(api *handlers.API, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON(api))
	r.Use(StripIngressPrefix)
	r.Use(RequestLogger(api))

	// Long-lived change feed stays outside the request timeout.
	r.Get("/api/changes", api.Changes)

	r.Group(func(timed chi.Router) {
		timed.Use(middleware.Timeout(20 * time.Second))

		timed.Get("/healthz", api.Health)
		if metrics != nil {
			timed.Handle("/metrics", metrics)
		}
		timed.Route("/api", func(apiRouter chi.Router) {
			apiRouter.Get("/collections", api.ListCollections)
			apiRouter.Get("/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
				api.GetCollection(w, r, chi.URLParam(r, "name"))
			})
			apiRouter.Get("/collections/{name}/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.GetRecord(w, r, chi.URLParam(r, "name"), chi.URLParam(r, "id"))
			})
			apiRouter.Post("/collections/{name}/dirty", func(w http.ResponseWriter, r *http.Request) {
				api.MarkDirty(w, r, chi.URLParam(r, "name"))
			})
			apiRouter.Post("/refresh", api.Refresh)
			apiRouter.Get("/snapshots", api.ListSnapshots)
			apiRouter.Delete("/snapshots/{name}", func(w http.ResponseWriter, r *http.Request) {
				api.DeleteSnapshot(w, r, chi.URLParam(r, "name"))
			})
		})
	})
	return r
}

// RunServer starts and gracefully stops HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
