// Package api provides the REST surface of the archive.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/api/handlers"
	"github.com/libreary/libreary/pkg/archive"
	"github.com/libreary/libreary/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (when enabled)
//   - POST /api/v1/resources - Ingest a staged file
//   - GET /api/v1/resources - List resources (?q= searches)
//   - GET /api/v1/resources/{uuid} - Resource info
//   - DELETE /api/v1/resources/{uuid} - Delete everywhere
//   - PUT /api/v1/resources/{uuid}/content - Replace content
//   - PUT /api/v1/resources/{uuid}/levels - Change level assignment
//   - POST /api/v1/resources/{uuid}/retrieve - Materialize to output dir
//   - GET /api/v1/resources/{uuid}/copies - Copy summary
//   - POST /api/v1/resources/{uuid}/check - Verify (and repair) one resource
//   - GET/PUT /api/v1/resources/{uuid}/metadata - User metadata
//   - GET/PUT /api/v1/resources/{uuid}/schema - Metadata schema
//   - GET/POST /api/v1/levels, DELETE /api/v1/levels/{name}
//   - POST /api/v1/checks - Full integrity sweep
//   - POST /api/v1/adapters/{id}/verify - Adapter probe
func NewRouter(a *archive.Archive, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	healthHandler := handlers.NewHealthHandler(a)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	resourceHandler := handlers.NewResourceHandler(a)
	levelHandler := handlers.NewLevelHandler(a)
	checkHandler := handlers.NewCheckHandler(a)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/resources", func(r chi.Router) {
			r.Post("/", resourceHandler.Create)
			r.Get("/", resourceHandler.List)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", resourceHandler.Get)
				r.Delete("/", resourceHandler.Delete)
				r.Put("/content", resourceHandler.UpdateContent)
				r.Put("/levels", resourceHandler.ChangeLevels)
				r.Post("/retrieve", resourceHandler.Retrieve)
				r.Get("/copies", resourceHandler.Copies)
				r.Post("/check", resourceHandler.Check)
				r.Get("/metadata", resourceHandler.GetMetadata)
				r.Put("/metadata", resourceHandler.SetMetadata)
				r.Get("/schema", resourceHandler.GetSchema)
				r.Put("/schema", resourceHandler.SetSchema)
			})
		})

		r.Route("/levels", func(r chi.Router) {
			r.Post("/", levelHandler.Create)
			r.Get("/", levelHandler.List)
			r.Delete("/{name}", levelHandler.Delete)
		})

		r.Post("/checks", checkHandler.Run)
		r.Post("/adapters/{id}/verify", checkHandler.VerifyAdapter)
	})

	return r
}

// requestLogger logs API requests with method, path, status, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		// Handlers and the archive below log through the *Ctx helpers, which
		// pick these fields up from the request context.
		lc := &logger.LogContext{
			RequestID: requestID,
			ClientIP:  r.RemoteAddr,
			StartTime: start,
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), lc)))

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		// Health probes at DEBUG to keep orchestrator noise out of the logs
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}
