package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/authorities"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/contracts"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/export"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/extractions"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/members"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/portfolios"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/prompt"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// CheckFunc probes one dependency for the readiness endpoint.
type CheckFunc func(ctx context.Context) error

// Services groups the application services the API exposes.
type Services struct {
	Portfolios  *portfolios.Service
	Members     *members.Service
	Contracts   *contracts.Service
	Extractions *extractions.Service
	Authorities *authorities.Service
	Exports     *export.Service
	Prompts     *prompt.Store
}

// RouterOptions carries the transport-level wiring.
type RouterOptions struct {
	Logger         logging.Logger
	Metrics        *prometheus.AppMetrics
	MetricsHandler http.Handler
	CORSOrigins    []string

	// ReadinessChecks maps component names to probes; all must pass for
	// /readyz to return 200.
	ReadinessChecks map[string]CheckFunc

	// MaxUploadBytes bounds multipart contract uploads.
	MaxUploadBytes int64
}

// NewRouter assembles the chi router with middleware and all API routes.
func NewRouter(svcs Services, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests(opts.Logger.Named("http")))
	r.Use(recordMetrics(opts.Metrics))
	r.Use(recoverPanics)

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	health := &healthHandler{checks: opts.ReadinessChecks}
	r.Get("/healthz", health.alive)
	r.Get("/readyz", health.ready)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if svcs.Portfolios != nil {
			h := &portfolioHandler{service: svcs.Portfolios}
			r.Route("/portfolios", func(r chi.Router) {
				r.Get("/", h.list)
				r.Post("/", h.create)
				r.Get("/{id}", h.get)
				r.Put("/{id}", h.update)
				r.Delete("/{id}", h.delete)
				r.Post("/{id}/items", h.addItem)
				r.Put("/{id}/items/{itemID}", h.updateItem)
				r.Delete("/{id}/items/{itemID}", h.removeItem)
			})
		}

		if svcs.Members != nil {
			h := &memberHandler{service: svcs.Members, maxUploadBytes: opts.MaxUploadBytes}
			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.list)
				r.Post("/import", h.importWorkbook)
				r.Get("/{id}", h.get)
				r.Get("/{id}/gwp-tree", h.tree)
				r.Delete("/{id}", h.delete)
			})
		}

		if svcs.Contracts != nil {
			h := &contractHandler{service: svcs.Contracts, maxUploadBytes: opts.MaxUploadBytes}
			r.Route("/contracts", func(r chi.Router) {
				r.Get("/", h.list)
				r.Post("/", h.upload)
				r.Get("/{id}", h.get)
				r.Get("/{id}/download", h.download)
				r.Get("/{id}/download-url", h.downloadURL)
				r.Put("/{id}/text", h.setText)
				r.Get("/{id}/versions", h.versions)
				r.Delete("/{id}", h.delete)
			})
		}

		if svcs.Extractions != nil {
			h := &extractionHandler{service: svcs.Extractions}
			r.Route("/extractions", func(r chi.Router) {
				r.Get("/", h.list)
				r.Post("/", h.create)
				r.Get("/{id}", h.get)
				r.Delete("/{id}", h.delete)
			})
			r.Get("/models", h.listModels)
		}

		if svcs.Authorities != nil {
			h := &authorityHandler{service: svcs.Authorities}
			r.Route("/authorities", func(r chi.Router) {
				r.Get("/", h.list)
				r.Post("/", h.create)
				r.Get("/options", h.options)
				r.Get("/{id}", h.get)
				r.Put("/{id}/data", h.updateData)
				r.Patch("/{id}/fields/{field}", h.patchField)
				r.Delete("/{id}", h.delete)
			})
		}

		if svcs.Prompts != nil {
			h := &promptHandler{store: svcs.Prompts}
			r.Route("/prompts", func(r chi.Router) {
				r.Get("/", h.list)
				r.Get("/{key}", h.get)
				r.Put("/{key}", h.update)
				r.Delete("/{key}", h.reset)
			})
		}

		if svcs.Exports != nil {
			h := &exportHandler{service: svcs.Exports}
			r.Route("/exports", func(r chi.Router) {
				r.Get("/portfolios/{id}", h.portfolio)
				r.Get("/members/gwp", h.memberGWP)
			})
		}
	})

	return r
}
