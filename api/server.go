/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/requests/*       Purchase requests and their commands
  /api/items/preview    Item ledger preview
  /api/products         Product catalogue (stock per warehouse)
  /api/notifications/*  Notification feed
  /ws                   Live notifications (WebSocket)
  /metrics              Prometheus metrics
  /health               Liveness
  /*                    Static files (dashboard), when built

SECURITY NOTE:
  No authentication middleware. The current user is whatever X-User-ID
  says it is.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the optional pieces mounted next to the API.
type RouterConfig struct {
	AllowedOrigins []string
	WebSocket      http.HandlerFunc
	Metrics        http.Handler
	// StaticDir serves a built dashboard with SPA fallback. Empty disables it.
	StaticDir string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Name"},
		AllowCredentials: true,
	}))

	r.Get("/health", Health)
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.CreateRequest)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRequest)
				r.Put("/", h.UpdateDraft)
				r.Delete("/", h.DeleteRequest)

				// Requester
				r.Post("/submit", h.SubmitRequest)
				r.Post("/correction", h.StartCorrection)
				r.Post("/resubmit", h.ResubmitRequest)
				r.Post("/cancel", h.CancelRequest)

				// Reviewer
				r.Post("/approve", h.ApproveRequest)
				r.Post("/reject", h.RejectRequest)
				r.Post("/observe", h.ObserveRequest)
				r.Post("/hold", h.HoldRequest)
				r.Post("/resume", h.ResumeRequest)
				r.Post("/urgent", h.MarkUrgent)
				r.Post("/unify", h.UnifyRequests)

				// Stock
				r.Get("/stock", h.VerifyStock)
				r.Post("/outbound-order", h.GenerateOutboundOrder)
				r.Post("/external-order", h.GenerateExternalOrder)

				r.Get("/similar", h.SimilarRequests)
				r.Get("/summary", h.RequestSummary)
			})
		})

		r.Post("/items/preview", h.PreviewItems)
		r.Get("/products", h.ListProducts)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})
	})

	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			mountStatic(r, cfg.StaticDir)
		}
	}

	return r
}

func mountStatic(r chi.Router, staticDir string) {
	fileServer := http.FileServer(http.Dir(staticDir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		fullPath := filepath.Join(staticDir, filepath.Clean(r.URL.Path))
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			// SPA routing: serve index.html
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
