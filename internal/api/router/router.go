// Package router assembles the chi HTTP surface: the public webhook plus
// health and metrics, and the JWT-guarded admin dashboard.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/saudeflow/agendabot/internal/http/handlers"
	httpmiddleware "github.com/saudeflow/agendabot/internal/http/middleware"
	"github.com/saudeflow/agendabot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Webhook            *handlers.WebhookHandler
	Dashboard          *handlers.DashboardHandler
	MetricsHandler     http.Handler
	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Webhook.Health)
		public.Post("/webhook", cfg.Webhook.Handle)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin dashboard.
	if cfg.Dashboard != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/sessions", cfg.Dashboard.ListSessions)
			admin.Delete("/sessions", cfg.Dashboard.ClearAllSessions)
			admin.Get("/sessions/{identity}/{instance}", cfg.Dashboard.GetSession)
			admin.Delete("/sessions/{identity}/{instance}", cfg.Dashboard.ClearSession)
		})
	}

	return r
}
