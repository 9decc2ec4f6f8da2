package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GregMSThompson/mcp-proxy/internal/handlers"
	"github.com/GregMSThompson/mcp-proxy/internal/middleware"
)

type Options struct {
	CORSOrigins []string
	// Auth guards query and session routes when set.
	Auth func(http.Handler) http.Handler
}

func NewRouter(log *slog.Logger, deps *handlers.Deps, opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggerMiddleware(log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	qh := handlers.NewQueryHandlers(deps)
	th := handlers.NewToolHandlers(deps)
	hh := handlers.NewHealthHandlers(deps)
	sh := handlers.NewSessionHandlers(deps)
	ih := handlers.NewInstanceHandlers(deps)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", hh.Health)
		r.Get("/instance", ih.Instance)
		r.Mount("/tools", th.ToolRoutes())

		r.Group(func(r chi.Router) {
			if opts.Auth != nil {
				r.Use(opts.Auth)
			}
			r.Post("/query", qh.Query)
			r.Mount("/sessions", sh.SessionRoutes())
		})
	})
	return r
}
