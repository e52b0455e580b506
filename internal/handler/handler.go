package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	rounds *interview.Service
	config model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, svc *interview.Service, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, rounds: svc, config: cfg}
}

// Router builds the middleware chain and mounts the API under the
// configured base path. /healthz and /metrics stay at the root.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(h.corsOptions()))
	r.Use(i18n.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	if h.config.BasePath != "" {
		r.Route(h.config.BasePath, h.Routes)
	} else {
		h.Routes(r)
	}
	return r
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.With(h.rateLimit()).Post("/auth/login", h.handleLogin)
	r.With(h.rateLimit()).Post("/auth/signup", h.handleSignup)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/auth/logout", h.handleLogout)
		r.Get("/user/me", h.handleMe)
		r.Post("/user/update/{id}", h.handleUpdateUser)
		r.Delete("/user/delete/{id}", h.handleDeleteUser)

		r.Delete("/interview/{id}", h.handleDeleteInterview)
		r.Post("/report", h.handleReport)

		// Every route in this group makes one oracle call.
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit())
			r.Get("/interview/gd/topic", h.handleGDTopic)
			r.Post("/interview/gd/evaluate", h.handleGDEvaluate)
			r.Post("/interview/technical/question", h.handleQuestion(model.RoundTechnical))
			r.Post("/interview/technical/submit", h.handleSubmit(model.RoundTechnical))
			r.Post("/interview/technical/evaluate", h.handleFinal(model.RoundTechnical))
			r.Post("/interview/hr/question", h.handleQuestion(model.RoundHR))
			r.Post("/interview/hr/submit", h.handleSubmit(model.RoundHR))
			r.Post("/interview/hr/evaluate", h.handleFinal(model.RoundHR))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleAdminListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
			r.Get("/export", h.handleExport)
		})
	})
}

func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	if h.config.RateLimitPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(h.config.RateLimitPerMin, time.Minute)
}

func (h *Handler) corsOptions() cors.Options {
	origins := h.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := len(origins) == 1 && origins[0] == "*"
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		LoggerFrom(r).Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cookiePath scopes auth cookies to the API base path.
func (h *Handler) cookiePath() string {
	if h.config.BasePath == "" {
		return "/"
	}
	return strings.TrimRight(h.config.BasePath, "/") + "/"
}
