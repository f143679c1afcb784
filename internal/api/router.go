package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/tablelens/internal/api/middleware"
	"github.com/kiranshivaraju/tablelens/internal/api/response"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler     http.HandlerFunc
	GenerateHandler   http.HandlerFunc
	ListHandler       http.HandlerFunc
	UpdateHandler     http.HandlerFunc
	UpsertClient      http.HandlerFunc
	CreateCodeHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// Client-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireClient)

			r.Post("/api/v1/actions/generate", orNotImplemented(deps.GenerateHandler))
			r.Get("/api/v1/actions", orNotImplemented(deps.ListHandler))
			r.Patch("/api/v1/actions/{actionID}", orNotImplemented(deps.UpdateHandler))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireRole(models.RoleAdmin))

			r.Post("/api/v1/admin/clients", orNotImplemented(deps.UpsertClient))
			r.Post("/api/v1/admin/clients/{clientID}/codes", orNotImplemented(deps.CreateCodeHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
