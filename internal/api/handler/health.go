package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/tablelens/internal/api/response"
)

// Pinger is implemented by the store and the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker is implemented by the analytics client.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health. The
// analytics service is reported when ac is non-nil but does not mark the
// server degraded.
func NewHealthHandler(db, ca Pinger, ac ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := ca.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if ac != nil {
			checks["analytics"] = "ok"
			if err := ac.Ready(r.Context()); err != nil {
				checks["analytics"] = "degraded"
			}
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
