package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/tablelens/internal/api/response"
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const codePrefixLen = 8

// ClientIDHeader lets an admin act as a specific client.
const ClientIDHeader = "X-Client-ID"

// Auth provides authentication and role-checking middleware.
type Auth struct {
	store     store.Store
	adminCode string
}

// NewAuth creates a new Auth middleware. adminCode, when non-empty, is a
// bootstrap admin access code accepted without a database lookup.
func NewAuth(s store.Store, adminCode string) *Auth {
	return &Auth{store: s, adminCode: adminCode}
}

// Authenticate validates the Bearer access code and sets client_id,
// code_prefix and role in the request context. Admins may name the client
// they act for in the X-Client-ID header.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawCode := extractBearerToken(r)
		if rawCode == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawCode) < codePrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid access code format", nil)
			return
		}

		prefix := rawCode[:codePrefixLen]

		var (
			role     string
			clientID string
		)
		if a.isBootstrapAdmin(rawCode) {
			role = models.RoleAdmin
		} else {
			code, err := a.lookup(r.Context(), prefix, rawCode)
			if err != nil {
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to validate access code", nil)
				return
			}
			if code == nil {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Invalid access code", nil)
				return
			}
			role = code.Role
			if code.ClientID != nil {
				clientID = *code.ClientID
			}

			// Update last_used_at async
			go a.store.UpdateAccessCodeLastUsed(context.Background(), code.ID)
		}

		if role == models.RoleAdmin {
			if requested := strings.TrimSpace(r.Header.Get(ClientIDHeader)); requested != "" {
				client, err := a.store.GetClient(r.Context(), requested)
				if errors.Is(err, store.ErrNotFound) {
					response.Error(w, http.StatusNotFound,
						"NOT_FOUND", "Client not found", nil)
					return
				}
				if err != nil {
					response.Error(w, http.StatusInternalServerError,
						"INTERNAL_ERROR", "Failed to resolve client", nil)
					return
				}
				clientID = client.ID
				slog.Info("admin impersonation", "client_id", clientID, "code_prefix", prefix)
			}
		}

		ctx := r.Context()
		ctx = SetClientID(ctx, clientID)
		ctx = setCodePrefix(ctx, prefix)
		ctx = setRole(ctx, role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) isBootstrapAdmin(rawCode string) bool {
	if a.adminCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(rawCode), []byte(a.adminCode)) == 1
}

// lookup returns the access code matching rawCode, or nil when none does.
func (a *Auth) lookup(ctx context.Context, prefix, rawCode string) (*models.AccessCode, error) {
	codes, err := a.store.GetAccessCodesByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	// Find matching code by bcrypt comparison
	for _, code := range codes {
		if bcrypt.CompareHashAndPassword([]byte(code.CodeHash), []byte(rawCode)) == nil {
			return code, nil
		}
	}
	return nil, nil
}

// RequireRole returns middleware that checks whether the authenticated
// access code has the given role.
func (a *Auth) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetRole(r) != role {
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireClient rejects requests that do not act for a client, which only
// happens for admins that did not set X-Client-ID.
func (a *Auth) RequireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetClientID(r); !ok {
			response.Error(w, http.StatusBadRequest,
				"CLIENT_REQUIRED", "Set the "+ClientIDHeader+" header to act for a client", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
