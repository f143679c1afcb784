package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/internal/api/response"
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessCodePrefix    = "tl_"
	accessCodeBytes     = 16
	accessCodePrefixLen = 8
	maxNameLen          = 200
)

var clientIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,62}$`)

// AdminStore defines the store operations the admin handlers depend on.
type AdminStore interface {
	GetClient(ctx context.Context, id string) (*models.Client, error)
	UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error)
	CreateAccessCode(ctx context.Context, code *models.AccessCode) error
}

// NewUpsertClientHandler returns an http.HandlerFunc for POST /api/v1/admin/clients.
func NewUpsertClientHandler(st AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.ID = strings.TrimSpace(req.ID)
		req.Name = strings.TrimSpace(req.Name)

		details := map[string][]string{}
		if !clientIDPattern.MatchString(req.ID) {
			details["id"] = append(details["id"], "must be 2-63 lowercase letters, digits, '-' or '_'")
		}
		if req.Name == "" {
			details["name"] = append(details["name"], "name is required")
		} else if len(req.Name) > maxNameLen {
			details["name"] = append(details["name"], fmt.Sprintf("name must be at most %d characters", maxNameLen))
		}
		if len(details) > 0 {
			response.ValidationError(w, "Invalid client", details)
			return
		}

		now := time.Now().UTC()
		client, err := st.UpsertClient(r.Context(), &models.Client{ID: req.ID, Name: req.Name, CreatedAt: now, UpdatedAt: now})
		if err != nil {
			slog.Error("upserting client failed", "client_id", req.ID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, client)
	}
}

type createCodeResponse struct {
	ID         uuid.UUID `json:"id"`
	ClientID   *string   `json:"client_id,omitempty"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	CodePrefix string    `json:"code_prefix"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCreateCodeHandler returns an http.HandlerFunc for
// POST /api/v1/admin/clients/{clientID}/codes. The raw code is only ever
// returned in this response.
func NewCreateCodeHandler(st AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "clientID")

		var req struct {
			Name string `json:"name"`
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Role == "" {
			req.Role = models.RoleClient
		}

		details := map[string][]string{}
		if req.Name == "" {
			details["name"] = append(details["name"], "name is required")
		} else if len(req.Name) > maxNameLen {
			details["name"] = append(details["name"], fmt.Sprintf("name must be at most %d characters", maxNameLen))
		}
		if req.Role != models.RoleClient && req.Role != models.RoleAdmin {
			details["role"] = append(details["role"], "role must be client or admin")
		}
		if len(details) > 0 {
			response.ValidationError(w, "Invalid access code", details)
			return
		}

		if _, err := st.GetClient(r.Context(), clientID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Client not found", nil)
				return
			}
			slog.Error("loading client failed", "client_id", clientID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		raw, err := generateAccessCode()
		if err != nil {
			slog.Error("generating access code failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("hashing access code failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		now := time.Now().UTC()
		code := &models.AccessCode{
			ID:         uuid.New(),
			Name:       req.Name,
			CodeHash:   string(hash),
			CodePrefix: raw[:accessCodePrefixLen],
			Role:       req.Role,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		// Admin codes are not tied to a client.
		if req.Role == models.RoleClient {
			code.ClientID = &clientID
		}

		if err := st.CreateAccessCode(r.Context(), code); err != nil {
			slog.Error("creating access code failed", "client_id", clientID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		slog.Info("access code issued", "client_id", clientID, "code_prefix", code.CodePrefix, "role", code.Role)

		response.Created(w, createCodeResponse{
			ID:         code.ID,
			ClientID:   code.ClientID,
			Name:       code.Name,
			Role:       code.Role,
			CodePrefix: code.CodePrefix,
			Code:       raw,
			CreatedAt:  code.CreatedAt,
		})
	}
}

// generateAccessCode returns "tl_" followed by 32 random hex characters.
func generateAccessCode() (string, error) {
	b := make([]byte, accessCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return accessCodePrefix + hex.EncodeToString(b), nil
}
