package handler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/internal/actions"
	"github.com/kiranshivaraju/tablelens/internal/analytics"
	mw "github.com/kiranshivaraju/tablelens/internal/api/middleware"
	"github.com/kiranshivaraju/tablelens/internal/api/response"
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const maxGenerateBodyBytes = 10 << 20

//go:embed schema/generate_request.json
var generateSchemaJSON string

var generateSchema = mustSchema(generateSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling request schema: %v", err))
	}
	return s
}

// ActionService defines the interface the action handlers depend on.
type ActionService interface {
	Generate(ctx context.Context, clientID string, params actions.GenerateParams) ([]*models.ActionItem, error)
	Update(ctx context.Context, clientID string, params actions.UpdateParams) (*actions.UpdateResult, error)
	List(ctx context.Context, clientID string) ([]*models.ActionItem, error)
}

type generateRequest struct {
	Analysis *models.AnalysisPayload `json:"analysis"`
	Filters  *models.Filters         `json:"filters"`
}

type updateRequest struct {
	Status   *models.Status   `json:"status"`
	Assignee *models.Assignee `json:"assignee"`
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/actions/generate.
func NewGenerateHandler(svc ActionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := mw.GetClientID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing client", nil)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read request body", nil)
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte(`{}`)
		}

		result, err := generateSchema.Validate(gojsonschema.NewBytesLoader(body))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if !result.Valid() {
			response.ValidationError(w, "Request body does not match the expected shape", schemaDetails(result))
			return
		}

		var req generateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		params := actions.GenerateParams{Payload: req.Analysis}
		if req.Filters != nil {
			params.Filters = models.Filters{
				SelectedServer:   strings.TrimSpace(req.Filters.SelectedServer),
				SelectedStatus:   strings.TrimSpace(req.Filters.SelectedStatus),
				SelectedCategory: strings.TrimSpace(req.Filters.SelectedCategory),
			}
		}

		items, err := svc.Generate(r.Context(), clientID, params)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.Collection(w, items, response.ListMeta{Count: len(items)})
	}
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/actions.
func NewListHandler(svc ActionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := mw.GetClientID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing client", nil)
			return
		}

		items, err := svc.List(r.Context(), clientID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.Collection(w, items, response.ListMeta{Count: len(items)})
	}
}

// NewUpdateHandler returns an http.HandlerFunc for PATCH /api/v1/actions/{actionID}.
func NewUpdateHandler(svc ActionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := mw.GetClientID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing client", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "actionID"))
		if err != nil {
			response.ValidationError(w, "Invalid action id", map[string][]string{
				"action_id": {"must be a valid UUID"},
			})
			return
		}

		var req updateRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		result, err := svc.Update(r.Context(), clientID, actions.UpdateParams{
			ID:       id,
			Status:   req.Status,
			Assignee: req.Assignee,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.JSON(w, result)
	}
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, actions.ErrInvalidInput):
		response.ValidationError(w, validationMessage(err), nil)
	case errors.Is(err, actions.ErrPayloadRequired):
		response.ValidationError(w, "analysis is required when no upstream analysis is available", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Action item not found", nil)
	case errors.Is(err, analytics.ErrAnalyticsTimeout):
		response.Error(w, http.StatusGatewayTimeout, "ANALYTICS_TIMEOUT",
			"The analytics service took too long to respond", nil)
	case errors.Is(err, analytics.ErrAnalyticsUnreachable), errors.Is(err, analytics.ErrAnalyticsResponse):
		response.Error(w, http.StatusBadGateway, "ANALYTICS_UNAVAILABLE",
			"The analytics service is not available", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

// validationMessage strips the sentinel prefix from an ErrInvalidInput chain.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, actions.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(actions.ErrInvalidInput.Error())+2:]
	}
	return msg
}

func schemaDetails(result *gojsonschema.Result) map[string][]string {
	details := make(map[string][]string)
	for _, e := range result.Errors() {
		details[e.Field()] = append(details[e.Field()], e.Description())
	}
	return details
}
