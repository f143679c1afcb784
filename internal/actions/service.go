// Package actions turns analytics payloads into a ranked, deduplicated list of
// action items and manages their lifecycle.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/internal/analytics"
	"github.com/kiranshivaraju/tablelens/internal/cache"
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

const (
	listWindow          = 90 * 24 * time.Hour
	defaultListTTL      = time.Minute
	analyticsPayloadTTL = 5 * time.Minute
)

// listStatuses are the statuses shown on the dashboard list.
var listStatuses = []models.Status{models.StatusOpen, models.StatusDone}

// GenerateParams holds the inputs of a generation pass. A nil Payload means
// the latest analysis is fetched from the analytics service.
type GenerateParams struct {
	Payload *models.AnalysisPayload
	Filters models.Filters
}

// UpdateParams holds a user edit. At least one of Status and Assignee is set.
type UpdateParams struct {
	ID       uuid.UUID
	Status   *models.Status
	Assignee *models.Assignee
}

// UpdateResult is the user-owned state of an item after an edit.
type UpdateResult struct {
	ID       uuid.UUID       `json:"id"`
	Status   models.Status   `json:"status"`
	Assignee models.Assignee `json:"assignee"`
}

// Service orchestrates generation, editing and listing of action items.
type Service struct {
	store      store.ActionStore
	cache      cache.Cache
	analytics  analytics.Client
	evaluator  *Evaluator
	reconciler *Reconciler
	listTTL    time.Duration
	now        func() time.Time
}

// NewService creates a new Service. ac may be nil, in which case Generate
// requires an explicit payload.
func NewService(st store.ActionStore, ca cache.Cache, ac analytics.Client, listTTL time.Duration) *Service {
	if listTTL <= 0 {
		listTTL = defaultListTTL
	}
	return &Service{
		store:      st,
		cache:      ca,
		analytics:  ac,
		evaluator:  NewEvaluator(),
		reconciler: NewReconciler(st),
		listTTL:    listTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Generate evaluates the payload, ranks the candidates and reconciles them
// against the client's stored items. The returned items follow rank order.
func (s *Service) Generate(ctx context.Context, clientID string, params GenerateParams) ([]*models.ActionItem, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}

	payload := params.Payload
	if payload == nil {
		var err error
		payload, err = s.latestPayload(ctx, clientID)
		if err != nil {
			return nil, err
		}
	}

	candidates := s.evaluator.Evaluate(*payload, params.Filters)
	ranked := Rank(candidates)

	items, err := s.reconciler.Reconcile(ctx, clientID, ranked)
	s.invalidateList(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("reconciling action items: %w", err)
	}

	slog.Info("action items generated",
		"client_id", clientID,
		"candidates", len(candidates),
		"ranked", len(ranked),
		"persisted", len(items),
	)
	return items, nil
}

// Update applies a user edit to one item owned by clientID. Input is validated
// before the store is touched; items of other clients surface as
// store.ErrNotFound.
func (s *Service) Update(ctx context.Context, clientID string, params UpdateParams) (*UpdateResult, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}
	if params.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if params.Status == nil && params.Assignee == nil {
		return nil, fmt.Errorf("%w: status or assignee is required", ErrInvalidInput)
	}

	var opts []store.ActionUpdateOption
	if params.Status != nil {
		if !params.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *params.Status)
		}
		opts = append(opts, store.WithStatus(*params.Status))
	}
	if params.Assignee != nil {
		if !params.Assignee.Valid() {
			return nil, fmt.Errorf("%w: unknown assignee %q", ErrInvalidInput, *params.Assignee)
		}
		opts = append(opts, store.WithAssignee(*params.Assignee))
	}

	item, err := s.store.UpdateAction(ctx, params.ID, clientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("updating action item: %w", err)
	}
	s.invalidateList(ctx, clientID)

	return &UpdateResult{ID: item.ID, Status: item.Status, Assignee: item.Assignee}, nil
}

// List returns the client's Open and Done items from the trailing 90 days,
// newest first.
func (s *Service) List(ctx context.Context, clientID string) ([]*models.ActionItem, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}

	key := cache.ActionListKey(clientID)
	if items, ok := s.cachedList(ctx, key, clientID); ok {
		return items, nil
	}

	items, err := s.store.ListActions(ctx, clientID, listStatuses, s.now().Add(-listWindow))
	if err != nil {
		return nil, fmt.Errorf("listing action items: %w", err)
	}

	if data, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, key, data, s.listTTL); err != nil {
			slog.Warn("caching action list failed", "client_id", clientID, "error", err)
		}
	}
	return items, nil
}

func (s *Service) cachedList(ctx context.Context, key, clientID string) ([]*models.ActionItem, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("reading cached action list failed", "client_id", clientID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var items []*models.ActionItem
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("discarding corrupt cached action list", "client_id", clientID, "error", err)
		return nil, false
	}
	for _, it := range items {
		it.ClientID = clientID
	}
	return items, true
}

func (s *Service) invalidateList(ctx context.Context, clientID string) {
	if err := s.cache.Delete(ctx, cache.ActionListKey(clientID)); err != nil {
		slog.Warn("invalidating action list failed", "client_id", clientID, "error", err)
	}
}

// latestPayload returns the client's latest analysis, from cache when fresh.
func (s *Service) latestPayload(ctx context.Context, clientID string) (*models.AnalysisPayload, error) {
	if s.analytics == nil {
		return nil, ErrPayloadRequired
	}

	key := cache.AnalyticsPayloadKey(clientID)
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("reading cached analysis failed", "client_id", clientID, "error", err)
	}
	if ok {
		var p models.AnalysisPayload
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	}

	p, err := s.analytics.LatestAnalysis(ctx, clientID)
	if errors.Is(err, analytics.ErrNoAnalysis) {
		return nil, fmt.Errorf("%w: %v", ErrPayloadRequired, err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching latest analysis: %w", err)
	}

	if data, err := json.Marshal(p); err == nil {
		if err := s.cache.Set(ctx, key, data, analyticsPayloadTTL); err != nil {
			slog.Warn("caching latest analysis failed", "client_id", clientID, "error", err)
		}
	}
	return p, nil
}
