package actions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Reconciler upserts ranked candidates into the store for one client.
type Reconciler struct {
	store store.ActionStore
	now   func() time.Time
}

// NewReconciler creates a Reconciler backed by s.
func NewReconciler(s store.ActionStore) *Reconciler {
	return &Reconciler{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Reconcile persists candidates in order and returns the stored items in the
// same order. Candidates that cannot be persisted are logged and left out.
// The only error returned is the context's, checked between candidates.
func (r *Reconciler) Reconcile(ctx context.Context, clientID string, candidates []models.Candidate) ([]*models.ActionItem, error) {
	items := make([]*models.ActionItem, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		log := slog.With("client_id", clientID, "report", c.Source.Report, "dedupe_key", c.Source.DedupeKey)

		if c.Source.Report == "" || c.Source.DedupeKey == "" {
			log.Warn("skipping candidate without source identity", "title", c.Title)
			continue
		}

		item, err := r.upsert(ctx, clientID, c)
		if err != nil {
			log.Error("persisting action item failed", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Reconciler) upsert(ctx context.Context, clientID string, c models.Candidate) (*models.ActionItem, error) {
	existing, err := r.store.FindAction(ctx, clientID, c.Source.Report, c.Source.DedupeKey)
	switch {
	case err == nil:
		return r.store.UpdateAction(ctx, existing.ID, clientID, Merge(existing, c).Options()...)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	now := r.now()
	item := &models.ActionItem{
		ID:                 uuid.New(),
		ClientID:           clientID,
		Priority:           c.Priority,
		Title:              c.Title,
		Rationale:          c.Rationale,
		Steps:              c.Steps,
		EstimatedImpactUSD: c.EstimatedImpactUSD,
		Status:             models.DefaultStatus,
		Assignee:           models.DefaultAssignee,
		Source:             c.Source,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if item.Steps == nil {
		item.Steps = []string{}
	}

	err = r.store.InsertAction(ctx, item)
	if errors.Is(err, store.ErrDuplicateKey) {
		// A concurrent pass inserted the same source first; return its row.
		slog.Info("insert raced, re-fetching", "client_id", clientID,
			"report", c.Source.Report, "dedupe_key", c.Source.DedupeKey)
		return r.store.FindAction(ctx, clientID, c.Source.Report, c.Source.DedupeKey)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}
