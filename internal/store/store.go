package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ActionStore is the persistence surface the action engine depends on.
type ActionStore interface {
	// FindAction returns the item for (clientID, report, dedupeKey) or ErrNotFound.
	FindAction(ctx context.Context, clientID, report, dedupeKey string) (*models.ActionItem, error)
	// InsertAction returns ErrDuplicateKey when the source identity already exists.
	InsertAction(ctx context.Context, item *models.ActionItem) error
	// UpdateAction only touches items owned by clientID; anything else is ErrNotFound.
	UpdateAction(ctx context.Context, id uuid.UUID, clientID string, opts ...ActionUpdateOption) (*models.ActionItem, error)
	ListActions(ctx context.Context, clientID string, statuses []models.Status, since time.Time) ([]*models.ActionItem, error)
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	ActionStore

	Ping(ctx context.Context) error

	GetClient(ctx context.Context, id string) (*models.Client, error)
	UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error)

	GetAccessCodesByPrefix(ctx context.Context, prefix string) ([]*models.AccessCode, error)
	UpdateAccessCodeLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAccessCode(ctx context.Context, code *models.AccessCode) error
}

// ActionUpdate is the resolved set of field groups an UpdateAction call writes.
// Nil members are left untouched.
type ActionUpdate struct {
	Content  *ActionContent
	Status   *models.Status
	Assignee *models.Assignee
}

// ActionContent holds the generated text fields of an item.
type ActionContent struct {
	Title              string
	Rationale          string
	Steps              []string
	EstimatedImpactUSD *float64
}

// ActionUpdateOption selects a field group for UpdateAction.
type ActionUpdateOption func(*ActionUpdate)

// ResolveActionUpdate folds opts into an ActionUpdate.
func ResolveActionUpdate(opts ...ActionUpdateOption) ActionUpdate {
	var u ActionUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func (u ActionUpdate) Empty() bool {
	return u.Content == nil && u.Status == nil && u.Assignee == nil
}

// Apply writes u onto item in memory and stamps UpdatedAt.
func (u ActionUpdate) Apply(item *models.ActionItem, now time.Time) {
	if u.Content != nil {
		item.Title = u.Content.Title
		item.Rationale = u.Content.Rationale
		item.Steps = u.Content.Steps
		item.EstimatedImpactUSD = u.Content.EstimatedImpactUSD
	}
	if u.Status != nil {
		item.Status = *u.Status
	}
	if u.Assignee != nil {
		item.Assignee = *u.Assignee
	}
	item.UpdatedAt = now
}

// WithContent overwrites the generated text fields. A nil impact clears it.
func WithContent(title, rationale string, steps []string, impact *float64) ActionUpdateOption {
	return func(u *ActionUpdate) {
		u.Content = &ActionContent{Title: title, Rationale: rationale, Steps: steps, EstimatedImpactUSD: impact}
	}
}

func WithStatus(s models.Status) ActionUpdateOption {
	return func(u *ActionUpdate) {
		u.Status = &s
	}
}

func WithAssignee(a models.Assignee) ActionUpdateOption {
	return func(u *ActionUpdate) {
		u.Assignee = &a
	}
}
