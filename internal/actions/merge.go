package actions

import (
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Patch is the result of merging a fresh candidate into a stored item.
// Content always comes from the candidate. Status and Assignee are nil when
// the stored value belongs to the user and must be left alone.
type Patch struct {
	Title              string
	Rationale          string
	Steps              []string
	EstimatedImpactUSD *float64
	Status             *models.Status
	Assignee           *models.Assignee
}

// Merge computes the three-way merge of existing and c. User-owned fields are
// re-affirmed only while they still hold their defaults; a Done or reassigned
// item keeps its state.
func Merge(existing *models.ActionItem, c models.Candidate) Patch {
	p := Patch{
		Title:              c.Title,
		Rationale:          c.Rationale,
		Steps:              c.Steps,
		EstimatedImpactUSD: c.EstimatedImpactUSD,
	}
	if existing.Status == models.DefaultStatus {
		s := models.DefaultStatus
		p.Status = &s
	}
	if existing.Assignee == models.DefaultAssignee {
		a := models.DefaultAssignee
		p.Assignee = &a
	}
	return p
}

// Options translates the patch into store update options.
func (p Patch) Options() []store.ActionUpdateOption {
	opts := []store.ActionUpdateOption{
		store.WithContent(p.Title, p.Rationale, p.Steps, p.EstimatedImpactUSD),
	}
	if p.Status != nil {
		opts = append(opts, store.WithStatus(*p.Status))
	}
	if p.Assignee != nil {
		opts = append(opts, store.WithAssignee(*p.Assignee))
	}
	return opts
}
