package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders candidates; High outranks Medium outranks Low.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank maps a priority to a sortable weight. Unknown values rank below Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Status is the user-owned lifecycle state of an action item.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusDone      Status = "Done"
	StatusSnoozed   Status = "Snoozed"
	StatusDismissed Status = "Dismissed"
)

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusDone, StatusSnoozed, StatusDismissed:
		return true
	}
	return false
}

// Assignee is the user-owned owner of an action item.
type Assignee string

const (
	AssigneeGM       Assignee = "GM"
	AssigneeManager1 Assignee = "Manager1"
	AssigneeManager2 Assignee = "Manager2"
)

func (a Assignee) Valid() bool {
	switch a {
	case AssigneeGM, AssigneeManager1, AssigneeManager2:
		return true
	}
	return false
}

// Defaults applied to newly created items. A stored item still holding these
// values is indistinguishable from one the user never touched.
const (
	DefaultStatus   = StatusOpen
	DefaultAssignee = AssigneeGM
)

// Source identifies the rule and subject that produced a recommendation.
// DedupeKey is derived from the subject (server, menu item, KPI name), never
// from generated text, so reruns map onto the same stored item.
type Source struct {
	Report    string `json:"report"`
	DedupeKey string `json:"dedupe_key"`
}

// Candidate is a recommendation produced by a rule before it is persisted.
type Candidate struct {
	Priority           Priority `json:"priority"`
	Title              string   `json:"title"`
	Rationale          string   `json:"rationale"`
	Steps              []string `json:"steps"`
	EstimatedImpactUSD *float64 `json:"estimated_impact_usd,omitempty"`
	Source             Source   `json:"source"`
}

// Impact returns the estimated impact, treating absent as zero.
func (c Candidate) Impact() float64 {
	if c.EstimatedImpactUSD == nil {
		return 0
	}
	return *c.EstimatedImpactUSD
}

// ActionItem is a persisted recommendation owned by one client.
// (client_id, source.report, source.dedupe_key) is unique.
type ActionItem struct {
	ID                 uuid.UUID `db:"id"                   json:"id"`
	ClientID           string    `db:"client_id"            json:"-"`
	Priority           Priority  `db:"priority"             json:"priority"`
	Title              string    `db:"title"                json:"title"`
	Rationale          string    `db:"rationale"            json:"rationale"`
	Steps              []string  `db:"steps"                json:"steps"`
	EstimatedImpactUSD *float64  `db:"estimated_impact_usd" json:"estimated_impact_usd,omitempty"`
	Status             Status    `db:"status"               json:"status"`
	Assignee           Assignee  `db:"assignee"             json:"assignee"`
	Source             Source    `json:"source"`
	CreatedAt          time.Time `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"           json:"updated_at"`
}
