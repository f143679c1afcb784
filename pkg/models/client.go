package models

import (
	"time"

	"github.com/google/uuid"
)

// Client represents one restaurant business. Every action item belongs to a client.
type Client struct {
	ID        string    `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// AccessCode is the shared login code for a client's staff, or an admin code
// when Role is RoleAdmin. Raw codes are shown once at creation; only the
// bcrypt hash is stored.
type AccessCode struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	ClientID   *string    `db:"client_id"    json:"client_id,omitempty"`
	Name       string     `db:"name"         json:"name"`
	CodeHash   string     `db:"code_hash"    json:"-"`
	CodePrefix string     `db:"code_prefix"  json:"code_prefix"`
	Role       string     `db:"role"         json:"role"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}
