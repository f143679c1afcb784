package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Clients ---

func (s *PostgresStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error) {
	var c models.Client
	err := s.pool.QueryRow(ctx,
		`INSERT INTO clients (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		 RETURNING id, name, created_at, updated_at`,
		client.ID, client.Name, client.CreatedAt, client.UpdatedAt,
	).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert client: %w", err)
	}
	return &c, nil
}

// --- Access Codes ---

func (s *PostgresStore) GetAccessCodesByPrefix(ctx context.Context, prefix string) ([]*models.AccessCode, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, client_id, name, code_hash, code_prefix, role, last_used_at, revoked_at, created_at, updated_at
		 FROM access_codes WHERE code_prefix = $1 AND revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get access codes by prefix: %w", err)
	}
	defer rows.Close()

	var codes []*models.AccessCode
	for rows.Next() {
		var c models.AccessCode
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &c.CodeHash, &c.CodePrefix, &c.Role,
			&c.LastUsedAt, &c.RevokedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan access code: %w", err)
		}
		codes = append(codes, &c)
	}
	return codes, rows.Err()
}

func (s *PostgresStore) UpdateAccessCodeLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE access_codes SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update access code last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAccessCode(ctx context.Context, code *models.AccessCode) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO access_codes (id, client_id, name, code_hash, code_prefix, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		code.ID, code.ClientID, code.Name, code.CodeHash, code.CodePrefix, code.Role, code.CreatedAt, code.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create access code: %w", err)
	}
	return nil
}

// --- Action Items ---

const actionColumns = `id, client_id, priority, title, rationale, steps, estimated_impact_usd,
	status, assignee, source_report, source_dedupe_key, created_at, updated_at`

func scanAction(row pgx.Row) (*models.ActionItem, error) {
	var (
		a                          models.ActionItem
		priority, status, assignee string
	)
	if err := row.Scan(&a.ID, &a.ClientID, &priority, &a.Title, &a.Rationale, &a.Steps,
		&a.EstimatedImpactUSD, &status, &assignee, &a.Source.Report, &a.Source.DedupeKey,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Priority = models.Priority(priority)
	a.Status = models.Status(status)
	a.Assignee = models.Assignee(assignee)
	if a.Steps == nil {
		a.Steps = []string{}
	}
	return &a, nil
}

func (s *PostgresStore) FindAction(ctx context.Context, clientID, report, dedupeKey string) (*models.ActionItem, error) {
	a, err := scanAction(s.pool.QueryRow(ctx,
		`SELECT `+actionColumns+` FROM action_items
		 WHERE client_id = $1 AND source_report = $2 AND source_dedupe_key = $3`,
		clientID, report, dedupeKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find action: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) InsertAction(ctx context.Context, item *models.ActionItem) error {
	steps := item.Steps
	if steps == nil {
		steps = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO action_items (`+actionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.ID, item.ClientID, string(item.Priority), item.Title, item.Rationale, steps,
		item.EstimatedImpactUSD, string(item.Status), string(item.Assignee),
		item.Source.Report, item.Source.DedupeKey, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAction(ctx context.Context, id uuid.UUID, clientID string, opts ...ActionUpdateOption) (*models.ActionItem, error) {
	u := ResolveActionUpdate(opts...)
	if u.Empty() {
		return nil, fmt.Errorf("update action: no fields to update")
	}

	query := `UPDATE action_items SET updated_at = $3`
	args := []any{id, clientID, time.Now().UTC()}
	argIdx := 4

	if u.Content != nil {
		steps := u.Content.Steps
		if steps == nil {
			steps = []string{}
		}
		query += fmt.Sprintf(", title = $%d, rationale = $%d, steps = $%d, estimated_impact_usd = $%d",
			argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, u.Content.Title, u.Content.Rationale, steps, u.Content.EstimatedImpactUSD)
		argIdx += 4
	}
	if u.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, string(*u.Status))
		argIdx++
	}
	if u.Assignee != nil {
		query += fmt.Sprintf(", assignee = $%d", argIdx)
		args = append(args, string(*u.Assignee))
		argIdx++
	}

	query += " WHERE id = $1 AND client_id = $2 RETURNING " + actionColumns

	a, err := scanAction(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListActions(ctx context.Context, clientID string, statuses []models.Status, since time.Time) ([]*models.ActionItem, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+actionColumns+` FROM action_items
		 WHERE client_id = $1 AND status = ANY($2) AND created_at >= $3
		 ORDER BY created_at DESC, id`,
		clientID, names, since)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	items := []*models.ActionItem{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
