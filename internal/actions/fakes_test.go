package actions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/internal/store"
	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// --- Mock Store ---

// memStore is an in-memory ActionStore that enforces the same uniqueness and
// ownership rules as the Postgres store. Items are copied in and out.
type memStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.ActionItem

	failInsert map[string]error // by dedupe key
	failUpdate error

	finds, inserts, updates, lists int
}

func newMemStore() *memStore {
	return &memStore{items: map[uuid.UUID]*models.ActionItem{}, failInsert: map[string]error{}}
}

func cloneItem(it *models.ActionItem) *models.ActionItem {
	c := *it
	c.Steps = append([]string(nil), it.Steps...)
	if it.EstimatedImpactUSD != nil {
		v := *it.EstimatedImpactUSD
		c.EstimatedImpactUSD = &v
	}
	return &c
}

func (m *memStore) FindAction(_ context.Context, clientID, report, dedupeKey string) (*models.ActionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	for _, it := range m.items {
		if it.ClientID == clientID && it.Source.Report == report && it.Source.DedupeKey == dedupeKey {
			return cloneItem(it), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) InsertAction(_ context.Context, item *models.ActionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if err := m.failInsert[item.Source.DedupeKey]; err != nil {
		return err
	}
	for _, it := range m.items {
		if it.ClientID == item.ClientID && it.Source == item.Source {
			return store.ErrDuplicateKey
		}
	}
	m.items[item.ID] = cloneItem(item)
	return nil
}

func (m *memStore) UpdateAction(_ context.Context, id uuid.UUID, clientID string, opts ...store.ActionUpdateOption) (*models.ActionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	u := store.ResolveActionUpdate(opts...)
	if u.Empty() {
		return nil, errors.New("no fields to update")
	}
	it, ok := m.items[id]
	if !ok || it.ClientID != clientID {
		return nil, store.ErrNotFound
	}
	u.Apply(it, time.Now().UTC())
	return cloneItem(it), nil
}

func (m *memStore) ListActions(_ context.Context, clientID string, statuses []models.Status, since time.Time) ([]*models.ActionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := []*models.ActionItem{}
	for _, it := range m.items {
		if it.ClientID != clientID || it.CreatedAt.Before(since) {
			continue
		}
		for _, s := range statuses {
			if it.Status == s {
				out = append(out, cloneItem(it))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// put stores it as-is, bypassing the counters.
func (m *memStore) put(it *models.ActionItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = cloneItem(it)
}

func (m *memStore) get(id uuid.UUID) *models.ActionItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil
	}
	return cloneItem(it)
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// racingStore simulates a concurrent generation pass that inserts the same
// source identity between this pass's lookup and its insert.
type racingStore struct {
	*memStore
	raceKey string
	winner  *models.ActionItem
	raced   bool
}

func (r *racingStore) FindAction(ctx context.Context, clientID, report, dedupeKey string) (*models.ActionItem, error) {
	if dedupeKey == r.raceKey && !r.raced {
		r.raced = true
		r.memStore.put(r.winner)
		return nil, store.ErrNotFound
	}
	return r.memStore.FindAction(ctx, clientID, report, dedupeKey)
}

// --- Mock Cache ---

type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error

	gets, sets, deletes int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

func (m *memCache) Ping(_ context.Context) error { return nil }

func (m *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// --- Mock Analytics ---

type fakeAnalytics struct {
	payload *models.AnalysisPayload
	err     error
	calls   int
}

func (f *fakeAnalytics) LatestAnalysis(_ context.Context, _ string) (*models.AnalysisPayload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeAnalytics) Ready(_ context.Context) error { return nil }

// --- helpers ---

func candidate(p models.Priority, key string, impact *float64) models.Candidate {
	return models.Candidate{
		Priority:           p,
		Title:              "Fix " + key,
		Rationale:          "because " + key,
		Steps:              []string{"step one", "step two"},
		EstimatedImpactUSD: impact,
		Source:             models.Source{Report: "test_report", DedupeKey: key},
	}
}

func impact(v float64) *float64 { return &v }

func storedItem(clientID, key string, status models.Status, assignee models.Assignee, createdAt time.Time) *models.ActionItem {
	return &models.ActionItem{
		ID:        uuid.New(),
		ClientID:  clientID,
		Priority:  models.PriorityHigh,
		Title:     "old title",
		Rationale: "old rationale",
		Steps:     []string{"old step"},
		Status:    status,
		Assignee:  assignee,
		Source:    models.Source{Report: "test_report", DedupeKey: key},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func alicePayload() models.AnalysisPayload {
	return models.AnalysisPayload{
		KPIs: map[string]float64{},
		Tables: map[string][]models.Row{
			models.TableEmployeePerformance: {
				models.NewRow("Server", "Alice", "Waste_Rate_Pct", 25, "Total_Waste", 800),
				models.NewRow("Server", "Bob", "Waste_Rate_Pct", 5, "Total_Waste", 50),
			},
		},
	}
}
