package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tablelens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemIDs(items []*models.ActionItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestReconcile_InsertsWithDefaults(t *testing.T) {
	ms := newMemStore()
	r := NewReconciler(ms)

	items, err := r.Reconcile(context.Background(), "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "Alice", impact(240)),
		{Priority: models.PriorityLow, Title: "No steps", Source: models.Source{Report: ReportKPIs, DedupeKey: "avg_check"}},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, "bistro", first.ClientID)
	assert.Equal(t, models.StatusOpen, first.Status)
	assert.Equal(t, models.AssigneeGM, first.Assignee)
	assert.Equal(t, "Alice", first.Source.DedupeKey)
	assert.InDelta(t, 240.0, *first.EstimatedImpactUSD, 0.001)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	assert.NotNil(t, items[1].Steps)
	assert.Empty(t, items[1].Steps)
	assert.Equal(t, 2, ms.count())
}

func TestReconcile_Idempotent(t *testing.T) {
	ms := newMemStore()
	r := NewReconciler(ms)
	ranked := Rank(NewEvaluator().Evaluate(alicePayload(), models.Filters{}))
	require.NotEmpty(t, ranked)

	first, err := r.Reconcile(context.Background(), "bistro", ranked)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), "bistro", ranked)
	require.NoError(t, err)

	assert.Equal(t, itemIDs(first), itemIDs(second))
	assert.Equal(t, len(first), ms.count())
}

func TestReconcile_PreservesDoneStatus(t *testing.T) {
	ms := newMemStore()
	done := storedItem("bistro", "Alice", models.StatusDone, models.AssigneeGM, time.Now().Add(-time.Hour))
	ms.put(done)

	fresh := candidate(models.PriorityHigh, "Alice", impact(300))
	fresh.Title = "Reduce waste for Alice"
	fresh.Rationale = "Alice is flagged again."

	items, err := NewReconciler(ms).Reconcile(context.Background(), "bistro", []models.Candidate{fresh})
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := ms.get(done.ID)
	assert.Equal(t, models.StatusDone, got.Status)
	assert.Equal(t, "Reduce waste for Alice", got.Title)
	assert.Equal(t, "Alice is flagged again.", got.Rationale)
	assert.InDelta(t, 300.0, *got.EstimatedImpactUSD, 0.001)
	assert.Equal(t, done.ID, items[0].ID)
}

func TestReconcile_PreservesReassignment(t *testing.T) {
	ms := newMemStore()
	existing := storedItem("bistro", "Alice", models.StatusOpen, models.AssigneeManager1, time.Now().Add(-time.Hour))
	ms.put(existing)

	_, err := NewReconciler(ms).Reconcile(context.Background(), "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "Alice", nil),
	})
	require.NoError(t, err)

	got := ms.get(existing.ID)
	assert.Equal(t, models.AssigneeManager1, got.Assignee)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.Nil(t, got.EstimatedImpactUSD)
}

func TestReconcile_SameKeyOtherClient(t *testing.T) {
	ms := newMemStore()
	other := storedItem("other", "Alice", models.StatusDone, models.AssigneeGM, time.Now())
	ms.put(other)

	items, err := NewReconciler(ms).Reconcile(context.Background(), "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "Alice", nil),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.NotEqual(t, other.ID, items[0].ID)
	assert.Equal(t, "old title", ms.get(other.ID).Title)
	assert.Equal(t, 2, ms.count())
}

func TestReconcile_SkipsMalformed(t *testing.T) {
	ms := newMemStore()
	noReport := candidate(models.PriorityHigh, "Alice", nil)
	noReport.Source.Report = ""
	noKey := candidate(models.PriorityHigh, "", nil)

	items, err := NewReconciler(ms).Reconcile(context.Background(), "bistro", []models.Candidate{
		noReport,
		noKey,
		candidate(models.PriorityLow, "ok", nil),
	})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].Source.DedupeKey)
	assert.Equal(t, 1, ms.finds)
}

func TestReconcile_DropsFailedCandidate(t *testing.T) {
	ms := newMemStore()
	ms.failInsert["broken"] = errors.New("connection reset")

	items, err := NewReconciler(ms).Reconcile(context.Background(), "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "first", nil),
		candidate(models.PriorityHigh, "broken", nil),
		candidate(models.PriorityHigh, "last", nil),
	})
	require.NoError(t, err)

	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Source.DedupeKey
	}
	assert.Equal(t, []string{"first", "last"}, keys)
}

func TestReconcile_RecoversInsertRace(t *testing.T) {
	winner := storedItem("bistro", "Alice", models.StatusOpen, models.AssigneeGM, time.Now())
	rs := &racingStore{memStore: newMemStore(), raceKey: "Alice", winner: winner}

	items, err := NewReconciler(rs).Reconcile(context.Background(), "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "Alice", nil),
	})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, winner.ID, items[0].ID)
	assert.Equal(t, 1, rs.count())
	assert.Equal(t, 1, rs.inserts)
}

func TestReconcile_ContextCancelled(t *testing.T) {
	ms := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := NewReconciler(ms).Reconcile(ctx, "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "Alice", nil),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, items)
	assert.Equal(t, 0, ms.count())
}

func TestReconcile_PreservesRankOrder(t *testing.T) {
	ms := newMemStore()
	ms.put(storedItem("bistro", "b", models.StatusOpen, models.AssigneeGM, time.Now()))

	items, err := NewReconciler(ms).Reconcile(context.Background(), "bistro", []models.Candidate{
		candidate(models.PriorityHigh, "a", nil),
		candidate(models.PriorityHigh, "b", nil),
		candidate(models.PriorityMedium, "c", nil),
	})
	require.NoError(t, err)

	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Source.DedupeKey
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
