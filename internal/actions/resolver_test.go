package actions

import (
	"encoding/json"
	"testing"

	"github.com/kiranshivaraju/tablelens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColumn_CandidateOrderWins(t *testing.T) {
	rows := []models.Row{models.NewRow("A", 1, "b_x", 2)}

	for i := 0; i < 50; i++ {
		key, ok := ResolveColumn(rows, "x", "a")
		require.True(t, ok)
		assert.Equal(t, "b_x", key)
	}
}

func TestResolveColumn_DecodedRowKeepsKeyOrder(t *testing.T) {
	var rows []models.Row
	require.NoError(t, json.Unmarshal([]byte(`[{"A":1,"b_x":2}]`), &rows))

	key, ok := ResolveColumn(rows, "x", "a")
	require.True(t, ok)
	assert.Equal(t, "b_x", key)

	key, ok = ResolveColumn(rows, "a", "x")
	require.True(t, ok)
	assert.Equal(t, "A", key)
}

func TestResolveColumn_FirstMatchingKeyInRowOrder(t *testing.T) {
	rows := []models.Row{models.NewRow("Server Name", "Alice", "Server_ID", 7)}

	key, ok := ResolveColumn(rows, "server")
	require.True(t, ok)
	assert.Equal(t, "Server Name", key)
}

func TestResolveColumn_SubstringCaseInsensitive(t *testing.T) {
	rows := []models.Row{models.NewRow("Employee", "Alice", "Total_Waste_USD", 800)}

	key, ok := ResolveColumn(rows, "total_waste")
	require.True(t, ok)
	assert.Equal(t, "Total_Waste_USD", key)
}

func TestResolveColumn_OnlyFirstRowInspected(t *testing.T) {
	rows := []models.Row{
		models.NewRow("item", "Burger"),
		models.NewRow("item", "Fries", "volatility", 120),
	}

	_, ok := ResolveColumn(rows, "volatility")
	assert.False(t, ok)
}

func TestResolveColumn_Absent(t *testing.T) {
	tests := []struct {
		name       string
		rows       []models.Row
		candidates []string
	}{
		{"no rows", nil, []string{"server"}},
		{"empty slice", []models.Row{}, []string{"server"}},
		{"no match", []models.Row{models.NewRow("item", "Burger")}, []string{"server", "staff"}},
		{"no candidates", []models.Row{models.NewRow("item", "Burger")}, nil},
		{"blank candidate", []models.Row{models.NewRow("item", "Burger")}, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ResolveColumn(tt.rows, tt.candidates...)
			assert.False(t, ok)
		})
	}
}

func TestColumn_AbsentReadsAsNull(t *testing.T) {
	col := resolve(nil, "server")
	r := models.NewRow("server", "Alice")

	assert.Equal(t, "", col.text(r))
	_, ok := col.float(r)
	assert.False(t, ok)
	assert.Equal(t, 0.0, col.floatOr(r))
}
