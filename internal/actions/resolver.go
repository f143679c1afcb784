package actions

import (
	"strings"

	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// ResolveColumn finds the column of rows that best matches one of the
// candidate names. Only the first row's keys are inspected, in their natural
// order. Candidates are tried in order; the first key whose lowercased form
// contains the candidate wins.
func ResolveColumn(rows []models.Row, candidates ...string) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}
	keys := rows[0].Keys()
	for _, cand := range candidates {
		cand = strings.ToLower(cand)
		if cand == "" {
			continue
		}
		for _, k := range keys {
			if strings.Contains(strings.ToLower(k), cand) {
				return k, true
			}
		}
	}
	return "", false
}

// column is a resolved column that may be absent. Reads from an absent column
// yield null.
type column struct {
	key string
	ok  bool
}

func resolve(rows []models.Row, candidates ...string) column {
	k, ok := ResolveColumn(rows, candidates...)
	return column{key: k, ok: ok}
}

func (c column) text(r models.Row) string {
	if !c.ok {
		return ""
	}
	return r.Get(c.key).Text()
}

func (c column) float(r models.Row) (float64, bool) {
	if !c.ok {
		return 0, false
	}
	return r.Get(c.key).Float()
}

// floatOr returns the numeric value or zero.
func (c column) floatOr(r models.Row) float64 {
	f, _ := c.float(r)
	return f
}
