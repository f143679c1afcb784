package actions

import (
	"sort"

	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Per-tier output caps. Total output never exceeds their sum.
var tierCaps = []struct {
	priority models.Priority
	max      int
}{
	{models.PriorityHigh, 3},
	{models.PriorityMedium, 3},
	{models.PriorityLow, 2},
}

// Rank orders candidates by priority then estimated impact, both descending,
// and keeps at most 3 High, 3 Medium and 2 Low. Candidates without an impact
// sort last within their tier; ties keep their input order.
func Rank(candidates []models.Candidate) []models.Candidate {
	sorted := make([]models.Candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Priority.Rank(), sorted[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return sorted[i].Impact() > sorted[j].Impact()
	})

	out := make([]models.Candidate, 0, len(sorted))
	for _, tier := range tierCaps {
		kept := 0
		for _, c := range sorted {
			if c.Priority != tier.priority || kept == tier.max {
				continue
			}
			out = append(out, c)
			kept++
		}
	}
	return out
}
