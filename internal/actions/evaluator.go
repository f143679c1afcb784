package actions

import (
	"log/slog"

	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Evaluator runs a fixed list of rules against one analytics payload.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator returns an Evaluator over rules, or over DefaultRules when none are given.
func NewEvaluator(rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{rules: rules}
}

// Evaluate runs every rule in order and collects their candidates. A rule
// that panics contributes nothing; the remaining rules still run.
func (e *Evaluator) Evaluate(p models.AnalysisPayload, f models.Filters) []models.Candidate {
	var out []models.Candidate
	for _, rule := range e.rules {
		if rule.Gate != nil && !rule.Gate(out) {
			slog.Debug("rule gated", "rule", rule.Name)
			continue
		}
		out = append(out, runRule(rule, p, f)...)
	}
	return out
}

func runRule(rule Rule, p models.AnalysisPayload, f models.Filters) (out []models.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rule failed", "rule", rule.Name, "error", r)
			out = nil
		}
	}()
	if rule.Eval == nil {
		return nil
	}
	return rule.Eval(p, f)
}
