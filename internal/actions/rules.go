package actions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Policy thresholds. These encode the operators' judgment and are not configurable.
const (
	criticalWasteRatePct    = 20.0
	criticalWasteShareOfMax = 0.8
	wasteImpactFactor       = 0.3
	maxWasteCandidates      = 3

	removeVolatility  = 100.0
	maxMenuCandidates = 2

	foodAttachmentFloorPct    = 10.0
	bottleConversionFloorPct  = 5.0
	missedRevenueCeilingUSD   = 1000.0
	missedRevenueImpactFactor = 0.2
	avgCheckBenchmarkUSD      = 45.0

	// KPI rules only fire while their tier has room.
	missedRevenueMediumGate = 3
	avgCheckLowGate         = 2
)

// ReportKPIs is the source report for every KPI-driven recommendation.
const ReportKPIs = "kpis"

// Column name candidates, in preference order.
var (
	serverColumns     = []string{"server", "employee", "staff", "bartender", "name"}
	statusColumns     = []string{"status"}
	wasteRateColumns  = []string{"waste_rate", "waste rate", "wasterate", "waste_pct", "leakage_rate", "leakage_pct"}
	totalWasteColumns = []string{"total_waste", "total waste", "waste_total", "waste_usd", "leakage_usd"}
	itemColumns       = []string{"item", "product", "dish", "name"}
	menuActionColumns = []string{"action", "recommend"}
	volatilityColumns = []string{"volatility", "variance"}
	menuWasteColumns  = []string{"total_waste", "waste_total", "waste"}
	categoryColumns   = []string{"category"}
)

// Rule is one independent detector. Eval must not mutate its inputs. Gate,
// when set, sees every candidate emitted by earlier rules and may veto this
// rule entirely.
type Rule struct {
	Name string
	Eval func(p models.AnalysisPayload, f models.Filters) []models.Candidate
	Gate func(prior []models.Candidate) bool
}

// DefaultRules returns the fixed rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "waste_performance", Eval: wastePerformanceRule},
		{Name: "menu_volatility", Eval: menuVolatilityRule},
		{Name: "food_attachment", Eval: foodAttachmentRule},
		{Name: "bottle_conversion", Eval: bottleConversionRule},
		{Name: "missed_revenue", Eval: missedRevenueRule, Gate: fewerThan(models.PriorityMedium, missedRevenueMediumGate)},
		{Name: "avg_check", Eval: avgCheckRule, Gate: fewerThan(models.PriorityLow, avgCheckLowGate)},
	}
}

// fewerThan allows a rule while fewer than n prior candidates have priority p.
func fewerThan(p models.Priority, n int) func([]models.Candidate) bool {
	return func(prior []models.Candidate) bool {
		count := 0
		for _, c := range prior {
			if c.Priority == p {
				count++
			}
		}
		return count < n
	}
}

func wastePerformanceRule(p models.AnalysisPayload, f models.Filters) []models.Candidate {
	report := models.TableEmployeePerformance
	rows := p.Table(report)
	if len(rows) == 0 {
		report = models.TableWasteEfficiency
		rows = p.Table(report)
	}
	if len(rows) == 0 {
		return nil
	}

	server := resolve(rows, serverColumns...)
	if !server.ok {
		return nil
	}
	status := resolve(rows, statusColumns...)
	rate := resolve(rows, wasteRateColumns...)
	total := resolve(rows, totalWasteColumns...)

	eligible := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if f.SelectedServer != "" && server.text(r) != f.SelectedServer {
			continue
		}
		if f.SelectedStatus != "" && status.ok && !strings.EqualFold(status.text(r), f.SelectedStatus) {
			continue
		}
		eligible = append(eligible, r)
	}

	// Max over rows with a numeric total; rows without one never qualify by share.
	maxWaste, haveMax := 0.0, false
	for _, r := range eligible {
		if w, ok := total.float(r); ok && (!haveMax || w > maxWaste) {
			maxWaste, haveMax = w, true
		}
	}

	var critical []models.Row
	for _, r := range eligible {
		isCritical := strings.EqualFold(status.text(r), "critical")
		if v, ok := rate.float(r); ok && v >= criticalWasteRatePct {
			isCritical = true
		}
		if w, ok := total.float(r); ok && w >= criticalWasteShareOfMax*maxWaste {
			isCritical = true
		}
		if isCritical {
			critical = append(critical, r)
		}
	}

	sort.SliceStable(critical, func(i, j int) bool {
		return total.floatOr(critical[i]) > total.floatOr(critical[j])
	})

	var out []models.Candidate
	for _, r := range critical {
		if len(out) == maxWasteCandidates {
			break
		}
		name := server.text(r)
		if name == "" {
			continue
		}
		waste := total.floatOr(r)

		c := models.Candidate{
			Priority:  models.PriorityHigh,
			Title:     fmt.Sprintf("Reduce waste for %s", name),
			Rationale: wasteRationale(name, rate, r, waste),
			Steps: []string{
				fmt.Sprintf("Review %s's voids, comps and spills from the last 30 days", name),
				fmt.Sprintf("Walk through pour and portion standards with %s before the next shift", name),
				fmt.Sprintf("Re-check %s's waste rate after one week", name),
			},
			Source: models.Source{Report: report, DedupeKey: name},
		}
		if waste > 0 {
			c.EstimatedImpactUSD = usd(waste * wasteImpactFactor)
		}
		out = append(out, c)
	}
	return out
}

func wasteRationale(name string, rate column, r models.Row, waste float64) string {
	parts := []string{fmt.Sprintf("%s is flagged for critical waste", name)}
	if v, ok := rate.float(r); ok {
		parts = append(parts, fmt.Sprintf("waste rate %.1f%%", v))
	}
	if waste > 0 {
		parts = append(parts, fmt.Sprintf("$%.2f total waste", waste))
	}
	return strings.Join(parts, ", ") + "."
}

func menuVolatilityRule(p models.AnalysisPayload, f models.Filters) []models.Candidate {
	rows := p.Table(models.TableMenuVolatility)
	if len(rows) == 0 {
		return nil
	}

	item := resolve(rows, itemColumns...)
	if !item.ok {
		return nil
	}
	action := resolve(rows, menuActionColumns...)
	volatility := resolve(rows, volatilityColumns...)
	waste := resolve(rows, menuWasteColumns...)
	category := resolve(rows, categoryColumns...)

	var out []models.Candidate
	for _, r := range rows {
		if len(out) == maxMenuCandidates {
			break
		}
		if f.SelectedCategory != "" && category.ok && !strings.EqualFold(category.text(r), f.SelectedCategory) {
			continue
		}

		remove := strings.EqualFold(action.text(r), "REMOVE")
		vol, volOK := volatility.float(r)
		w, wOK := waste.float(r)
		if !remove && !(volOK && vol >= removeVolatility) && !(wOK && w > 0) {
			continue
		}

		name := item.text(r)
		if name == "" {
			continue
		}

		title := fmt.Sprintf("Review %s on the menu", name)
		if remove {
			title = fmt.Sprintf("Consider removing %s from the menu", name)
		}

		reasons := []string{}
		if remove {
			reasons = append(reasons, "flagged for removal")
		}
		if volOK {
			reasons = append(reasons, fmt.Sprintf("volatility %.0f", vol))
		}
		if wOK && w > 0 {
			reasons = append(reasons, fmt.Sprintf("$%.2f waste", w))
		}

		out = append(out, models.Candidate{
			Priority:  models.PriorityHigh,
			Title:     title,
			Rationale: fmt.Sprintf("%s is unstable on the menu: %s.", name, strings.Join(reasons, ", ")),
			Steps: []string{
				fmt.Sprintf("Compare %s's sales and waste week over week", name),
				"Check recipe costing and prep par levels",
				"Decide with the chef whether to rework, reprice or remove the item",
			},
			Source: models.Source{Report: models.TableMenuVolatility, DedupeKey: name},
		})
	}
	return out
}

func foodAttachmentRule(p models.AnalysisPayload, _ models.Filters) []models.Candidate {
	v, ok := p.KPI("food_attachment_rate", "food_attachment")
	if !ok || v >= foodAttachmentFloorPct {
		return nil
	}
	return []models.Candidate{{
		Priority:  models.PriorityMedium,
		Title:     "Raise food attachment on drink checks",
		Rationale: fmt.Sprintf("Only %.1f%% of checks include food, below the %.0f%% floor.", v, foodAttachmentFloorPct),
		Steps: []string{
			"Add a food suggestion to the standard drink greeting",
			"Run a shift contest on food attachment",
			"Feature a shareable appetizer on the drink menu",
		},
		Source: models.Source{Report: ReportKPIs, DedupeKey: "food_attachment_rate"},
	}}
}

func bottleConversionRule(p models.AnalysisPayload, _ models.Filters) []models.Candidate {
	v, ok := p.KPI("bottle_conversion_pct", "bottle_conversion")
	if !ok || v >= bottleConversionFloorPct {
		return nil
	}
	return []models.Candidate{{
		Priority:  models.PriorityMedium,
		Title:     "Improve bottle conversion",
		Rationale: fmt.Sprintf("Bottle conversion is %.1f%%, below the %.0f%% floor.", v, bottleConversionFloorPct),
		Steps: []string{
			"Train servers to offer a bottle to tables of four or more",
			"Highlight two bottle options with clear value versus by-the-glass",
			"Track bottle offers per shift for two weeks",
		},
		Source: models.Source{Report: ReportKPIs, DedupeKey: "bottle_conversion_pct"},
	}}
}

func missedRevenueRule(p models.AnalysisPayload, _ models.Filters) []models.Candidate {
	v, ok := p.KPI("missed_revenue", "missed_revenue_usd")
	if !ok || v <= missedRevenueCeilingUSD {
		return nil
	}
	return []models.Candidate{{
		Priority:  models.PriorityMedium,
		Title:     "Recover missed revenue",
		Rationale: fmt.Sprintf("An estimated $%.2f in revenue was missed this period.", v),
		Steps: []string{
			"Identify the shifts and stations with the largest gaps",
			"Audit open and voided checks for unrung items",
			"Set a weekly missed-revenue target with the floor managers",
		},
		EstimatedImpactUSD: usd(v * missedRevenueImpactFactor),
		Source:             models.Source{Report: ReportKPIs, DedupeKey: "missed_revenue"},
	}}
}

func avgCheckRule(p models.AnalysisPayload, _ models.Filters) []models.Candidate {
	v, ok := p.KPI("avg_check", "average_check")
	if !ok || v <= 0 || v >= avgCheckBenchmarkUSD {
		return nil
	}
	return []models.Candidate{{
		Priority:  models.PriorityLow,
		Title:     "Lift the average check",
		Rationale: fmt.Sprintf("Average check is $%.2f against a $%.0f benchmark.", v, avgCheckBenchmarkUSD),
		Steps: []string{
			"Introduce one premium upsell per course",
			"Coach servers on suggestive selling for desserts and after-dinner drinks",
		},
		Source: models.Source{Report: ReportKPIs, DedupeKey: "avg_check"},
	}}
}

// usd rounds to cents and returns a pointer suitable for EstimatedImpactUSD.
func usd(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
