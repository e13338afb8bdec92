package style

import (
	"fmt"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/logger"
)

// Metrics is the fixed vector the classifier evaluates
type Metrics struct {
	ValuationPercentile float64 // 0.0 (cheapest) ~ 1.0 (richest)
	MarginOfSafety      float64 // fraction below intrinsic value
	Position52W         float64 // 0.0 (at 52w low) ~ 1.0 (at high)
	ROICZScore          float64 // vs sector peers
	FScore              int     // 0 ~ 9
	AccrualRisk         float64 // higher = weaker earnings backing
	EarningsVolRatio    float64 // vs sector median
	EPSGrowth           float64 // YoY fraction
	RevenueGrowth       float64
	LeverageMultiple    float64 // debt / equity
}

// MetricsFrom assembles the classifier vector from a snapshot
func MetricsFrom(snap *contracts.FinancialSnapshot) Metrics {
	return Metrics{
		ValuationPercentile: snap.SectorData.ValuationPercentile,
		MarginOfSafety:      snap.MarginOfSafety(),
		Position52W:         snap.Position52W(),
		ROICZScore:          snap.Financials.ROICZScore,
		FScore:              snap.Financials.FScore,
		AccrualRisk:         snap.Financials.AccrualRatio,
		EarningsVolRatio:    snap.EarningsVolRatio(),
		EPSGrowth:           snap.Financials.EPSGrowth,
		RevenueGrowth:       snap.Financials.RevenueGrowth,
		LeverageMultiple:    snap.Financials.LeverageMultiple,
	}
}

// condition is one declarative threshold check inside a rule.
// scale normalizes how far a value clears its threshold, for the
// continuous confidence calculation.
type condition struct {
	name      string
	value     func(Metrics) float64
	threshold float64
	atLeast   bool // true: value >= threshold passes; false: value <= threshold
	scale     float64
}

func (c condition) passes(m Metrics) bool {
	v := c.value(m)
	if c.atLeast {
		return v >= c.threshold
	}
	return v <= c.threshold
}

// exceedance returns how far past the threshold the value sits,
// normalized by scale and clamped to [0, 1]
func (c condition) exceedance(m Metrics) float64 {
	v := c.value(m)
	var margin float64
	if c.atLeast {
		margin = (v - c.threshold) / c.scale
	} else {
		margin = (c.threshold - v) / c.scale
	}
	if margin < 0 {
		return 0
	}
	if margin > 1 {
		return 1
	}
	return margin
}

func (c condition) describe(m Metrics, passed bool) string {
	op := "<="
	if c.atLeast {
		op = ">="
	}
	verdict := "pass"
	if !passed {
		verdict = "fail"
	}
	return fmt.Sprintf("%s %.2f %s %.2f: %s", c.name, c.value(m), op, c.threshold, verdict)
}

// rule is a label plus the conjunction of conditions that earns it
type rule struct {
	label      contracts.StyleLabel
	conditions []condition
}

// Classifier evaluates the rule table in strict priority order:
// Value Stock, then Growth Value, then Potential Value; no match
// falls through to Not Value.
// ⭐ SSOT: 스타일 분류는 여기서만
type Classifier struct {
	rules  []rule
	logger *logger.Logger
}

// NewClassifier builds the classifier with the fixed rule table
func NewClassifier(log *logger.Logger) *Classifier {
	return &Classifier{
		rules:  ruleTable(),
		logger: log.WithField("module", "style"),
	}
}

// ruleTable defines the ordered label rules. Declarative on purpose:
// each row is directly testable without touching the evaluator.
func ruleTable() []rule {
	valuation := func(m Metrics) float64 { return m.ValuationPercentile }
	mos := func(m Metrics) float64 { return m.MarginOfSafety }
	fscore := func(m Metrics) float64 { return float64(m.FScore) }
	roicZ := func(m Metrics) float64 { return m.ROICZScore }
	accrual := func(m Metrics) float64 { return m.AccrualRisk }
	volRatio := func(m Metrics) float64 { return m.EarningsVolRatio }
	leverage := func(m Metrics) float64 { return m.LeverageMultiple }
	position := func(m Metrics) float64 { return m.Position52W }
	epsGrowth := func(m Metrics) float64 { return m.EPSGrowth }
	revGrowth := func(m Metrics) float64 { return m.RevenueGrowth }

	return []rule{
		{
			label: contracts.StyleValueStock,
			conditions: []condition{
				{"valuation_percentile", valuation, 0.30, false, 0.30},
				{"margin_of_safety", mos, 0.30, true, 0.30},
				{"f_score", fscore, 6, true, 3},
				{"roic_z_score", roicZ, 0.0, true, 1.5},
				{"accrual_risk", accrual, 0.50, false, 0.50},
				{"earnings_vol_ratio", volRatio, 1.20, false, 0.80},
				{"leverage_multiple", leverage, 2.0, false, 1.0},
				{"position_52w", position, 0.60, false, 0.40},
			},
		},
		{
			label: contracts.StyleGrowthValue,
			conditions: []condition{
				{"valuation_percentile", valuation, 0.45, false, 0.30},
				{"margin_of_safety", mos, 0.15, true, 0.30},
				{"eps_growth", epsGrowth, 0.15, true, 0.15},
				{"revenue_growth", revGrowth, 0.10, true, 0.15},
				{"f_score", fscore, 5, true, 3},
				{"leverage_multiple", leverage, 2.5, false, 1.0},
			},
		},
		{
			label: contracts.StylePotentialValue,
			conditions: []condition{
				{"valuation_percentile", valuation, 0.60, false, 0.30},
				{"margin_of_safety", mos, 0.05, true, 0.30},
				{"f_score", fscore, 4, true, 3},
				{"position_52w", position, 0.75, false, 0.40},
			},
		},
	}
}

// Classify returns the first fully satisfied label, its continuous
// confidence and the ordered pass/fail reasons behind the verdict
func (c *Classifier) Classify(m Metrics) contracts.StyleResult {
	var bestSatisfaction float64
	var bestReasons []string

	for _, r := range c.rules {
		reasons := make([]string, 0, len(r.conditions))
		allPass := true
		exceedSum := 0.0
		passCount := 0

		for _, cond := range r.conditions {
			passed := cond.passes(m)
			reasons = append(reasons, cond.describe(m, passed))
			if passed {
				exceedSum += cond.exceedance(m)
				passCount++
			} else {
				allPass = false
			}
		}

		if allPass {
			// Confidence grows with how far each condition clears its
			// threshold, not with the count of passing conditions.
			confidence := exceedSum / float64(len(r.conditions))
			return contracts.StyleResult{
				Label:      r.label,
				Confidence: confidence,
				Reasons:    reasons,
			}
		}

		satisfaction := float64(passCount) / float64(len(r.conditions))
		if satisfaction > bestSatisfaction || bestReasons == nil {
			bestSatisfaction = satisfaction
			bestReasons = reasons
		}
	}

	// Fallthrough: confidence in "not value" shrinks as the nearest
	// rule gets closer to passing.
	return contracts.StyleResult{
		Label:      contracts.StyleNotValue,
		Confidence: 1 - bestSatisfaction,
		Reasons:    bestReasons,
	}
}

// Score maps a style verdict to a 0~100 style score for the
// eligibility filter
func Score(result contracts.StyleResult) float64 {
	var base float64
	switch result.Label {
	case contracts.StyleValueStock:
		base = 100
	case contracts.StyleGrowthValue:
		base = 80
	case contracts.StylePotentialValue:
		base = 60
	default:
		base = 30
	}
	return base * (0.7 + 0.3*result.Confidence)
}
