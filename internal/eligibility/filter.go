package eligibility

import (
	"fmt"
	"sort"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
)

// Candidate carries the six signals the filter evaluates
type Candidate struct {
	Symbol              string
	StyleScore          float64 // 0 ~ 100
	ValuationPercentile float64 // 0.0 ~ 1.0, lower is cheaper
	MarginOfSafety      float64 // fraction
	QualityScore        float64 // 0 ~ 100
	RiskScore           float64 // 0 ~ 100, higher is riskier
	Confidence          float64 // 0.0 ~ 1.0
}

// Filter applies the ordered eligibility criteria and computes the
// UVS ranking score. Eligibility requires every criterion to pass:
// one failure excludes the candidate no matter how strong the rest.
// ⭐ SSOT: UVS 적격성 판정은 여기서만
type Filter struct {
	cfg    config.EligibilityConfig
	logger *logger.Logger
}

// NewFilter validates thresholds and creates the filter
func NewFilter(cfg config.EligibilityConfig, log *logger.Logger) (*Filter, error) {
	if cfg.MaxValuationPercentile <= 0 || cfg.MaxValuationPercentile > 1 {
		return nil, &contracts.ConfigError{Field: "eligibility.max_valuation_percentile", Reason: "must be in (0, 1]"}
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, &contracts.ConfigError{Field: "eligibility.min_confidence", Reason: "must be in [0, 1]"}
	}

	return &Filter{
		cfg:    cfg,
		logger: log.WithField("module", "eligibility"),
	}, nil
}

// Evaluate runs the named criteria in order and attaches the UVS
// score and grade. Every check is recorded, pass or fail.
func (f *Filter) Evaluate(c Candidate) contracts.EligibilityResult {
	checks := []contracts.CriterionCheck{
		f.check("style_score", c.StyleScore >= f.cfg.MinStyleScore,
			fmt.Sprintf("%.1f >= %.1f", c.StyleScore, f.cfg.MinStyleScore)),
		f.check("valuation_percentile", c.ValuationPercentile <= f.cfg.MaxValuationPercentile,
			fmt.Sprintf("%.2f <= %.2f", c.ValuationPercentile, f.cfg.MaxValuationPercentile)),
		f.check("margin_of_safety", c.MarginOfSafety >= f.cfg.MinMarginOfSafety,
			fmt.Sprintf("%.2f >= %.2f", c.MarginOfSafety, f.cfg.MinMarginOfSafety)),
		f.check("quality_score", c.QualityScore >= f.cfg.MinQualityScore,
			fmt.Sprintf("%.1f >= %.1f", c.QualityScore, f.cfg.MinQualityScore)),
		f.check("risk_score", c.RiskScore <= f.cfg.MaxRiskScore,
			fmt.Sprintf("%.1f <= %.1f", c.RiskScore, f.cfg.MaxRiskScore)),
		f.check("confidence", c.Confidence >= f.cfg.MinConfidence,
			fmt.Sprintf("%.2f >= %.2f", c.Confidence, f.cfg.MinConfidence)),
	}

	eligible := true
	for _, check := range checks {
		if !check.Passed {
			eligible = false
			break
		}
	}

	uvs := Score(c)
	return contracts.EligibilityResult{
		Eligible: eligible,
		Checks:   checks,
		UVSScore: uvs,
		UVSGrade: Grade(uvs),
	}
}

func (f *Filter) check(name string, passed bool, detail string) contracts.CriterionCheck {
	return contracts.CriterionCheck{Name: name, Passed: passed, Detail: detail}
}

// Score computes the composite UVS ranking score (0 ~ 100) from an
// independent weighted formula over the same six inputs. Used purely
// for ranking eligible candidates, never for the pass/fail decision.
func Score(c Candidate) float64 {
	cheapness := (1 - clamp01(c.ValuationPercentile)) * 100
	mos := clamp01(c.MarginOfSafety/0.5) * 100
	safety := 100 - clamp(c.RiskScore, 0, 100)

	uvs := 0.25*clamp(c.StyleScore, 0, 100) +
		0.25*cheapness +
		0.20*mos +
		0.15*clamp(c.QualityScore, 0, 100) +
		0.15*safety

	// Confidence scales the whole composite: shaky inputs rank lower
	return uvs * (0.5 + 0.5*clamp01(c.Confidence))
}

// FilterCandidates returns only the eligible results, sorted
// descending by UVS score with symbol as the deterministic tiebreak
func (f *Filter) FilterCandidates(results []contracts.AnalysisResult) []contracts.AnalysisResult {
	eligible := make([]contracts.AnalysisResult, 0, len(results))
	for _, r := range results {
		if r.Eligibility.Eligible {
			eligible = append(eligible, r)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Eligibility.UVSScore != eligible[j].Eligibility.UVSScore {
			return eligible[i].Eligibility.UVSScore > eligible[j].Eligibility.UVSScore
		}
		return eligible[i].Symbol < eligible[j].Symbol
	})

	f.logger.WithFields(map[string]interface{}{
		"input":    len(results),
		"eligible": len(eligible),
	}).Info("Eligibility filtering completed")

	return eligible
}

// Grade maps a UVS score into the 8 fixed ordinal bands
func Grade(uvs float64) string {
	switch {
	case uvs >= 90:
		return "A+"
	case uvs >= 80:
		return "A"
	case uvs >= 70:
		return "B+"
	case uvs >= 60:
		return "B"
	case uvs >= 50:
		return "C+"
	case uvs >= 40:
		return "C"
	case uvs >= 30:
		return "D"
	default:
		return "F"
	}
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
