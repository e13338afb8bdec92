package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
)

func testConfig() config.EligibilityConfig {
	return config.EligibilityConfig{
		MinStyleScore:          60,
		MaxValuationPercentile: 0.40,
		MinMarginOfSafety:      0.20,
		MinQualityScore:        50,
		MaxRiskScore:           60,
		MinConfidence:          0.4,
	}
}

// strongCandidate passes every criterion with room to spare
func strongCandidate() Candidate {
	return Candidate{
		Symbol:              "AAPL",
		StyleScore:          85,
		ValuationPercentile: 0.15,
		MarginOfSafety:      0.35,
		QualityScore:        75,
		RiskScore:           30,
		Confidence:          0.8,
	}
}

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(testConfig(), logger.NewNop())
	require.NoError(t, err)
	return f
}

func TestNewFilter_RejectsBadThresholds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxValuationPercentile = 1.5

	_, err := NewFilter(cfg, logger.NewNop())
	require.Error(t, err)

	var cfgErr *contracts.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	cfg = testConfig()
	cfg.MinConfidence = -0.1
	_, err = NewFilter(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestEvaluate_AllCriteriaPass(t *testing.T) {
	f := newTestFilter(t)

	result := f.Evaluate(strongCandidate())
	assert.True(t, result.Eligible)
	assert.Len(t, result.Checks, 6, "every criterion is recorded")
	for _, check := range result.Checks {
		assert.True(t, check.Passed, "check %s", check.Name)
	}
	assert.Greater(t, result.UVSScore, 0.0)
	assert.NotEmpty(t, result.UVSGrade)
}

func TestEvaluate_SingleFailureExcludes(t *testing.T) {
	f := newTestFilter(t)

	// Knock out one criterion at a time; eligibility must flip every time.
	mutations := []struct {
		name   string
		mutate func(*Candidate)
	}{
		{"style_score", func(c *Candidate) { c.StyleScore = 50 }},
		{"valuation_percentile", func(c *Candidate) { c.ValuationPercentile = 0.70 }},
		{"margin_of_safety", func(c *Candidate) { c.MarginOfSafety = 0.05 }},
		{"quality_score", func(c *Candidate) { c.QualityScore = 20 }},
		{"risk_score", func(c *Candidate) { c.RiskScore = 90 }},
		{"confidence", func(c *Candidate) { c.Confidence = 0.1 }},
	}

	for _, m := range mutations {
		c := strongCandidate()
		m.mutate(&c)

		result := f.Evaluate(c)
		assert.False(t, result.Eligible, "failing %s must exclude the candidate", m.name)

		failed := 0
		for _, check := range result.Checks {
			if !check.Passed {
				assert.Equal(t, m.name, check.Name)
				failed++
			}
		}
		assert.Equal(t, 1, failed)
	}
}

func TestEvaluate_ChecksKeepFixedOrder(t *testing.T) {
	f := newTestFilter(t)

	result := f.Evaluate(strongCandidate())
	names := make([]string, len(result.Checks))
	for i, check := range result.Checks {
		names[i] = check.Name
	}
	assert.Equal(t, []string{
		"style_score", "valuation_percentile", "margin_of_safety",
		"quality_score", "risk_score", "confidence",
	}, names)
}

func TestScore_Bounds(t *testing.T) {
	best := Candidate{
		StyleScore:          100,
		ValuationPercentile: 0,
		MarginOfSafety:      0.5,
		QualityScore:        100,
		RiskScore:           0,
		Confidence:          1,
	}
	worst := Candidate{
		StyleScore:          0,
		ValuationPercentile: 1,
		MarginOfSafety:      0,
		QualityScore:        0,
		RiskScore:           100,
		Confidence:          0,
	}

	assert.InDelta(t, 100.0, Score(best), 1e-9)
	assert.InDelta(t, 0.0, Score(worst), 1e-9)
}

func TestScore_ConfidenceHalvesAtZero(t *testing.T) {
	c := strongCandidate()
	c.Confidence = 1
	full := Score(c)

	c.Confidence = 0
	halved := Score(c)

	assert.InDelta(t, full/2, halved, 1e-9, "zero confidence halves the composite")
}

func TestScore_OutOfRangeInputsClamped(t *testing.T) {
	c := strongCandidate()
	c.StyleScore = 250
	c.RiskScore = -40
	c.MarginOfSafety = 3.0
	c.Confidence = 2.0

	uvs := Score(c)
	assert.LessOrEqual(t, uvs, 100.0)
	assert.GreaterOrEqual(t, uvs, 0.0)
}

func TestFilterCandidates_SortsByUVSThenSymbol(t *testing.T) {
	f := newTestFilter(t)

	mk := func(symbol string, uvs float64, eligible bool) contracts.AnalysisResult {
		return contracts.AnalysisResult{
			Symbol: symbol,
			Eligibility: contracts.EligibilityResult{
				Eligible: eligible,
				UVSScore: uvs,
			},
		}
	}

	results := []contracts.AnalysisResult{
		mk("MSFT", 70, true),
		mk("AAPL", 85, true),
		mk("TSLA", 40, false),
		mk("GOOG", 70, true),
	}

	filtered := f.FilterCandidates(results)
	require.Len(t, filtered, 3, "ineligible results are dropped")
	assert.Equal(t, "AAPL", filtered[0].Symbol)
	assert.Equal(t, "GOOG", filtered[1].Symbol, "equal UVS ties break by symbol")
	assert.Equal(t, "MSFT", filtered[2].Symbol)
}

func TestGrade_Bands(t *testing.T) {
	tests := []struct {
		uvs   float64
		grade string
	}{
		{100, "A+"}, {90, "A+"},
		{85, "A"}, {80, "A"},
		{75, "B+"}, {70, "B+"},
		{65, "B"}, {60, "B"},
		{55, "C+"}, {50, "C+"},
		{45, "C"}, {40, "C"},
		{35, "D"}, {30, "D"},
		{29.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, Grade(tt.uvs), "uvs=%.1f", tt.uvs)
	}
}
