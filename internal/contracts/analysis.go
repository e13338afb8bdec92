package contracts

import "time"

// ScoreBreakdown contains every named sub-score plus the weighted total.
// Always returned in full for auditability, never just the scalar.
type ScoreBreakdown struct {
	Value    float64 `json:"value"`
	Quality  float64 `json:"quality"`
	Growth   float64 `json:"growth"`
	Safety   float64 `json:"safety"`
	Momentum float64 `json:"momentum"`

	Total float64 `json:"total"`
	Grade string  `json:"grade"`
}

// StyleLabel is one of the four investment style classifications
type StyleLabel string

const (
	StyleValueStock     StyleLabel = "value_stock"
	StyleGrowthValue    StyleLabel = "growth_value"
	StylePotentialValue StyleLabel = "potential_value"
	StyleNotValue       StyleLabel = "not_value"
)

// StyleResult is the classifier verdict for one symbol
type StyleResult struct {
	Label      StyleLabel `json:"label"`
	Confidence float64    `json:"confidence"` // 0.0 ~ 1.0
	Reasons    []string   `json:"reasons"`    // ordered pass/fail explanations
}

// CriterionCheck records one eligibility criterion outcome
type CriterionCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// EligibilityResult is the UVS filter verdict for one symbol
type EligibilityResult struct {
	Eligible bool             `json:"eligible"`
	Checks   []CriterionCheck `json:"checks"` // evaluation order preserved
	UVSScore float64          `json:"uvs_score"`
	UVSGrade string           `json:"uvs_grade"`
}

// AnalysisResult is the full per-symbol outcome of one batch run.
// Immutable after construction.
type AnalysisResult struct {
	Symbol      string             `json:"symbol"`
	Snapshot    *FinancialSnapshot `json:"snapshot,omitempty"`
	Score       ScoreBreakdown     `json:"score"`
	Style       StyleResult        `json:"style"`
	Eligibility EligibilityResult  `json:"eligibility"`
}

// BatchResult is the outcome of one pipeline invocation.
// Eligible is sorted descending by UVS score (symbol tiebreak);
// Failures carries every symbol that exhausted its retries.
type BatchResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Requested int `json:"requested"` // symbols dispatched

	Eligible   []AnalysisResult `json:"eligible"`
	Ineligible []AnalysisResult `json:"ineligible"` // analyzed but filtered out
	Failures   []FetchFailure   `json:"failures"`
}
