package scoring

import (
	"fmt"
	"math"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/config"
)

// weightTolerance allows for floating point error in the weight sum
const weightTolerance = 0.001

// SubScores holds the five named factor scores, each in [0, 100]
type SubScores struct {
	Value    float64
	Quality  float64
	Growth   float64
	Safety   float64
	Momentum float64
}

// Calculator computes the weighted total score and grade.
// Pure and deterministic: same inputs, same breakdown.
// ⭐ SSOT: 총점 계산은 여기서만
type Calculator struct {
	weights config.WeightConfig
}

// NewCalculator validates the weights and returns a calculator.
// A weight sum away from 1.0 is a configuration error. It is never
// silently renormalized.
func NewCalculator(weights config.WeightConfig) (*Calculator, error) {
	if sum := weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return nil, &contracts.ConfigError{
			Field:  "weights",
			Reason: fmt.Sprintf("must sum to 1.0, got %.4f", sum),
		}
	}
	return &Calculator{weights: weights}, nil
}

// Calculate returns the full breakdown: every sub-score, the weighted
// total and the grade. Never just the scalar total.
func (c *Calculator) Calculate(sub SubScores) contracts.ScoreBreakdown {
	total := sub.Value*c.weights.Value +
		sub.Quality*c.weights.Quality +
		sub.Growth*c.weights.Growth +
		sub.Safety*c.weights.Safety +
		sub.Momentum*c.weights.Momentum

	return contracts.ScoreBreakdown{
		Value:    sub.Value,
		Quality:  sub.Quality,
		Growth:   sub.Growth,
		Safety:   sub.Safety,
		Momentum: sub.Momentum,
		Total:    total,
		Grade:    GradeFor(total),
	}
}

// GradeFor maps a total score onto the fixed ordinal grade cutoffs
func GradeFor(total float64) string {
	switch {
	case total >= 90:
		return "A+"
	case total >= 80:
		return "A"
	case total >= 70:
		return "B+"
	case total >= 60:
		return "B"
	case total >= 50:
		return "C+"
	case total >= 40:
		return "C"
	case total >= 30:
		return "D"
	default:
		return "F"
	}
}
