package scoring

import (
	"github.com/wonny/uvscan/internal/contracts"
)

// DeriveSubScores normalizes raw snapshot metrics into the five named
// factor scores, each in [0, 100]. Deterministic: no randomness, no
// cross-symbol state.
func DeriveSubScores(snap *contracts.FinancialSnapshot) SubScores {
	return SubScores{
		Value:    valueScore(snap),
		Quality:  qualityScore(snap),
		Growth:   growthScore(snap),
		Safety:   safetyScore(snap),
		Momentum: momentumScore(snap),
	}
}

// valueScore rewards a low sector valuation percentile and a wide
// margin of safety
func valueScore(snap *contracts.FinancialSnapshot) float64 {
	cheapness := 1 - clamp01(snap.SectorData.ValuationPercentile)

	// 50% margin of safety saturates the component
	mos := clamp01(snap.MarginOfSafety() / 0.5)

	return 100 * (0.6*cheapness + 0.4*mos)
}

// qualityScore combines F-Score, sector-relative ROIC and accruals
func qualityScore(snap *contracts.FinancialSnapshot) float64 {
	fscore := clamp01(float64(snap.Financials.FScore) / 9.0)

	// z-score -3..+3 mapped onto 0..1
	roicZ := clamp01((snap.Financials.ROICZScore + 3) / 6)

	// Lower accruals mean earnings better backed by cash
	accrual := 1 - clamp01(snap.Financials.AccrualRatio)

	return 100 * (0.5*fscore + 0.3*roicZ + 0.2*accrual)
}

// growthScore saturates at 30% YoY for both EPS and revenue
func growthScore(snap *contracts.FinancialSnapshot) float64 {
	eps := clamp01(snap.Financials.EPSGrowth / 0.30)
	revenue := clamp01(snap.Financials.RevenueGrowth / 0.30)

	return 100 * (0.6*eps + 0.4*revenue)
}

// safetyScore rewards low leverage and steady earnings and prices
func safetyScore(snap *contracts.FinancialSnapshot) float64 {
	// 3x debt/equity zeroes the leverage component
	leverage := 1 - clamp01(snap.Financials.LeverageMultiple/3.0)

	// Earnings twice as volatile as the sector median zeroes this
	earningsVol := 1 - clamp01(snap.EarningsVolRatio()/2.0)

	// 60% annualized price volatility zeroes this
	priceVol := 1 - clamp01(snap.Price.Volatility/0.60)

	return 100 * (0.4*leverage + 0.3*earningsVol + 0.3*priceVol)
}

// momentumScore blends the 52-week position with medium-term returns
func momentumScore(snap *contracts.FinancialSnapshot) float64 {
	position := snap.Position52W()

	// -30%..+30% over 6 months mapped onto 0..1
	r6 := clamp01((snap.Price.Return6M + 0.30) / 0.60)
	r3 := clamp01((snap.Price.Return3M + 0.30) / 0.60)

	return 100 * (0.4*position + 0.35*r6 + 0.25*r3)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
