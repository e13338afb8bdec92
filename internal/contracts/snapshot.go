package contracts

import "time"

// FinancialSnapshot represents all fetched data for a single symbol.
// Immutable once produced; owned by the cache until evicted.
// ⭐ SSOT: Fetcher → 파이프라인 데이터 전달
type FinancialSnapshot struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
	Sector string `json:"sector"`

	Financials FinancialMetrics `json:"financials"`
	Price      PriceMetrics     `json:"price"`
	SectorData SectorMetrics    `json:"sector_data"`

	FetchedAt   time.Time `json:"fetched_at"`
	DataQuality float64   `json:"data_quality"` // 0.0 ~ 1.0 coverage score
}

// FinancialMetrics contains fundamental accounting metrics
type FinancialMetrics struct {
	PER  float64 `json:"per"`
	PBR  float64 `json:"pbr"`
	ROIC float64 `json:"roic"` // fraction, e.g. 0.12 = 12%

	ROICZScore float64 `json:"roic_z_score"` // vs sector peers
	FScore     int     `json:"f_score"`      // 0 ~ 9 accounting quality composite

	AccrualRatio       float64 `json:"accrual_ratio"` // higher = earnings less backed by cash
	EPSGrowth          float64 `json:"eps_growth"`    // YoY fraction
	RevenueGrowth      float64 `json:"revenue_growth"`
	LeverageMultiple   float64 `json:"leverage_multiple"` // total debt / equity
	EarningsVolatility float64 `json:"earnings_volatility"`
}

// PriceMetrics contains market price derived metrics
type PriceMetrics struct {
	Last           float64 `json:"last"`
	High52W        float64 `json:"high_52w"`
	Low52W         float64 `json:"low_52w"`
	IntrinsicValue float64 `json:"intrinsic_value"` // provider-estimated fair value

	Return1M   float64 `json:"return_1m"`
	Return3M   float64 `json:"return_3m"`
	Return6M   float64 `json:"return_6m"`
	Volatility float64 `json:"volatility"` // annualized
}

// SectorMetrics contains sector-relative context for the symbol
type SectorMetrics struct {
	// Valuation percentile within sector, 0.0 (cheapest) ~ 1.0 (richest)
	ValuationPercentile float64 `json:"valuation_percentile"`

	// Sector median earnings volatility (denominator for the vol ratio)
	EarningsVolMedian float64 `json:"earnings_vol_median"`
}

// MarginOfSafety returns the fractional discount to estimated intrinsic value.
// Positive means the market price is below intrinsic value.
func (s *FinancialSnapshot) MarginOfSafety() float64 {
	if s.Price.IntrinsicValue <= 0 {
		return 0
	}
	return (s.Price.IntrinsicValue - s.Price.Last) / s.Price.IntrinsicValue
}

// Position52W returns where the last price sits in the 52-week range,
// 0.0 (at the low) ~ 1.0 (at the high).
func (s *FinancialSnapshot) Position52W() float64 {
	span := s.Price.High52W - s.Price.Low52W
	if span <= 0 {
		return 0.5
	}
	pos := (s.Price.Last - s.Price.Low52W) / span
	if pos < 0 {
		return 0
	}
	if pos > 1 {
		return 1
	}
	return pos
}

// EarningsVolRatio returns earnings volatility relative to the sector median.
// A ratio below 1.0 means steadier earnings than the typical peer.
func (s *FinancialSnapshot) EarningsVolRatio() float64 {
	if s.SectorData.EarningsVolMedian <= 0 {
		return 1.0
	}
	return s.Financials.EarningsVolatility / s.SectorData.EarningsVolMedian
}
