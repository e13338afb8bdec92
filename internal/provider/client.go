package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/httputil"
	"github.com/wonny/uvscan/pkg/logger"
)

// RESTClient fetches per-symbol fundamentals from the data provider's
// JSON API and maps every outcome onto the typed error taxonomy.
// ⭐ SSOT: 데이터 프로바이더 호출은 이 클라이언트에서만
type RESTClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	scraper    *SectorScraper // optional sector median fallback
}

// NewRESTClient creates a provider client from config
func NewRESTClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *RESTClient {
	c := &RESTClient{
		httpClient: httpClient,
		logger:     log.WithField("module", "provider"),
		baseURL:    cfg.Provider.BaseURL,
		apiKey:     cfg.Provider.APIKey,
	}
	if cfg.Provider.ScrapeBaseURL != "" {
		c.scraper = NewSectorScraper(cfg.Provider.ScrapeBaseURL, httpClient, log)
	}
	return c
}

// fundamentalsPayload is the provider's wire format
type fundamentalsPayload struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`

	PER                float64 `json:"per"`
	PBR                float64 `json:"pbr"`
	ROIC               float64 `json:"roic"`
	ROICZScore         float64 `json:"roic_z_score"`
	FScore             int     `json:"f_score"`
	AccrualRatio       float64 `json:"accrual_ratio"`
	EPSGrowth          float64 `json:"eps_growth"`
	RevenueGrowth      float64 `json:"revenue_growth"`
	LeverageMultiple   float64 `json:"leverage_multiple"`
	EarningsVolatility float64 `json:"earnings_volatility"`

	Last           float64 `json:"last"`
	High52W        float64 `json:"high_52w"`
	Low52W         float64 `json:"low_52w"`
	IntrinsicValue float64 `json:"intrinsic_value"`
	Return1M       float64 `json:"return_1m"`
	Return3M       float64 `json:"return_3m"`
	Return6M       float64 `json:"return_6m"`
	Volatility     float64 `json:"volatility"`

	ValuationPercentile float64 `json:"valuation_percentile"`
	SectorVolMedian     float64 `json:"sector_vol_median"`
}

// Fetch retrieves fundamentals for one symbol.
// Outcomes: 404 → not_found, 429 → rate_limited, 5xx → server_error,
// deadline/transport → timeout/server_error, bad JSON → malformed.
func (c *RESTClient) Fetch(ctx context.Context, symbol string) (*contracts.FinancialSnapshot, error) {
	url := fmt.Sprintf("%s/fundamentals/%s", c.baseURL, symbol)

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Get(ctx, url, header)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, contracts.NewFetchError(contracts.FetchNotFound, fmt.Errorf("unknown symbol %s", symbol))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, contracts.NewFetchError(contracts.FetchRateLimited, fmt.Errorf("provider rate limit exceeded"))
	case resp.StatusCode >= 500:
		return nil, contracts.NewFetchError(contracts.FetchServerError, fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, contracts.NewFetchError(contracts.FetchMalformed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload fundamentalsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, contracts.NewFetchError(contracts.FetchMalformed, fmt.Errorf("decode payload: %w", err))
	}

	snap, err := c.toSnapshot(ctx, symbol, &payload)
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// toSnapshot validates the payload and builds an immutable snapshot
func (c *RESTClient) toSnapshot(ctx context.Context, symbol string, p *fundamentalsPayload) (*contracts.FinancialSnapshot, error) {
	if p.Symbol == "" || p.Symbol != symbol {
		return nil, contracts.NewFetchError(contracts.FetchMalformed, fmt.Errorf("payload symbol %q does not match %q", p.Symbol, symbol))
	}
	if p.Last <= 0 {
		return nil, contracts.NewFetchError(contracts.FetchMalformed, fmt.Errorf("non-positive last price %.2f", p.Last))
	}

	sectorVolMedian := p.SectorVolMedian
	if sectorVolMedian <= 0 && c.scraper != nil && p.Sector != "" {
		// Provider omitted the sector median; best-effort scrape fallback
		if median, err := c.scraper.FetchSectorVolMedian(ctx, p.Sector); err != nil {
			c.logger.WithError(err).WithField("sector", p.Sector).Warn("Sector median fallback failed")
		} else {
			sectorVolMedian = median
		}
	}

	snap := &contracts.FinancialSnapshot{
		Symbol: symbol,
		Name:   p.Name,
		Sector: p.Sector,
		Financials: contracts.FinancialMetrics{
			PER:                p.PER,
			PBR:                p.PBR,
			ROIC:               p.ROIC,
			ROICZScore:         p.ROICZScore,
			FScore:             p.FScore,
			AccrualRatio:       p.AccrualRatio,
			EPSGrowth:          p.EPSGrowth,
			RevenueGrowth:      p.RevenueGrowth,
			LeverageMultiple:   p.LeverageMultiple,
			EarningsVolatility: p.EarningsVolatility,
		},
		Price: contracts.PriceMetrics{
			Last:           p.Last,
			High52W:        p.High52W,
			Low52W:         p.Low52W,
			IntrinsicValue: p.IntrinsicValue,
			Return1M:       p.Return1M,
			Return3M:       p.Return3M,
			Return6M:       p.Return6M,
			Volatility:     p.Volatility,
		},
		SectorData: contracts.SectorMetrics{
			ValuationPercentile: p.ValuationPercentile,
			EarningsVolMedian:   sectorVolMedian,
		},
		FetchedAt: time.Now(),
	}
	snap.DataQuality = dataQuality(p, sectorVolMedian)

	return snap, nil
}

// dataQuality scores field coverage 0.0 ~ 1.0
func dataQuality(p *fundamentalsPayload, sectorVolMedian float64) float64 {
	checks := []bool{
		p.PER != 0,
		p.PBR != 0,
		p.ROIC != 0,
		p.FScore > 0,
		p.IntrinsicValue > 0,
		p.High52W > p.Low52W,
		p.EarningsVolatility > 0,
		sectorVolMedian > 0,
	}

	present := 0
	for _, ok := range checks {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(checks))
}

// classifyTransportError maps transport failures to the taxonomy
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.NewFetchError(contracts.FetchTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if httputil.IsBreakerOpen(err) {
		return contracts.NewFetchError(contracts.FetchServerError, err)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return contracts.NewFetchError(contracts.FetchTimeout, err)
	}

	// Connection refused and friends: treat as a transient server fault
	return contracts.NewFetchError(contracts.FetchServerError, err)
}
