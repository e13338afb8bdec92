package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/uvscan/pkg/httputil"
	"github.com/wonny/uvscan/pkg/logger"
)

// SectorScraper backfills the sector earnings-volatility median from
// the provider's HTML peers page when the JSON payload omits it.
type SectorScraper struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewSectorScraper creates a scraper rooted at baseURL
func NewSectorScraper(baseURL string, httpClient *httputil.Client, log *logger.Logger) *SectorScraper {
	return &SectorScraper{
		httpClient: httpClient,
		logger:     log.WithField("module", "sector_scraper"),
		baseURL:    baseURL,
	}
}

// FetchSectorVolMedian scrapes the peers table and returns the median
// earnings volatility across the sector
func (s *SectorScraper) FetchSectorVolMedian(ctx context.Context, sector string) (float64, error) {
	pageURL := fmt.Sprintf("%s/sector/%s/peers", s.baseURL, url.PathEscape(sector))

	resp, err := s.httpClient.Get(ctx, pageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch peers page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse peers page: %w", err)
	}

	// Peers table rows: <td class="symbol">, <td class="earnings-vol">
	values := make([]float64, 0, 32)
	doc.Find("table.peers tbody tr").Each(func(_ int, row *goquery.Selection) {
		cell := strings.TrimSpace(row.Find("td.earnings-vol").Text())
		if cell == "" {
			return
		}
		cell = strings.TrimSuffix(cell, "%")
		v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
		if err != nil || v <= 0 {
			return
		}
		values = append(values, v)
	})

	if len(values) == 0 {
		return 0, fmt.Errorf("no peer volatility values for sector %s", sector)
	}

	sort.Float64s(values)
	mid := len(values) / 2
	median := values[mid]
	if len(values)%2 == 0 {
		median = (values[mid-1] + values[mid]) / 2
	}

	s.logger.WithFields(map[string]interface{}{
		"sector": sector,
		"peers":  len(values),
		"median": median,
	}).Debug("Scraped sector volatility median")

	return median, nil
}
