package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/uvscan/internal/cache"
	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/internal/eligibility"
	"github.com/wonny/uvscan/internal/fetcher"
	"github.com/wonny/uvscan/internal/pipeline"
	"github.com/wonny/uvscan/internal/ratelimit"
	"github.com/wonny/uvscan/internal/scheduler"
	"github.com/wonny/uvscan/internal/scoring"
	"github.com/wonny/uvscan/internal/style"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
)

type stubProvider struct{}

func (stubProvider) Fetch(ctx context.Context, symbol string) (*contracts.FinancialSnapshot, error) {
	if symbol == "MISSING" {
		return nil, contracts.NewFetchError(contracts.FetchNotFound, nil)
	}
	return &contracts.FinancialSnapshot{
		Symbol: symbol,
		Sector: "Tech",
		Financials: contracts.FinancialMetrics{
			FScore: 8, ROICZScore: 1.0, AccrualRatio: 0.2,
			EPSGrowth: 0.2, RevenueGrowth: 0.12,
			LeverageMultiple: 0.8, EarningsVolatility: 0.1,
		},
		Price: contracts.PriceMetrics{
			Last: 50, High52W: 100, Low52W: 45, IntrinsicValue: 90,
			Return3M: 0.05, Return6M: 0.08, Volatility: 0.25,
		},
		SectorData:  contracts.SectorMetrics{ValuationPercentile: 0.15, EarningsVolMedian: 0.2},
		FetchedAt:   time.Now(),
		DataQuality: 1.0,
	}, nil
}

type memStore struct{}

func (memStore) Get(ctx context.Context, key string) (*contracts.FinancialSnapshot, bool, error) {
	return nil, false, nil
}
func (memStore) Set(ctx context.Context, key string, snap *contracts.FinancialSnapshot, expireAt time.Time) error {
	return nil
}
func (memStore) Delete(ctx context.Context, key string) error { return nil }
func (memStore) Close() error                                 { return nil }

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	log := logger.NewNop()

	c := cache.New(64, memStore{}, nil, log)
	limiter := ratelimit.New(1000, 1000, nil, log)
	f, err := fetcher.New(c, limiter, stubProvider{}, config.RetryConfig{
		MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond,
	}, time.Minute, nil, log)
	require.NoError(t, err)

	calc, err := scoring.NewCalculator(config.WeightConfig{
		Value: 0.30, Quality: 0.25, Growth: 0.15, Safety: 0.20, Momentum: 0.10,
	})
	require.NoError(t, err)

	filter, err := eligibility.NewFilter(config.EligibilityConfig{
		MinStyleScore:          20,
		MaxValuationPercentile: 1.0,
		MaxRiskScore:           100,
	}, log)
	require.NoError(t, err)

	runner := pipeline.NewRunner(f, calc, style.NewClassifier(log), filter,
		config.PoolConfig{MinWorkers: 1, MaxWorkers: 4, CPUFactor: 1}, nil, log)

	return NewHandler(runner, nil, log)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(newTestHandler(t), nil, logger.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestScanEndpoint(t *testing.T) {
	srv := newTestServer(t)

	payload := bytes.NewBufferString(`{"symbols": ["AAPL", "MSFT", "MISSING"]}`)
	resp, err := http.Post(srv.URL+"/api/v1/scan", "application/json", payload)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var batch contracts.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Equal(t, 3, batch.Requested)
	assert.Len(t, batch.Eligible, 2)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "MISSING", batch.Failures[0].Symbol)
}

func TestScanEndpoint_EmptySymbols(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/scan", "application/json",
		bytes.NewBufferString(`{"symbols": []}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScanEndpoint_BadBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/scan", "application/json",
		bytes.NewBufferString(`{nope`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLatestBatch_EmptyBeforeAnyScan(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/batches/latest")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatestBatch_AfterScan(t *testing.T) {
	srv := newTestServer(t)

	_, err := http.Post(srv.URL+"/api/v1/scan", "application/json",
		bytes.NewBufferString(`{"symbols": ["AAPL"]}`))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/batches/latest")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var batch contracts.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Equal(t, 1, batch.Requested)
}

func TestSymbolEndpoint(t *testing.T) {
	srv := newTestServer(t)

	_, err := http.Post(srv.URL+"/api/v1/scan", "application/json",
		bytes.NewBufferString(`{"symbols": ["AAPL", "MSFT"]}`))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/symbols/AAPL")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result contracts.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "AAPL", result.Symbol)

	resp, err = http.Get(srv.URL + "/api/v1/symbols/UNSEEN")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type fakeJob struct {
	name     string
	schedule string
}

func (j *fakeJob) Name() string                  { return j.name }
func (j *fakeJob) Schedule() string              { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error { return nil }

func TestSchedulerEndpoints_DisabledScheduler(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/scheduler/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/scheduler/jobs/scan/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSchedulerEndpoints(t *testing.T) {
	log := logger.NewNop()
	sched := scheduler.New(log)
	require.NoError(t, sched.AddJob(&fakeJob{name: "scan", schedule: "@daily"}))

	handler := newTestHandler(t).WithScheduler(sched)
	srv := httptest.NewServer(NewRouter(handler, nil, log))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/scheduler/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "scan", body.Jobs[0].Name)
	assert.Equal(t, "@daily", body.Jobs[0].Schedule)

	resp, err = http.Post(srv.URL+"/api/v1/scheduler/jobs/scan/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/scheduler/jobs/missing/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
