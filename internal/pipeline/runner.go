package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/internal/eligibility"
	"github.com/wonny/uvscan/internal/fetcher"
	"github.com/wonny/uvscan/internal/scoring"
	"github.com/wonny/uvscan/internal/style"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
	"github.com/wonny/uvscan/pkg/metrics"
)

// Runner dispatches one fetch-then-score task per symbol over a
// bounded worker pool and assembles the batch result once every
// task reaches a terminal state.
// ⭐ SSOT: 배치 오케스트레이션은 이 패키지에서만
type Runner struct {
	fetcher    *fetcher.Fetcher
	calculator *scoring.Calculator
	classifier *style.Classifier
	filter     *eligibility.Filter
	pool       config.PoolConfig

	logger  *logger.Logger
	metrics *metrics.Recorder
}

// NewRunner wires the pipeline stages. Weight and threshold
// validation already happened in the stage constructors, so a Runner
// can only exist with a sane configuration.
func NewRunner(
	f *fetcher.Fetcher,
	calc *scoring.Calculator,
	classifier *style.Classifier,
	filter *eligibility.Filter,
	pool config.PoolConfig,
	m *metrics.Recorder,
	log *logger.Logger,
) *Runner {
	return &Runner{
		fetcher:    f,
		calculator: calc,
		classifier: classifier,
		filter:     filter,
		pool:       pool,
		logger:     log.WithField("module", "pipeline"),
		metrics:    m,
	}
}

// taskResult is the terminal state of one symbol's task
type taskResult struct {
	result  *contracts.AnalysisResult
	failure *contracts.FetchFailure
}

// Run executes one batch over the given symbols. Per-symbol failures
// never cancel sibling tasks; a cancelled context stops new dispatch
// and lets in-flight tasks finish their current step.
func (r *Runner) Run(ctx context.Context, symbols []string) (*contracts.BatchResult, error) {
	startedAt := time.Now()
	symbols = dedupe(symbols)

	batch := &contracts.BatchResult{
		StartedAt: startedAt,
		Requested: len(symbols),
	}
	if len(symbols) == 0 {
		batch.FinishedAt = time.Now()
		return batch, nil
	}

	workers := r.workerCount(len(symbols))
	r.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"workers": workers,
	}).Info("Starting batch run")

	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan taskResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, symbolCh, resultCh)
		}()
	}

	for _, symbol := range symbols {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	analyzed := make([]contracts.AnalysisResult, 0, len(symbols))
	for tr := range resultCh {
		if tr.failure != nil {
			batch.Failures = append(batch.Failures, *tr.failure)
			continue
		}
		analyzed = append(analyzed, *tr.result)
	}

	batch.Eligible = r.filter.FilterCandidates(analyzed)
	batch.Ineligible = ineligibleOf(analyzed)
	batch.FinishedAt = time.Now()

	if r.metrics != nil {
		r.metrics.RecordBatch(batch.FinishedAt.Sub(startedAt).Seconds(), len(batch.Eligible))
	}

	r.logger.WithFields(map[string]interface{}{
		"eligible":   len(batch.Eligible),
		"ineligible": len(batch.Ineligible),
		"failures":   len(batch.Failures),
		"duration":   batch.FinishedAt.Sub(startedAt),
	}).Info("Batch run completed")

	return batch, nil
}

// worker processes symbols until the feed closes. Cancellation is
// checked before starting each task, never forced mid-fetch.
func (r *Runner) worker(ctx context.Context, symbolCh <-chan string, resultCh chan<- taskResult) {
	for symbol := range symbolCh {
		if err := ctx.Err(); err != nil {
			resultCh <- taskResult{failure: &contracts.FetchFailure{
				Symbol:  symbol,
				Kind:    contracts.FetchCancelled,
				LastErr: err.Error(),
			}}
			continue
		}

		resultCh <- r.process(ctx, symbol)
	}
}

// process runs fetch-then-score for one symbol. Within a symbol the
// fetch always reaches a terminal state before scoring begins.
func (r *Runner) process(ctx context.Context, symbol string) taskResult {
	snap, err := r.fetcher.Fetch(ctx, symbol)
	if err != nil {
		var failure *contracts.FetchFailure
		if errors.As(err, &failure) {
			return taskResult{failure: failure}
		}
		return taskResult{failure: &contracts.FetchFailure{
			Symbol:  symbol,
			Kind:    contracts.FetchCancelled,
			LastErr: err.Error(),
		}}
	}

	result := r.analyze(snap)
	return taskResult{result: &result}
}

// analyze folds a snapshot through scoring, classification and the
// eligibility filter. Task-local by construction: no shared state.
func (r *Runner) analyze(snap *contracts.FinancialSnapshot) contracts.AnalysisResult {
	breakdown := r.calculator.Calculate(scoring.DeriveSubScores(snap))
	styleResult := r.classifier.Classify(style.MetricsFrom(snap))

	candidate := eligibility.Candidate{
		Symbol:              snap.Symbol,
		StyleScore:          style.Score(styleResult),
		ValuationPercentile: snap.SectorData.ValuationPercentile,
		MarginOfSafety:      snap.MarginOfSafety(),
		QualityScore:        breakdown.Quality,
		RiskScore:           100 - breakdown.Safety,
		Confidence:          snap.DataQuality * (0.5 + 0.5*styleResult.Confidence),
	}

	return contracts.AnalysisResult{
		Symbol:      snap.Symbol,
		Snapshot:    snap,
		Score:       breakdown,
		Style:       styleResult,
		Eligibility: r.filter.Evaluate(candidate),
	}
}

// workerCount computes W = max(1, min(symbolCount, max(minWorkers, softCap))).
// The soft cap follows available parallelism but a small batch never
// over-provisions workers, and a non-empty batch never gets zero.
func (r *Runner) workerCount(symbolCount int) int {
	softCap := runtime.NumCPU() * r.pool.CPUFactor
	if softCap > r.pool.MaxWorkers {
		softCap = r.pool.MaxWorkers
	}

	w := r.pool.MinWorkers
	if softCap > w {
		w = softCap
	}
	if w > symbolCount {
		w = symbolCount
	}
	if w < 1 {
		w = 1
	}
	return w
}

// dedupe drops empty and repeated symbols, preserving first-seen order
func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ineligibleOf returns the analyzed-but-excluded results, sorted by
// UVS score for stable output
func ineligibleOf(analyzed []contracts.AnalysisResult) []contracts.AnalysisResult {
	out := make([]contracts.AnalysisResult, 0)
	for _, r := range analyzed {
		if !r.Eligibility.Eligible {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Eligibility.UVSScore != out[j].Eligibility.UVSScore {
			return out[i].Eligibility.UVSScore > out[j].Eligibility.UVSScore
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
