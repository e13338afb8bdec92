// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/uvscan/internal/pipeline"
	"github.com/wonny/uvscan/internal/results"
	"github.com/wonny/uvscan/pkg/logger"
)

// ScanJob runs the screening pipeline over a fixed symbol list
type ScanJob struct {
	runner   *pipeline.Runner
	repo     *results.Repository // nil when persistence is disabled
	logger   *logger.Logger
	symbols  []string
	schedule string
}

// NewScanJob creates a scheduled scan over the given comma-separated symbols
func NewScanJob(runner *pipeline.Runner, repo *results.Repository, log *logger.Logger, symbolList, schedule string) (*ScanJob, error) {
	symbols := splitSymbols(symbolList)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("scheduled scan needs at least one symbol")
	}

	return &ScanJob{
		runner:   runner,
		repo:     repo,
		logger:   log.WithField("job", "scheduled_scan"),
		symbols:  symbols,
		schedule: schedule,
	}, nil
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "scheduled_scan"
}

// Schedule returns the cron expression
func (j *ScanJob) Schedule() string {
	return j.schedule
}

// Run executes one full scan and persists the batch when a repository is configured
func (j *ScanJob) Run(ctx context.Context) error {
	batch, err := j.runner.Run(ctx, j.symbols)
	if err != nil {
		return fmt.Errorf("scheduled scan failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"requested": batch.Requested,
		"eligible":  len(batch.Eligible),
		"failures":  len(batch.Failures),
	}).Info("Scheduled scan finished")

	if j.repo != nil {
		if _, err := j.repo.SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to persist scheduled batch: %w", err)
		}
	}

	return nil
}

func splitSymbols(list string) []string {
	parts := strings.Split(list, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
