package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/uvscan/internal/contracts"
)

// Repository persists batch runs for the reporting layer
// ⭐ SSOT: 배치 결과 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new results repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Schema creates the result tables when they do not exist
func (r *Repository) Schema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS batch_runs (
			id          BIGSERIAL PRIMARY KEY,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			requested   INT NOT NULL,
			eligible    INT NOT NULL,
			ineligible  INT NOT NULL,
			failures    INT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS analysis_results (
			run_id     BIGINT NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
			symbol     TEXT NOT NULL,
			eligible   BOOLEAN NOT NULL,
			uvs_score  DOUBLE PRECISION NOT NULL,
			uvs_grade  TEXT NOT NULL,
			total      DOUBLE PRECISION NOT NULL,
			grade      TEXT NOT NULL,
			style      TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			detail     JSONB NOT NULL,
			PRIMARY KEY (run_id, symbol)
		);
		CREATE TABLE IF NOT EXISTS batch_failures (
			run_id   BIGINT NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
			symbol   TEXT NOT NULL,
			kind     TEXT NOT NULL,
			attempts INT NOT NULL,
			last_err TEXT NOT NULL,
			PRIMARY KEY (run_id, symbol)
		);
	`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create results schema: %w", err)
	}
	return nil
}

// SaveBatch stores a full batch run and returns its id
func (r *Repository) SaveBatch(ctx context.Context, batch *contracts.BatchResult) (int64, error) {
	var runID int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO batch_runs (started_at, finished_at, requested, eligible, ineligible, failures)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		batch.StartedAt, batch.FinishedAt, batch.Requested,
		len(batch.Eligible), len(batch.Ineligible), len(batch.Failures),
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert batch run: %w", err)
	}

	rows := &pgx.Batch{}
	for _, result := range batch.Eligible {
		queueResult(rows, runID, result)
	}
	for _, result := range batch.Ineligible {
		queueResult(rows, runID, result)
	}
	for _, failure := range batch.Failures {
		rows.Queue(`
			INSERT INTO batch_failures (run_id, symbol, kind, attempts, last_err)
			VALUES ($1, $2, $3, $4, $5)`,
			runID, failure.Symbol, string(failure.Kind), failure.Attempts, failure.LastErr,
		)
	}

	br := r.pool.SendBatch(ctx, rows)
	defer br.Close()
	for i := 0; i < rows.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("insert batch row: %w", err)
		}
	}

	return runID, nil
}

func queueResult(rows *pgx.Batch, runID int64, result contracts.AnalysisResult) {
	detail, _ := json.Marshal(result)
	rows.Queue(`
		INSERT INTO analysis_results (run_id, symbol, eligible, uvs_score, uvs_grade, total, grade, style, confidence, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		runID, result.Symbol, result.Eligibility.Eligible,
		result.Eligibility.UVSScore, result.Eligibility.UVSGrade,
		result.Score.Total, result.Score.Grade,
		string(result.Style.Label), result.Style.Confidence, detail,
	)
}

// RunSummary is the condensed view of one stored batch run
type RunSummary struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Requested  int       `json:"requested"`
	Eligible   int       `json:"eligible"`
	Ineligible int       `json:"ineligible"`
	Failures   int       `json:"failures"`
}

// LatestRun returns the most recent batch run summary
func (r *Repository) LatestRun(ctx context.Context) (*RunSummary, error) {
	var s RunSummary
	err := r.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, requested, eligible, ineligible, failures
		FROM batch_runs
		ORDER BY id DESC
		LIMIT 1`,
	).Scan(&s.ID, &s.StartedAt, &s.FinishedAt, &s.Requested, &s.Eligible, &s.Ineligible, &s.Failures)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("no batch runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return &s, nil
}

// ResultsForRun returns the stored analysis rows for a run, eligible
// first, ordered by UVS score
func (r *Repository) ResultsForRun(ctx context.Context, runID int64) ([]contracts.AnalysisResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT detail
		FROM analysis_results
		WHERE run_id = $1
		ORDER BY eligible DESC, uvs_score DESC, symbol ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run results: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.AnalysisResult, 0)
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		var result contracts.AnalysisResult
		if err := json.Unmarshal(detail, &result); err != nil {
			return nil, fmt.Errorf("decode result row: %w", err)
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// HistoryForSymbol returns recent stored outcomes for one symbol
func (r *Repository) HistoryForSymbol(ctx context.Context, symbol string, limit int) ([]contracts.AnalysisResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT detail
		FROM analysis_results
		WHERE symbol = $1
		ORDER BY run_id DESC
		LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query symbol history: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.AnalysisResult, 0, limit)
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var result contracts.AnalysisResult
		if err := json.Unmarshal(detail, &result); err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}
		out = append(out, result)
	}
	return out, rows.Err()
}
