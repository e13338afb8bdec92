package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/logger"
)

// SQLiteStore is the disk-backed persistent tier. Entries survive
// process restarts; the format (JSON payload + unix expiry) is
// opaque to callers.
type SQLiteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteStore opens (or creates) the cache database at path
func NewSQLiteStore(path string, log *logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS snapshots (
		key       TEXT PRIMARY KEY,
		payload   BLOB NOT NULL,
		expire_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: log}, nil
}

// Get reads a snapshot. Expired rows are deleted and reported as
// a miss; corrupt payloads are purged the same way, never fatal.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*contracts.FinancialSnapshot, bool, error) {
	var payload []byte
	var expireAt int64

	row := s.db.QueryRowContext(ctx, "SELECT payload, expire_at FROM snapshots WHERE key = ?", key)
	if err := row.Scan(&payload, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache row: %w", err)
	}

	if time.Now().Unix() >= expireAt {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}

	var snap contracts.FinancialSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		// Corrupt entry: purge and treat as miss
		s.logger.WithError(err).WithField("key", key).Warn("Purging corrupt cache entry")
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return &snap, true, nil
}

// Set writes a snapshot with an absolute expiry
func (s *SQLiteStore) Set(ctx context.Context, key string, snap *contracts.FinancialSnapshot, expireAt time.Time) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (key, payload, expire_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expire_at = excluded.expire_at",
		key, payload, expireAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cache row: %w", err)
	}
	return nil
}

// Delete removes a key
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE key = ?", key)
	return err
}

// Stats reports total and already-expired row counts
func (s *SQLiteStore) Stats(ctx context.Context) (total, expired int, err error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN expire_at <= ? THEN 1 ELSE 0 END), 0) FROM snapshots",
		time.Now().Unix(),
	)
	if err := row.Scan(&total, &expired); err != nil {
		return 0, 0, fmt.Errorf("read cache stats: %w", err)
	}
	return total, expired, nil
}

// Purge removes every row and reports how many were deleted
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots")
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
