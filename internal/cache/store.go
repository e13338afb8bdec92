package cache

import (
	"context"
	"time"

	"github.com/wonny/uvscan/internal/contracts"
)

// Store is the persistent cache tier. It survives process restarts
// and is always larger than the fast tier.
//
// Implementations treat unreadable or corrupt entries as a miss and
// purge them; corruption is never surfaced as a fatal error.
type Store interface {
	// Get returns the stored snapshot, or found=false when the key is
	// absent, expired or unreadable.
	Get(ctx context.Context, key string) (snap *contracts.FinancialSnapshot, found bool, err error)

	// Set writes the snapshot with an absolute expiry timestamp.
	Set(ctx context.Context, key string, snap *contracts.FinancialSnapshot, expireAt time.Time) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
