package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/uvscan/internal/cache"
	"github.com/wonny/uvscan/pkg/config"
	"github.com/wonny/uvscan/pkg/logger"
)

// cacheCmd groups snapshot-cache maintenance commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "스냅샷 캐시 관리",
	Long: `영속 캐시 계층(SQLite 또는 Redis)을 점검/정리합니다.

Example:
  go run ./cmd/uvscan cache stats
  go run ./cmd/uvscan cache purge`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "캐시 항목 수 조회",
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "캐시 전체 삭제",
	RunE:  runCachePurge,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

// maintainableStore is what the persistent tiers expose beyond the
// plain Store read/write surface
type maintainableStore interface {
	cache.Store
	Stats(ctx context.Context) (total, expired int, err error)
	Purge(ctx context.Context) (int, error)
}

func openStore() (maintainableStore, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if cfg.Redis.Enabled {
		store, err := cache.NewRedisStore(cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, cfg, nil
	}

	store, err := cache.NewSQLiteStore(cfg.Cache.DiskPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	return store, cfg, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	total, expired, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	tier := "sqlite (" + cfg.Cache.DiskPath + ")"
	if cfg.Redis.Enabled {
		tier = "redis"
	}

	fmt.Println("=== Snapshot cache ===")
	fmt.Printf("Tier:    %s\n", tier)
	fmt.Printf("Entries: %d\n", total)
	fmt.Printf("Expired: %d\n", expired)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.Purge(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("✅ Purged %d cache entries\n", deleted)
	return nil
}
