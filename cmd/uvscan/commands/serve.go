package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/uvscan/internal/api"
	"github.com/wonny/uvscan/internal/scheduler"
	"github.com/wonny/uvscan/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 스캔 트리거 및 결과 조회 엔드포인트 제공
- SCHEDULER_ENABLED=true 시 주기적 스캔 실행

Endpoints:
  GET  /health                      - Health check
  GET  /metrics                     - Prometheus metrics
  POST /api/v1/scan                 - 배치 스캔 트리거
  GET  /api/v1/batches/latest       - 최근 배치 조회
  GET  /api/v1/symbols/{symbol}     - 심볼별 최근 결과 조회
  GET  /api/v1/scheduler/jobs       - 스케줄 작업 상태 조회
  POST /api/v1/scheduler/jobs/{name}/run - 작업 수동 실행

Example:
  go run ./cmd/uvscan serve
  go run ./cmd/uvscan serve --port 8090`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default from PORT env)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== uvscan API server ===")

	ctx := cmd.Context()

	// 1. Wire the pipeline
	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if servePort != "" {
		s.cfg.Port = servePort
	}

	log := s.logger
	log.WithFields(map[string]interface{}{
		"port": s.cfg.Port,
		"env":  s.cfg.Env,
	}).Info("Initializing API server")

	// 2. Optional periodic scan
	var sched *scheduler.Scheduler
	if s.cfg.Scheduler.Enabled {
		sched = scheduler.New(log)

		job, err := jobs.NewScanJob(s.runner, s.repo, log, s.cfg.Scheduler.Symbols, s.cfg.Scheduler.CronSpec)
		if err != nil {
			return err
		}
		if err := sched.AddJob(job); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 3. Create handler and router
	handler := api.NewHandler(s.runner, s.repo, log)
	if sched != nil {
		handler = handler.WithScheduler(sched)
	}

	var metricsHandler http.Handler
	if s.cfg.MetricsEnabled {
		metricsHandler = s.metrics.Handler()
	}
	router := api.NewRouter(handler, metricsHandler, log)

	// 4. Create server
	server := api.New(s.cfg, log, router)

	// 5. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", s.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println("  POST /api/v1/scan")
	fmt.Println("  GET  /api/v1/batches/latest")
	fmt.Println("  GET  /api/v1/symbols/{symbol}")
	if sched != nil {
		fmt.Println("  GET  /api/v1/scheduler/jobs")
		fmt.Println("  POST /api/v1/scheduler/jobs/{name}/run")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
