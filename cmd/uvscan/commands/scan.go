package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/uvscan/internal/contracts"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [symbols...]",
	Short: "단일 배치 스캔 실행",
	Long: `심볼 목록에 대해 스크리닝 파이프라인을 1회 실행합니다.

이 명령어는:
- 스냅샷 수집 (캐시 + 재시도)
- 점수 계산 및 스타일 분류
- 적격성 필터링 및 UVS 랭킹

Example:
  go run ./cmd/uvscan scan AAPL MSFT GOOG
  go run ./cmd/uvscan scan --file symbols.txt`,
	RunE: runScan,
}

var scanFile string

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanFile, "file", "", "newline-separated symbol list file")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Println("=== uvscan batch scan ===")

	symbols := args
	if scanFile != "" {
		fileSymbols, err := readSymbolFile(scanFile)
		if err != nil {
			return err
		}
		symbols = append(symbols, fileSymbols...)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given: pass them as arguments or via --file")
	}

	ctx := cmd.Context()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	batch, err := s.runner.Run(ctx, symbols)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if s.repo != nil {
		runID, err := s.repo.SaveBatch(ctx, batch)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to persist batch")
		} else {
			fmt.Printf("\nBatch saved as run %d\n", runID)
		}
	}

	printBatch(batch)
	return nil
}

func printBatch(batch *contracts.BatchResult) {
	fmt.Printf("\nRequested: %d  Eligible: %d  Ineligible: %d  Failures: %d\n",
		batch.Requested, len(batch.Eligible), len(batch.Ineligible), len(batch.Failures))
	fmt.Printf("Duration: %s\n", batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond))

	if len(batch.Eligible) > 0 {
		fmt.Println("\n--- Eligible (by UVS) ---")
		fmt.Printf("%-10s %8s %6s %8s %-16s\n", "SYMBOL", "UVS", "GRADE", "SCORE", "STYLE")
		for _, r := range batch.Eligible {
			fmt.Printf("%-10s %8.2f %6s %8.2f %-16s\n",
				r.Symbol,
				r.Eligibility.UVSScore,
				r.Eligibility.UVSGrade,
				r.Score.Total,
				r.Style.Label)
		}
	}

	if len(batch.Failures) > 0 {
		fmt.Println("\n--- Failures ---")
		for _, f := range batch.Failures {
			fmt.Printf("%-10s %-14s attempts=%d  %v\n", f.Symbol, f.Kind, f.Attempts, f.LastErr)
		}
	}
}

func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol file: %w", err)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read symbol file: %w", err)
	}
	return symbols, nil
}
