package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uvscan",
	Short: "uvscan - 저평가 종목 스크리닝 파이프라인",
	Long: `uvscan Unified CLI

저평가 우량주 스크리닝 시스템.
수집 → 점수화 → 스타일 분류 → 적격성 필터 파이프라인.

Usage:
  go run ./cmd/uvscan [command]

Examples:
  go run ./cmd/uvscan scan AAPL MSFT GOOG
  go run ./cmd/uvscan scan --file symbols.txt
  go run ./cmd/uvscan serve
  go run ./cmd/uvscan cache stats`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
