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
	Use:   "prefilter",
	Short: "Longitudinal observation pre-filter",
	Long: `Pre-filter CLI

관측 테이블 (ID, t, var, value)을 5단계로 정제합니다.
  P1 모집단 → P2 시간 구간 → P3 변수 타입 → P4 중복 검사 → P5 커버리지

Usage:
  go run ./cmd/prefilter [command]

Examples:
  go run ./cmd/prefilter run --input obs.csv --population ids.csv
  go run ./cmd/prefilter run --dataset icu_48h
  go run ./cmd/prefilter api
  go run ./cmd/prefilter scheduler start
  go run ./cmd/prefilter db init`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug 로그 출력")
}
