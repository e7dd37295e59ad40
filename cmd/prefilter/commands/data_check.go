package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/prefilter/backend/internal/filterconfig"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/internal/runner"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "데이터셋 상태 확인",
	Long: `저장된 데이터셋의 입력 상태를 필터 실행 전에 확인합니다.

확인 항목:
- 관측 행 수 / 모집단 크기
- 변수별 관측 대상자 수와 커버리지
- 변수 타입 지정 여부 (수치형 값이 아닌데 타입이 없는 변수)
- 수치형 변수 중복 (P4에서 실패할 행)

Example:
  go run ./cmd/prefilter data-check
  go run ./cmd/prefilter data-check --dataset icu_48h`,
	RunE: runDataCheck,
}

var dataCheckDataset string

func init() {
	rootCmd.AddCommand(dataCheckCmd)

	dataCheckCmd.Flags().StringVar(&dataCheckDataset, "dataset", "", "데이터셋 ID (기본: 설정 파일 meta.dataset_id)")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	datasetID := dataCheckDataset
	if datasetID == "" {
		datasetID = datasetFromConfig(a)
	}
	if datasetID == "" {
		return fmt.Errorf("--dataset is required when no filter config is available")
	}

	ctx := context.Background()

	summary, err := a.runner.Variables(ctx, datasetID)
	if err != nil {
		return err
	}

	PrintHeader("Data check", [][2]string{
		{"Dataset", datasetID},
		{"Subjects", fmt.Sprintf("%d", summary.TotalIDs)},
		{"Variables", fmt.Sprintf("%d", len(summary.Variables))},
	}...)

	fmt.Println()
	fmt.Printf("  %-30s %8s %8s %8s  %s\n", "VARIABLE", "ROWS", "IDS", "COVER", "TYPE")
	fmt.Println(ruleLight)

	untyped := make([]string, 0)
	for _, v := range summary.Variables {
		kind := "numeric"
		if v.Categorical {
			kind = "categorical"
		}
		if _, ok := summary.VarTypes[v.Name]; !ok && !v.Numeric {
			kind += " ⚠️"
			untyped = append(untyped, v.Name)
		}
		fmt.Printf("  %-30s %8d %8d %7.1f%%  %s\n", v.Name, v.Rows, v.Subjects, v.Coverage*100, kind)
	}

	if len(untyped) > 0 {
		fmt.Printf("\n⚠️  %d variable(s) hold non-numeric values but have no type: %s\n",
			len(untyped), strings.Join(untyped, ", "))
		fmt.Println("   P4 will treat them as numeric and fail on repeated (ID, t, var).")
	}

	// P4 사전 점검 (저장 없이 dry-run)
	fc, _, err := filterconfig.Load(a.cfg.Filter.ConfigPath)
	if err != nil {
		fc = nil
	}

	if _, err := a.runner.Run(ctx, consistencyCheckOptions(datasetID, fc)); err != nil {
		if errors.Is(err, prefilter.ErrInconsistentData) {
			fmt.Printf("\n❌ %v\n", err)
			return nil
		}
		return err
	}
	fmt.Println("\n✅ No inconsistent numeric values")
	return nil
}

// consistencyCheckOptions builds a dry run that reaches P4. Without a filter
// config the time window is unbounded so duplicates at any t are found.
func consistencyCheckOptions(datasetID string, fc *filterconfig.Config) runner.Options {
	opts := runner.Options{DatasetID: datasetID, DryRun: true}
	if fc != nil {
		opts.Filter = fc.ToFilterConfig()
		return opts
	}
	opts.Filter = prefilter.Config{Threshold: -1, MaxT: math.Inf(1)}
	return opts
}

// datasetFromConfig returns meta.dataset_id of the configured filter file, or ""
func datasetFromConfig(a *app) string {
	fc, _, err := filterconfig.Load(a.cfg.Filter.ConfigPath)
	if err != nil {
		return ""
	}
	return fc.Meta.DatasetID
}
