package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/prefilter/backend/internal/dataset"
	"github.com/wonny/prefilter/backend/internal/filterconfig"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/internal/runner"
	"github.com/wonny/prefilter/backend/pkg/config"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "전처리 필터 실행",
	Long: `관측 테이블에 P1~P5 필터를 적용합니다.

두 가지 모드:
- 파일 모드 (--input): CSV 파일을 읽어 결과를 CSV/JSON으로 출력 (DB 불필요)
- 데이터셋 모드 (--dataset): DB에 저장된 데이터셋을 필터링하고 실행 결과 저장

파라미터 우선순위: 플래그 > 필터 설정 파일 (PREFILTER_CONFIG)

Example:
  go run ./cmd/prefilter run --input obs.csv --population ids.csv --threshold 0.5 --max-t 48
  go run ./cmd/prefilter run --input obs.csv --population ids.csv --output out.json
  go run ./cmd/prefilter run --dataset icu_48h
  go run ./cmd/prefilter run --dry-run`,
	RunE: runPrefilter,
}

var (
	runInput      string
	runPopulation string
	runOutput     string
	runDataset    string
	runFilterFile string
	runThreshold  float64
	runMaxT       float64
	runVarTypes   []string
	runDryRun     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInput, "input", "", "관측 CSV (ID,t,var,value)")
	runCmd.Flags().StringVar(&runPopulation, "population", "", "모집단 CSV (첫 컬럼 = ID)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "출력 파일 (.csv|.json, 기본 stdout CSV)")
	runCmd.Flags().StringVar(&runDataset, "dataset", "", "DB 데이터셋 ID (기본: 설정 파일 meta.dataset_id)")
	runCmd.Flags().StringVar(&runFilterFile, "filter-config", "", "필터 설정 YAML (기본: PREFILTER_CONFIG)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "커버리지 임계값 (coverage > threshold)")
	runCmd.Flags().Float64Var(&runMaxT, "max-t", 0, "시간 상한 (exclusive)")
	runCmd.Flags().StringSliceVar(&runVarTypes, "var-type", nil, "변수 타입 오버라이드 var=label (반복 가능)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "데이터셋 모드: 결과 저장 생략")
}

func runPrefilter(cmd *cobra.Command, args []string) error {
	if runInput != "" {
		return runFileMode(cmd)
	}
	return runDatasetMode(cmd)
}

// resolveFilter merges the optional YAML file with command-line flags
func resolveFilter(cmd *cobra.Command, path string) (prefilter.Config, *filterconfig.Config, string, error) {
	var (
		fc   *filterconfig.Config
		hash string
		cfg  prefilter.Config
	)

	if path != "" {
		loaded, _, err := filterconfig.Load(path)
		switch {
		case err == nil:
			fc = loaded
			cfg = loaded.ToFilterConfig()
			if hash, err = filterconfig.Hash(loaded); err != nil {
				return cfg, nil, "", err
			}
		case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("filter-config"):
			// 기본 경로에 파일이 없으면 플래그만 사용
		default:
			return cfg, nil, "", fmt.Errorf("load filter config: %w", err)
		}
	}

	overridden := false
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold = runThreshold
		overridden = true
	}
	if cmd.Flags().Changed("max-t") {
		cfg.MaxT = runMaxT
		overridden = true
	}
	if len(runVarTypes) > 0 {
		if cfg.VarTypes == nil {
			cfg.VarTypes = make(map[string]string)
		}
		for _, kv := range runVarTypes {
			name, label, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return cfg, nil, "", fmt.Errorf("invalid --var-type %q (want var=label)", kv)
			}
			cfg.VarTypes[name] = label
		}
		overridden = true
	}
	if overridden {
		hash = ""
	}

	return cfg, fc, hash, nil
}

// runFileMode filters CSV files without touching the database
func runFileMode(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		// 파일 모드는 DB 설정 없이 동작
		cfg = &config.Config{
			LogLevel:  "info",
			LogFormat: "console",
			Filter:    config.FilterConfig{ConfigPath: os.Getenv("PREFILTER_CONFIG")},
		}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	// stdout은 CSV 출력용
	log := logger.NewWithWriter(cfg, os.Stderr)

	path := runFilterFile
	if path == "" {
		path = cfg.Filter.ConfigPath
	}
	filterCfg, fc, _, err := resolveFilter(cmd, path)
	if err != nil {
		return err
	}
	if fc != nil {
		for _, w := range filterconfig.Warn(fc) {
			log.WithField("code", w.Code).Warn(w.Message)
		}
	}

	table, err := readCSV(runInput, dataset.ReadObservationsCSV)
	if err != nil {
		return fmt.Errorf("read observations: %w", err)
	}
	if runPopulation == "" {
		return errors.New("--population is required with --input")
	}
	population, err := readCSV(runPopulation, dataset.ReadPopulationCSV)
	if err != nil {
		return fmt.Errorf("read population: %w", err)
	}

	result, err := prefilter.NewFilter(filterCfg, log).Run(table, population)
	if err != nil {
		return err
	}

	if runOutput == "" {
		return dataset.WriteObservationsCSV(os.Stdout, result.Table)
	}

	f, err := os.Create(runOutput)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(runOutput), ".json") {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	} else {
		err = dataset.WriteObservationsCSV(f, result.Table)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	PrintStages(result.Stages)
	PrintCoverage(result.Coverage, 20)
	fmt.Printf("\n✅ %d rows written to %s\n", len(result.Table), runOutput)
	return nil
}

// runDatasetMode filters a stored dataset through the runner
func runDatasetMode(cmd *cobra.Command) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	path := runFilterFile
	if path == "" {
		path = a.cfg.Filter.ConfigPath
	}
	filterCfg, fc, hash, err := resolveFilter(cmd, path)
	if err != nil {
		return err
	}

	datasetID := runDataset
	if datasetID == "" && fc != nil {
		datasetID = fc.Meta.DatasetID
	}
	if datasetID == "" {
		return errors.New("--dataset is required when no filter config is available")
	}
	if fc != nil && fc.Meta.DatasetID != datasetID {
		hash = "" // 다른 데이터셋에 설정 적용
	}

	out, runErr := a.runner.Run(context.Background(), runner.Options{
		DatasetID:  datasetID,
		Filter:     filterCfg,
		ConfigHash: hash,
		DryRun:     runDryRun,
	})
	if out != nil {
		PrintReport(out.Report)
	}
	return runErr
}

func readCSV[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return parse(f)
}
