package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/prefilter/backend/internal/api/handlers"
	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/internal/runner"
	"github.com/wonny/prefilter/backend/pkg/config"
	"github.com/wonny/prefilter/backend/pkg/httputil"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

// remoteCmd represents the remote command
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "실행 중인 API 서버 호출",
	Long: `DB 접속 없이 실행 중인 API 서버에 요청합니다.

Subcommands:
  run        - 저장된 데이터셋 필터링 요청
  latest     - 최근 실행 결과 조회
  variables  - 변수별 관측 현황 조회

Example:
  go run ./cmd/prefilter remote run --dataset icu_48h --server http://localhost:8080
  go run ./cmd/prefilter remote latest --dataset icu_48h`,
}

var (
	remoteRunCmd = &cobra.Command{
		Use:   "run",
		Short: "데이터셋 필터링 요청",
		RunE:  runRemoteRun,
	}

	remoteLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "최근 실행 결과 조회",
		RunE:  runRemoteLatest,
	}

	remoteVariablesCmd = &cobra.Command{
		Use:   "variables",
		Short: "변수별 관측 현황 조회",
		RunE:  runRemoteVariables,
	}
)

var (
	remoteServer  string
	remoteDataset string
	remoteDryRun  bool
	remoteTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.AddCommand(remoteRunCmd)
	remoteCmd.AddCommand(remoteLatestCmd)
	remoteCmd.AddCommand(remoteVariablesCmd)

	defaultServer := os.Getenv("PREFILTER_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	remoteCmd.PersistentFlags().StringVar(&remoteServer, "server", defaultServer, "API 서버 주소 (PREFILTER_SERVER_URL)")
	remoteCmd.PersistentFlags().StringVar(&remoteDataset, "dataset", "", "데이터셋 ID")
	remoteCmd.PersistentFlags().DurationVar(&remoteTimeout, "timeout", 10*time.Minute, "요청 타임아웃")
	_ = remoteCmd.MarkPersistentFlagRequired("dataset")

	remoteRunCmd.Flags().BoolVar(&remoteDryRun, "dry-run", false, "결과를 저장하지 않음")
}

func newRemoteClient() *httputil.Client {
	log := logger.Nop()
	if verbose {
		log = logger.NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "console"}, os.Stderr)
	}
	// 서버 측 rate limit (분당 30회)보다 느리게
	return httputil.NewWithTimeout(log, remoteTimeout).
		WithRetry(3, time.Second).
		WithRateLimit(0.5, 1)
}

// datasetURL builds {server}/api/datasets/{id}/{suffix}
func datasetURL(suffix string) string {
	return strings.TrimRight(remoteServer, "/") + "/api/datasets/" + url.PathEscape(remoteDataset) + "/" + suffix
}

func runRemoteRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
	defer cancel()

	var resp struct {
		Report *contracts.RunReport `json:"report"`
	}
	req := handlers.DatasetRequest{DryRun: remoteDryRun}

	err := newRemoteClient().PostJSONInto(ctx, datasetURL("prefilter"), req, &resp)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			printRejectedReport(statusErr)
		}
		return err
	}

	PrintReport(resp.Report)
	return nil
}

func runRemoteLatest(cmd *cobra.Command, args []string) error {
	var report contracts.RunReport
	if err := newRemoteClient().GetJSON(cmd.Context(), datasetURL("runs/latest"), &report); err != nil {
		return err
	}
	PrintReport(&report)
	return nil
}

func runRemoteVariables(cmd *cobra.Command, args []string) error {
	var summary runner.VariableSummary
	if err := newRemoteClient().GetJSON(cmd.Context(), datasetURL("variables"), &summary); err != nil {
		return err
	}

	PrintHeader("Variables",
		[2]string{"Dataset", summary.DatasetID},
		[2]string{"Subjects", fmt.Sprintf("%d", summary.TotalIDs)},
	)
	for _, v := range summary.Variables {
		fmt.Printf("  %-30s %8d %8d %7.1f%%\n", v.Name, v.Rows, v.Subjects, v.Coverage*100)
	}
	return nil
}

// printRejectedReport prints the partial report carried by a 422 response
func printRejectedReport(statusErr *httputil.StatusError) {
	if statusErr.StatusCode != http.StatusUnprocessableEntity {
		return
	}
	var body struct {
		Report *contracts.RunReport `json:"report"`
	}
	if err := json.Unmarshal(statusErr.Body, &body); err == nil && body.Report != nil {
		PrintReport(body.Report)
	}
}
