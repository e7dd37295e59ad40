package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/prefilter/backend/internal/scheduler"
	"github.com/wonny/prefilter/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/prefilter scheduler start
  go run ./cmd/prefilter scheduler list
  go run ./cmd/prefilter scheduler run prefilter`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- prefilter: PREFILTER_SCHEDULE (기본 매일 02:30), 설정 파일의 데이터셋 재필터링
- run_retention: 매일 03:15, PREFILTER_RUN_RETENTION보다 오래된 실행 기록 삭제

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		Long:  "이 프로세스에서 실행된 작업 기준 (이력은 메모리에만 보관)",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

// newScheduler registers every job against the app's dependencies
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	s := scheduler.New(a.log)

	registered := []scheduler.Job{
		jobs.NewPrefilterJob(a.runner, a.cfg.Filter.ConfigPath, a.cfg.Filter.Schedule, a.log),
		jobs.NewRetentionJob(a.repo, a.cfg.Filter.Retention, a.log),
	}
	for _, job := range registered {
		if err := s.AddJob(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pre-filter Scheduler ===")

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	s.Start()
	defer s.Stop()

	printJobTable(s)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	printJobTable(s)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	result, err := s.RunJobSync(args[0])
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempt(s): %s", result.JobName, result.Attempts, result.Error)
	}
	fmt.Printf("✅ Job %s completed in %s\n", result.JobName, result.Duration.Round(time.Millisecond))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	for _, name := range s.GetAllJobs() {
		st := s.GetJobStats()[name]
		fmt.Printf("  %-16s runs=%d ok=%d fail=%d rate=%.0f%%\n",
			st.JobName, st.TotalRuns, st.SuccessCount, st.FailureCount, st.SuccessRate*100)
	}

	// 마지막 실행 결과는 DB에 저장됨
	datasetID := datasetFromConfig(a)
	if datasetID == "" {
		return nil
	}
	report, err := a.runner.LatestRun(cmd.Context(), datasetID)
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Println("\n  No stored runs yet")
		return nil
	}
	PrintReport(report)
	return nil
}

func printJobTable(s *scheduler.Scheduler) {
	stats := s.GetJobStats()

	fmt.Println()
	fmt.Printf("  %-16s %-16s %s\n", "JOB", "SCHEDULE", "NEXT RUN")
	fmt.Println(ruleLight)
	for _, name := range s.GetAllJobs() {
		st := stats[name]
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format(time.RFC3339)
		}
		fmt.Printf("  %-16s %-16s %s\n", name, st.Schedule, next)
	}
}
