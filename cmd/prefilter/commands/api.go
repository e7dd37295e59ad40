package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/prefilter/backend/internal/api"
	"github.com/wonny/prefilter/backend/internal/api/handlers"
	"github.com/wonny/prefilter/backend/internal/filterconfig"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                          - Health check
  GET  /metrics                         - Prometheus 지표 (METRICS_ENABLED)
  POST /api/prefilter                   - 요청 본문의 테이블 필터링
  POST /api/datasets/{id}/prefilter     - 저장된 데이터셋 필터링
  GET  /api/datasets/{id}/runs/latest   - 최근 실행 결과
  GET  /api/datasets/{id}/variables     - 변수별 관측 현황

Example:
  go run ./cmd/prefilter api
  go run ./cmd/prefilter api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pre-filter API Server ===")

	// 1. Config, logger, DB, Redis
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 2. 기본 필터 파라미터 (설정 파일이 없으면 요청마다 지정)
	var (
		defaults prefilter.Config
		hash     string
	)
	if fc, _, err := filterconfig.Load(a.cfg.Filter.ConfigPath); err == nil {
		defaults = fc.ToFilterConfig()
		hash, _ = filterconfig.Hash(fc)
		a.log.WithField("dataset_id", fc.Meta.DatasetID).Info("Loaded filter config")
	} else {
		a.log.WithError(err).Warn("Filter config not loaded, requests must carry parameters")
	}

	// 3. Handler, router, server
	prefilterHandler := handlers.NewPrefilterHandler(a.runner, defaults, hash, a.log)

	router := api.NewRouter(prefilterHandler, api.RouterOptions{
		MetricsEnabled: a.cfg.MetricsEnabled,
		Limiter:        redis.NewRateLimiter(a.redis, cachePrefix),
	}, a.log)

	server := api.New(a.cfg, a.log, router)

	// 4. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
