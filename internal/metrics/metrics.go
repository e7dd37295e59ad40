package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

// ⭐ SSOT: Prometheus 지표는 여기서만 정의
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prefilter",
		Name:      "runs_total",
		Help:      "Total number of pre-filter runs by dataset and status",
	}, []string{"dataset", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prefilter",
		Name:      "run_duration_seconds",
		Help:      "Duration of pre-filter runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
	}, []string{"dataset"})

	rowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prefilter",
		Name:      "rows_dropped_total",
		Help:      "Rows removed by each filter stage",
	}, []string{"stage"})

	rowsOutput = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prefilter",
		Name:      "rows_output_total",
		Help:      "Rows retained after all stages",
	}, []string{"dataset"})

	variablesKept = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prefilter",
		Name:      "variables_kept",
		Help:      "Variables retained by the coverage stage in the latest run",
	}, []string{"dataset"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prefilter",
		Name:      "cache_lookups_total",
		Help:      "Report cache lookups by result (hit/miss)",
	}, []string{"cache", "result"})
)

// ObserveRun records one finished run
func ObserveRun(report *contracts.RunReport) {
	runsTotal.WithLabelValues(report.DatasetID, string(report.Status)).Inc()
	runDuration.WithLabelValues(report.DatasetID).Observe(report.Duration.Seconds())

	for _, stage := range report.Stages {
		if dropped := stage.Dropped(); dropped > 0 {
			rowsDropped.WithLabelValues(stage.Stage.ShortName()).Add(float64(dropped))
		}
	}

	if !report.Succeeded() {
		return
	}
	rowsOutput.WithLabelValues(report.DatasetID).Add(float64(report.OutputRows))
	if report.Coverage != nil {
		variablesKept.WithLabelValues(report.DatasetID).Set(float64(report.Coverage.KeptCount()))
	}
}

// ObserveCache records a cache hit or miss
func ObserveCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}
