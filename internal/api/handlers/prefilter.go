package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/internal/metrics"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/internal/runner"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

// maxBodyBytes bounds inline request bodies
const maxBodyBytes = 64 << 20

// PrefilterHandler handles pre-filter API endpoints
// ⭐ SSOT: 전처리 API 핸들러는 이 구조체에서만
type PrefilterHandler struct {
	runner     *runner.Runner // nil → dataset 엔드포인트 503
	defaults   prefilter.Config
	configHash string
	logger     *logger.Logger
}

// NewPrefilterHandler creates a new pre-filter handler.
// defaults fill in parameters a request leaves out.
func NewPrefilterHandler(r *runner.Runner, defaults prefilter.Config, configHash string, log *logger.Logger) *PrefilterHandler {
	return &PrefilterHandler{
		runner:     r,
		defaults:   defaults,
		configHash: configHash,
		logger:     log,
	}
}

// InlineRequest carries a complete table in the request body
type InlineRequest struct {
	Observations contracts.Table   `json:"observations"`
	Population   []string          `json:"population"`
	Threshold    *float64          `json:"threshold"`
	MaxT         *float64          `json:"max_t"`
	VarTypes     map[string]string `json:"var_types"`
}

// DatasetRequest overrides the configured parameters for a stored dataset
type DatasetRequest struct {
	Threshold *float64          `json:"threshold"`
	MaxT      *float64          `json:"max_t"`
	VarTypes  map[string]string `json:"var_types"`
	DryRun    bool              `json:"dry_run"`
}

// inconsistentResponse is the 422 body
type inconsistentResponse struct {
	Error  string                           `json:"error"`
	Detail *prefilter.InconsistentDataError `json:"detail,omitempty"`
	Report *contracts.RunReport             `json:"report,omitempty"`
}

// Inline filters the table sent in the body
// POST /api/prefilter
func (h *PrefilterHandler) Inline(w http.ResponseWriter, r *http.Request) {
	var req InlineRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Observations == nil {
		respondError(w, http.StatusBadRequest, "observations is required")
		return
	}

	cfg := h.merge(req.Threshold, req.MaxT, req.VarTypes)

	start := time.Now()
	result, err := prefilter.NewFilter(cfg, h.logger).Run(req.Observations, &contracts.Population{IDs: req.Population})

	report := &contracts.RunReport{
		DatasetID: "inline",
		Threshold: cfg.Threshold,
		MaxT:      cfg.MaxT,
		InputRows: len(req.Observations),
		Duration:  time.Since(start),
	}
	if err != nil {
		report.Status = contracts.RunStatusInconsistent
		metrics.ObserveRun(report)
		h.respondInconsistent(w, err, nil)
		return
	}

	report.Status = contracts.RunStatusSucceeded
	report.OutputRows = len(result.Table)
	report.Stages = result.Stages
	report.Coverage = result.Coverage
	metrics.ObserveRun(report)

	respondJSON(w, http.StatusOK, result)
}

// RunDataset filters a stored dataset and persists the run
// POST /api/datasets/{id}/prefilter
func (h *PrefilterHandler) RunDataset(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "Dataset store not configured")
		return
	}
	datasetID := mux.Vars(r)["id"]

	var req DatasetRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	hash := h.configHash
	if req.Threshold != nil || req.MaxT != nil || req.VarTypes != nil {
		hash = "" // 요청별 오버라이드는 설정 파일과 다름
	}

	out, err := h.runner.Run(r.Context(), runner.Options{
		DatasetID:  datasetID,
		Filter:     h.merge(req.Threshold, req.MaxT, req.VarTypes),
		ConfigHash: hash,
		DryRun:     req.DryRun,
	})
	if errors.Is(err, prefilter.ErrInconsistentData) {
		h.respondInconsistent(w, err, out.Report)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("dataset_id", datasetID).Error("Pre-filter run failed")
		respondError(w, http.StatusInternalServerError, "Pre-filter run failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"report":       out.Report,
		"observations": out.Result.Table,
	})
}

// GetLatestRun returns the latest run report of a dataset
// GET /api/datasets/{id}/runs/latest
func (h *PrefilterHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "Dataset store not configured")
		return
	}
	datasetID := mux.Vars(r)["id"]

	report, err := h.runner.LatestRun(r.Context(), datasetID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "No runs for dataset "+datasetID)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetVariables returns per-variable counts of a stored dataset
// GET /api/datasets/{id}/variables
func (h *PrefilterHandler) GetVariables(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "Dataset store not configured")
		return
	}

	summary, err := h.runner.Variables(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize variables")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve variables")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *PrefilterHandler) merge(threshold, maxT *float64, varTypes map[string]string) prefilter.Config {
	cfg := h.defaults
	if threshold != nil {
		cfg.Threshold = *threshold
	}
	if maxT != nil {
		cfg.MaxT = *maxT
	}
	if varTypes != nil {
		cfg.VarTypes = varTypes
	}
	return cfg
}

func (h *PrefilterHandler) respondInconsistent(w http.ResponseWriter, err error, report *contracts.RunReport) {
	resp := inconsistentResponse{
		Error:  prefilter.ErrInconsistentData.Error(),
		Report: report,
	}
	var detail *prefilter.InconsistentDataError
	if errors.As(err, &detail) {
		resp.Detail = detail
	}

	h.logger.WithError(err).Warn("Rejected inconsistent table")
	respondJSON(w, http.StatusUnprocessableEntity, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
