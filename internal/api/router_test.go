package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/prefilter/backend/internal/api/handlers"
	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/internal/runner"
	"github.com/wonny/prefilter/backend/pkg/config"
	"github.com/wonny/prefilter/backend/pkg/logger"
	"github.com/wonny/prefilter/backend/pkg/redis"
)

type memoryDataset struct {
	table      contracts.Table
	population *contracts.Population
	reports    []*contracts.RunReport
}

func (m *memoryDataset) LoadObservations(ctx context.Context, id string) (contracts.Table, error) {
	return m.table, nil
}

func (m *memoryDataset) LoadPopulation(ctx context.Context, id string) (*contracts.Population, error) {
	return m.population, nil
}

func (m *memoryDataset) LoadVarTypes(ctx context.Context, id string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (m *memoryDataset) SaveRun(ctx context.Context, report *contracts.RunReport, filtered contracts.Table) error {
	m.reports = append(m.reports, report)
	return nil
}

func (m *memoryDataset) GetLatestRun(ctx context.Context, id string) (*contracts.RunReport, error) {
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].DatasetID == id {
			return m.reports[i], nil
		}
	}
	return nil, nil
}

var defaults = prefilter.Config{Threshold: 0.5, MaxT: 48}

func newTestRouter(t *testing.T, ds *memoryDataset, opts RouterOptions) http.Handler {
	t.Helper()
	var r *runner.Runner
	if ds != nil {
		r = runner.New(ds, ds, nil, nil, 0)
	}
	return NewRouter(handlers.NewPrefilterHandler(r, defaults, "hash", logger.Nop()), opts, logger.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const exampleBody = `{
	"observations": [
		{"id": "A", "t": 1, "var": "x", "value": "1"},
		{"id": "B", "t": 1, "var": "x", "value": "2"},
		{"id": "C", "t": 2, "var": "x", "value": "3"},
		{"id": "A", "t": null, "var": "y", "value": "M"},
		{"id": "Z", "t": 1, "var": "x", "value": "9"}
	],
	"population": ["A", "B", "C", "D"]
}`

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t, nil, RouterOptions{}), "GET", "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestInline_OK(t *testing.T) {
	rec := do(t, newTestRouter(t, nil, RouterOptions{}), "POST", "/api/prefilter", exampleBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result prefilter.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Table, 3)
	assert.Equal(t, []string{"x"}, result.Coverage.Kept)
	assert.Len(t, result.Stages, 5)
}

func TestInline_ThresholdOverride(t *testing.T) {
	body := strings.Replace(exampleBody, `"population"`, `"threshold": 0.75, "population"`, 1)

	rec := do(t, newTestRouter(t, nil, RouterOptions{}), "POST", "/api/prefilter", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result prefilter.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result.Table)
}

func TestInline_Inconsistent(t *testing.T) {
	body := `{
		"observations": [
			{"id": "A", "t": 1.0, "var": "weight", "value": "70"},
			{"id": "A", "t": 1.0, "var": "weight", "value": "71"}
		],
		"population": ["A"]
	}`

	rec := do(t, newTestRouter(t, nil, RouterOptions{}), "POST", "/api/prefilter", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error  string `json:"error"`
		Detail struct {
			ID  string  `json:"id"`
			T   float64 `json:"t"`
			Var string  `json:"var"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "inconsistent numerical values found", resp.Error)
	assert.Equal(t, "A", resp.Detail.ID)
	assert.Equal(t, 1.0, resp.Detail.T)
	assert.Equal(t, "weight", resp.Detail.Var)
}

func TestInline_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"observations": [`},
		{"missing observations", `{"population": ["A"]}`},
		{"unknown field", `{"observations": [], "treshold": 0.5}`},
	}

	h := newTestRouter(t, nil, RouterOptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/prefilter", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDatasetEndpoints_NoStore(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "POST", "/api/datasets/icu/prefilter", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "GET", "/api/datasets/icu/runs/latest", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "GET", "/api/datasets/icu/variables", "").Code)
}

func TestDatasetEndpoints(t *testing.T) {
	ds := &memoryDataset{
		table: contracts.Table{
			{ID: "A", T: contracts.Float(1), Var: "x", Value: "1"},
			{ID: "B", T: contracts.Float(1), Var: "x", Value: "2"},
			{ID: "A", T: contracts.Float(1), Var: "y", Value: "5"},
		},
		population: &contracts.Population{IDs: []string{"A", "B"}},
	}
	h := newTestRouter(t, ds, RouterOptions{})

	rec := do(t, h, "GET", "/api/datasets/icu/runs/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "POST", "/api/datasets/icu/prefilter", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var runResp struct {
		Report       contracts.RunReport `json:"report"`
		Observations contracts.Table     `json:"observations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runResp))
	assert.Equal(t, contracts.RunStatusSucceeded, runResp.Report.Status)
	assert.Equal(t, "hash", runResp.Report.ConfigHash)
	assert.Len(t, runResp.Observations, 2) // y: 1/2 = threshold → dropped

	rec = do(t, h, "GET", "/api/datasets/icu/runs/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest contracts.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, runResp.Report.RunID, latest.RunID)

	rec = do(t, h, "POST", "/api/datasets/icu/prefilter", `{"threshold": 0, "dry_run": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runResp))
	assert.Empty(t, runResp.Report.ConfigHash)
	assert.Len(t, runResp.Observations, 3)
	assert.Len(t, ds.reports, 1)

	rec = do(t, h, "GET", "/api/datasets/icu/variables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary runner.VariableSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalIDs)
	assert.Len(t, summary.Variables, 2)
}

func TestDatasetEndpoints_Inconsistent(t *testing.T) {
	ds := &memoryDataset{
		table: contracts.Table{
			{ID: "A", T: contracts.Float(1), Var: "x", Value: "1"},
			{ID: "A", T: contracts.Float(1), Var: "x", Value: "2"},
		},
		population: &contracts.Population{IDs: []string{"A"}},
	}

	rec := do(t, newTestRouter(t, ds, RouterOptions{}), "POST", "/api/datasets/icu/prefilter", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"inconsistent"`)
	require.Len(t, ds.reports, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{MetricsEnabled: true})

	require.Equal(t, http.StatusOK, do(t, h, "POST", "/api/prefilter", exampleBody).Code)

	rec := do(t, h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prefilter_runs_total")

	disabled := newTestRouter(t, nil, RouterOptions{})
	assert.Equal(t, http.StatusNotFound, do(t, disabled, "GET", "/metrics", "").Code)
}

func TestRateLimit_DisabledRedisAllows(t *testing.T) {
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	h := newTestRouter(t, nil, RouterOptions{Limiter: redis.NewRateLimiter(client, "test")})

	req := httptest.NewRequest("POST", "/api/prefilter", bytes.NewBufferString(exampleBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestServer_Handler(t *testing.T) {
	cfg := &config.Config{Port: "0"}
	router := newTestRouter(t, nil, RouterOptions{})

	srv := New(cfg, logger.Nop(), router)
	assert.Equal(t, http.StatusOK, do(t, srv.Handler(), "GET", "/health", "").Code)
}
