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

	"github.com/fairview-ems/aoi-grader/internal/config"
	"github.com/fairview-ems/aoi-grader/internal/grading"
	"github.com/fairview-ems/aoi-grader/internal/store"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Grading.KSeverity = grading.DefaultSeverity
	return cfg
}

// memStore records saved runs; the other Store methods are unused by the API.
type memStore struct {
	saved []*store.GradingRun
}

func (m *memStore) SaveRun(_ context.Context, run *store.GradingRun) error {
	m.saved = append(m.saved, run)
	return nil
}

func (m *memStore) GetRun(context.Context, string) (*store.GradingRun, error) {
	return nil, nil
}

func (m *memStore) ListRuns(context.Context, store.RunFilter) ([]store.GradingRun, error) {
	return nil, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleReports() []map[string]any {
	return []map[string]any{
		{
			"aoi_Job Number":         "J1",
			"aoi_Operator":           "Alice",
			"aoi_Date":               "2024-07-01",
			"aoi_Quantity Inspected": "100",
			"aoi_Quantity Rejected":  "5",
			"fi_Date":                "2024-07-03",
			"fi_Quantity Inspected":  "150",
			"fi_Quantity Rejected":   "2",
		},
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := NewServer(testConfig(), nil, nil).Router()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGrades(t *testing.T) {
	t.Parallel()

	h := NewServer(testConfig(), nil, nil).Router()
	k := 1.0
	rec := postJSON(t, h, "/grades", map[string]any{
		"combined_reports": sampleReports(),
		"k_severity":       k,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Grades []grading.OperatorGrade `json:"grades"`
		Count  int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)

	g := resp.Grades[0]
	assert.Equal(t, "Alice", g.Operator)
	assert.Equal(t, 1, g.Jobs)
	assert.InDelta(t, 95, g.TotalAOIPassed, 1e-9)
	// gap 2 days, tier discount 0.70, full share of 2 FI rejects.
	assert.InDelta(t, 1.4, g.TotalAttrMisses, 1e-9)
	assert.InDelta(t, 1000*1.4/95, g.MissesPer1kPasses, 1e-9)
	assert.InDelta(t, 100-k*1000*1.4/95, g.Grade, 1e-9)
}

func TestGradesEmptyBatch(t *testing.T) {
	t.Parallel()

	h := NewServer(testConfig(), nil, nil).Router()
	rec := postJSON(t, h, "/grades", map[string]any{"combined_reports": []map[string]any{}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Grades []grading.OperatorGrade `json:"grades"`
		Count  int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Grades)
	assert.Empty(t, resp.Grades)
	assert.Zero(t, resp.Count)
}

func TestBreakdown(t *testing.T) {
	t.Parallel()

	h := NewServer(testConfig(), nil, nil).Router()
	rec := postJSON(t, h, "/breakdown", map[string]any{"combined_reports": sampleReports()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Breakdown []grading.BreakdownRow  `json:"breakdown"`
		Summary   []grading.OperatorGrade `json:"grades_summary"`
		Count     int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Len(t, resp.Summary, 1)

	b := resp.Breakdown[0]
	assert.Equal(t, "J1", b.Job)
	assert.Equal(t, "Alice", b.Operator)
	assert.InDelta(t, 1, b.SharePassed, 1e-9)
	assert.InDelta(t, 0.70, b.AlphaJob, 1e-9)
	require.NotNil(t, b.GapDaysMedian)
	assert.InDelta(t, 2, *b.GapDaysMedian, 1e-9)
}

func TestBreakdownMissingDates(t *testing.T) {
	t.Parallel()

	h := NewServer(testConfig(), nil, nil).Router()
	rec := postJSON(t, h, "/breakdown", map[string]any{
		"combined_reports": []map[string]any{
			{"aoi_Job Number": "J1", "aoi_Operator": "Alice", "aoi_Quantity Inspected": "10"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Breakdown []grading.BreakdownRow `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Breakdown, 1)
	assert.Nil(t, resp.Breakdown[0].GapDaysMedian)
	assert.InDelta(t, 0.70, resp.Breakdown[0].AlphaJob, 1e-9)
}

func TestGradesBadBody(t *testing.T) {
	t.Parallel()

	h := NewServer(testConfig(), nil, nil).Router()
	req := httptest.NewRequest(http.MethodPost, "/grades", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
}

func TestGradesSavesRun(t *testing.T) {
	t.Parallel()

	runs := &memStore{}
	h := NewServer(testConfig(), nil, runs).Router()
	rec := postJSON(t, h, "/grades", map[string]any{"combined_reports": sampleReports()})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, runs.saved, 1)
	run := runs.saved[0]
	assert.Equal(t, "api:grades", run.Source)
	assert.Equal(t, 1, run.RowCount)
	assert.InDelta(t, grading.DefaultSeverity, run.KSeverity, 1e-9)
	assert.Len(t, run.Grades, 1)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.RateLimit = 1
	cfg.Server.RateBurst = 1
	h := NewServer(cfg, nil, nil).Router()

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
