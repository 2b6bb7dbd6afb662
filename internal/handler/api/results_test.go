package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"MTFCast/internal/domain/models"
	xlogger "MTFCast/pkg/logger"
)

type stubProvider struct {
	report models.RunReport
	ok     bool
}

func (s stubProvider) LatestReport() (models.RunReport, bool) { return s.report, s.ok }

func serve(t *testing.T, provider ReportProvider, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewResultsHandler(xlogger.Nop(), provider).RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReportEndpoint(t *testing.T) {
	report := models.RunReport{
		RunID:      "run-1",
		Symbol:     "EURUSD",
		Timeframes: []string{"5m", "1h"},
		StartedAt:  time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		Metrics: []models.MetricResult{
			{Scope: "aggregate", Name: "mae", Value: 0.001, Defined: true},
		},
	}

	rec := serve(t, stubProvider{report: report, ok: true}, "/api/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Status int              `json:"status"`
		Data   models.RunReport `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != http.StatusOK || body.Data.RunID != "run-1" {
		t.Fatalf("body = %+v", body)
	}
}

func TestReportEndpointNoRunYet(t *testing.T) {
	rec := serve(t, stubProvider{}, "/api/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want 404", body.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	report := models.RunReport{
		RunID: "run-2",
		Metrics: []models.MetricResult{
			{Scope: "fold_0", Name: "rmse", Value: 0.002, Defined: true},
			{Scope: "aggregate", Name: "mape", Defined: false},
		},
	}

	rec := serve(t, stubProvider{report: report, ok: true}, "/api/report/metrics")
	var body struct {
		Data []models.MetricResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Data) != 2 || body.Data[1].Defined {
		t.Fatalf("data = %+v", body.Data)
	}
}
