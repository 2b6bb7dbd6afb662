package api

import (
	"MTFCast/internal/domain/models"
	xhttp "MTFCast/pkg/http"
	xlogger "MTFCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ReportProvider exposes the most recent finished run.
type ReportProvider interface {
	LatestReport() (models.RunReport, bool)
}

// ResultsHandler serves the latest backtest report over HTTP.
type ResultsHandler struct {
	logger   *xlogger.Logger
	provider ReportProvider
}

func NewResultsHandler(logger *xlogger.Logger, provider ReportProvider) *ResultsHandler {
	return &ResultsHandler{logger: logger, provider: provider}
}

func (h *ResultsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/report", h.Report)
	g.GET("/report/metrics", h.Metrics)
}

// Report returns the full latest run report, folds included.
func (h *ResultsHandler) Report(c echo.Context) error {
	report, ok := h.provider.LatestReport()
	if !ok {
		return xhttp.NotFoundResponse(c, "no finished run yet")
	}
	return xhttp.SuccessResponse(c, report)
}

// Metrics returns only the metric rows of the latest run.
func (h *ResultsHandler) Metrics(c echo.Context) error {
	report, ok := h.provider.LatestReport()
	if !ok {
		return xhttp.NotFoundResponse(c, "no finished run yet")
	}
	return xhttp.SuccessResponse(c, report.Metrics)
}
