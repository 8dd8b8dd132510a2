package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"udsp-service/internal/report"
	"udsp-service/pkg/database"
	"udsp-service/pkg/logger"
	"udsp-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetReportData returns the per-user/per-lab-test matrix for a date range
func GetReportData(c echo.Context) error {
	log := logger.FromContext(c)

	start, end, errs := parseDateRange(c)
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	svc := report.NewService(database.GetDB())
	defer prometheus.TrackDBOperation("query")(time.Now())
	data, err := svc.Data(start, end)
	if err != nil {
		log.Error("Failed to build report data", zap.Error(err))
		return serverError(c, "Server error while fetching report data", err)
	}

	prometheus.RecordReport("data")
	log.Info("Report data generated",
		zap.String("start", start.Format(report.DateLayout)),
		zap.String("end", end.Format(report.DateLayout)),
		zap.Int("total_users", data.TotalUsers),
		zap.Int("total_entries", data.TotalEntries))
	return c.JSON(http.StatusOK, data)
}

// GetReportSummary returns overall and per-lab-test statistics for a date
// range
func GetReportSummary(c echo.Context) error {
	log := logger.FromContext(c)

	start, end, errs := parseDateRange(c)
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	svc := report.NewService(database.GetDB())
	defer prometheus.TrackDBOperation("query")(time.Now())
	summary, err := svc.Summary(start, end)
	if err != nil {
		log.Error("Failed to build report summary", zap.Error(err))
		return serverError(c, "Server error while fetching summary", err)
	}

	prometheus.RecordReport("summary")
	return c.JSON(http.StatusOK, summary)
}

// ExportReportCSV streams the matrix as a CSV attachment
func ExportReportCSV(c echo.Context) error {
	log := logger.FromContext(c)

	start, end, errs := parseDateRange(c)
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	svc := report.NewService(database.GetDB())
	var buf bytes.Buffer
	defer prometheus.TrackDBOperation("query")(time.Now())
	if err := svc.WriteCSV(&buf, start, end); err != nil {
		log.Error("Failed to export CSV", zap.Error(err))
		return serverError(c, "Server error while exporting CSV", err)
	}

	prometheus.RecordReport("csv")
	log.Info("CSV report exported",
		zap.String("start", start.Format(report.DateLayout)),
		zap.String("end", end.Format(report.DateLayout)),
		zap.Int("bytes", buf.Len()))

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, report.Filename(start, end)))
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// parseDateRange validates the startDate/endDate query parameters and
// collects one message per violation
func parseDateRange(c echo.Context) (time.Time, time.Time, []string) {
	var errs []string

	startParam := c.QueryParam("startDate")
	endParam := c.QueryParam("endDate")

	var start, end time.Time
	var err error

	if startParam == "" {
		errs = append(errs, "Start date is required")
	} else if start, err = time.Parse(report.DateLayout, startParam); err != nil {
		errs = append(errs, "Start date must be in valid ISO format")
	}

	if endParam == "" {
		errs = append(errs, "End date is required")
	} else if end, err = time.Parse(report.DateLayout, endParam); err != nil {
		errs = append(errs, "End date must be in valid ISO format")
	}

	if len(errs) == 0 && end.Before(start) {
		errs = append(errs, "End date must be after start date")
	}

	return start, end, errs
}
