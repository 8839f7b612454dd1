package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
)

// AnalyticsController handles analytics-related HTTP requests
type AnalyticsController struct {
	analyticsService service.AnalyticsService
	logger           *slog.Logger
}

// NewAnalyticsController creates a new analytics controller
func NewAnalyticsController(analyticsService service.AnalyticsService, logger *slog.Logger) *AnalyticsController {
	return &AnalyticsController{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetHistoricalAnalytics handles GET /v1/analytics/historical
// Query parameters:
//   - machine_id (optional): restrict the report to one machine
//   - month (optional): YYYY-MM or any ISO 8601 date inside the month (default: current month)
func (c *AnalyticsController) GetHistoricalAnalytics(ctx *gin.Context) {
	startTime := time.Now()

	id := ctx.Query("machine_id")
	var machineID *string
	if id != "" {
		machineID = &id
	}

	var month *time.Time
	if monthStr := ctx.Query("month"); monthStr != "" {
		m, err := parseMonth(monthStr)
		if err != nil {
			c.logger.Warn("invalid month",
				"month", monthStr,
				"error", err.Error(),
			)
			badRequest(ctx, "Invalid month", "month must be YYYY-MM or an ISO 8601 date")
			return
		}
		month = &m
	}

	c.logger.Info("processing analytics request",
		"machine_id", id,
		"month", ctx.Query("month"),
	)

	var (
		analytics *service.HistoricalAnalytics
		err       error
	)
	if month != nil {
		analytics, err = c.analyticsService.GetMonthlyAnalytics(ctx.Request.Context(), machineID, *month)
	} else {
		analytics, err = c.analyticsService.GetHistoricalAnalytics(ctx.Request.Context(), machineID)
	}
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to retrieve analytics data")
		return
	}

	latency := time.Since(startTime)
	c.logger.Info("analytics request completed",
		"machine_id", id,
		"records", analytics.Totals.Records,
		"risk", analytics.Risk.Level,
		"latency_ms", latency.Milliseconds(),
	)

	ctx.JSON(http.StatusOK, analytics)
}

func parseMonth(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}
	return parseISO8601Date(s)
}

// parseISO8601Date parses a date string in ISO 8601 format (RFC3339 is ISO 8601 compliant)
// Supports:
//   - RFC3339 (e.g., "2006-01-02T15:04:05Z07:00")
//   - RFC3339Nano (e.g., "2006-01-02T15:04:05.999999999Z07:00")
//   - YYYY-MM-DD (e.g., "2006-01-02")
//   - YYYY-MM-DDTHH:MM:SS (e.g., "2006-01-02T15:04:05"), read as UTC
func parseISO8601Date(dateStr string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dateStr); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse(time.DateOnly, dateStr); err == nil {
		return t, nil
	}

	if t, err := time.Parse("2006-01-02T15:04:05", dateStr); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse ISO 8601 date: %s (expected RFC3339 or YYYY-MM-DD format)", dateStr)
}
