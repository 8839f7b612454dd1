package controller

import (
	"log/slog"
	"net/http"

	"oee-analytics/internal/oee"

	"github.com/gin-gonic/gin"
)

// OEEController exposes the pure metric calculator
type OEEController struct {
	logger *slog.Logger
}

// NewOEEController creates a new calculator controller
func NewOEEController(logger *slog.Logger) *OEEController {
	return &OEEController{logger: logger}
}

// CalculateRequest is the calculator input. Quality defaults to 100.
type CalculateRequest struct {
	GoodProduction   *float64 `json:"good_production"`
	PlannedTime      *float64 `json:"planned_time"`
	DowntimeMinutes  *float64 `json:"downtime_minutes"`
	TargetProduction *float64 `json:"target_production"`
	Quality          *float64 `json:"quality,omitempty"`
}

// Calculate handles POST /v1/oee/calculate
func (c *OEEController) Calculate(ctx *gin.Context) {
	var req CalculateRequest
	if err := bindStrictJSON(ctx, &req); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	switch {
	case req.GoodProduction == nil:
		badRequest(ctx, "Missing required parameter", "good_production is required")
		return
	case req.PlannedTime == nil:
		badRequest(ctx, "Missing required parameter", "planned_time is required")
		return
	case req.DowntimeMinutes == nil:
		badRequest(ctx, "Missing required parameter", "downtime_minutes is required")
		return
	case req.TargetProduction == nil:
		badRequest(ctx, "Missing required parameter", "target_production is required")
		return
	}

	var metrics oee.Metrics
	if req.Quality != nil {
		metrics = oee.CalculateWithQuality(*req.GoodProduction, *req.PlannedTime, *req.DowntimeMinutes, *req.TargetProduction, *req.Quality)
	} else {
		metrics = oee.Calculate(*req.GoodProduction, *req.PlannedTime, *req.DowntimeMinutes, *req.TargetProduction)
	}

	c.logger.Debug("oee calculated",
		"oee", metrics.OEE,
		"availability", metrics.Availability,
		"performance", metrics.Performance,
	)
	ctx.JSON(http.StatusOK, metrics)
}
