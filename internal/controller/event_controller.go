package controller

import (
	"log/slog"
	"net/http"

	"oee-analytics/internal/model"
	"oee-analytics/internal/repository"
	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
)

// EventController handles downtime event and alert requests
type EventController struct {
	eventService service.EventService
	logger       *slog.Logger
}

// NewEventController creates a new event controller
func NewEventController(eventService service.EventService, logger *slog.Logger) *EventController {
	return &EventController{
		eventService: eventService,
		logger:       logger,
	}
}

// ListDowntime handles GET /v1/downtime-events
func (c *EventController) ListDowntime(ctx *gin.Context) {
	filter := repository.DowntimeFilter{MachineID: ctx.Query("machine_id")}

	var ok bool
	if filter.Start, ok = optionalDate(ctx, "start"); !ok {
		return
	}
	if filter.End, ok = optionalDate(ctx, "end"); !ok {
		return
	}

	events, err := c.eventService.ListDowntime(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to list downtime events")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
}

// RecordDowntime handles POST /v1/downtime-events
func (c *EventController) RecordDowntime(ctx *gin.Context) {
	var input service.DowntimeInput
	if err := bindStrictJSON(ctx, &input); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	event, err := c.eventService.RecordDowntime(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to record downtime event")
		return
	}
	ctx.JSON(http.StatusCreated, event)
}

// ListAlerts handles GET /v1/alerts
func (c *EventController) ListAlerts(ctx *gin.Context) {
	filter := repository.AlertFilter{
		MachineID: ctx.Query("machine_id"),
		Severity:  model.AlertSeverity(ctx.Query("severity")),
	}

	var ok bool
	if filter.Start, ok = optionalDate(ctx, "start"); !ok {
		return
	}
	if filter.End, ok = optionalDate(ctx, "end"); !ok {
		return
	}

	alerts, err := c.eventService.ListAlerts(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to list alerts")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": alerts, "count": len(alerts)})
}

// RaiseAlert handles POST /v1/alerts
func (c *EventController) RaiseAlert(ctx *gin.Context) {
	var input service.AlertInput
	if err := bindStrictJSON(ctx, &input); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	alert, err := c.eventService.RaiseAlert(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to raise alert")
		return
	}

	c.logger.Info("alert raised",
		"alert_id", alert.ID,
		"machine_id", alert.MachineID,
		"severity", alert.Severity,
	)
	ctx.JSON(http.StatusCreated, alert)
}
