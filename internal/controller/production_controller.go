package controller

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"oee-analytics/internal/repository"
	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductionController handles production record requests
type ProductionController struct {
	productionService service.ProductionService
	logger            *slog.Logger
}

// NewProductionController creates a new production record controller
func NewProductionController(productionService service.ProductionService, logger *slog.Logger) *ProductionController {
	return &ProductionController{
		productionService: productionService,
		logger:            logger,
	}
}

// List handles GET /v1/production-records
// Query parameters: machine_id, start, end (ISO 8601), shift, operator_id, limit, offset
func (c *ProductionController) List(ctx *gin.Context) {
	filter := repository.ProductionRecordFilter{
		MachineID:  ctx.Query("machine_id"),
		Shift:      ctx.Query("shift"),
		OperatorID: ctx.Query("operator_id"),
	}

	var ok bool
	if filter.Start, ok = optionalDate(ctx, "start"); !ok {
		return
	}
	if filter.End, ok = optionalDate(ctx, "end"); !ok {
		return
	}
	if filter.Limit, ok = optionalInt(ctx, "limit"); !ok {
		return
	}
	if filter.Offset, ok = optionalInt(ctx, "offset"); !ok {
		return
	}

	records, err := c.productionService.List(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to list production records")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// Upsert handles POST /v1/production-records. A body with an id updates
// that record, otherwise a new record is created.
func (c *ProductionController) Upsert(ctx *gin.Context) {
	startTime := time.Now()

	var input service.ProductionRecordInput
	if err := bindStrictJSON(ctx, &input); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	record, err := c.productionService.Upsert(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to save production record")
		return
	}

	status := http.StatusCreated
	if input.ID != "" {
		status = http.StatusOK
	}

	c.logger.Info("production record saved",
		"record_id", record.ID,
		"machine_id", record.MachineID,
		"oee", record.OEE,
		"latency_ms", time.Since(startTime).Milliseconds(),
	)
	ctx.JSON(status, record)
}

// Get handles GET /v1/production-records/:id
func (c *ProductionController) Get(ctx *gin.Context) {
	record, err := c.productionService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to retrieve production record")
		return
	}
	ctx.JSON(http.StatusOK, record)
}

// Update handles PATCH /v1/production-records/:id
func (c *ProductionController) Update(ctx *gin.Context) {
	var patch service.ProductionRecordInput
	if err := bindStrictJSON(ctx, &patch); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	record, err := c.productionService.Update(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to update production record")
		return
	}
	ctx.JSON(http.StatusOK, record)
}

// Delete handles DELETE /v1/production-records/:id
func (c *ProductionController) Delete(ctx *gin.Context) {
	if err := c.productionService.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, c.logger, err, "Failed to delete production record")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// optionalDate reads an ISO 8601 query parameter. On a malformed value it
// writes a 400 and returns false.
func optionalDate(ctx *gin.Context, name string) (time.Time, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := parseISO8601Date(raw)
	if err != nil {
		badRequest(ctx, "Invalid "+name, err.Error())
		return time.Time{}, false
	}
	return t, true
}

func optionalInt(ctx *gin.Context, name string) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(ctx, "Invalid "+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}
