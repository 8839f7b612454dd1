package controller

import (
	"log/slog"
	"net/http"

	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
)

// MachineController handles machine registry requests
type MachineController struct {
	machineService service.MachineService
	logger         *slog.Logger
}

// NewMachineController creates a new machine controller
func NewMachineController(machineService service.MachineService, logger *slog.Logger) *MachineController {
	return &MachineController{
		machineService: machineService,
		logger:         logger,
	}
}

// List handles GET /v1/machines
func (c *MachineController) List(ctx *gin.Context) {
	machines, err := c.machineService.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to list machines")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": machines, "count": len(machines)})
}

// Create handles POST /v1/machines
func (c *MachineController) Create(ctx *gin.Context) {
	var input service.MachineInput
	if err := bindStrictJSON(ctx, &input); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	machine, err := c.machineService.Create(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to create machine")
		return
	}

	c.logger.Info("machine created",
		"machine_id", machine.ID,
		"code", machine.Code,
	)
	ctx.JSON(http.StatusCreated, machine)
}

// Get handles GET /v1/machines/:id
func (c *MachineController) Get(ctx *gin.Context) {
	machine, err := c.machineService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to retrieve machine")
		return
	}
	ctx.JSON(http.StatusOK, machine)
}

// Update handles PATCH /v1/machines/:id
func (c *MachineController) Update(ctx *gin.Context) {
	var patch service.MachineInput
	if err := bindStrictJSON(ctx, &patch); err != nil {
		badRequest(ctx, "Invalid request body", err.Error())
		return
	}

	machine, err := c.machineService.Update(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to update machine")
		return
	}
	ctx.JSON(http.StatusOK, machine)
}

// Refresh handles POST /v1/machines/:id/refresh
func (c *MachineController) Refresh(ctx *gin.Context) {
	rollup, err := c.machineService.Refresh(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, err, "Failed to refresh machine metrics")
		return
	}
	ctx.JSON(http.StatusOK, rollup)
}
