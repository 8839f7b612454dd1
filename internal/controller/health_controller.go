package controller

import (
	"context"
	"net/http"

	"oee-analytics/internal/repository"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports the state of the backing stores
type HealthChecker interface {
	Health(ctx context.Context) repository.StoreHealth
}

// HealthController serves the liveness probe
type HealthController struct {
	checker HealthChecker
}

// NewHealthController creates a new health controller
func NewHealthController(checker HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

// Health handles GET /healthz. The service is degraded while only one store
// answers and unavailable when neither does.
func (c *HealthController) Health(ctx *gin.Context) {
	stores := c.checker.Health(ctx.Request.Context())

	status, code := "ok", http.StatusOK
	switch {
	case stores.Primary != "ok" && stores.Fallback != "ok":
		status, code = "unavailable", http.StatusServiceUnavailable
	case stores.Primary != "ok" || stores.Fallback != "ok":
		status = "degraded"
	}

	ctx.JSON(code, gin.H{
		"status": status,
		"stores": stores,
	})
}
