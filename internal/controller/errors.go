package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"oee-analytics/internal/apperror"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto an HTTP response. fallbackMessage
// is shown for unexpected failures instead of the internal error text.
func respondError(ctx *gin.Context, logger *slog.Logger, err error, fallbackMessage string) {
	var (
		validation *apperror.ValidationError
		notFound   *apperror.NotFoundError
	)

	switch {
	case apperror.IsTerminal(err):
		logger.Error("store unavailable",
			"path", ctx.Request.URL.Path,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Service unavailable",
			"message": "Data store is unavailable, try again later",
		})
	case errors.As(err, &validation):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"message": validation.Error(),
			"field":   validation.Field,
		})
	case errors.As(err, &notFound):
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"message": notFound.Error(),
		})
	default:
		logger.Error("request failed",
			"path", ctx.Request.URL.Path,
			"error", err.Error(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": fallbackMessage,
		})
	}
}

// badRequest rejects malformed input before it reaches a service
func badRequest(ctx *gin.Context, title, message string) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"error":   title,
		"message": message,
	})
}
