package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adscout/adscout/pkg/services"
)

// abortWithServiceError maps service-layer errors to HTTP responses.
func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	case services.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
