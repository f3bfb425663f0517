package handlers

import (
	"net/http"

	"github.com/epeers/allocator/internal/models"
	"github.com/gin-gonic/gin"
)

// Health handles GET /health
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{OK: true})
}
