package handler

import (
	"net/http"

	"github.com/atang/wimf-backend/internal/usecase/location"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	locationUseCase *location.LocationUseCase
}

func NewAdminHandler(locationUseCase *location.LocationUseCase) *AdminHandler {
	return &AdminHandler{
		locationUseCase: locationUseCase,
	}
}

// DebugStats handles GET /api/where-is-my-friends/debug-stats
// @Summary Location statistics
// @Description Aggregate counts and coordinate-cluster anomalies; admin only
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} domain.LocationStats
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /debug-stats [get]
func (h *AdminHandler) DebugStats(c *gin.Context) {
	stats, err := h.locationUseCase.DebugStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
