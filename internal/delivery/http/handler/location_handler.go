package handler

import (
	"net/http"

	"github.com/atang/wimf-backend/internal/delivery/http/middleware"
	"github.com/atang/wimf-backend/internal/usecase/location"
	"github.com/gin-gonic/gin"
)

type LocationHandler struct {
	locationUseCase *location.LocationUseCase
}

func NewLocationHandler(locationUseCase *location.LocationUseCase) *LocationHandler {
	return &LocationHandler{
		locationUseCase: locationUseCase,
	}
}

// ShareLocationRequest represents a location share payload
type ShareLocationRequest struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	IsVirtual        bool     `json:"is_virtual"`
	VirtualAddress   *string  `json:"virtual_address" binding:"omitempty,max=500"`
	LocationSource   string   `json:"location_source" binding:"omitempty,locationsource"`
	LocationAccuracy *float64 `json:"location_accuracy" binding:"omitempty,gte=0"`
}

// NearbyQuery represents proximity-search query parameters
type NearbyQuery struct {
	Latitude  float64 `form:"latitude"`
	Longitude float64 `form:"longitude"`
	Distance  float64 `form:"distance"`
}

// GetState handles GET /api/where-is-my-friends
// @Summary Current location state
// @Description Get current user's own location and feature configuration
// @Tags locations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} location.CurrentStateResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router / [get]
func (h *LocationHandler) GetState(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	state, err := h.locationUseCase.GetCurrentState(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ShareLocation handles POST /api/where-is-my-friends/locations
// @Summary Share location
// @Description Store the caller's location; real coordinates are noised before storage
// @Tags locations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ShareLocationRequest true "Location payload"
// @Success 200 {object} location.OwnLocation
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /locations [post]
func (h *LocationHandler) ShareLocation(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req ShareLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	stored, err := h.locationUseCase.ShareLocation(c.Request.Context(), user.ID, &location.ShareLocationRequest{
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		IsVirtual:        req.IsVirtual,
		VirtualAddress:   req.VirtualAddress,
		LocationSource:   req.LocationSource,
		LocationAccuracy: req.LocationAccuracy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

// FindNearby handles GET /api/where-is-my-friends/locations/nearby
// @Summary Find nearby users
// @Description Ranked list of opted-in users within the effective radius
// @Tags locations
// @Security BearerAuth
// @Produce json
// @Param latitude query number true "Search latitude"
// @Param longitude query number true "Search longitude"
// @Param distance query number false "Requested radius in km"
// @Success 200 {object} location.NearbyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /locations/nearby [get]
func (h *LocationHandler) FindNearby(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var query NearbyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query parameters"})
		return
	}

	result, err := h.locationUseCase.FindNearby(c.Request.Context(), user, query.Latitude, query.Longitude, query.Distance)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RemoveLocation handles DELETE /api/where-is-my-friends/locations
// @Summary Remove location
// @Description Disable the caller's stored location; idempotent
// @Tags locations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /locations [delete]
func (h *LocationHandler) RemoveLocation(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.locationUseCase.RemoveLocation(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// IPLocation handles GET /api/where-is-my-friends/ip-location
// @Summary Resolve caller IP to a coarse location
// @Description Best-effort enrichment; failures do not affect sharing or search
// @Tags locations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} location.IPLocationResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /ip-location [get]
func (h *LocationHandler) IPLocation(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	result, err := h.locationUseCase.ResolveIPLocation(c.Request.Context(), c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
