package handler

import (
	"errors"
	"net/http"

	"github.com/atang/wimf-backend/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the generic success body
type SuccessResponse struct {
	Success bool `json:"success"`
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Provenance tag for real locations; empty means "unknown".
		_ = v.RegisterValidation("locationsource", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || domain.ValidLocationSource(s)
		})
	}
}

// respondError maps domain errors to HTTP statuses. Unrecognized errors are
// storage or programming failures and surface as a generic 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates),
		errors.Is(err, domain.ErrDegenerateCoordinates),
		errors.Is(err, domain.ErrMissingAddress),
		errors.Is(err, domain.ErrInvalidSource):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrFeatureDisabled):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, domain.ErrLocationNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
		message = domain.ErrUpstreamUnavailable.Error()
	}

	c.JSON(status, ErrorResponse{Error: message})
}
