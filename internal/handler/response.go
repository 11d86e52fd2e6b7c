package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pulse/internal/admission"
	"pulse/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Reject reports a policy decision that still carries a payload.
func Reject(c *gin.Context, status int, message string, data any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Data:    data,
	})
}

// Error reasons exposed to clients.
const (
	reasonInvalidSignal    = "invalid_signal"
	reasonStoreUnavailable = "store_unavailable"
	reasonNotFound         = "not_found"
)

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, admission.ErrInvalidSignal):
		Error(c, http.StatusBadRequest, err.Error(), map[string]any{"reason": reasonInvalidSignal})
	case errors.Is(err, service.ErrVenueNotFound):
		Error(c, http.StatusNotFound, err.Error(), map[string]any{"reason": reasonNotFound})
	default:
		Error(c, http.StatusServiceUnavailable, "store unavailable, try again", map[string]any{"reason": reasonStoreUnavailable})
	}
}
