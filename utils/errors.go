package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the wire shape of every error this API returns.
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

func RespondWithConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "conflict", message, nil)
}

func RespondWithTooLarge(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large", message, details)
}

func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
