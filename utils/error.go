package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				GetLogger().Error("Unhandled panic", zap.Any("error", err), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	GetLogger().Warn(message, zap.String("details", details), zap.Int("status", status), zap.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Details: details})
}

// HTTPStatus maps an error kind to the response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindMinimumStay:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindCalendarMissing, KindDataInconsistency, KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError writes err with the status of its kind. Unclassified errors and
// broken calendar data are reported generically.
func RespondError(c *gin.Context, err error) {
	status := HTTPStatus(err)
	message := MessageOf(err, "Internal Server Error")
	switch KindOf(err) {
	case KindCalendarMissing, KindDataInconsistency:
		message = "pricing unavailable"
	}
	if status == http.StatusInternalServerError {
		GetLogger().Error("request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	} else {
		GetLogger().Warn(message, zap.Int("status", status), zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Code: string(KindOf(err))})
}
