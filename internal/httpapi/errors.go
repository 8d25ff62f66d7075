package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

// statusFor maps a core error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case attendance.IsValidation(err),
		errors.Is(err, attendance.ErrBeforeStart),
		errors.Is(err, attendance.ErrExpired),
		errors.Is(err, attendance.ErrAlreadySubmitted):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrInvalidPIN),
		errors.Is(err, attendance.ErrInvalidAdminPIN):
		return http.StatusUnauthorized
	case errors.Is(err, attendance.ErrStaffNotFound),
		errors.Is(err, attendance.ErrScheduleNotFound),
		errors.Is(err, attendance.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrScheduleExists):
		return http.StatusConflict
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"message": ...}. Unexpected errors are logged and
// reported without their details.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}
