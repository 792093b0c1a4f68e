package httpapi

import (
	"context"
	"errors"
	"net/http"

	"banking-portal/internal/backend"
	"banking-portal/internal/session"

	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, session.ErrInactive):
		return http.StatusUnauthorized, "no active session"
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, backend.ErrNoToken):
		return http.StatusBadGateway, "backend issued an unusable token"
	case errors.Is(err, backend.ErrDeactivated):
		return http.StatusForbidden, apiMessage(err, "account deactivated")
	case errors.Is(err, backend.ErrRejected):
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return http.StatusBadRequest, apiMessage(err, "request rejected")
		}
		return http.StatusUnauthorized, apiMessage(err, "invalid credentials")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timed out"
	case errors.Is(err, backend.ErrUpstream):
		return http.StatusBadGateway, "backend unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func apiMessage(err error, fallback string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
