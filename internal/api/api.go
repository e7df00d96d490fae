package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pantryloop/backend/internal/service"
)

// respondError maps the service error taxonomy onto HTTP statuses:
// validation 400, not found 404, conflicts (stock, idempotency reuse,
// session cap) 409, business-rule violations 422, transient 503.
func respondError(c *gin.Context, err error) {
	var appErr *service.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindInsufficientStock, service.KindIdempotencyConflict:
		status = http.StatusConflict
	case service.KindBusinessRule:
		status = http.StatusUnprocessableEntity
		if errors.Is(err, service.ErrTooManySessions) {
			status = http.StatusConflict
		}
	case service.KindTransient:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"kind": appErr.Kind, "error": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	c.JSON(status, body)
}

// ownerID extracts the verified owner identity the auth middleware placed
// in the context
func ownerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, false
	}
	return id, true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"kind":  service.KindValidation,
			"error": "invalid " + param,
			"field": param,
		})
		return uuid.Nil, false
	}
	return id, true
}
