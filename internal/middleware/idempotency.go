package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pantryloop/backend/internal/service"
)

// bodyCapture tees the response body so a successful result can be stored
// for replay
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency wraps a mutating endpoint with the at-most-once guard. The
// Idempotency-Key header is required; a novel key claims the record before
// the handler runs, so a concurrent duplicate surfaces as transient instead
// of executing twice. A completed key short-circuits with the stored
// response, and a key reused with a different request is rejected. The hash
// covers the concrete URL path, so the same key against another resource id
// conflicts rather than replaying. Failures release the claim, so retrying
// a failed call re-executes.
func Idempotency(svc *service.IdempotencyService, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"kind":  service.KindValidation,
				"error": "Idempotency-Key header is required",
			})
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"kind":  service.KindValidation,
				"error": "failed to read request body",
			})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		owner := ""
		if userID, exists := c.Get("user_id"); exists {
			owner = fmt.Sprintf("%v", userID)
		}
		hash := service.RequestHash(c.Request.Method, c.Request.URL.Path, owner, body)

		rec, err := svc.Begin(c.Request.Context(), scope, key, owner, hash)
		if err != nil {
			switch {
			case service.IsKind(err, service.KindIdempotencyConflict):
				c.JSON(http.StatusConflict, gin.H{
					"kind":  service.KindIdempotencyConflict,
					"error": err.Error(),
				})
			case service.IsKind(err, service.KindTransient):
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"kind":  service.KindTransient,
					"error": err.Error(),
				})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency check failed"})
			}
			c.Abort()
			return
		}
		if rec != nil {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", rec.ResponseBody)
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := capture.Status()
		if status >= 200 && status < 300 {
			if err := svc.Store(c.Request.Context(), scope, key, status, capture.buf.Bytes()); err != nil {
				log.Printf("Failed to store idempotent response for %s key %s: %v", scope, key, err)
			}
			return
		}
		if err := svc.Release(c.Request.Context(), scope, key); err != nil {
			log.Printf("Failed to release idempotency key %s for %s: %v", key, scope, err)
		}
	}
}
