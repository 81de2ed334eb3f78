package txscope

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinKey is the gin context key holding the request's *RequestContext[T].
const GinKey = "txscope.request"

// Middleware wraps every request passing through it in one transaction. The handle
// is bound before the rest of the chain runs and the transaction is closed after the
// chain returns: committed when the request succeeded, rolled back when a handler
// recorded an error, answered with a status >= 400, or panicked.
func Middleware[T any](coord *Coordinator[T], logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		rc := NewRequestContext[T]()
		ctx := WithRequestContext(c.Request.Context(), rc)

		scope, err := coord.Begin(ctx, rc)
		if err != nil {
			logger.Error("txscope_begin_failed",
				"scope", coord.Name(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "transaction unavailable"})
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Set(GinKey, rc)

		defer func() {
			if p := recover(); p != nil {
				_ = scope.End(fmt.Errorf("panic: %v", p))
				panic(p)
			}
		}()

		c.Next()

		if err := scope.End(requestOutcome(c)); err != nil && !errors.Is(err, ErrRolledBack) {
			logger.Error("txscope_end_failed",
				"scope", coord.Name(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			_ = c.Error(err)
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}
	}
}

// HandleFromGin returns the transaction bound to the current gin request.
func HandleFromGin[T any](c *gin.Context) (T, bool) {
	if v, ok := c.Get(GinKey); ok {
		if rc, ok := v.(*RequestContext[T]); ok {
			return rc.TransactionHandle()
		}
	}
	return HandleFromContext[T](c.Request.Context())
}

func requestOutcome(c *gin.Context) error {
	if last := c.Errors.Last(); last != nil {
		return last.Err
	}
	if status := c.Writer.Status(); status >= http.StatusBadRequest {
		return fmt.Errorf("request failed with status %d", status)
	}
	return nil
}
