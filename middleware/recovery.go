package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/metrics"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 that carries the request's trace
// ID, so a client report can be matched to the log entry. When the handler
// had already started writing (an event stream, for instance) the response is
// only aborted.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			route := routeLabel(c)
			metrics.HTTPPanicsTotal.WithLabelValues(route).Inc()

			traceID := GetTraceID(c)
			fields := []zap.Field{
				zap.Any("panic", r),
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.String("trace_id", traceID),
			}
			if uid := GetUserID(c); uid != 0 {
				fields = append(fields, zap.Int64("user_id", uid))
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, zap.String("resource_id", id))
			}
			log.Error("handler panicked", append(fields, zap.Stack("stack"))...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal error",
				"traceId": traceID,
			})
		}()
		c.Next()
	}
}
