package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500. Streams that already committed
// a response (SSE, a hijacked /ws connection) cannot take a new status, so
// for those the panic is only logged and the request aborted.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			fields := []zap.Field{
				zap.Any("error", r),
				zap.String("trace_id", GetTraceID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Bool("committed", c.Writer.Written()),
				zap.Stack("stack"),
			}
			if claims := GetClaims(c); claims != nil {
				fields = append(fields, zap.String("subject", claims.Subject), zap.String("arena", claims.Arena))
			}
			log.Error("panic recovered", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal server error",
				"trace_id": GetTraceID(c),
			})
		}()
		c.Next()
	}
}
