package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLog logs one line per request, at a level chosen by status.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if v, ok := c.Get(ctxClaims); ok {
			if claims, ok := v.(*Claims); ok {
				args = append(args, "sub", claims.Subject)
			}
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			s.logger.Error("request failed", args...)
		case status >= 400:
			s.logger.Warn("request rejected", args...)
		default:
			s.logger.Info("request", args...)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic serving request", "path", c.Request.URL.Path, "panic", r, "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal server error"))
			}
		}()
		c.Next()
	}
}
