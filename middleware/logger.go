package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"learnwithavi-server/logger"
)

// RequestLogger logs every request with method, path, status and latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(t).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
