package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ginLoggerKey = "logger"

// GinMiddleware writes one access entry per request and exposes a request
// scoped logger through both the gin context and the request context. The
// request ID set by the RequestID middleware also lands in the request
// context so SQL statements issued by the handler carry it.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		ctx, reqLog := WithRequestID(req.Context(), WithTraceContext(req.Context(), base), c.GetString("request_id"))
		reqLog = reqLog.With(
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
		)
		c.Set(ginLoggerKey, reqLog)
		c.Request = req.WithContext(WithContext(ctx, reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if req.URL.RawQuery != "" {
			fields = append(fields, zap.String("query", req.URL.RawQuery))
		}
		if op := c.GetString("operator"); op != "" {
			fields = append(fields, zap.String("operator", op))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		reqLog.Log(accessLevel(status, req.URL.Path), "Request handled", fields...)
	}
}

// accessLevel keeps probes out of the info stream
func accessLevel(status int, path string) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case path == "/health" || path == "/ready":
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Recovery turns a handler panic into a 500 with the standard error envelope
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			base.Error("Panic recovered",
				zap.String("request_id", c.GetString("request_id")),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   gin.H{"code": "INTERNAL_ERROR", "message": "internal server error"},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request scoped logger, or a no-op logger outside
// GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
