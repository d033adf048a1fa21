package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextRequestIDKey stores the request id inside Gin context.
	ContextRequestIDKey = "request_id"
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-Id"
)

// RequestID keeps a client supplied X-Request-Id or generates one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rid := ctx.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		ctx.Set(ContextRequestIDKey, rid)
		ctx.Header(RequestIDHeader, rid)
		ctx.Next()
	}
}

// RequestIDFrom returns the request id set by RequestID, or "".
func RequestIDFrom(ctx *gin.Context) string {
	return ctx.GetString(ContextRequestIDKey)
}
