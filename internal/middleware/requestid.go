package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"

	maxRequestIDLen = 128
)

// RequestIDMiddleware 沿用客户端传入的 X-Request-ID，没有或过长时生成新的 uuid
func RequestIDMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := toValidUTF8(string(c.GetHeader(RequestIDHeader)))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next(ctx)
	}
}

// GetRequestID 当前请求的 id，未经过 RequestIDMiddleware 时为空
func GetRequestID(c *app.RequestContext) string {
	return c.GetString(RequestIDKey)
}
