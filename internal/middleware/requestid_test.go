package middleware

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	r := newEngine(RequestIDMiddleware())
	r.GET("/", func(ctx context.Context, c *app.RequestContext) {
		seen = GetRequestID(c)
		c.String(200, "ok")
	})

	w := get(r, "/")
	id := string(w.Result().Header.Peek(RequestIDHeader))
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, seen)
}

func TestRequestIDPropagated(t *testing.T) {
	r := newEngine(RequestIDMiddleware())
	r.GET("/", ok)

	w := get(r, "/", ut.Header{Key: RequestIDHeader, Value: "req-123"})
	assert.Equal(t, "req-123", string(w.Result().Header.Peek(RequestIDHeader)))

	w = get(r, "/", ut.Header{Key: RequestIDHeader, Value: strings.Repeat("x", maxRequestIDLen+1)})
	_, err := uuid.Parse(string(w.Result().Header.Peek(RequestIDHeader)))
	assert.NoError(t, err)
}
