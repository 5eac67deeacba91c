package router

import (
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otelapi/internal/handler"
	"otelapi/internal/middleware"
	"otelapi/internal/store"
	"otelapi/pkg/telemetry"
)

type collectingIngester struct {
	mu    sync.Mutex
	spans []string
}

func (c *collectingIngester) Ingest(ev telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Span != nil {
		c.spans = append(c.spans, ev.Span.Name)
	}
}

func newTestServer(ing telemetry.Ingester) *server.Hertz {
	h := server.New()
	hd := handler.New(store.NewMemory(), handler.Options{
		ServiceName: "svc",
		Version:     "1.0.0",
		SlowMin:     time.Millisecond,
		SlowMax:     time.Millisecond,
	}, handler.WithIngester(ing))
	Register(h, Deps{Handler: hd, Ingester: ing})
	return h
}

func TestRegisterRoutes(t *testing.T) {
	ing := &collectingIngester{}
	h := newTestServer(ing)

	cases := []struct {
		method string
		path   string
		code   int
	}{
		{"GET", "/", 200},
		{"GET", "/api/health", 200},
		{"GET", "/api/users", 200},
		{"GET", "/api/users/2", 200},
		{"GET", "/api/users/x", 400},
		{"GET", "/api/slow", 200},
		{"GET", "/api/redirect-demo", 302},
		{"GET", "/api/telemetry/stats", 503},
		{"POST", "/api/telemetry/flush", 503},
	}
	for _, tc := range cases {
		w := ut.PerformRequest(h.Engine, tc.method, tc.path, nil)
		assert.Equal(t, tc.code, w.Result().StatusCode(), "%s %s", tc.method, tc.path)
	}

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Contains(t, ing.spans, "GET /api/users/:id")
	assert.Contains(t, ing.spans, "db.get_user")
}

func TestRegisterSetsRequestID(t *testing.T) {
	h := newTestServer(nil)

	w := ut.PerformRequest(h.Engine, "GET", "/api/health", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.NotEmpty(t, w.Result().Header.Peek(middleware.RequestIDHeader))
}
