package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"

	"otelapi/pkg/telemetry"
)

type collectingIngester struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *collectingIngester) Ingest(ev telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collectingIngester) snapshot() []telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]telemetry.Event(nil), c.events...)
}

func (c *collectingIngester) span(t *testing.T) *telemetry.Span {
	t.Helper()
	for _, ev := range c.snapshot() {
		if ev.Span != nil {
			return ev.Span
		}
	}
	t.Fatal("no span ingested")
	return nil
}

func newEngine(mw ...app.HandlerFunc) *route.Engine {
	r := route.NewEngine(config.NewOptions([]config.Option{}))
	r.Use(mw...)
	return r
}

func ok(ctx context.Context, c *app.RequestContext) {
	c.String(200, "ok")
}

func get(r *route.Engine, path string, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(r, "GET", path, nil, headers...)
}
