package handler

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otelapi/internal/store"
	"otelapi/pkg/telemetry"
)

type fixedRand struct {
	f   float64
	n   int
	i63 int64
}

func (r fixedRand) Float64() float64   { return r.f }
func (r fixedRand) Intn(int) int       { return r.n }
func (r fixedRand) Int63n(int64) int64 { return r.i63 }

type collectingIngester struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *collectingIngester) Ingest(ev telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collectingIngester) spans() []*telemetry.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*telemetry.Span
	for _, ev := range c.events {
		if ev.Span != nil {
			out = append(out, ev.Span)
		}
	}
	return out
}

type fakeTelemetry struct {
	flushErr error
	flushes  int
}

func (f *fakeTelemetry) Stats() telemetry.Stats {
	return telemetry.Stats{State: telemetry.StateAccumulating, Ingested: 42, OpenBatchSize: 2}
}

func (f *fakeTelemetry) Resource() telemetry.ResourceDescriptor {
	return telemetry.ResourceDescriptor{ServiceName: "svc", ServiceVersion: "1.2.3", Environment: "test"}
}

func (f *fakeTelemetry) Flush() error {
	f.flushes++
	return f.flushErr
}

func testOptions() Options {
	return Options{
		ServiceName:         "svc",
		Version:             "1.2.3",
		Environment:         "test",
		ProductsFailureRate: 0.2,
		SlowMin:             5 * time.Millisecond,
		SlowMax:             5 * time.Millisecond,
	}
}

func newTestEngine(h *Handler) *route.Engine {
	r := route.NewEngine(config.NewOptions([]config.Option{}))
	r.GET("/", h.Index)
	r.GET("/api/health", h.Health)
	r.GET("/api/users", h.ListUsers)
	r.POST("/api/users", h.CreateUser)
	r.GET("/api/users/:id", h.GetUser)
	r.GET("/api/products", h.ListProducts)
	r.GET("/api/slow", h.Slow)
	r.GET("/api/random-error", h.RandomError)
	r.GET("/api/redirect-demo", h.RedirectDemo)
	r.GET("/api/telemetry/stats", h.TelemetryStats)
	r.POST("/api/telemetry/flush", h.FlushTelemetry)
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *ut.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Result().Body(), &env))
	return env
}

func jsonBody(s string) *ut.Body {
	return &ut.Body{Body: bytes.NewBufferString(s), Len: len(s)}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func TestIndexAndHealth(t *testing.T) {
	r := newTestEngine(New(store.NewMemory(), testOptions()))

	w := ut.PerformRequest(r, "GET", "/", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "/api/telemetry/stats")

	w = ut.PerformRequest(r, "GET", "/api/health", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "svc", health.Service)
	assert.Equal(t, "1.2.3", health.Version)
}

func TestListUsersRecordsDBSpan(t *testing.T) {
	ing := &collectingIngester{}
	r := newTestEngine(New(store.NewMemory(), testOptions(), WithIngester(ing)))

	w := ut.PerformRequest(r, "GET", "/api/users", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Equal(t, 3, list.Count)

	spans := ing.spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.list_users", spans[0].Name)
	assert.Equal(t, telemetry.StatusOK, spans[0].Status)
	assert.Equal(t, "memory", spans[0].Attributes["db.system"])
}

func TestGetUser(t *testing.T) {
	r := newTestEngine(New(store.NewMemory(), testOptions()))

	w := ut.PerformRequest(r, "GET", "/api/users/1", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(decode(t, w).Data), "alice@example.com")

	w = ut.PerformRequest(r, "GET", "/api/users/abc", nil)
	require.Equal(t, 400, w.Result().StatusCode())
	env := decode(t, w)
	assert.Equal(t, "INVALID_USER_ID", env.Error.Code)
	assert.Equal(t, "abc", env.Error.Details["requested_id"])

	w = ut.PerformRequest(r, "GET", "/api/users/99", nil)
	require.Equal(t, 404, w.Result().StatusCode())
	env = decode(t, w)
	assert.Equal(t, "USER_NOT_FOUND", env.Error.Code)
	assert.EqualValues(t, 99, env.Error.Details["requested_id"])
}

func TestCreateUser(t *testing.T) {
	mem := store.NewMemory()
	r := newTestEngine(New(mem, testOptions()))

	w := ut.PerformRequest(r, "POST", "/api/users",
		jsonBody(`{"name":"Dave","email":"dave@example.com"}`), jsonHeader)
	require.Equal(t, 201, w.Result().StatusCode())

	var created struct {
		User struct {
			ID   int64  `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.EqualValues(t, 4, created.User.ID)
	assert.Equal(t, "user", created.User.Role)

	w = ut.PerformRequest(r, "POST", "/api/users", jsonBody(`{"name":"NoEmail"}`), jsonHeader)
	require.Equal(t, 400, w.Result().StatusCode())
	assert.Equal(t, "VALIDATION_FAILED", decode(t, w).Error.Code)

	w = ut.PerformRequest(r, "POST", "/api/users", jsonBody(`{"name":`), jsonHeader)
	require.Equal(t, 400, w.Result().StatusCode())
	assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
}

func TestListProducts(t *testing.T) {
	ing := &collectingIngester{}

	ok := newTestEngine(New(store.NewMemory(), testOptions(), WithRandomizer(fixedRand{f: 0.9}), WithIngester(ing)))
	w := ut.PerformRequest(ok, "GET", "/api/products", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(decode(t, w).Data), "Laptop")

	failing := newTestEngine(New(store.NewMemory(), testOptions(), WithRandomizer(fixedRand{f: 0.1}), WithIngester(ing)))
	w = ut.PerformRequest(failing, "GET", "/api/products", nil)
	require.Equal(t, 500, w.Result().StatusCode())
	env := decode(t, w)
	assert.Equal(t, "PRODUCTS_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "Database connection failed", env.Error.Message)

	spans := ing.spans()
	require.Len(t, spans, 2)
	assert.Equal(t, telemetry.StatusOK, spans[0].Status)
	assert.Equal(t, telemetry.StatusError, spans[1].Status)
}

func TestSlow(t *testing.T) {
	r := newTestEngine(New(store.NewMemory(), testOptions()))

	w := ut.PerformRequest(r, "GET", "/api/slow", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	var slow struct {
		DurationMS int64 `json:"duration_ms"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &slow))
	assert.EqualValues(t, 5, slow.DurationMS)
}

func TestRandomError(t *testing.T) {
	cases := []struct {
		pick int
		code int
	}{
		{0, 404},
		{1, 500},
		{2, 200},
	}
	for _, tc := range cases {
		r := newTestEngine(New(store.NewMemory(), testOptions(), WithRandomizer(fixedRand{n: tc.pick})))
		w := ut.PerformRequest(r, "GET", "/api/random-error", nil)
		assert.Equal(t, tc.code, w.Result().StatusCode(), "pick %d", tc.pick)
	}
}

func TestRedirectDemo(t *testing.T) {
	r := newTestEngine(New(store.NewMemory(), testOptions()))

	w := ut.PerformRequest(r, "GET", "/api/redirect-demo", nil)
	assert.Equal(t, 302, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Header.Peek("Location")), "/api/health")
}

func TestTelemetryEndpointsWithoutExporter(t *testing.T) {
	r := newTestEngine(New(store.NewMemory(), testOptions()))

	w := ut.PerformRequest(r, "GET", "/api/telemetry/stats", nil)
	assert.Equal(t, 503, w.Result().StatusCode())
	assert.Equal(t, "TELEMETRY_UNAVAILABLE", decode(t, w).Error.Code)

	w = ut.PerformRequest(r, "POST", "/api/telemetry/flush", nil)
	assert.Equal(t, 503, w.Result().StatusCode())
}

func TestTelemetryStatsAndFlush(t *testing.T) {
	src := &fakeTelemetry{}
	r := newTestEngine(New(store.NewMemory(), testOptions(), WithTelemetry(src)))

	w := ut.PerformRequest(r, "GET", "/api/telemetry/stats", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	body := string(decode(t, w).Data)
	assert.Contains(t, body, `"state":"accumulating"`)
	assert.Contains(t, body, `"ingested":42`)
	assert.Contains(t, body, `"service_name":"svc"`)

	w = ut.PerformRequest(r, "POST", "/api/telemetry/flush", nil)
	assert.Equal(t, 202, w.Result().StatusCode())
	assert.Equal(t, 1, src.flushes)

	src.flushErr = telemetry.ErrExporterClosed
	w = ut.PerformRequest(r, "POST", "/api/telemetry/flush", nil)
	assert.Equal(t, 503, w.Result().StatusCode())
	assert.Contains(t, decode(t, w).Error.Message, "shutting down")
}
