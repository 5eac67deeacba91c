package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otelapi/pkg/telemetry"
)

func TestHTTPTransportPostsJSON(t *testing.T) {
	got := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- r
		bodies <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL+"/v1/batches", time.Second)
	require.NoError(t, err)
	defer tr.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Send(ctx, sampleBatch(), testResource))

	r := <-got
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "/v1/batches", r.URL.Path)
	assert.Equal(t, ContentType, r.Header.Get("Content-Type"))
	assert.Equal(t, "42", r.Header.Get("X-Telemetry-Batch-Id"))

	wb, err := DecodeBatch(<-bodies)
	require.NoError(t, err)
	assert.Equal(t, int64(42), wb.BatchID)
	assert.Len(t, wb.Events, 3)
}

func TestHTTPTransportNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL, time.Second)
	require.NoError(t, err)

	err = tr.Send(context.Background(), sampleBatch(), testResource)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPTransportSkipsEmptyBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL, time.Second)
	require.NoError(t, err)

	require.NoError(t, tr.Send(context.Background(), &telemetry.Batch{}, testResource))
	assert.Zero(t, calls.Load())
}

func TestNewHTTPRequiresEndpoint(t *testing.T) {
	_, err := NewHTTP("", time.Second)
	assert.Error(t, err)
}
