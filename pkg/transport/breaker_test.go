package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(next *stubTransport, maxFailures int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewBreaker(next, maxFailures, 30*time.Second, nil)
	cb.now = clock.now
	return cb, clock
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubTransport{name: "otlp", err: errors.New("unavailable")}
	cb, _ := newTestBreaker(next, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Send(ctx, sampleBatch(), testResource))
	}
	assert.Equal(t, BreakerOpen, cb.State())

	assert.ErrorIs(t, cb.Send(ctx, sampleBatch(), testResource), ErrBreakerOpen)
	assert.Equal(t, 3, next.sends)
	assert.Equal(t, "otlp", cb.Name())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	next := &stubTransport{name: "otlp", err: errors.New("unavailable")}
	cb, _ := newTestBreaker(next, 2)
	ctx := context.Background()

	assert.Error(t, cb.Send(ctx, sampleBatch(), testResource))
	next.err = nil
	assert.NoError(t, cb.Send(ctx, sampleBatch(), testResource))
	next.err = errors.New("unavailable")
	assert.Error(t, cb.Send(ctx, sampleBatch(), testResource))

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	next := &stubTransport{name: "otlp", err: errors.New("unavailable")}
	cb, clock := newTestBreaker(next, 1)
	ctx := context.Background()

	assert.Error(t, cb.Send(ctx, sampleBatch(), testResource))
	assert.Equal(t, BreakerOpen, cb.State())

	// 试探失败，重新熔断
	clock.advance(31 * time.Second)
	assert.EqualError(t, cb.Send(ctx, sampleBatch(), testResource), "unavailable")
	assert.Equal(t, BreakerOpen, cb.State())
	assert.ErrorIs(t, cb.Send(ctx, sampleBatch(), testResource), ErrBreakerOpen)

	// 试探成功，恢复
	clock.advance(31 * time.Second)
	next.err = nil
	assert.NoError(t, cb.Send(ctx, sampleBatch(), testResource))
	assert.Equal(t, BreakerClosed, cb.State())
	assert.Equal(t, 3, next.sends)
}

func TestBreakerCloseDelegates(t *testing.T) {
	next := &stubTransport{name: "http"}
	cb, _ := newTestBreaker(next, 1)

	assert.NoError(t, cb.Close(context.Background()))
	assert.True(t, next.closed)
}
