package otel

import (
	"github.com/cloudwego/hertz/pkg/protocol"
	"go.opentelemetry.io/otel/propagation"
)

var (
	_ propagation.TextMapCarrier = (*RequestHeaderCarrier)(nil)
	_ propagation.TextMapCarrier = (*ResponseHeaderCarrier)(nil)
)

// RequestHeaderCarrier hertz 请求头适配 TextMapCarrier
type RequestHeaderCarrier struct {
	Header *protocol.RequestHeader
}

func (c *RequestHeaderCarrier) Get(key string) string {
	return string(c.Header.Peek(key))
}

func (c *RequestHeaderCarrier) Set(key, value string) {
	c.Header.Set(key, value)
}

func (c *RequestHeaderCarrier) Keys() []string {
	var keys []string
	c.Header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

// ResponseHeaderCarrier hertz 响应头适配 TextMapCarrier
type ResponseHeaderCarrier struct {
	Header *protocol.ResponseHeader
}

func (c *ResponseHeaderCarrier) Get(key string) string {
	return string(c.Header.Peek(key))
}

func (c *ResponseHeaderCarrier) Set(key, value string) {
	c.Header.Set(key, value)
}

func (c *ResponseHeaderCarrier) Keys() []string {
	var keys []string
	c.Header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}
