package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"otelapi/pkg/telemetry"
)

// HTTPTransport 把 JSON 编码的 batch POST 到 collector，非 2xx 视为失败
type HTTPTransport struct {
	endpoint string
	client   *client.Client
}

// NewHTTP timeout 为单次请求的读超时，实际截止时间以 Send 的 ctx 为准
func NewHTTP(endpoint string, timeout time.Duration) (*HTTPTransport, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http transport requires an endpoint")
	}

	c, err := client.NewClient(
		client.WithDialTimeout(5*time.Second),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	return &HTTPTransport{endpoint: endpoint, client: c}, nil
}

func (t *HTTPTransport) Name() string { return "http" }

func (t *HTTPTransport) Send(ctx context.Context, b *telemetry.Batch, res telemetry.ResourceDescriptor) error {
	if b.Len() == 0 {
		return nil
	}

	body, err := EncodeBatch(b, res)
	if err != nil {
		return err
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(t.endpoint)
	req.SetMethod(consts.MethodPost)
	req.Header.SetContentTypeBytes([]byte(ContentType))
	req.Header.Set("X-Telemetry-Batch-Id", strconv.FormatInt(b.ID, 10))
	req.Header.Set("X-Telemetry-Service", res.ServiceName)
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = t.client.DoDeadline(ctx, req, resp, deadline)
	} else {
		err = t.client.Do(ctx, req, resp)
	}
	if err != nil {
		return fmt.Errorf("post batch %d to %s: %w", b.ID, t.endpoint, err)
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("collector %s responded with status %d", t.endpoint, code)
	}
	return nil
}

func (t *HTTPTransport) Close(context.Context) error {
	t.client.CloseIdleConnections()
	return nil
}
