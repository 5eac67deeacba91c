package transport

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"otelapi/pkg/telemetry"
)

// Fanout 依次发送到多个 transport，任何一个失败都不影响其他 transport
type Fanout struct {
	transports []telemetry.Transport
	name       string
}

func NewFanout(transports ...telemetry.Transport) *Fanout {
	names := make([]string, 0, len(transports))
	for _, t := range transports {
		names = append(names, t.Name())
	}
	return &Fanout{transports: transports, name: "fanout(" + strings.Join(names, ",") + ")"}
}

func (f *Fanout) Name() string { return f.name }

func (f *Fanout) Send(ctx context.Context, b *telemetry.Batch, res telemetry.ResourceDescriptor) error {
	var err error
	for _, t := range f.transports {
		err = multierr.Append(err, telemetry.NewTransportError(t.Name(), t.Send(ctx, b, res)))
	}
	return err
}

func (f *Fanout) Close(ctx context.Context) error {
	var err error
	for _, t := range f.transports {
		err = multierr.Append(err, telemetry.NewTransportError(t.Name(), t.Close(ctx)))
	}
	return err
}
