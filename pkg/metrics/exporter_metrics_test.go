package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"otelapi/pkg/telemetry"
)

type staticStats struct{ s telemetry.Stats }

func (s *staticStats) Stats() telemetry.Stats { return s.s }

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}
	return out
}

func TestExporterMetricsObserveStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	src := &staticStats{s: telemetry.Stats{
		Ingested:        10,
		Dropped:         2,
		EventsExported:  8,
		BatchesExported: 3,
		BatchesFailed:   1,
		OpenBatchSize:   4,
		QueuedBatches:   1,
	}}

	m, err := RegisterExporterMetrics(mp.Meter("test"), src)
	require.NoError(t, err)

	got := collect(t, reader)
	assert.Equal(t, int64(10), got["telemetry.exporter.events.ingested"])
	assert.Equal(t, int64(2), got["telemetry.exporter.events.dropped"])
	assert.Equal(t, int64(8), got["telemetry.exporter.events.exported"])
	assert.Equal(t, int64(3), got["telemetry.exporter.batches.exported"])
	assert.Equal(t, int64(1), got["telemetry.exporter.batches.failed"])
	assert.Equal(t, int64(0), got["telemetry.exporter.batches.dropped"])
	assert.Equal(t, int64(4), got["telemetry.exporter.open_batch.size"])
	assert.Equal(t, int64(1), got["telemetry.exporter.queue.batches"])

	src.s.Ingested = 15
	assert.Equal(t, int64(15), collect(t, reader)["telemetry.exporter.events.ingested"])

	require.NoError(t, m.Unregister())
}

func TestExporterMetricsWithRealExporter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	e, err := telemetry.NewExporter(telemetry.Config{MaxBatchSize: 100}, telemetry.TransportFunc(
		func(context.Context, *telemetry.Batch, telemetry.ResourceDescriptor) error { return nil },
	))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })

	_, err = RegisterExporterMetrics(mp.Meter("test"), e)
	require.NoError(t, err)

	e.Ingest(telemetry.MetricEvent(telemetry.MetricPoint{Name: "x", Value: 1}))
	got := collect(t, reader)
	assert.Equal(t, int64(1), got["telemetry.exporter.events.ingested"])
	assert.Equal(t, int64(1), got["telemetry.exporter.open_batch.size"])
}

func TestUnregisterNil(t *testing.T) {
	var m *ExporterMetrics
	assert.NoError(t, m.Unregister())
}
