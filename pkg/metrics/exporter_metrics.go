package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"otelapi/pkg/telemetry"
)

// StatsSource 由 *telemetry.Exporter 实现
type StatsSource interface {
	Stats() telemetry.Stats
}

// ExporterMetrics 遥测 exporter 自身的指标，采集时读取 Stats 快照
type ExporterMetrics struct {
	EventsIngested  metric.Int64ObservableCounter
	EventsDropped   metric.Int64ObservableCounter
	EventsExported  metric.Int64ObservableCounter
	BatchesExported metric.Int64ObservableCounter
	BatchesFailed   metric.Int64ObservableCounter
	BatchesDropped  metric.Int64ObservableCounter
	OpenBatchSize   metric.Int64ObservableGauge
	QueuedBatches   metric.Int64ObservableGauge

	registration metric.Registration
}

// RegisterExporterMetrics 注册 observable 指标和回调
func RegisterExporterMetrics(meter metric.Meter, src StatsSource) (*ExporterMetrics, error) {
	m := &ExporterMetrics{}

	counters := []struct {
		dst  *metric.Int64ObservableCounter
		name string
		desc string
		unit string
	}{
		{&m.EventsIngested, "telemetry.exporter.events.ingested", "Events accepted into a batch", "{event}"},
		{&m.EventsDropped, "telemetry.exporter.events.dropped", "Events dropped before export", "{event}"},
		{&m.EventsExported, "telemetry.exporter.events.exported", "Events delivered to the transport", "{event}"},
		{&m.BatchesExported, "telemetry.exporter.batches.exported", "Batches sent successfully", "{batch}"},
		{&m.BatchesFailed, "telemetry.exporter.batches.failed", "Batches rejected by the transport", "{batch}"},
		{&m.BatchesDropped, "telemetry.exporter.batches.dropped", "Batches discarded without a send attempt", "{batch}"},
	}
	for _, c := range counters {
		inst, err := meter.Int64ObservableCounter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
		*c.dst = inst
	}

	var err error
	m.OpenBatchSize, err = meter.Int64ObservableGauge(
		"telemetry.exporter.open_batch.size",
		metric.WithDescription("Events in the batch currently being accumulated"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	m.QueuedBatches, err = meter.Int64ObservableGauge(
		"telemetry.exporter.queue.batches",
		metric.WithDescription("Flushed batches waiting for the sender"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := src.Stats()
		o.ObserveInt64(m.EventsIngested, int64(s.Ingested))
		o.ObserveInt64(m.EventsDropped, int64(s.Dropped))
		o.ObserveInt64(m.EventsExported, int64(s.EventsExported))
		o.ObserveInt64(m.BatchesExported, int64(s.BatchesExported))
		o.ObserveInt64(m.BatchesFailed, int64(s.BatchesFailed))
		o.ObserveInt64(m.BatchesDropped, int64(s.BatchesDropped))
		o.ObserveInt64(m.OpenBatchSize, int64(s.OpenBatchSize))
		o.ObserveInt64(m.QueuedBatches, int64(s.QueuedBatches))
		return nil
	},
		m.EventsIngested, m.EventsDropped, m.EventsExported,
		m.BatchesExported, m.BatchesFailed, m.BatchesDropped,
		m.OpenBatchSize, m.QueuedBatches,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register exporter metrics callback: %w", err)
	}

	return m, nil
}

// Unregister 停止采集
func (m *ExporterMetrics) Unregister() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
