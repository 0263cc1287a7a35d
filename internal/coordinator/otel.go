package coordinator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/rfccambridge/robocup-prototype/internal/coordinator"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics wraps the coordinator's instruments. Created against the
// global OTel provider, which is a no-op unless telemetry is
// configured, so recording is always safe.
type metrics struct {
	published metric.Int64Counter
	dropped   metric.Int64Counter
	collected metric.Int64Counter
	crashes   metric.Int64Counter
}

func newMetrics() *metrics {
	m := meter()
	published, _ := m.Int64Counter(
		"coordinator.snapshots.published",
		metric.WithDescription("Snapshots delivered to provider links"),
	)
	dropped, _ := m.Int64Counter(
		"coordinator.snapshots.dropped",
		metric.WithDescription("Snapshots dropped because a provider link was full"),
	)
	collected, _ := m.Int64Counter(
		"coordinator.batches.collected",
		metric.WithDescription("Provider batches applied to the store"),
	)
	crashes, _ := m.Int64Counter(
		"coordinator.provider.crashes",
		metric.WithDescription("Provider loop crashes caught by supervision"),
	)
	return &metrics{published: published, dropped: dropped, collected: collected, crashes: crashes}
}

func (m *metrics) snapshotPublished(ctx context.Context, provider string) {
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (m *metrics) snapshotDropped(ctx context.Context, provider string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (m *metrics) batchCollected(ctx context.Context, provider string) {
	m.collected.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (m *metrics) providerCrashed(ctx context.Context, provider string) {
	m.crashes.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
