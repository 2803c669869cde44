// Package observe provides application-wide observability primitives for
// AiD: OpenTelemetry metrics, distributed tracing, and structured logging
// helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all AiD metrics.
const meterName = "github.com/kadonomaro197-cloud/AiD"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RetrievalDuration tracks long-term memory retrieval latency
	// (embed + search + re-rank).
	RetrievalDuration metric.Float64Histogram

	// AssemblyDuration tracks prompt assembly latency.
	AssemblyDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// PersistDuration tracks short-term log persistence latency.
	PersistDuration metric.Float64Histogram

	// --- Counters ---

	// MessagesIngested counts ingested conversation turns. Use with
	// attribute.String("role", ...).
	MessagesIngested metric.Int64Counter

	// MemoriesFormed counts long-term memories written. Use with
	// attribute.String("trigger", "immediate"|"reinforced").
	MemoriesFormed metric.Int64Counter

	// RetrievalResults counts memories returned to prompt assembly.
	RetrievalResults metric.Int64Counter

	// PromptsAssembled counts assembled prompts. Use with
	// attribute.String("mode", ...).
	PromptsAssembled metric.Int64Counter

	// GateTimeouts counts bounded lock waits that gave up.
	GateTimeouts metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts embedding/LLM provider errors. Use with
	// attributes provider and kind.
	ProviderErrors metric.Int64Counter

	// StorageErrors counts storage failures by component.
	StorageErrors metric.Int64Counter

	// --- Gauges ---

	// BackgroundTasks tracks in-flight post-processing tasks.
	BackgroundTasks metric.Int64UpDownCounter

	// RuntimeBufferSize tracks the current runtime buffer length.
	RuntimeBufferSize metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for chat-turn latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RetrievalDuration, err = m.Float64Histogram("aid.retrieval.duration",
		metric.WithDescription("Latency of long-term memory retrieval."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssemblyDuration, err = m.Float64Histogram("aid.prompt.assembly.duration",
		metric.WithDescription("Latency of prompt assembly."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("aid.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PersistDuration, err = m.Float64Histogram("aid.stm.persist.duration",
		metric.WithDescription("Latency of short-term log persistence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MessagesIngested, err = m.Int64Counter("aid.messages.ingested",
		metric.WithDescription("Total ingested conversation turns by role."),
	); err != nil {
		return nil, err
	}
	if met.MemoriesFormed, err = m.Int64Counter("aid.memories.formed",
		metric.WithDescription("Total long-term memories written by trigger."),
	); err != nil {
		return nil, err
	}
	if met.RetrievalResults, err = m.Int64Counter("aid.retrieval.results",
		metric.WithDescription("Total memories surfaced to prompt assembly."),
	); err != nil {
		return nil, err
	}
	if met.PromptsAssembled, err = m.Int64Counter("aid.prompts.assembled",
		metric.WithDescription("Total assembled prompts by mode."),
	); err != nil {
		return nil, err
	}
	if met.GateTimeouts, err = m.Int64Counter("aid.gate.timeouts",
		metric.WithDescription("Total bounded gate waits that timed out."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("aid.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.StorageErrors, err = m.Int64Counter("aid.storage.errors",
		metric.WithDescription("Total storage failures by component."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.BackgroundTasks, err = m.Int64UpDownCounter("aid.background.tasks",
		metric.WithDescription("Number of in-flight post-processing tasks."),
	); err != nil {
		return nil, err
	}
	if met.RuntimeBufferSize, err = m.Int64UpDownCounter("aid.runtime.buffer.size",
		metric.WithDescription("Current runtime buffer length."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// ObserveRetrieval records one retrieval pass: its latency and how many
// results survived re-ranking.
func (m *Metrics) ObserveRetrieval(ctx context.Context, d time.Duration, results int) {
	m.RetrievalDuration.Record(ctx, d.Seconds())
	m.RetrievalResults.Add(ctx, int64(results))
}

// RecordIngest records one ingested turn.
func (m *Metrics) RecordIngest(ctx context.Context, role string) {
	m.MessagesIngested.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

// RecordFormation records one written long-term memory.
func (m *Metrics) RecordFormation(ctx context.Context, trigger string) {
	m.MemoriesFormed.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordPrompt records one assembled prompt by mode.
func (m *Metrics) RecordPrompt(ctx context.Context, mode string) {
	m.PromptsAssembled.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordStorageError records a storage failure for component.
func (m *Metrics) RecordStorageError(ctx context.Context, component string) {
	m.StorageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}
