// Package observe provides application-wide observability primitives for
// Vocalis: OpenTelemetry metrics with a Prometheus exporter bridge, tracing
// setup, and HTTP health handlers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. Tests should
// use [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all Vocalis metrics.
const meterName = "github.com/MrWong99/vocalis"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscribeDuration tracks the latency of a full language-fallback
	// transcription pass.
	TranscribeDuration metric.Float64Histogram

	// Transcriptions counts completed voice-note flows. Use with attribute:
	//   attribute.String("status", "recognized"|"unrecognized")
	Transcriptions metric.Int64Counter

	// Revisions counts appended transcript revisions (edits).
	Revisions metric.Int64Counter

	// TranscribeErrors counts failed transcription attempts (backend or
	// storage failures, not unrecognised speech).
	TranscribeErrors metric.Int64Counter

	// PendingEdits tracks the number of users currently awaiting a
	// correction reply.
	PendingEdits metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// one-shot voice-note transcription.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("vocalis.transcribe.duration",
		metric.WithDescription("Latency of a full language-fallback transcription pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("vocalis.transcriptions",
		metric.WithDescription("Completed voice-note transcription flows."),
	); err != nil {
		return nil, err
	}
	if met.Revisions, err = m.Int64Counter("vocalis.revisions",
		metric.WithDescription("Appended transcript revisions."),
	); err != nil {
		return nil, err
	}
	if met.TranscribeErrors, err = m.Int64Counter("vocalis.transcribe.errors",
		metric.WithDescription("Failed transcription attempts (excludes unrecognised speech)."),
	); err != nil {
		return nil, err
	}
	if met.PendingEdits, err = m.Int64UpDownCounter("vocalis.edits.pending",
		metric.WithDescription("Users currently awaiting a correction reply."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NewNopMetrics returns a Metrics whose instruments discard every record.
// Useful in tests and when observability is disabled.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}
