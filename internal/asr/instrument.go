package asr

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/loqa-asr/asr"

type instrumented struct {
	next     Recognizer
	provider string
	tracer   trace.Tracer
	requests metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// Instrument wraps rec with a span per call and request, failure and
// latency metrics from the global providers.
func Instrument(rec Recognizer, provider string) (Recognizer, error) {
	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("loqa.asr.requests", metric.WithDescription("Recognition requests"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("loqa.asr.failures", metric.WithDescription("Recognition requests without a transcription"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("loqa.asr.duration", metric.WithDescription("Recognition latency"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &instrumented{
		next:     rec,
		provider: provider,
		tracer:   otel.Tracer(instrumentationName),
		requests: requests,
		failures: failures,
		duration: duration,
	}, nil
}

func (i *instrumented) Recognize(ctx context.Context, frames [][]byte) (Transcription, bool) {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	attrs := metric.WithAttributes(attribute.String("provider", i.provider))

	ctx, span := i.tracer.Start(ctx, "asr.recognize", trace.WithAttributes(
		attribute.String("asr.provider", i.provider),
		attribute.Int("asr.frames", len(frames)),
		attribute.Int("asr.bytes", total),
	))
	defer span.End()

	start := time.Now()
	result, ok := i.next.Recognize(ctx, frames)
	i.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	i.requests.Add(ctx, 1, attrs)
	if !ok {
		i.failures.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, "no transcription")
		return result, false
	}
	span.SetAttributes(attribute.String("asr.path", result.Path))
	return result, true
}
