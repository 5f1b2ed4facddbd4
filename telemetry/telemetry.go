// Package telemetry exposes request and provider counters in Prometheus format.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "go.detai.dev/companion"

// Metrics holds the counters. A nil *Metrics records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	requests metric.Int64Counter
	captures metric.Int64Counter
	speech   metric.Int64Counter
}

// New creates a meter provider backed by its own Prometheus registry.
func New(service, version string) (*Metrics, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	meter := provider.Meter(meterName)

	if m.requests, err = meter.Int64Counter("companion.http.requests",
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, err
	}
	if m.captures, err = meter.Int64Counter("companion.capture.results",
		metric.WithDescription("Viewport captures by result")); err != nil {
		return nil, err
	}
	if m.speech, err = meter.Int64Counter("companion.speech.ops",
		metric.WithDescription("Speech operations by op and result")); err != nil {
		return nil, err
	}

	slog.Info("telemetry initialized", "exporter", "prometheus")
	return m, nil
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// RecordRequest counts one HTTP response.
func (m *Metrics) RecordRequest(ctx context.Context, route string, status int) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	))
}

// RecordCapture counts one capture attempt.
func (m *Metrics) RecordCapture(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.captures.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSpeech counts one speech operation.
func (m *Metrics) RecordSpeech(ctx context.Context, op, result string) {
	if m == nil {
		return
	}
	m.speech.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
