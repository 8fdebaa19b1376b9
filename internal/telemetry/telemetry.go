// Package telemetry exposes the engine's OpenTelemetry metrics through a
// Prometheus endpoint.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the meter provider and the engine's instruments. The zero
// value (and a nil pointer) is a no-op, so callers never need to branch on
// whether telemetry is enabled.
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	cyclesTotal   metric.Int64Counter
	cycleDuration metric.Float64Histogram
	copiesTotal   metric.Int64Counter
	copyDuration  metric.Float64Histogram
	copiedBytes   metric.Int64Counter
	daemonErrors  metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool
	ServiceName string
}

// New creates a telemetry instance backed by a Prometheus exporter and starts
// Go runtime metrics collection.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	t.cyclesTotal, err = t.meter.Int64Counter("privateer_cycles_total",
		metric.WithDescription("Scheduler cycles by outcome"))
	if err != nil {
		return err
	}

	t.cycleDuration, err = t.meter.Float64Histogram("privateer_cycle_duration_seconds",
		metric.WithDescription("Scheduler cycle duration"),
		metric.WithUnit("s"))
	if err != nil {
		return err
	}

	t.copiesTotal, err = t.meter.Int64Counter("privateer_copies_total",
		metric.WithDescription("Copy attempts by outcome"))
	if err != nil {
		return err
	}

	t.copyDuration, err = t.meter.Float64Histogram("privateer_copy_duration_seconds",
		metric.WithDescription("Copy duration per entry"),
		metric.WithUnit("s"))
	if err != nil {
		return err
	}

	t.copiedBytes, err = t.meter.Int64Counter("privateer_copied_bytes_total",
		metric.WithDescription("Bytes written to destination directories"),
		metric.WithUnit("By"))
	if err != nil {
		return err
	}

	t.daemonErrors, err = t.meter.Int64Counter("privateer_daemon_errors_total",
		metric.WithDescription("Daemon connection and RPC failures by kind"))

	return err
}

// RecordCycle records one scheduler cycle. Status is a bounded set:
// "ok", "connect_error" or "rpc_error".
func (t *Telemetry) RecordCycle(status string, duration time.Duration) {
	if t == nil || t.cyclesTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	t.cyclesTotal.Add(context.Background(), 1, attrs)
	t.cycleDuration.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordCopy records one copy attempt. Status is a bounded set:
// "copied", "preexisting" or "failed".
func (t *Telemetry) RecordCopy(status string, duration time.Duration) {
	if t == nil || t.copiesTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	t.copiesTotal.Add(context.Background(), 1, attrs)
	t.copyDuration.Record(context.Background(), duration.Seconds(), attrs)
}

// AddCopiedBytes accumulates bytes written to destinations.
func (t *Telemetry) AddCopiedBytes(n int64) {
	if t == nil || t.copiedBytes == nil {
		return
	}

	t.copiedBytes.Add(context.Background(), n)
}

// RecordDaemonError counts a daemon failure. Kind is "connection" or "rpc".
func (t *Telemetry) RecordDaemonError(kind string) {
	if t == nil || t.daemonErrors == nil {
		return
	}

	t.daemonErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// Handler returns the Prometheus scrape endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}

	return t.meterProvider.Shutdown(ctx)
}
