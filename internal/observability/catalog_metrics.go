package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CatalogMetrics tracks catalog rebuilds.
type CatalogMetrics struct {
	refreshCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	lastSuccessUnix atomic.Int64
	entities        atomic.Int64
}

// InitCatalogMetrics creates the catalog instruments and registers the
// callback behind the observable gauges.
func InitCatalogMetrics(logger *slog.Logger) (*CatalogMetrics, error) {
	meter := otel.Meter(MeterName)

	refreshCounter, err := meter.Int64Counter(
		"catalog.refresh.total",
		metric.WithDescription("Total number of catalog refresh attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog refresh counter: %w", err)
	}
	errorCounter, err := meter.Int64Counter(
		"catalog.refresh.errors.total",
		metric.WithDescription("Total number of failed catalog refresh attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog refresh error counter: %w", err)
	}
	durationHist, err := meter.Float64Histogram(
		"catalog.refresh.duration",
		metric.WithDescription("Duration of catalog refresh attempts in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog refresh duration histogram: %w", err)
	}
	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"catalog.refresh.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful catalog refresh"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog last success gauge: %w", err)
	}
	entitiesGauge, err := meter.Int64ObservableGauge(
		"catalog.entities",
		metric.WithDescription("Entities exposed by the active catalog snapshot"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog entities gauge: %w", err)
	}

	metrics := &CatalogMetrics{
		refreshCounter: refreshCounter,
		errorCounter:   errorCounter,
		durationHist:   durationHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if value := metrics.lastSuccessUnix.Load(); value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
			}
			observer.ObserveInt64(entitiesGauge, metrics.entities.Load())
			return nil
		},
		lastSuccessGauge,
		entitiesGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register catalog gauge callback: %w", err)
	}

	if logger != nil {
		logger.Info("catalog metrics initialized")
	}
	return metrics, nil
}

// RecordRefresh records one refresh attempt. trigger is startup, manual,
// poll or poll_no_change; mode is the fingerprint strategy that ran.
func (m *CatalogMetrics) RecordRefresh(ctx context.Context, duration time.Duration, success bool, trigger, mode string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("fingerprint_mode", mode),
		attribute.Bool("success", success),
	)
	m.refreshCounter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), attrs)

	if !success {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
		return
	}
	m.lastSuccessUnix.Store(time.Now().Unix())
}

// SetEntityCount publishes the size of the active registry.
func (m *CatalogMetrics) SetEntityCount(n int) {
	if m == nil {
		return
	}
	m.entities.Store(int64(n))
}
