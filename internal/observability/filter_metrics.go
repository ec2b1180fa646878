package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FilterMetrics holds the instruments recorded around filter compilation and
// list requests.
type FilterMetrics struct {
	compileDuration metric.Float64Histogram
	compileErrors   metric.Int64Counter
	joins           metric.Int64Histogram
	subqueries      metric.Int64Histogram
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	rowsReturned    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// CompileOutcome describes one compiled filter.
type CompileOutcome struct {
	Resource   string
	Conditions int
	Joins      int
	Subqueries int
}

// InitFilterMetrics creates the filter instruments on the global meter.
func InitFilterMetrics(logger *slog.Logger) (*FilterMetrics, error) {
	meter := otel.Meter(MeterName)
	m := &FilterMetrics{}
	var err error

	if m.compileDuration, err = meter.Float64Histogram(
		"filter.compile.duration",
		metric.WithDescription("Duration of filter compilation in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}
	if m.compileErrors, err = meter.Int64Counter(
		"filter.compile.errors.total",
		metric.WithDescription("Filter compilations rejected, by error kind"),
	); err != nil {
		return nil, fmt.Errorf("failed to create compile error counter: %w", err)
	}
	if m.joins, err = meter.Int64Histogram(
		"filter.compile.joins",
		metric.WithDescription("Joins added by one filter compilation"),
	); err != nil {
		return nil, fmt.Errorf("failed to create joins histogram: %w", err)
	}
	if m.subqueries, err = meter.Int64Histogram(
		"filter.compile.subqueries",
		metric.WithDescription("EXISTS subqueries added by one filter compilation"),
	); err != nil {
		return nil, fmt.Errorf("failed to create subqueries histogram: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram(
		"rest.request.duration",
		metric.WithDescription("Duration of REST list and read requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter(
		"rest.requests.total",
		metric.WithDescription("Total number of REST list and read requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.rowsReturned, err = meter.Int64Histogram(
		"rest.rows.returned",
		metric.WithDescription("Rows returned by one REST request"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rows histogram: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter(
		"rest.requests.active",
		metric.WithDescription("Number of REST requests in flight"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	if logger != nil {
		logger.Info("filter metrics initialized")
	}
	return m, nil
}

// RecordCompile records a successful compilation.
func (m *FilterMetrics) RecordCompile(ctx context.Context, duration time.Duration, outcome CompileOutcome) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("resource", outcome.Resource))
	m.compileDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.joins.Record(ctx, int64(outcome.Joins), attrs)
	m.subqueries.Record(ctx, int64(outcome.Subqueries), attrs)
}

// RecordCompileError counts a rejected filter. kind is one of configuration,
// unsupported_operator, invalid_argument or invalid_filter.
func (m *FilterMetrics) RecordCompileError(ctx context.Context, resource, kind string) {
	if m == nil {
		return
	}
	m.compileErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("kind", kind),
	))
}

// RecordRequest records a finished REST request.
func (m *FilterMetrics) RecordRequest(ctx context.Context, operation, resource string, status int, duration time.Duration, rows int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("resource", resource),
		attribute.Int("status", status),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if rows >= 0 {
		m.rowsReturned.Record(ctx, int64(rows), metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("resource", resource),
		))
	}
}

// IncrementActiveRequests marks a request as started.
func (m *FilterMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests marks a request as finished.
func (m *FilterMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}
