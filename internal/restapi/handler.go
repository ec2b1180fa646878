// Package restapi serves the entity registry over a react-admin compatible
// REST surface. List requests carry the filter, sort and range as JSON query
// parameters and are compiled by the planner into one page query and one
// count query.
package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restfilter/internal/dbexec"
	"restfilter/internal/logging"
	"restfilter/internal/metadata"
	"restfilter/internal/observability"
	"restfilter/internal/planner"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RegistrySource returns the registry requests are compiled against.
type RegistrySource interface {
	Registry() (*metadata.Registry, error)
}

// Config wires a Handler.
type Config struct {
	Catalog  RegistrySource
	Executor dbexec.QueryExecutor
	Limits   planner.PlanLimits
	Metrics  *observability.FilterMetrics
	Logger   *logging.Logger
}

// Handler serves the list, read and metadata endpoints.
type Handler struct {
	catalog  RegistrySource
	executor dbexec.QueryExecutor
	limits   planner.PlanLimits
	metrics  *observability.FilterMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// New returns a Handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	return &Handler{
		catalog:  cfg.Catalog,
		executor: cfg.Executor,
		limits:   cfg.Limits,
		metrics:  cfg.Metrics,
		logger:   logger.WithFields(slog.String("component", "restapi")),
		tracer:   otel.Tracer("restfilter/restapi"),
	}
}

// Register mounts the endpoints under prefix, e.g. "/api".
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	mux.HandleFunc("GET "+prefix+"/_meta", h.handleMeta)
	mux.HandleFunc("GET "+prefix+"/{resource}", h.handleList)
	mux.HandleFunc("GET "+prefix+"/{resource}/{id}", h.handleGet)
}

// Routes returns a mux with the endpoints mounted under prefix.
func (h *Handler) Routes(prefix string) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux, prefix)
	return mux
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	ctx, span := h.tracer.Start(r.Context(), "restapi.list", trace.WithAttributes(
		attribute.String("restapi.resource", resource),
	))
	defer span.End()

	rowCount := -1
	status := http.StatusOK
	start := time.Now()
	h.metrics.IncrementActiveRequests(ctx)
	defer func() {
		h.metrics.DecrementActiveRequests(ctx)
		h.metrics.RecordRequest(ctx, "list", resource, status, time.Since(start), rowCount)
	}()

	rows, total, window, err := h.list(ctx, resource, r)
	if err != nil {
		status = h.writeError(ctx, w, span, err)
		return
	}
	rowCount = len(rows)

	w.Header().Set("Content-Range", contentRange(resource, window.Start, len(rows), total))
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	span.SetAttributes(
		attribute.Int("restapi.rows", len(rows)),
		attribute.Int64("restapi.total", total),
	)
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) list(ctx context.Context, resource string, r *http.Request) ([]map[string]any, int64, planner.Range, error) {
	registry, entity, err := h.lookup(resource)
	if err != nil {
		return nil, 0, planner.Range{}, err
	}
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		h.recordCompileError(ctx, resource, err)
		return nil, 0, planner.Range{}, err
	}

	compileStart := time.Now()
	plan, err := planner.PlanList(registry, planner.ListRequest{
		Entity: entity.Name,
		Filter: params.Filter,
		Sort:   params.Sort,
		Range:  params.Range,
	}, h.limits)
	if err != nil {
		h.recordCompileError(ctx, resource, err)
		return nil, 0, planner.Range{}, err
	}
	h.metrics.RecordCompile(ctx, time.Since(compileStart), observability.CompileOutcome{
		Resource:   resource,
		Conditions: plan.Stats.Conditions,
		Joins:      plan.Stats.Joins,
		Subqueries: plan.Stats.Subqueries,
	})

	query, args, err := plan.Query.ToSql()
	if err != nil {
		return nil, 0, plan.Range, fmt.Errorf("failed to render list query: %w", err)
	}
	h.requestLogger(ctx).Debug("list query compiled",
		slog.String("resource", resource),
		slog.String("sql", query),
		slog.Int("args", len(args)),
		slog.Int("joins", plan.Stats.Joins),
		slog.Int("subqueries", plan.Stats.Subqueries),
	)

	rows, err := h.query(ctx, query, args, resultFields(entity, plan.Query.Columns()))
	if err != nil {
		return nil, 0, plan.Range, err
	}

	countQuery, countArgs, err := plan.Query.CountSQL()
	if err != nil {
		return nil, 0, plan.Range, fmt.Errorf("failed to render count query: %w", err)
	}
	total, err := h.count(ctx, countQuery, countArgs)
	if err != nil {
		return nil, 0, plan.Range, err
	}
	return rows, total, plan.Range, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	ctx, span := h.tracer.Start(r.Context(), "restapi.get", trace.WithAttributes(
		attribute.String("restapi.resource", resource),
	))
	defer span.End()

	rowCount := -1
	status := http.StatusOK
	start := time.Now()
	h.metrics.IncrementActiveRequests(ctx)
	defer func() {
		h.metrics.DecrementActiveRequests(ctx)
		h.metrics.RecordRequest(ctx, "get", resource, status, time.Since(start), rowCount)
	}()

	row, err := h.get(ctx, resource, r.PathValue("id"))
	if err != nil {
		status = h.writeError(ctx, w, span, err)
		return
	}
	rowCount = 1
	writeJSON(w, http.StatusOK, row)
}

func (h *Handler) get(ctx context.Context, resource, rawID string) (map[string]any, error) {
	registry, entity, err := h.lookup(resource)
	if err != nil {
		return nil, err
	}
	id, err := parseID(entity, rawID)
	if err != nil {
		return nil, err
	}
	q, err := planner.PlanGet(registry, entity.Name, id)
	if err != nil {
		return nil, err
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to render read query: %w", err)
	}
	rows, err := h.query(ctx, query, args, resultFields(entity, q.Columns()))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s", errNotFound, resource, rawID)
	}
	return rows[0], nil
}

func (h *Handler) lookup(resource string) (*metadata.Registry, *metadata.Entity, error) {
	registry, err := h.catalog.Registry()
	if err != nil {
		return nil, nil, err
	}
	entity, ok := registry.ByResource(resource)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown resource %q", errNotFound, resource)
	}
	return registry, entity, nil
}

func (h *Handler) query(ctx context.Context, query string, args []any, fields []metadata.Field) ([]map[string]any, error) {
	rows, err := h.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	results, err := scanRows(rows, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	return results, nil
}

func (h *Handler) count(ctx context.Context, query string, args []any) (int64, error) {
	rows, err := h.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	total, err := scanCount(rows)
	if err != nil {
		return 0, fmt.Errorf("failed to scan count: %w", err)
	}
	return total, nil
}

func (h *Handler) recordCompileError(ctx context.Context, resource string, err error) {
	if kind, ok := compileErrorKind(err); ok {
		h.metrics.RecordCompileError(ctx, resource, kind)
	}
}

// writeError writes the error response and returns its status.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, span trace.Span, err error) int {
	status, kind := classify(err)
	span.SetAttributes(attribute.String("restapi.error_kind", kind))

	message := err.Error()
	if status >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		h.requestLogger(ctx).Error("request failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
	return status
}

func (h *Handler) requestLogger(ctx context.Context) *logging.Logger {
	if id := logging.GetRequestID(ctx); id != "" {
		return h.logger.WithRequestID(id)
	}
	return h.logger
}

// contentRange renders "resource start-end/total"; an empty page renders
// "resource */total".
func contentRange(resource string, start, n int, total int64) string {
	if n == 0 {
		return fmt.Sprintf("%s */%d", resource, total)
	}
	return fmt.Sprintf("%s %d-%d/%d", resource, start, start+n-1, total)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
