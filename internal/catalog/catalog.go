// Package catalog owns the entity registry served by the API. It builds the
// registry from information_schema at startup, then polls a fingerprint of
// the schema and swaps in a rebuilt registry when the schema changes.
// Readers always see a complete snapshot.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"restfilter/internal/introspection"
	"restfilter/internal/logging"
	"restfilter/internal/metadata"
	"restfilter/internal/naming"
	"restfilter/internal/observability"
	"restfilter/internal/schemafilter"
)

const (
	// DefaultMinInterval is the poll interval after startup or a change.
	DefaultMinInterval = 30 * time.Second
	// DefaultMaxInterval caps the backoff while the schema is unchanged.
	DefaultMaxInterval = 5 * time.Minute
)

// ErrNotReady is returned when no snapshot has been built.
var ErrNotReady = errors.New("catalog not ready")

// Snapshot is an immutable view of the exposed schema.
type Snapshot struct {
	Registry        *metadata.Registry
	Schema          *introspection.Schema
	Filtered        schemafilter.Result
	BuiltAt         time.Time
	Fingerprint     string
	FingerprintMode string
	Components      map[string]string
}

// Config controls the catalog. A negative MinInterval disables polling;
// zero selects the default.
type Config struct {
	DB           introspection.Queryer
	DatabaseName string
	Logger       *logging.Logger
	Metrics      *observability.CatalogMetrics
	MinInterval  time.Duration
	MaxInterval  time.Duration
	Filters      schemafilter.Config
	Naming       naming.Config
}

// Manager maintains and refreshes catalog snapshots.
type Manager struct {
	db           introspection.Queryer
	databaseName string
	logger       *logging.Logger
	metrics      *observability.CatalogMetrics
	minInterval  time.Duration
	maxInterval  time.Duration
	polling      bool
	filters      schemafilter.Config
	namingConfig naming.Config

	active  atomic.Pointer[Snapshot]
	refresh sync.Mutex
	wg      sync.WaitGroup
}

// NewManager builds the first snapshot and returns a manager serving it.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("catalog requires a database handle")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	m := newManager(cfg)

	start := time.Now()
	fp, err := m.computeFingerprint(ctx)
	if err != nil {
		m.logger.Warn("failed to compute schema fingerprint", slog.String("error", err.Error()))
	}
	snapshot, err := m.buildSnapshot(ctx, fp)
	if err != nil {
		m.recordRefresh(ctx, time.Since(start), false, "startup", fp.Mode)
		return nil, err
	}
	m.store(snapshot)
	m.recordRefresh(ctx, time.Since(start), true, "startup", snapshot.FingerprintMode)
	return m, nil
}

func newManager(cfg Config) *Manager {
	minInterval, maxInterval := cfg.MinInterval, cfg.MaxInterval
	polling := minInterval >= 0
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if maxInterval <= 0 {
		maxInterval = DefaultMaxInterval
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}

	return &Manager{
		db:           cfg.DB,
		databaseName: cfg.DatabaseName,
		logger:       logger.WithFields(slog.String("component", "catalog")),
		metrics:      cfg.Metrics,
		minInterval:  minInterval,
		maxInterval:  maxInterval,
		polling:      polling,
		filters:      cfg.Filters,
		namingConfig: cfg.Naming,
	}
}

// Current returns the active snapshot, or nil before the first build.
func (m *Manager) Current() *Snapshot {
	return m.active.Load()
}

// Registry returns the active registry.
func (m *Manager) Registry() (*metadata.Registry, error) {
	snapshot := m.Current()
	if snapshot == nil || snapshot.Registry == nil {
		return nil, ErrNotReady
	}
	return snapshot.Registry, nil
}

// Start launches the poll loop. It stops when ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	if !m.polling {
		m.logger.Info("catalog refresh disabled")
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// Wait blocks until the poll loop exits or ctx is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshNow rebuilds the registry unconditionally and swaps it in.
func (m *Manager) RefreshNow(ctx context.Context) error {
	m.refresh.Lock()
	defer m.refresh.Unlock()

	start := time.Now()
	fp, err := m.computeFingerprint(ctx)
	if err != nil {
		m.recordRefresh(ctx, time.Since(start), false, "manual", fp.Mode)
		return err
	}
	snapshot, err := m.buildSnapshot(ctx, fp)
	if err != nil {
		m.recordRefresh(ctx, time.Since(start), false, "manual", fp.Mode)
		return err
	}
	m.store(snapshot)
	m.recordRefresh(ctx, time.Since(start), true, "manual", snapshot.FingerprintMode)
	return nil
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("catalog refresh stopped")
			return
		case <-timer.C:
			interval = m.refreshOnce(ctx, interval)
			timer.Reset(interval)
		}
	}
}

// refreshOnce checks the fingerprint and rebuilds on change. It returns the
// interval to wait before the next check: backed off while nothing changes,
// reset to the minimum after a change or a failure.
func (m *Manager) refreshOnce(ctx context.Context, interval time.Duration) time.Duration {
	m.refresh.Lock()
	defer m.refresh.Unlock()

	start := time.Now()
	fp, err := m.computeFingerprint(ctx)
	if err != nil {
		m.logger.Warn("schema fingerprint check failed", slog.String("error", err.Error()))
		m.recordRefresh(ctx, time.Since(start), false, "poll", fp.Mode)
		return m.minInterval
	}

	current := m.Current()
	if current != nil && fp.Value == current.Fingerprint {
		m.recordRefresh(ctx, time.Since(start), true, "poll_no_change", fp.Mode)
		return nextInterval(interval, m.minInterval, m.maxInterval)
	}

	var previous map[string]string
	if current != nil {
		previous = current.Components
	}
	m.logger.Info("schema change detected, rebuilding catalog",
		slog.String("fingerprint", fp.Value),
		slog.String("fingerprint_mode", fp.Mode),
		slog.Any("changed_components", changedComponents(previous, fp.Components)),
	)

	snapshot, err := m.buildSnapshot(ctx, fp)
	if err != nil {
		m.logger.Error("failed to rebuild catalog", slog.String("error", err.Error()))
		m.recordRefresh(ctx, time.Since(start), false, "poll", fp.Mode)
		return m.minInterval
	}
	m.store(snapshot)
	m.recordRefresh(ctx, time.Since(start), true, "poll", snapshot.FingerprintMode)
	m.logger.Info("catalog refresh complete",
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Int("entities", snapshot.Registry.Len()),
	)
	return m.minInterval
}

func (m *Manager) buildSnapshot(ctx context.Context, fp fingerprint) (*Snapshot, error) {
	start := time.Now()
	m.logger.Info("introspecting database schema", slog.String("database", m.databaseName))

	result, err := Build(ctx, BuildConfig{
		Queryer:      m.db,
		DatabaseName: m.databaseName,
		Filters:      m.filters,
		Naming:       m.namingConfig,
		Logger:       m.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	for _, entity := range result.Registry.Entities() {
		m.logger.Debug("entity registered",
			slog.String("entity", entity.Name),
			slog.String("table", entity.Table),
			slog.String("resource", entity.ResourceName()),
			slog.Int("fields", len(entity.Fields)),
			slog.Int("associations", len(entity.Associations)),
		)
	}
	m.logger.Info("catalog snapshot built",
		slog.Int("tables", len(result.Schema.Tables)),
		slog.Int("entities", result.Registry.Len()),
		slog.Duration("duration", time.Since(start)),
	)

	components := fp.Components
	if components == nil {
		components = map[string]string{}
	}
	return &Snapshot{
		Registry:        result.Registry,
		Schema:          result.Schema,
		Filtered:        result.Filtered,
		BuiltAt:         time.Now(),
		Fingerprint:     fp.Value,
		FingerprintMode: modeOrUnknown(fp.Mode),
		Components:      components,
	}, nil
}

func (m *Manager) store(snapshot *Snapshot) {
	m.active.Store(snapshot)
	m.metrics.SetEntityCount(snapshot.Registry.Len())
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}

func (m *Manager) recordRefresh(ctx context.Context, duration time.Duration, success bool, trigger, mode string) {
	m.metrics.RecordRefresh(context.WithoutCancel(ctx), duration, success, trigger, modeOrUnknown(mode))
}
