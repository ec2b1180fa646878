package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"restfilter/internal/introspection"
	"restfilter/internal/metadata"
	"restfilter/internal/naming"
	"restfilter/internal/schemafilter"
)

// BuildConfig defines the inputs of one registry build.
type BuildConfig struct {
	Queryer      introspection.Queryer
	DatabaseName string
	Filters      schemafilter.Config
	Naming       naming.Config
	Logger       *slog.Logger
}

// BuildResult holds what one build produced.
type BuildResult struct {
	Schema   *introspection.Schema
	Registry *metadata.Registry
	Filtered schemafilter.Result
}

// Build introspects the database, applies the exposure filters and derives
// the entity registry. Each build uses a fresh namer so names do not depend
// on earlier snapshots.
func Build(ctx context.Context, cfg BuildConfig) (*BuildResult, error) {
	if cfg.Queryer == nil {
		return nil, fmt.Errorf("catalog build requires an introspection queryer")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schema, err := introspection.IntrospectDatabase(ctx, cfg.Queryer, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}

	filtered := schemafilter.Apply(schema, cfg.Filters)
	if filtered.DroppedTables > 0 || filtered.DroppedColumns > 0 {
		logger.Debug("schema filters applied",
			slog.Int("dropped_tables", filtered.DroppedTables),
			slog.Int("dropped_columns", filtered.DroppedColumns),
		)
	}

	namer := naming.New(cfg.Naming, logger)
	registry, err := introspection.BuildRegistry(ctx, schema, namer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build entity registry: %w", err)
	}

	return &BuildResult{Schema: schema, Registry: registry, Filtered: filtered}, nil
}
