package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"restfilter/internal/introspection"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	fingerprintModeStructural  = "structural"
	fingerprintModeLightweight = "lightweight"
	fingerprintModeUnknown     = "unknown"
)

type fingerprint struct {
	Value      string
	Mode       string
	Components map[string]string
}

type fingerprintComponent struct {
	name  string
	query string
}

// structuralComponents cover exactly what the registry is derived from.
// Comments and defaults are left out; they do not change any entity.
var structuralComponents = []fingerprintComponent{
	{
		name: "tables",
		query: `
			SELECT TABLE_NAME, TABLE_TYPE
			FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = ?
				AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
			ORDER BY TABLE_NAME, TABLE_TYPE
		`,
	},
	{
		name: "columns",
		query: `
			SELECT
				TABLE_NAME,
				COLUMN_NAME,
				CAST(ORDINAL_POSITION AS CHAR),
				DATA_TYPE,
				COLUMN_TYPE,
				IS_NULLABLE
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = ?
			ORDER BY TABLE_NAME, ORDINAL_POSITION, COLUMN_NAME
		`,
	},
	{
		name: "primary_keys",
		query: `
			SELECT TABLE_NAME, COLUMN_NAME, CAST(ORDINAL_POSITION AS CHAR)
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ?
				AND CONSTRAINT_NAME = 'PRIMARY'
			ORDER BY TABLE_NAME, ORDINAL_POSITION, COLUMN_NAME
		`,
	},
	{
		name: "foreign_keys",
		query: `
			SELECT
				TABLE_NAME,
				CONSTRAINT_NAME,
				COLUMN_NAME,
				COALESCE(REFERENCED_TABLE_NAME, ''),
				COALESCE(REFERENCED_COLUMN_NAME, ''),
				CAST(ORDINAL_POSITION AS CHAR)
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ?
				AND REFERENCED_TABLE_NAME IS NOT NULL
			ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION, COLUMN_NAME
		`,
	},
}

const lightweightQuery = `
	SELECT
		TABLE_NAME,
		COALESCE(CAST(CREATE_TIME AS CHAR), ''),
		COALESCE(CAST(UPDATE_TIME AS CHAR), '')
	FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'BASE TABLE'
	ORDER BY TABLE_NAME
`

// computeFingerprint hashes the structural components and falls back to
// table timestamps when KEY_COLUMN_USAGE or COLUMNS cannot be read.
func (m *Manager) computeFingerprint(ctx context.Context) (fingerprint, error) {
	ctx, span := otel.Tracer("restfilter/catalog").Start(ctx, "catalog.compute_fingerprint")
	defer span.End()
	span.SetAttributes(attribute.String("db.name", m.databaseName))

	components := make(map[string]string, len(structuralComponents))
	var structuralErr error
	for _, component := range structuralComponents {
		hash, err := hashComponentQuery(ctx, m.db, component.query, m.databaseName)
		if err != nil {
			structuralErr = fmt.Errorf("failed to hash %s component: %w", component.name, err)
			break
		}
		components[component.name] = hash
	}
	if structuralErr == nil {
		span.SetAttributes(attribute.String("catalog.fingerprint_mode", fingerprintModeStructural))
		return fingerprint{
			Value:      combineComponentHashes(components),
			Mode:       fingerprintModeStructural,
			Components: components,
		}, nil
	}

	m.logger.Warn("structural fingerprint failed, falling back to table timestamps",
		slog.String("error", structuralErr.Error()),
	)
	hash, err := hashComponentQuery(ctx, m.db, lightweightQuery, m.databaseName)
	if err != nil {
		span.RecordError(structuralErr)
		span.RecordError(err)
		return fingerprint{Mode: fingerprintModeUnknown, Components: map[string]string{}},
			fmt.Errorf("failed to compute fingerprint: %w; fallback error: %v", structuralErr, err)
	}
	components = map[string]string{"table_timestamps": hash}
	span.SetAttributes(attribute.String("catalog.fingerprint_mode", fingerprintModeLightweight))
	return fingerprint{
		Value:      combineComponentHashes(components),
		Mode:       fingerprintModeLightweight,
		Components: components,
	}, nil
}

// hashComponentQuery hashes every cell of the result set. Cells are length
// prefixed so "ab","c" and "a","bc" differ.
func hashComponentQuery(ctx context.Context, queryer introspection.Queryer, query string, args ...any) (string, error) {
	rows, err := queryer.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	values := make([]sql.NullString, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}

	hash := sha256.New()
	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return "", err
		}
		for _, value := range values {
			cell := ""
			if value.Valid {
				cell = value.String
			}
			_, _ = fmt.Fprintf(hash, "%d:%s|", len(cell), cell)
		}
		_, _ = hash.Write([]byte{'\n'})
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func combineComponentHashes(components map[string]string) string {
	if len(components) == 0 {
		return ""
	}
	keys := make([]string, 0, len(components))
	for key := range components {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hash := sha256.New()
	for _, key := range keys {
		_, _ = fmt.Fprintf(hash, "%s=%s\n", key, components[key])
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// changedComponents lists the components whose hash differs, over the union
// of both key sets.
func changedComponents(previous, current map[string]string) []string {
	keys := make(map[string]struct{}, len(previous)+len(current))
	for key := range previous {
		keys[key] = struct{}{}
	}
	for key := range current {
		keys[key] = struct{}{}
	}
	changed := make([]string, 0, len(keys))
	for key := range keys {
		if previous[key] != current[key] {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

func modeOrUnknown(mode string) string {
	if strings.TrimSpace(mode) == "" {
		return fingerprintModeUnknown
	}
	return mode
}
