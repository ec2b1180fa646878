// Package schemafilter limits which tables and columns of an introspected
// schema are exposed through the API.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"restfilter/internal/introspection"
)

// Config holds glob patterns for tables and columns. Column maps are keyed
// by table pattern; "*" applies to every table.
type Config struct {
	AllowTables      []string            `mapstructure:"allow_tables"`
	DenyTables       []string            `mapstructure:"deny_tables"`
	ScanViewsEnabled bool                `mapstructure:"scan_views_enabled"`
	AllowColumns     map[string][]string `mapstructure:"allow_columns"`
	DenyColumns      map[string][]string `mapstructure:"deny_columns"`
}

// Result counts what Apply removed.
type Result struct {
	DroppedTables  int
	DroppedColumns int
}

// Apply filters schema in place. An empty allow list allows everything and
// deny rules always win. Foreign keys whose local or referenced column was
// removed are dropped with it, as are tables left without columns.
func Apply(schema *introspection.Schema, cfg Config) Result {
	var result Result
	if schema == nil {
		return result
	}

	kept := make([]introspection.Table, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		if (table.IsView && !cfg.ScanViewsEnabled) || !cfg.tableAllowed(table.Name) {
			result.DroppedTables++
			continue
		}
		columns := table.Columns[:0:0]
		for _, col := range table.Columns {
			if cfg.columnAllowed(table.Name, col.Name) {
				columns = append(columns, col)
			} else {
				result.DroppedColumns++
			}
		}
		if len(columns) == 0 {
			result.DroppedTables++
			continue
		}
		table.Columns = columns
		kept = append(kept, table)
	}

	visible := make(map[string]map[string]bool, len(kept))
	for _, table := range kept {
		cols := make(map[string]bool, len(table.Columns))
		for _, col := range table.Columns {
			cols[col.Name] = true
		}
		visible[table.Name] = cols
	}

	for i := range kept {
		table := &kept[i]
		fks := table.ForeignKeys[:0:0]
		for _, fk := range table.ForeignKeys {
			if visible[table.Name][fk.ColumnName] && visible[fk.ReferencedTable][fk.ReferencedColumn] {
				fks = append(fks, fk)
			}
		}
		table.ForeignKeys = fks
	}

	schema.Tables = kept
	return result
}

func (c Config) tableAllowed(table string) bool {
	if matchesAny(table, c.DenyTables) {
		return false
	}
	return len(c.AllowTables) == 0 || matchesAny(table, c.AllowTables)
}

func (c Config) columnAllowed(table, column string) bool {
	if matchesAny(column, patternsFor(c.DenyColumns, table)) {
		return false
	}
	allow := patternsFor(c.AllowColumns, table)
	return len(allow) == 0 || matchesAny(column, allow)
}

// patternsFor collects the column patterns whose table key matches table.
func patternsFor(byTable map[string][]string, table string) []string {
	var out []string
	for tablePattern, patterns := range byTable {
		if matchesAny(table, []string{tablePattern}) {
			out = append(out, patterns...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// matchesAny reports whether value matches one of the glob patterns,
// ignoring case.
func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, err := path.Match(strings.ToLower(pattern), value); err == nil && ok {
			return true
		}
	}
	return false
}
