package introspection

import (
	"fmt"
	"sort"
)

// ForeignKeyConstraint is a foreign key with its columns in ordinal order.
type ForeignKeyConstraint struct {
	ConstraintName    string
	ReferencedTable   string
	ColumnNames       []string
	ReferencedColumns []string
}

// SingleColumn reports whether the constraint maps exactly one column.
func (c ForeignKeyConstraint) SingleColumn() bool {
	return len(c.ColumnNames) == 1 && len(c.ReferencedColumns) == 1
}

// ForeignKeyConstraints groups the table's KEY_COLUMN_USAGE rows by
// constraint, sorted by constraint name. Rows without a constraint name are
// kept as separate single-column constraints.
func ForeignKeyConstraints(table Table) []ForeignKeyConstraint {
	if len(table.ForeignKeys) == 0 {
		return nil
	}

	groups := make(map[string][]ForeignKey)
	var keys []string
	for i, fk := range table.ForeignKeys {
		key := fk.ConstraintName
		if key == "" {
			key = fmt.Sprintf("\x00%04d", i)
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], fk)
	}
	sort.Strings(keys)

	out := make([]ForeignKeyConstraint, 0, len(keys))
	for _, key := range keys {
		rows := groups[key]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].OrdinalPosition < rows[j].OrdinalPosition
		})
		c := ForeignKeyConstraint{
			ConstraintName:  rows[0].ConstraintName,
			ReferencedTable: rows[0].ReferencedTable,
		}
		for _, fk := range rows {
			c.ColumnNames = append(c.ColumnNames, fk.ColumnName)
			c.ReferencedColumns = append(c.ReferencedColumns, fk.ReferencedColumn)
		}
		out = append(out, c)
	}
	return out
}
