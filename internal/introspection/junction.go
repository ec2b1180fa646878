package introspection

// junction is a pure link table: two single-column foreign keys to two
// different entity tables that together form its primary key, and no other
// columns. Such tables are hidden and become many-to-many associations.
type junction struct {
	Table string
	Left  ForeignKeyConstraint
	Right ForeignKeyConstraint
}

// findJunctions classifies the schema's pure junction tables. isEntity
// reports whether a referenced table is exposed as an entity.
func findJunctions(schema *Schema, isEntity func(table string) bool) map[string]junction {
	out := make(map[string]junction)
	for _, table := range schema.Tables {
		if j, ok := classifyJunction(table, isEntity); ok {
			out[table.Name] = j
		}
	}
	return out
}

func classifyJunction(table Table, isEntity func(string) bool) (junction, bool) {
	if table.IsView || len(table.Columns) != 2 {
		return junction{}, false
	}
	fks := ForeignKeyConstraints(table)
	if len(fks) != 2 || !fks[0].SingleColumn() || !fks[1].SingleColumn() {
		return junction{}, false
	}
	left, right := fks[0], fks[1]
	if left.ReferencedTable == right.ReferencedTable {
		return junction{}, false
	}
	if !isEntity(left.ReferencedTable) || !isEntity(right.ReferencedTable) {
		return junction{}, false
	}
	if left.ColumnNames[0] == right.ColumnNames[0] {
		return junction{}, false
	}

	pk := PrimaryKeyColumns(table)
	if len(pk) != 2 {
		return junction{}, false
	}
	for _, col := range pk {
		if col.Name != left.ColumnNames[0] && col.Name != right.ColumnNames[0] {
			return junction{}, false
		}
	}
	if left.ReferencedTable > right.ReferencedTable {
		left, right = right, left
	}
	return junction{Table: table.Name, Left: left, Right: right}, true
}
