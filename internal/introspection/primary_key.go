package introspection

// PrimaryKeyColumns returns the primary key columns of table in column order.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// identifierColumn picks the column an entity is addressed by: the single
// primary key column, or for views without keys a column named "id".
func identifierColumn(table Table) (Column, bool) {
	pk := PrimaryKeyColumns(table)
	switch {
	case len(pk) == 1:
		return pk[0], true
	case len(pk) == 0 && table.IsView:
		for _, col := range table.Columns {
			if col.Name == "id" {
				return col, true
			}
		}
	}
	return Column{}, false
}
