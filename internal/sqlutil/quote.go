// Package sqlutil provides SQL identifier helpers.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, alias)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QualifiedColumn renders alias.column with both parts quoted.
func QualifiedColumn(alias, column string) string {
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// TableAs renders a FROM/JOIN source with an alias.
func TableAs(table, alias string) string {
	return QuoteIdentifier(table) + " AS " + QuoteIdentifier(alias)
}
