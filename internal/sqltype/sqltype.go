// Package sqltype classifies SQL column types into the value kinds the filter
// compiler cares about. JSON and SET columns get dedicated membership
// predicates, every other kind compares as a plain scalar.
package sqltype

import "strings"

// Kind is the value category of a SQL column.
type Kind int

const (
	// KindString is the default for text and unknown SQL types.
	KindString Kind = iota
	// KindInt represents integer numeric types.
	KindInt
	// KindFloat represents floating-point and fixed-point numeric types.
	KindFloat
	// KindBoolean represents boolean types.
	KindBoolean
	// KindTime represents date and time types.
	KindTime
	// KindJSON represents JSON columns. Membership uses MEMBER OF.
	KindJSON
	// KindSet represents MySQL SET columns. Membership uses FIND_IN_SET.
	KindSet
	// KindBinary represents binary string types.
	KindBinary
)

// Classify converts a SQL data type string to its Kind.
// The input is case-insensitive. Size specifiers like (10,2) or (255) are stripped before matching,
// so both INFORMATION_SCHEMA.COLUMNS.DATA_TYPE and COLUMN_TYPE values are accepted.
func Classify(sqlType string) Kind {
	if idx := strings.Index(sqlType, "("); idx != -1 {
		sqlType = sqlType[:idx]
	}
	// COLUMN_TYPE may carry modifiers: "int unsigned", "bigint(20) zerofill".
	if idx := strings.IndexByte(strings.TrimSpace(sqlType), ' '); idx != -1 {
		sqlType = strings.TrimSpace(sqlType)[:idx]
	}
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT",
		"INTEGER", "BIGINT", "SERIAL", "BIT", "YEAR":
		return KindInt
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return KindFloat
	case "BOOL", "BOOLEAN":
		return KindBoolean
	case "DATE", "DATETIME", "TIMESTAMP", "TIME":
		return KindTime
	case "JSON":
		return KindJSON
	case "SET":
		return KindSet
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY":
		return KindBinary
	default:
		return KindString
	}
}

// String returns the lower-case kind name used in the metadata endpoint.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindTime:
		return "time"
	case KindJSON:
		return "json"
	case KindSet:
		return "set"
	case KindBinary:
		return "binary"
	default:
		return "string"
	}
}

// Comparable reports whether ordering operators (gt, lt, between) are meaningful for the kind.
func (k Kind) Comparable() bool {
	switch k {
	case KindJSON, KindSet, KindBinary:
		return false
	default:
		return true
	}
}
