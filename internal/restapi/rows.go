package restapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"restfilter/internal/dbexec"
	"restfilter/internal/metadata"
	"restfilter/internal/sqltype"
)

// resultFields maps selected column names back to entity fields.
func resultFields(entity *metadata.Entity, columns []string) []metadata.Field {
	out := make([]metadata.Field, len(columns))
	for i, name := range columns {
		if f, ok := entity.Field(name); ok {
			out[i] = *f
		} else {
			out[i] = metadata.Field{Name: name}
		}
	}
	return out
}

func scanRows(rows dbexec.Rows, fields []metadata.Field) ([]map[string]any, error) {
	results := make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = convertValue(f, values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// convertValue turns a driver value into its JSON representation. The text
// protocol hands every column back as bytes, so numbers and flags are parsed
// by the field's kind.
func convertValue(f metadata.Field, val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return convertBytes(f, v)
	case int64:
		if f.Kind == sqltype.KindBoolean {
			return v != 0
		}
		return v
	default:
		return v
	}
}

func convertBytes(f metadata.Field, b []byte) any {
	s := string(b)
	switch f.Kind {
	case sqltype.KindJSON:
		if json.Valid(b) {
			return json.RawMessage(bytes.Clone(b))
		}
		return s
	case sqltype.KindBinary:
		return bytes.Clone(b)
	case sqltype.KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case sqltype.KindFloat:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	case sqltype.KindBoolean:
		return s != "0" && s != ""
	case sqltype.KindSet:
		if s == "" {
			return []string{}
		}
		return strings.Split(s, ",")
	}
	return s
}

func scanCount(rows dbexec.Rows) (int64, error) {
	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}
