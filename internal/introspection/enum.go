package introspection

import (
	"fmt"
	"strings"
)

// parseValueList extracts the quoted members of an ENUM or SET COLUMN_TYPE,
// e.g. "set('a','b''c')" -> [a b'c]. kind is "enum" or "set".
func parseValueList(kind, columnType string) ([]string, error) {
	trimmed := strings.TrimSpace(columnType)
	prefix := kind + "("
	if !strings.HasPrefix(strings.ToLower(trimmed), prefix) || !strings.HasSuffix(trimmed, ")") {
		return nil, fmt.Errorf("%q is not a %s definition", columnType, kind)
	}
	body := trimmed[len(prefix) : len(trimmed)-1]

	var values []string
	var current strings.Builder
	inQuote := false
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if !inQuote {
			switch ch {
			case '\'':
				inQuote = true
				current.Reset()
			case ',', ' ':
			default:
				return nil, fmt.Errorf("unexpected %q at position %d", ch, i)
			}
			continue
		}
		switch {
		case ch == '\\' && i+1 < len(body):
			current.WriteByte(body[i+1])
			i++
		case ch == '\'' && i+1 < len(body) && body[i+1] == '\'':
			current.WriteByte('\'')
			i++
		case ch == '\'':
			inQuote = false
			values = append(values, current.String())
		default:
			current.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated value in %q", columnType)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no values in %q", columnType)
	}
	return values, nil
}
