package naming

import "strings"

// orSuffix mirrors the filter key suffix that routes a condition to the OR
// group; a field carrying it could never be filtered in the AND group.
const orSuffix = "__or"

// isReservedFieldName reports names the filter syntax cannot address: path
// separators and the OR routing suffix.
func isReservedFieldName(name string) bool {
	if name == "" {
		return true
	}
	return strings.Contains(name, ".") || strings.HasSuffix(strings.ToLower(name), orSuffix)
}
