package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Parse builds a tree from a decoded filter object. Keys ending in OrSuffix go
// to the OR group. Keys are visited in sorted order so compiled output is stable.
func Parse(input map[string]any) (*Tree, error) {
	tree := NewTree()
	if len(input) == 0 {
		return tree, nil
	}

	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := addEntry(tree, key, input[key]); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// ParseJSON decodes a JSON filter object and builds a tree keeping the
// object's key order, so parameter numbering follows the client's input.
// Numbers that fit an int64 decode as int64, others as float64.
func ParseJSON(data []byte) (*Tree, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return NewTree(), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	tok, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: filter must be a JSON object", ErrInvalidFilter)
	}

	tree := NewTree()
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		key, _ := tok.(string)
		var raw any
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		if err := addEntry(tree, key, convertNumbers(raw)); err != nil {
			return nil, err
		}
	}
	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return tree, nil
}

func addEntry(tree *Tree, key string, raw any) error {
	rawPath, isOr := strings.CutSuffix(key, OrSuffix)
	path, err := ParsePath(rawPath)
	if err != nil {
		return err
	}
	conditions := Normalize(raw)
	for _, c := range conditions {
		if strings.TrimSpace(c.Operator) == "" {
			return fmt.Errorf("%w: empty operator for %q", ErrInvalidFilter, key)
		}
	}
	if isOr {
		tree.AddOr(path, conditions...)
	} else {
		tree.Add(path, conditions...)
	}
	return nil
}

func convertNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, item := range val {
			val[k] = convertNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = convertNumbers(item)
		}
		return val
	default:
		return v
	}
}
