package filter

import (
	"fmt"
	"reflect"
)

// Shape is the tag of a classified raw filter value.
type Shape int

const (
	// ShapeScalar is a scalar or null value, or anything unrecognized.
	ShapeScalar Shape = iota
	// ShapeList is an ordered list of scalars.
	ShapeList
	// ShapeOperator is a single operator object.
	ShapeOperator
	// ShapeConjunction is a list of operator objects applied to one field.
	ShapeConjunction
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeOperator:
		return "operator"
	case ShapeConjunction:
		return "conjunction"
	default:
		return "scalar"
	}
}

// Value is the tagged variant produced by Classify.
// Exactly one payload is meaningful, selected by Shape.
type Value struct {
	Shape       Shape
	Scalar      any
	List        []any
	Operator    Condition
	Conjunction []Condition
}

// Classify sorts a raw filter value into one of the four shapes. It is total:
// values that match no specific shape classify as ShapeScalar.
func Classify(raw any) Value {
	switch v := raw.(type) {
	case Condition:
		return Value{Shape: ShapeOperator, Operator: v}
	case []Condition:
		return Value{Shape: ShapeConjunction, Conjunction: append([]Condition(nil), v...)}
	case map[string]any:
		if c, ok := operatorObject(v); ok {
			return Value{Shape: ShapeOperator, Operator: c}
		}
		return Value{Shape: ShapeScalar, Scalar: raw}
	}

	items, ok := asList(raw)
	if !ok {
		return Value{Shape: ShapeScalar, Scalar: raw}
	}

	if len(items) > 0 {
		conditions := make([]Condition, 0, len(items))
		for _, item := range items {
			m, isMap := item.(map[string]any)
			if !isMap {
				break
			}
			c, isOp := operatorObject(m)
			if !isOp {
				break
			}
			conditions = append(conditions, c)
		}
		if len(conditions) == len(items) {
			return Value{Shape: ShapeConjunction, Conjunction: conditions}
		}
	}

	for _, item := range items {
		if !isScalar(item) {
			return Value{Shape: ShapeScalar, Scalar: raw}
		}
	}
	return Value{Shape: ShapeList, List: items}
}

// Normalize converts a raw filter value into its list of conditions.
func Normalize(raw any) []Condition {
	v := Classify(raw)
	switch v.Shape {
	case ShapeList:
		return []Condition{In(v.List)}
	case ShapeOperator:
		return []Condition{v.Operator}
	case ShapeConjunction:
		return v.Conjunction
	default:
		return []Condition{Eq(v.Scalar)}
	}
}

// operatorObject reads {"op"|"operator": name, "args"|"value": ...}.
func operatorObject(m map[string]any) (Condition, bool) {
	rawOp, ok := m["operator"]
	if !ok {
		rawOp, ok = m["op"]
	}
	if !ok {
		return Condition{}, false
	}
	name, ok := rawOp.(string)
	if !ok {
		name = fmt.Sprint(rawOp)
	}

	rawArgs, hasArgs := m["args"]
	if !hasArgs {
		rawArgs, hasArgs = m["value"]
	}
	if !hasArgs {
		return Condition{Operator: name, Args: []any{}}, true
	}
	if list, isList := asList(rawArgs); isList {
		return Condition{Operator: name, Args: list}, true
	}
	return Condition{Operator: name, Args: []any{rawArgs}}, true
}

// asList converts any slice or array (except []byte) to []any.
func asList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, []byte:
		return true
	case map[string]any, Condition, []Condition:
		return false
	}
	_, isList := asList(v)
	return !isList
}

// IsScalar reports whether v is a scalar filter argument (not a list or object).
func IsScalar(v any) bool {
	return isScalar(v)
}

// AsList exposes list conversion to the compiler for list-valued arguments.
func AsList(v any) ([]any, bool) {
	return asList(v)
}
