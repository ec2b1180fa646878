// Package filter holds the canonical filter expression tree and the
// normalizer that turns client-supplied filter shapes into it.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilter is returned for filter input that cannot be parsed into a tree.
var ErrInvalidFilter = errors.New("invalid filter")

// OrSuffix routes a filter key into the OR group.
const OrSuffix = "__or"

// Operator names understood by the compiler. OpEq is the implicit default.
const (
	OpEq = "eq"
	OpIn = "in"
)

// FieldPath is a dotted path: association hops followed by a leaf field.
type FieldPath []string

// ParsePath splits a dotted path and rejects empty segments.
func ParsePath(raw string) (FieldPath, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty field path", ErrInvalidFilter)
	}
	segments := strings.Split(raw, ".")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: empty segment in field path %q", ErrInvalidFilter, raw)
		}
	}
	return FieldPath(segments), nil
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Leaf returns the last segment.
func (p FieldPath) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Condition is one operator applied to a field with its arguments.
type Condition struct {
	Operator string
	Args     []any
}

// Eq builds an equality condition.
func Eq(v any) Condition {
	return Condition{Operator: OpEq, Args: []any{v}}
}

// In builds a membership condition over a list of values.
func In(values []any) Condition {
	if values == nil {
		values = []any{}
	}
	return Condition{Operator: OpIn, Args: []any{values}}
}

// Op builds a condition with an explicit operator.
func Op(operator string, args ...any) Condition {
	return Condition{Operator: operator, Args: args}
}

// Combinator joins group members.
type Combinator int

const (
	And Combinator = iota
	Or
)

func (c Combinator) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// Member is one (path, condition) entry of a group.
type Member struct {
	Path      FieldPath
	Condition Condition
}

// Group is a list of members joined by one combinator.
type Group struct {
	Combinator Combinator
	Members    []Member
}

// Tree is a filter application: one AND group and one OR group.
// The compiled predicate is (AND group) AND (OR group).
type Tree struct {
	And Group
	Or  Group
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{And: Group{Combinator: And}, Or: Group{Combinator: Or}}
}

// Add appends conditions on path to the AND group.
func (t *Tree) Add(path FieldPath, conditions ...Condition) *Tree {
	for _, c := range conditions {
		t.And.Members = append(t.And.Members, Member{Path: path, Condition: c})
	}
	return t
}

// AddOr appends conditions on path to the OR group.
func (t *Tree) AddOr(path FieldPath, conditions ...Condition) *Tree {
	for _, c := range conditions {
		t.Or.Members = append(t.Or.Members, Member{Path: path, Condition: c})
	}
	return t
}

// Empty reports whether the tree has no members.
func (t *Tree) Empty() bool {
	return t == nil || (len(t.And.Members) == 0 && len(t.Or.Members) == 0)
}

// Len returns the number of leaf conditions.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.And.Members) + len(t.Or.Members)
}
