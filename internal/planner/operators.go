package planner

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"restfilter/internal/filter"
	"restfilter/internal/sqltype"
)

// operand is what an operator builder works with: the resolved field, the
// path its parameters are named after, and the call's parameter binder.
type operand struct {
	ref  fieldRef
	path string
	op   string
	ctx  *compileContext
}

func (o operand) bind(value any) string {
	return o.ctx.bind(o.path, value)
}

func (o operand) invalid(format string, args ...any) error {
	return invalidArgument(o.op, o.path, format, args...)
}

type buildFunc func(o operand, args []any) (string, error)

// operator is one registry entry. maxArgs < 0 means unbounded.
type operator struct {
	name    string
	minArgs int
	maxArgs int
	build   buildFunc
}

var operatorRegistry = buildOperatorRegistry()

func buildOperatorRegistry() map[string]operator {
	registry := map[string]operator{}
	register := func(op operator, aliases ...string) {
		for _, name := range append([]string{op.name}, aliases...) {
			registry[strings.ToLower(name)] = op
		}
	}

	register(operator{name: "eq", minArgs: 1, maxArgs: 1, build: buildEquality("=", "IS NULL")})
	register(operator{name: "neq", minArgs: 1, maxArgs: 1, build: buildEquality("<>", "IS NOT NULL")}, "ne")
	register(operator{name: "gt", minArgs: 1, maxArgs: 1, build: buildComparison(">")})
	register(operator{name: "gte", minArgs: 1, maxArgs: 1, build: buildComparison(">=")})
	register(operator{name: "lt", minArgs: 1, maxArgs: 1, build: buildComparison("<")})
	register(operator{name: "lte", minArgs: 1, maxArgs: 1, build: buildComparison("<=")})
	register(operator{name: "in", minArgs: 0, maxArgs: -1, build: buildIn(false)})
	register(operator{name: "nin", minArgs: 0, maxArgs: -1, build: buildIn(true)}, "notIn")
	register(operator{name: "like", minArgs: 1, maxArgs: 1, build: buildLike("LIKE")})
	register(operator{name: "notLike", minArgs: 1, maxArgs: 1, build: buildLike("NOT LIKE")})
	register(operator{name: "starts", minArgs: 1, maxArgs: 1, build: buildAffix(true)})
	register(operator{name: "ends", minArgs: 1, maxArgs: 1, build: buildAffix(false)})
	register(operator{name: "is", minArgs: 1, maxArgs: 1, build: buildIs})
	register(operator{name: "isNull", minArgs: 0, maxArgs: 0, build: buildNullCheck("IS NULL")})
	register(operator{name: "isNotNull", minArgs: 0, maxArgs: 0, build: buildNullCheck("IS NOT NULL")})
	register(operator{name: "between", minArgs: 2, maxArgs: 2, build: buildBetween("BETWEEN")})
	register(operator{name: "notBetween", minArgs: 2, maxArgs: 2, build: buildBetween("NOT BETWEEN")})
	register(operator{name: "regexp", minArgs: 1, maxArgs: 1, build: buildRegexp(1)}, "regex")
	register(operator{name: "neregexp", minArgs: 1, maxArgs: 1, build: buildRegexp(0)}, "neregex", "notregex")
	register(operator{name: "member", minArgs: 1, maxArgs: 1, build: buildMember})
	return registry
}

func lookupOperator(name string) (operator, bool) {
	op, ok := operatorRegistry[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// Operators lists the canonical operator names, sorted.
func Operators() []string {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(operatorRegistry))
	for _, op := range operatorRegistry {
		if _, ok := seen[op.name]; ok {
			continue
		}
		seen[op.name] = struct{}{}
		names = append(names, op.name)
	}
	sort.Strings(names)
	return names
}

func (op operator) checkArity(o operand, args []any) error {
	if len(args) < op.minArgs || (op.maxArgs >= 0 && len(args) > op.maxArgs) {
		switch {
		case op.maxArgs < 0:
			return o.invalid("expects at least %d argument(s), got %d", op.minArgs, len(args))
		case op.minArgs == op.maxArgs:
			return o.invalid("expects %d argument(s), got %d", op.minArgs, len(args))
		default:
			return o.invalid("expects %d to %d arguments, got %d", op.minArgs, op.maxArgs, len(args))
		}
	}
	return nil
}

func scalarArg(o operand, v any) error {
	if !filter.IsScalar(v) {
		return o.invalid("argument must be a scalar, got %T", v)
	}
	return nil
}

func nonNullScalarArg(o operand, v any) error {
	if v == nil {
		return o.invalid("argument must not be null")
	}
	return scalarArg(o, v)
}

func buildEquality(sqlOp, nullCheck string) buildFunc {
	return func(o operand, args []any) (string, error) {
		if args[0] == nil {
			return o.ref.sql() + " " + nullCheck, nil
		}
		if err := scalarArg(o, args[0]); err != nil {
			return "", err
		}
		return o.ref.sql() + " " + sqlOp + " " + o.bind(args[0]), nil
	}
}

func buildComparison(sqlOp string) buildFunc {
	return func(o operand, args []any) (string, error) {
		if err := nonNullScalarArg(o, args[0]); err != nil {
			return "", err
		}
		return o.ref.sql() + " " + sqlOp + " " + o.bind(args[0]), nil
	}
}

// buildIn accepts either a single list argument or the values as separate
// arguments. An empty list never matches for IN and always matches for NOT IN.
func buildIn(negate bool) buildFunc {
	return func(o operand, args []any) (string, error) {
		values := args
		if len(args) == 1 {
			if list, ok := filter.AsList(args[0]); ok {
				values = list
			}
		}
		for _, v := range values {
			if err := scalarArg(o, v); err != nil {
				return "", err
			}
		}
		if len(values) == 0 {
			if negate {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		sqlOp := "IN"
		if negate {
			sqlOp = "NOT IN"
		}
		return o.ref.sql() + " " + sqlOp + " (" + o.bind(append([]any(nil), values...)) + ")", nil
	}
}

func buildLike(sqlOp string) buildFunc {
	return func(o operand, args []any) (string, error) {
		if err := nonNullScalarArg(o, args[0]); err != nil {
			return "", err
		}
		return o.ref.sql() + " " + sqlOp + " " + o.bind("%"+fmt.Sprint(args[0])+"%"), nil
	}
}

// buildAffix compares a SUBSTRING of the field with the raw value; the length
// is the value's character count. An empty affix matches every non-null
// value, as LIKE '%%' does.
func buildAffix(prefix bool) buildFunc {
	return func(o operand, args []any) (string, error) {
		if err := nonNullScalarArg(o, args[0]); err != nil {
			return "", err
		}
		value := fmt.Sprint(args[0])
		n := utf8.RuneCountInString(value)
		if n == 0 {
			return o.ref.sql() + " IS NOT NULL", nil
		}
		if prefix {
			return fmt.Sprintf("SUBSTRING(%s, 1, %d) = %s", o.ref.sql(), n, o.bind(value)), nil
		}
		return fmt.Sprintf("SUBSTRING(%s, -%d) = %s", o.ref.sql(), n, o.bind(value)), nil
	}
}

func buildIs(o operand, args []any) (string, error) {
	if args[0] == nil {
		return o.ref.sql() + " IS NULL", nil
	}
	word, ok := args[0].(string)
	if !ok {
		return "", o.invalid("argument must be \"null\" or \"notnull\", got %T", args[0])
	}
	switch strings.ToLower(strings.Join(strings.Fields(word), "")) {
	case "null":
		return o.ref.sql() + " IS NULL", nil
	case "notnull":
		return o.ref.sql() + " IS NOT NULL", nil
	default:
		return "", o.invalid("argument must be \"null\" or \"notnull\", got %q", word)
	}
}

func buildNullCheck(check string) buildFunc {
	return func(o operand, _ []any) (string, error) {
		return o.ref.sql() + " " + check, nil
	}
}

func buildBetween(sqlOp string) buildFunc {
	return func(o operand, args []any) (string, error) {
		for _, v := range args {
			if err := nonNullScalarArg(o, v); err != nil {
				return "", err
			}
		}
		low := o.bind(args[0])
		high := o.bind(args[1])
		return o.ref.sql() + " " + sqlOp + " " + low + " AND " + high, nil
	}
}

func buildRegexp(result int) buildFunc {
	return func(o operand, args []any) (string, error) {
		if err := nonNullScalarArg(o, args[0]); err != nil {
			return "", err
		}
		return fmt.Sprintf("REGEXP_LIKE(%s, %s) = %d", o.ref.sql(), o.bind(args[0]), result), nil
	}
}

// buildMember tests collection membership. The collection is a JSON array
// column, a SET column, or a to-many association addressed by name (in which
// case the value is matched against the related identifier).
func buildMember(o operand, args []any) (string, error) {
	if err := nonNullScalarArg(o, args[0]); err != nil {
		return "", err
	}
	switch {
	case o.ref.relation:
		return o.ref.sql() + " = " + o.bind(args[0]), nil
	case o.ref.kind == sqltype.KindJSON:
		return o.bind(args[0]) + " MEMBER OF(" + o.ref.sql() + ")", nil
	case o.ref.kind == sqltype.KindSet:
		return "FIND_IN_SET(" + o.bind(args[0]) + ", " + o.ref.sql() + ") > 0", nil
	default:
		return "", o.invalid("field is not a collection (JSON, SET or to-many association)")
	}
}
