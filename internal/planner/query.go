package planner

import (
	"fmt"
	"strings"

	"restfilter/internal/filter"
	"restfilter/internal/metadata"
	"restfilter/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Join is a LEFT JOIN added for a to-one association hop.
type Join struct {
	SourceAlias string
	Relation    string
	Alias       string
	Table       string
	On          string
}

type selectColumn struct {
	expr string
	name string
}

// Query is the target the filter compiler attaches joins, predicates and
// bound parameters to. Parameters are kept by name; ToSql rewrites the named
// placeholders into positional ones for execution.
//
// A Query is not safe for concurrent use.
type Query struct {
	registry *metadata.Registry
	entity   *metadata.Entity
	alias    string
	columns  []selectColumn
	joins    []Join
	where    []string
	params   map[string]any
	orderBy  []string

	limit     uint64
	offset    uint64
	hasLimit  bool
	hasOffset bool
}

// NewQuery starts a query over entityName aliased as alias, selecting every field.
func NewQuery(registry *metadata.Registry, entityName, alias string) (*Query, error) {
	entity, ok := registry.Entity(entityName)
	if !ok {
		return nil, &ConfigurationError{Entity: "registry", Path: entityName, Segment: entityName, Reason: "unknown entity"}
	}
	if strings.TrimSpace(alias) == "" {
		return nil, fmt.Errorf("query alias is required")
	}
	q := &Query{
		registry: registry,
		entity:   entity,
		alias:    alias,
		params:   map[string]any{},
	}
	for _, f := range entity.Fields {
		q.columns = append(q.columns, selectColumn{
			expr: sqlutil.QualifiedColumn(alias, f.Column) + " AS " + sqlutil.QuoteIdentifier(f.Name),
			name: f.Name,
		})
	}
	return q, nil
}

// RootAlias derives the conventional root alias of an entity: its first letter, lower-cased.
func RootAlias(entity *metadata.Entity) string {
	for _, r := range strings.ToLower(entity.Name) {
		if (r >= 'a' && r <= 'z') || r == '_' {
			return string(r)
		}
	}
	return "t"
}

// Entity returns the root entity.
func (q *Query) Entity() *metadata.Entity { return q.entity }

// Alias returns the root alias.
func (q *Query) Alias() string { return q.alias }

// Joins returns the joins attached so far.
func (q *Query) Joins() []Join {
	return append([]Join(nil), q.joins...)
}

// Where returns the attached WHERE clauses, each already parenthesized.
func (q *Query) Where() []string {
	return append([]string(nil), q.where...)
}

// Params returns a copy of the bound parameters.
func (q *Query) Params() map[string]any {
	out := make(map[string]any, len(q.params))
	for k, v := range q.params {
		out[k] = v
	}
	return out
}

// Columns returns the result column names in select order.
func (q *Query) Columns() []string {
	out := make([]string, len(q.columns))
	for i, c := range q.columns {
		out[i] = c.name
	}
	return out
}

// Select narrows the projection to the named fields of the root entity.
func (q *Query) Select(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	columns := make([]selectColumn, 0, len(fields))
	for _, name := range fields {
		f, ok := q.entity.Field(name)
		if !ok {
			return &ConfigurationError{Entity: q.entity.Name, Path: name, Segment: name}
		}
		columns = append(columns, selectColumn{
			expr: sqlutil.QualifiedColumn(q.alias, f.Column) + " AS " + sqlutil.QuoteIdentifier(f.Name),
			name: f.Name,
		})
	}
	q.columns = columns
	return nil
}

// Limit sets the LIMIT clause.
func (q *Query) Limit(n uint64) *Query {
	q.limit, q.hasLimit = n, true
	return q
}

// Offset sets the OFFSET clause.
func (q *Query) Offset(n uint64) *Query {
	q.offset, q.hasOffset = n, true
	return q
}

// Apply compiles tree and attaches the result to q. See the package-level Apply.
func (q *Query) Apply(tree *filter.Tree) (Stats, error) {
	return Apply(q, tree)
}

func (q *Query) base(columns ...string) sq.SelectBuilder {
	builder := sq.Select(columns...).From(sqlutil.TableAs(q.entity.Table, q.alias))
	for _, j := range q.joins {
		builder = builder.LeftJoin(sqlutil.TableAs(j.Table, j.Alias) + " ON " + j.On)
	}
	for _, w := range q.where {
		builder = builder.Where(w)
	}
	return builder.PlaceholderFormat(sq.Question)
}

// NamedSQL renders the query with :name placeholders and returns the bound parameters.
func (q *Query) NamedSQL() (string, map[string]any, error) {
	exprs := make([]string, len(q.columns))
	for i, c := range q.columns {
		exprs[i] = c.expr
	}
	builder := q.base(exprs...)
	if len(q.orderBy) > 0 {
		builder = builder.OrderBy(q.orderBy...)
	}
	if q.hasLimit {
		builder = builder.Limit(q.limit)
	}
	if q.hasOffset {
		builder = builder.Offset(q.offset)
	}
	query, _, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	return query, q.Params(), nil
}

// ToSql renders the query with positional placeholders. It implements squirrel.Sqlizer.
func (q *Query) ToSql() (string, []any, error) {
	named, params, err := q.NamedSQL()
	if err != nil {
		return "", nil, err
	}
	return bindNamed(named, params)
}

// CountSQL renders SELECT COUNT(*) over the same joins and predicates, ignoring
// order, limit and offset.
func (q *Query) CountSQL() (string, []any, error) {
	query, _, err := q.base("COUNT(*)").ToSql()
	if err != nil {
		return "", nil, err
	}
	return bindNamed(query, q.params)
}

// bindNamed rewrites :name placeholders into ? and collects args in order.
// Slice values expand to one placeholder per element. Quoted identifiers and
// string literals are copied verbatim.
func bindNamed(query string, params map[string]any) (string, []any, error) {
	var out strings.Builder
	out.Grow(len(query))
	args := make([]any, 0, len(params))

	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if quote != 0 {
			out.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '`' || ch == '\'' || ch == '"':
			quote = ch
			out.WriteByte(ch)
		case ch == ':' && i+1 < len(query) && isParamStart(query[i+1]):
			j := i + 1
			for j < len(query) && isParamChar(query[j]) {
				j++
			}
			name := query[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("unbound parameter %q", name)
			}
			if list, isList := filter.AsList(value); isList {
				if len(list) == 0 {
					out.WriteString("NULL")
				} else {
					out.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", "))
					args = append(args, list...)
				}
			} else {
				out.WriteByte('?')
				args = append(args, value)
			}
			i = j - 1
		default:
			out.WriteByte(ch)
		}
	}
	return out.String(), args, nil
}

func isParamStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isParamChar(ch byte) bool {
	return isParamStart(ch) || (ch >= '0' && ch <= '9')
}
