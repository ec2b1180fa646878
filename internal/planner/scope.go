package planner

import (
	"restfilter/internal/metadata"

	sq "github.com/Masterminds/squirrel"
)

// scope is a FROM root with its own joins and AND/OR groups: the outer query
// or one correlated subquery. Group members are squirrel expressions carrying
// :name placeholders. They render late, so an EXISTS attached early still
// includes conditions added to its subquery afterwards.
type scope struct {
	entity *metadata.Entity
	alias  string
	joins  []Join
	and    sq.And
	or     sq.Or
}

func (s *scope) add(or bool, p sq.Sqlizer) {
	if or {
		s.or = append(s.or, p)
		return
	}
	s.and = append(s.and, p)
}

// whereClauses returns the non-empty AND and OR groups; squirrel
// parenthesizes each one.
func (s *scope) whereClauses() []sq.Sqlizer {
	var clauses []sq.Sqlizer
	if len(s.and) > 0 {
		clauses = append(clauses, s.and)
	}
	if len(s.or) > 0 {
		clauses = append(clauses, s.or)
	}
	return clauses
}

// renderWhere renders the groups as WHERE text for the outer query.
func (s *scope) renderWhere() ([]string, error) {
	clauses := s.whereClauses()
	where := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		text, _, err := clause.ToSql()
		if err != nil {
			return nil, err
		}
		where = append(where, text)
	}
	return where, nil
}
