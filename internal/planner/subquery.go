package planner

import (
	"restfilter/internal/metadata"
	"restfilter/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// subquery is the correlated EXISTS for one to-many relation. Every condition
// reaching the relation in one call lands in the same subquery, so combined
// conditions must hold for the same related row.
type subquery struct {
	scope
	from        string
	link        string
	correlation string
}

// ToSql renders the EXISTS with :name placeholders left in place.
func (s *subquery) ToSql() (string, []any, error) {
	builder := sq.Select("1").From(s.from)
	if s.link != "" {
		builder = builder.Join(s.link)
	}
	for _, j := range s.joins {
		builder = builder.LeftJoin(sqlutil.TableAs(j.Table, j.Alias) + " ON " + j.On)
	}
	builder = builder.Where(s.correlation)
	for _, clause := range s.whereClauses() {
		builder = builder.Where(clause)
	}
	query, _, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return "", nil, err
	}
	return "EXISTS (" + query + ")", nil, nil
}

// subqueryFor returns the subquery for (ownerAlias, target, relation), creating
// it on first use and attaching its EXISTS to the owner scope's group.
func (c *compileContext) subqueryFor(owner *scope, ownerAlias string, assoc *metadata.Association, target *metadata.Entity, or bool) *subquery {
	key := subqueryKey{ownerAlias: ownerAlias, target: target.Name, relation: assoc.Name}
	if existing, ok := c.subqueries[key]; ok {
		return existing
	}

	alias := c.uniqueAlias(ownerAlias + "_" + assoc.Name)
	s := &subquery{
		scope: scope{entity: target, alias: alias},
		from:  sqlutil.TableAs(target.Table, alias),
	}
	switch assoc.Cardinality {
	case metadata.ManyToMany:
		link := c.uniqueAlias(alias + "_link")
		s.link = sqlutil.TableAs(assoc.JoinTable, link) + " ON " +
			sqlutil.QualifiedColumn(link, assoc.JoinRemoteColumn) + " = " + sqlutil.QualifiedColumn(alias, assoc.RemoteColumn)
		s.correlation = sqlutil.QualifiedColumn(link, assoc.JoinLocalColumn) + " = " + sqlutil.QualifiedColumn(ownerAlias, assoc.LocalColumn)
	default:
		s.correlation = sqlutil.QualifiedColumn(alias, assoc.RemoteColumn) + " = " + sqlutil.QualifiedColumn(ownerAlias, assoc.LocalColumn)
	}

	owner.add(or, s)
	c.subqueries[key] = s
	c.stats.Subqueries++
	return s
}
