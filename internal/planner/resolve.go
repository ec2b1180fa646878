package planner

import (
	"restfilter/internal/filter"
	"restfilter/internal/metadata"
	"restfilter/internal/sqltype"
	"restfilter/internal/sqlutil"
)

// fieldRef is a resolved leaf: the column a predicate compares and the scope
// the predicate belongs to.
type fieldRef struct {
	scope  *scope
	alias  string
	column string
	kind   sqltype.Kind
	// relation is set when the leaf is the identifier of a to-many target,
	// reached by naming the association itself.
	relation bool
}

func (r fieldRef) sql() string {
	return sqlutil.QualifiedColumn(r.alias, r.column)
}

// resolve walks path from sc. To-one hops become joins in the current scope;
// a to-many hop moves the rest of the path into that relation's subquery.
func (c *compileContext) resolve(sc *scope, path filter.FieldPath, fullPath string, or bool) (fieldRef, error) {
	entity := sc.entity
	alias := sc.alias

	for i, segment := range path {
		last := i == len(path)-1

		if f, ok := entity.Field(segment); ok {
			if !last {
				return fieldRef{}, &ConfigurationError{Entity: entity.Name, Path: fullPath, Segment: segment, Reason: "scalar field has no nested fields"}
			}
			return fieldRef{scope: sc, alias: alias, column: f.Column, kind: f.Kind}, nil
		}

		assoc, ok := entity.Association(segment)
		if !ok {
			return fieldRef{}, &ConfigurationError{Entity: entity.Name, Path: fullPath, Segment: segment}
		}
		target, ok := c.query.registry.Entity(assoc.Target)
		if !ok {
			return fieldRef{}, &ConfigurationError{Entity: entity.Name, Path: fullPath, Segment: segment, Reason: "association target is not registered"}
		}
		identifier := target.IdentifierField()

		if assoc.Cardinality.ToMany() {
			if !c.allowToMany {
				return fieldRef{}, &ConfigurationError{Entity: entity.Name, Path: fullPath, Segment: segment, Reason: "to-many association is not allowed"}
			}
			sub := c.subqueryFor(sc, alias, assoc, target, or)
			if last {
				return fieldRef{scope: &sub.scope, alias: sub.alias, column: identifier.Column, kind: identifier.Kind, relation: true}, nil
			}
			return c.resolve(&sub.scope, path[i+1:], fullPath, or)
		}

		// A bare to-one association compares its identifier. When the owner
		// holds the key pointing at it, the local column is that identifier.
		if last && assoc.RemoteColumn == identifier.Column {
			return fieldRef{scope: sc, alias: alias, column: assoc.LocalColumn, kind: identifier.Kind}, nil
		}

		alias = c.join(sc, alias, assoc, target)
		entity = target
		if last {
			return fieldRef{scope: sc, alias: alias, column: identifier.Column, kind: identifier.Kind}, nil
		}
	}

	return fieldRef{}, &ConfigurationError{Entity: sc.entity.Name, Path: fullPath, Segment: "", Reason: "empty path"}
}

// join returns the alias of the LEFT JOIN for (parentAlias, relation), adding
// it to sc on first use.
func (c *compileContext) join(sc *scope, parentAlias string, assoc *metadata.Association, target *metadata.Entity) string {
	key := joinKey{parentAlias: parentAlias, relation: assoc.Name}
	if alias, ok := c.joinCache[key]; ok {
		return alias
	}
	alias := c.uniqueAlias(parentAlias + "_" + assoc.Name)
	sc.joins = append(sc.joins, Join{
		SourceAlias: parentAlias,
		Relation:    assoc.Name,
		Alias:       alias,
		Table:       target.Table,
		On:          sqlutil.QualifiedColumn(alias, assoc.RemoteColumn) + " = " + sqlutil.QualifiedColumn(parentAlias, assoc.LocalColumn),
	})
	c.joinCache[key] = alias
	c.stats.Joins++
	return alias
}
