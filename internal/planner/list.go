package planner

import (
	"restfilter/internal/filter"
	"restfilter/internal/metadata"
	"restfilter/internal/sqlutil"
)

// ListRequest is a list-query: filter, sort and range over one entity.
type ListRequest struct {
	Entity string
	Filter *filter.Tree
	Sort   []OrderBy
	Range  *Range
	Fields []string
}

// ListPlan is a compiled list query. Query renders the page; CountSQL on the
// same query renders the total.
type ListPlan struct {
	Query *Query
	Range Range
	Stats Stats
}

// PlanList compiles a list request. The identifier is appended as the last
// sort key so paging is stable.
func PlanList(registry *metadata.Registry, req ListRequest, limits PlanLimits) (*ListPlan, error) {
	entity, ok := registry.Entity(req.Entity)
	if !ok {
		return nil, &ConfigurationError{Entity: "registry", Path: req.Entity, Segment: req.Entity, Reason: "unknown entity"}
	}
	q, err := NewQuery(registry, entity.Name, RootAlias(entity))
	if err != nil {
		return nil, err
	}
	if err := q.Select(req.Fields...); err != nil {
		return nil, err
	}

	stats, err := Apply(q, req.Filter)
	if err != nil {
		return nil, err
	}
	if err := q.OrderBy(req.Sort...); err != nil {
		return nil, err
	}
	idColumn := sqlutil.QualifiedColumn(q.alias, entity.IdentifierField().Column)
	if !q.orderedBy(idColumn) {
		q.orderBy = append(q.orderBy, idColumn+" "+string(Asc))
	}

	window, err := limits.resolveRange(req.Range)
	if err != nil {
		return nil, err
	}
	q.Limit(uint64(window.Size())).Offset(uint64(window.Start))

	return &ListPlan{Query: q, Range: window, Stats: stats}, nil
}

// PlanGet compiles a lookup of one row by identifier.
func PlanGet(registry *metadata.Registry, entityName string, id any) (*Query, error) {
	entity, ok := registry.Entity(entityName)
	if !ok {
		return nil, &ConfigurationError{Entity: "registry", Path: entityName, Segment: entityName, Reason: "unknown entity"}
	}
	q, err := NewQuery(registry, entity.Name, RootAlias(entity))
	if err != nil {
		return nil, err
	}
	tree := filter.NewTree().Add(filter.FieldPath{entity.Identifier}, filter.Eq(id))
	if _, err := Apply(q, tree); err != nil {
		return nil, err
	}
	q.Limit(1)
	return q, nil
}
