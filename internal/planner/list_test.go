package planner

import (
	"errors"
	"math"
	"testing"

	"restfilter/internal/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanListSortReusesFilterJoin(t *testing.T) {
	tree := filter.NewTree().Add(filter.FieldPath{"category", "name"}, filter.Eq("Books"))
	plan, err := PlanList(testRegistry(t), ListRequest{
		Entity: "Product",
		Filter: tree,
		Sort:   []OrderBy{{Path: filter.FieldPath{"category", "name"}, Direction: Desc}},
		Range:  &Range{Start: 10, End: 19},
		Fields: []string{"id"},
	}, PlanLimits{})
	require.NoError(t, err)

	assert.Len(t, plan.Query.Joins(), 1)
	assert.Equal(t, Range{Start: 10, End: 19}, plan.Range)
	assert.Equal(t, 1, plan.Stats.Conditions)

	sql, args, err := plan.Query.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `p`.`id` AS `id` FROM `products` AS `p` "+
			"LEFT JOIN `categories` AS `p_category` ON `p_category`.`id` = `p`.`category_id` "+
			"WHERE (`p_category`.`name` = ?) "+
			"ORDER BY `p_category`.`name` DESC, `p`.`id` ASC LIMIT 10 OFFSET 10",
		sql)
	assert.Equal(t, []any{"Books"}, args)
}

func TestPlanListSortAddsJoinWithoutFilter(t *testing.T) {
	plan, err := PlanList(testRegistry(t), ListRequest{
		Entity: "Review",
		Sort:   []OrderBy{{Path: filter.FieldPath{"author", "email"}}},
		Fields: []string{"id"},
	}, PlanLimits{})
	require.NoError(t, err)

	sql, _, err := plan.Query.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `r`.`id` AS `id` FROM `reviews` AS `r` "+
			"LEFT JOIN `users` AS `r_author` ON `r_author`.`id` = `r`.`author_id` "+
			"ORDER BY `r_author`.`email` ASC, `r`.`id` ASC LIMIT 25 OFFSET 0",
		sql)
}

func TestPlanListIdentifierSortIsNotDuplicated(t *testing.T) {
	plan, err := PlanList(testRegistry(t), ListRequest{
		Entity: "Tag",
		Sort:   []OrderBy{{Path: filter.FieldPath{"id"}, Direction: Desc}},
	}, PlanLimits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"`t`.`id` DESC"}, plan.Query.orderBy)
}

func TestPlanListDefaultsAndCaps(t *testing.T) {
	reg := testRegistry(t)

	plan, err := PlanList(reg, ListRequest{Entity: "Tag"}, PlanLimits{DefaultPageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 0, End: 9}, plan.Range)

	plan, err = PlanList(reg, ListRequest{Entity: "Tag", Range: &Range{Start: 50, End: 5000}}, PlanLimits{MaxPageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 50, End: 149}, plan.Range)

	sql, _, err := plan.Query.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 100 OFFSET 50")

	plan, err = PlanList(reg, ListRequest{Entity: "Tag", Range: &Range{Start: 0, End: math.MaxInt64}}, PlanLimits{MaxPageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, plan.Range.Size())
	sql, _, err = plan.Query.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 100 OFFSET 0")
}

func TestPlanListErrors(t *testing.T) {
	reg := testRegistry(t)

	_, err := PlanList(reg, ListRequest{Entity: "Invoice"}, PlanLimits{})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = PlanList(reg, ListRequest{Entity: "Tag", Range: &Range{Start: 5, End: 2}}, PlanLimits{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = PlanList(reg, ListRequest{Entity: "Tag", Range: &Range{Start: -1, End: 2}}, PlanLimits{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = PlanList(reg, ListRequest{
		Entity: "Product",
		Sort:   []OrderBy{{Path: filter.FieldPath{"tags", "name"}}},
	}, PlanLimits{})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "tags", cfgErr.Segment)

	_, err = PlanList(reg, ListRequest{Entity: "Tag", Fields: []string{"colour"}}, PlanLimits{})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = PlanList(reg, ListRequest{
		Entity: "Tag",
		Filter: filter.NewTree().Add(filter.FieldPath{"name"}, filter.Op("fuzzy", "x")),
	}, PlanLimits{})
	require.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestPlanGet(t *testing.T) {
	q, err := PlanGet(testRegistry(t), "Tag", int64(7))
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `t`.`id` AS `id`, `t`.`name` AS `name` FROM `tags` AS `t` WHERE (`t`.`id` = ?) LIMIT 1", sql)
	assert.Equal(t, []any{int64(7)}, args)

	_, err = PlanGet(testRegistry(t), "Invoice", 1)
	require.ErrorIs(t, err, ErrConfiguration)
}
