package planner

import (
	"errors"
	"strings"
	"testing"

	"restfilter/internal/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTree(t *testing.T, raw string) *filter.Tree {
	t.Helper()
	tree, err := filter.ParseJSON([]byte(raw))
	require.NoError(t, err)
	return tree
}

func TestApplyScalarAndRange(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	stats, err := Apply(q, parseTree(t, `{"status": "active", "price": [{"op":"gte","args":[100]}, {"op":"lte","args":[1000]}]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(`p`.`status` = :status_0 AND `p`.`price` >= :price_1 AND `p`.`price` <= :price_2)",
	}, q.Where())
	assert.Equal(t, map[string]any{
		"status_0": "active",
		"price_1":  int64(100),
		"price_2":  int64(1000),
	}, q.Params())
	assert.Empty(t, q.Joins())
	assert.Equal(t, Stats{Conditions: 3}, stats)
}

func TestApplyToOneJoin(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"category.name": "Electronics"}`))
	require.NoError(t, err)

	require.Len(t, q.Joins(), 1)
	assert.Equal(t, Join{
		SourceAlias: "p",
		Relation:    "category",
		Alias:       "p_category",
		Table:       "categories",
		On:          "`p_category`.`id` = `p`.`category_id`",
	}, q.Joins()[0])
	assert.Equal(t, []string{"(`p_category`.`name` = :category_name_0)"}, q.Where())
	assert.Equal(t, map[string]any{"category_name_0": "Electronics"}, q.Params())
}

func TestApplyReusesJoinForRepeatedPath(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	stats, err := Apply(q, parseTree(t, `{"category.name": "Electronics", "category.slug__or": "tv", "category.parent.name": "Root"}`))
	require.NoError(t, err)

	joins := q.Joins()
	require.Len(t, joins, 2)
	assert.Equal(t, "p_category", joins[0].Alias)
	assert.Equal(t, "p_category_parent", joins[1].Alias)
	assert.Equal(t, "`p_category_parent`.`id` = `p_category`.`parent_id`", joins[1].On)
	assert.Equal(t, 2, stats.Joins)

	assert.Equal(t, []string{
		"(`p_category`.`name` = :category_name_0 AND `p_category_parent`.`name` = :category_parent_name_1)",
		"(`p_category`.`slug` = :category_slug_2)",
	}, q.Where())
}

func TestApplyBareToOneUsesForeignKey(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"category": 5}`))
	require.NoError(t, err)

	assert.Empty(t, q.Joins())
	assert.Equal(t, []string{"(`p`.`category_id` = :category_0)"}, q.Where())
	assert.Equal(t, map[string]any{"category_0": int64(5)}, q.Params())
}

func TestApplyMemberOfJSONInOrGroup(t *testing.T) {
	q := newTestQuery(t, "User", "u")
	_, err := Apply(q, parseTree(t, `{"roles__or": {"op": "member", "args": ["ROLE_ADMIN"]}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"(:roles_0 MEMBER OF(`u`.`roles`))"}, q.Where())
	assert.Equal(t, map[string]any{"roles_0": "ROLE_ADMIN"}, q.Params())
}

func TestApplyAndGroupThenOrGroup(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"status": "active", "title__or": {"op":"like","args":["phone"]}, "price__or": {"op":"lt","args":[10]}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(`p`.`status` = :status_0)",
		"(`p`.`title` LIKE :title_1 OR `p`.`price` < :price_2)",
	}, q.Where())

	query, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE (`p`.`status` = ?) AND (`p`.`title` LIKE ? OR `p`.`price` < ?)")
	assert.Equal(t, []any{"active", "%phone%", int64(10)}, args)
}

func TestApplyEmptyInOnToManyMatchesNothing(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"tags": {"op": "in", "args": [[]]}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(EXISTS (SELECT 1 FROM `tags` AS `p_tags` JOIN `product_tags` AS `p_tags_link` ON `p_tags_link`.`tag_id` = `p_tags`.`id` WHERE `p_tags_link`.`product_id` = `p`.`id` AND (1 = 0)))",
	}, q.Where())
	assert.Empty(t, q.Params())
}

func TestApplyEmptyListShorthand(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"status": []}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"(1 = 0)"}, q.Where())

	q = newTestQuery(t, "Product", "p")
	_, err = Apply(q, parseTree(t, `{"status": {"op": "nin", "args": [[]]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"(1 = 1)"}, q.Where())
}

func TestApplyFoldsConditionsIntoOneSubquery(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	stats, err := Apply(q, parseTree(t, `{"reviews.rating": {"op": "gte", "args": [4]}, "reviews.body": {"op": "like", "args": ["great"]}}`))
	require.NoError(t, err)

	where := q.Where()
	require.Len(t, where, 1)
	assert.Equal(t, 1, strings.Count(where[0], "EXISTS"))
	assert.Equal(t,
		"(EXISTS (SELECT 1 FROM `reviews` AS `p_reviews` WHERE `p_reviews`.`product_id` = `p`.`id` AND (`p_reviews`.`rating` >= :reviews_rating_0 AND `p_reviews`.`body` LIKE :reviews_body_1)))",
		where[0])
	assert.Equal(t, "%great%", q.Params()["reviews_body_1"])
	assert.Equal(t, 1, stats.Subqueries)
	assert.Empty(t, q.Joins())
}

func TestApplySubqueryMergesOrGroup(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	tree := filter.NewTree().
		Add(filter.FieldPath{"reviews", "rating"}, filter.Op("gte", 4)).
		AddOr(filter.FieldPath{"reviews", "body"}, filter.Op("like", "great")).
		AddOr(filter.FieldPath{"reviews", "body"}, filter.Op("like", "good"))
	_, err := Apply(q, tree)
	require.NoError(t, err)

	where := q.Where()
	require.Len(t, where, 1)
	assert.Equal(t,
		"(EXISTS (SELECT 1 FROM `reviews` AS `p_reviews` WHERE `p_reviews`.`product_id` = `p`.`id` AND (`p_reviews`.`rating` >= :reviews_rating_0) AND (`p_reviews`.`body` LIKE :reviews_body_1 OR `p_reviews`.`body` LIKE :reviews_body_2)))",
		where[0])
}

func TestApplyToOneInsideSubquery(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"reviews.author.email": "a@example.com"}`))
	require.NoError(t, err)

	assert.Empty(t, q.Joins())
	assert.Equal(t, []string{
		"(EXISTS (SELECT 1 FROM `reviews` AS `p_reviews` LEFT JOIN `users` AS `p_reviews_author` ON `p_reviews_author`.`id` = `p_reviews`.`author_id` WHERE `p_reviews`.`product_id` = `p`.`id` AND (`p_reviews_author`.`email` = :reviews_author_email_0)))",
	}, q.Where())
}

func TestApplyNestedToMany(t *testing.T) {
	q := newTestQuery(t, "Category", "c")
	stats, err := Apply(q, parseTree(t, `{"products.tags.name": "sale", "products.title": {"op": "starts", "args": ["Pro"]}}`))
	require.NoError(t, err)

	where := q.Where()
	require.Len(t, where, 1)
	assert.Equal(t, 2, strings.Count(where[0], "EXISTS"))
	assert.Equal(t,
		"(EXISTS (SELECT 1 FROM `products` AS `c_products` WHERE `c_products`.`category_id` = `c`.`id` AND "+
			"(EXISTS (SELECT 1 FROM `tags` AS `c_products_tags` JOIN `product_tags` AS `c_products_tags_link` ON `c_products_tags_link`.`tag_id` = `c_products_tags`.`id` WHERE `c_products_tags_link`.`product_id` = `c_products`.`id` AND (`c_products_tags`.`name` = :products_tags_name_0)) "+
			"AND SUBSTRING(`c_products`.`title`, 1, 3) = :products_title_1)))",
		where[0])
	assert.Equal(t, 2, stats.Subqueries)
}

func TestApplyMemberOnAssociationAndSet(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"tags": {"op": "member", "args": [3]}, "flags": {"op": "member", "args": ["featured"]}}`))
	require.NoError(t, err)

	where := q.Where()
	require.Len(t, where, 1)
	assert.Contains(t, where[0], "WHERE `p_tags_link`.`product_id` = `p`.`id` AND (`p_tags`.`id` = :tags_0)")
	assert.Contains(t, where[0], "FIND_IN_SET(:flags_1, `p`.`flags`) > 0")
}

func TestApplyMemberRejectsScalarColumn(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"title": {"op": "member", "args": ["x"]}}`))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApplyUnknownFieldLeavesQueryUntouched(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	tree := filter.NewTree().
		Add(filter.FieldPath{"category", "name"}, filter.Eq("x")).
		Add(filter.FieldPath{"category", "bogus"}, filter.Eq(1))

	_, err := Apply(q, tree)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "bogus", cfgErr.Segment)
	assert.Equal(t, "Category", cfgErr.Entity)

	assert.Empty(t, q.Joins())
	assert.Empty(t, q.Where())
	assert.Empty(t, q.Params())
}

func TestApplyRejectsPathThroughScalar(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"title.length": 3}`))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestApplyUnsupportedOperator(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"status": {"op": "soundsLike", "args": ["x"]}}`))
	require.Error(t, err)

	var opErr *UnsupportedOperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "soundsLike", opErr.Operator)
	assert.Equal(t, "status", opErr.Path)
	assert.True(t, errors.Is(err, ErrUnsupportedOperator))
	assert.Empty(t, q.Where())
}

func TestApplyTwiceOnSameQuery(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	_, err := Apply(q, parseTree(t, `{"category.name": "a"}`))
	require.NoError(t, err)
	_, err = Apply(q, parseTree(t, `{"category.name": "b"}`))
	require.NoError(t, err)

	require.Len(t, q.Joins(), 1)
	assert.Equal(t, []string{
		"(`p_category`.`name` = :category_name_0)",
		"(`p_category`.`name` = :category_name_1)",
	}, q.Where())
	assert.Equal(t, map[string]any{"category_name_0": "a", "category_name_1": "b"}, q.Params())
}

func TestApplyEmptyTree(t *testing.T) {
	q := newTestQuery(t, "Product", "p")
	stats, err := Apply(q, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	_, err = Apply(nil, filter.NewTree())
	require.Error(t, err)
}
