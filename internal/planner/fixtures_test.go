package planner

import (
	"testing"

	"restfilter/internal/metadata"
	"restfilter/internal/sqltype"

	"github.com/stretchr/testify/require"
)

func intField(name, column string) metadata.Field {
	return metadata.Field{Name: name, Column: column, DataType: "int", Kind: sqltype.KindInt}
}

func stringField(name, column string) metadata.Field {
	return metadata.Field{Name: name, Column: column, DataType: "varchar", Kind: sqltype.KindString}
}

// testRegistry models a small catalog:
//
//	products -> categories (many-to-one), categories -> categories (parent)
//	products <-> tags through product_tags
//	products -> reviews (one-to-many), reviews -> users (author)
func testRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg, err := metadata.NewRegistry(
		&metadata.Entity{
			Name: "Product", Table: "products", Identifier: "id",
			Fields: []metadata.Field{
				intField("id", "id"),
				stringField("title", "title"),
				stringField("status", "status"),
				{Name: "price", Column: "price", DataType: "decimal", Kind: sqltype.KindFloat},
				{Name: "flags", Column: "flags", DataType: "set", Kind: sqltype.KindSet},
				{Name: "createdAt", Column: "created_at", DataType: "datetime", Kind: sqltype.KindTime},
			},
			Associations: []metadata.Association{
				{Name: "category", Target: "Category", Cardinality: metadata.ManyToOne, LocalColumn: "category_id", RemoteColumn: "id"},
				{Name: "tags", Target: "Tag", Cardinality: metadata.ManyToMany, LocalColumn: "id", RemoteColumn: "id",
					JoinTable: "product_tags", JoinLocalColumn: "product_id", JoinRemoteColumn: "tag_id"},
				{Name: "reviews", Target: "Review", Cardinality: metadata.OneToMany, LocalColumn: "id", RemoteColumn: "product_id", MappedBy: "product"},
			},
		},
		&metadata.Entity{
			Name: "Category", Table: "categories", Identifier: "id",
			Fields: []metadata.Field{
				intField("id", "id"),
				stringField("name", "name"),
				stringField("slug", "slug"),
			},
			Associations: []metadata.Association{
				{Name: "parent", Target: "Category", Cardinality: metadata.ManyToOne, LocalColumn: "parent_id", RemoteColumn: "id"},
				{Name: "products", Target: "Product", Cardinality: metadata.OneToMany, LocalColumn: "id", RemoteColumn: "category_id", MappedBy: "category"},
			},
		},
		&metadata.Entity{
			Name: "Tag", Table: "tags", Identifier: "id",
			Fields: []metadata.Field{
				intField("id", "id"),
				stringField("name", "name"),
			},
			Associations: []metadata.Association{
				{Name: "products", Target: "Product", Cardinality: metadata.ManyToMany, LocalColumn: "id", RemoteColumn: "id",
					JoinTable: "product_tags", JoinLocalColumn: "tag_id", JoinRemoteColumn: "product_id"},
			},
		},
		&metadata.Entity{
			Name: "Review", Table: "reviews", Identifier: "id",
			Fields: []metadata.Field{
				intField("id", "id"),
				intField("rating", "rating"),
				stringField("body", "body"),
			},
			Associations: []metadata.Association{
				{Name: "product", Target: "Product", Cardinality: metadata.ManyToOne, LocalColumn: "product_id", RemoteColumn: "id"},
				{Name: "author", Target: "User", Cardinality: metadata.ManyToOne, LocalColumn: "author_id", RemoteColumn: "id"},
			},
		},
		&metadata.Entity{
			Name: "User", Table: "users", Identifier: "id",
			Fields: []metadata.Field{
				intField("id", "id"),
				stringField("email", "email"),
				{Name: "roles", Column: "roles", DataType: "json", Kind: sqltype.KindJSON},
			},
		},
	)
	require.NoError(t, err)
	return reg
}

func newTestQuery(t *testing.T, entity, alias string) *Query {
	t.Helper()
	q, err := NewQuery(testRegistry(t), entity, alias)
	require.NoError(t, err)
	return q
}
