package metadata

import (
	"testing"

	"restfilter/internal/sqltype"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntities() []*Entity {
	return []*Entity{
		{
			Name:       "Product",
			Table:      "products",
			Identifier: "id",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: sqltype.KindInt},
				{Name: "title", Column: "title", Kind: sqltype.KindString},
			},
			Associations: []Association{
				{Name: "category", Target: "Category", Cardinality: ManyToOne, LocalColumn: "category_id", RemoteColumn: "id"},
			},
		},
		{
			Name:       "Category",
			Table:      "categories",
			Identifier: "id",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: sqltype.KindInt},
			},
			Associations: []Association{
				{Name: "products", Target: "Product", Cardinality: OneToMany, LocalColumn: "id", RemoteColumn: "category_id", MappedBy: "category"},
			},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(testEntities()...)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	product, ok := reg.Entity("Product")
	require.True(t, ok)

	field, ok := product.Field("title")
	require.True(t, ok)
	assert.Equal(t, "title", field.Column)

	assoc, ok := product.Association("category")
	require.True(t, ok)
	assert.False(t, assoc.Cardinality.ToMany())

	_, ok = product.Field("category")
	assert.False(t, ok)
	assert.Equal(t, "id", product.IdentifierField().Column)

	names := []string{}
	for _, e := range reg.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Category", "Product"}, names)
}

func TestNewRegistryRejectsUnknownTarget(t *testing.T) {
	entities := testEntities()
	entities[0].Associations[0].Target = "Missing"
	_, err := NewRegistry(entities...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity Missing")
}

func TestNewRegistryRejectsMissingIdentifier(t *testing.T) {
	entities := testEntities()
	entities[1].Identifier = "uuid"
	_, err := NewRegistry(entities...)
	require.Error(t, err)
}

func TestNewRegistryRejectsFieldAssociationCollision(t *testing.T) {
	entities := testEntities()
	entities[0].Fields = append(entities[0].Fields, Field{Name: "category", Column: "category_id"})
	_, err := NewRegistry(entities...)
	require.Error(t, err)
}

func TestNewRegistryRequiresJoinTableForManyToMany(t *testing.T) {
	entities := testEntities()
	entities[0].Associations = append(entities[0].Associations, Association{
		Name: "related", Target: "Product", Cardinality: ManyToMany, LocalColumn: "id", RemoteColumn: "id",
	})
	_, err := NewRegistry(entities...)
	require.Error(t, err)
}

func TestEntityLookupWithoutIndex(t *testing.T) {
	e := testEntities()[0]
	_, ok := e.Field("title")
	assert.True(t, ok)
	_, ok = e.Association("category")
	assert.True(t, ok)
	_, ok = e.Association("nope")
	assert.False(t, ok)
}

func TestCardinality(t *testing.T) {
	assert.True(t, OneToMany.ToMany())
	assert.True(t, ManyToMany.ToMany())
	assert.False(t, ManyToOne.ToMany())
	assert.False(t, OneToOne.ToMany())
	assert.Equal(t, "many_to_many", ManyToMany.String())
}

func TestRegistryByResource(t *testing.T) {
	entities := testEntities()
	entities[0].Resource = "products"
	reg, err := NewRegistry(entities...)
	require.NoError(t, err)

	e, ok := reg.ByResource("products")
	require.True(t, ok)
	assert.Equal(t, "Product", e.Name)

	e, ok = reg.ByResource("Category")
	require.True(t, ok)
	assert.Equal(t, "categories", e.Table)

	_, ok = reg.ByResource("Product")
	assert.False(t, ok)
}

func TestNewRegistryRejectsSharedResource(t *testing.T) {
	entities := testEntities()
	entities[0].Resource = "items"
	entities[1].Resource = "items"
	_, err := NewRegistry(entities...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share resource items")
}
