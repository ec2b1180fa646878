package schemafilter

import (
	"testing"

	"restfilter/internal/introspection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columns(names ...string) []introspection.Column {
	out := make([]introspection.Column, len(names))
	for i, n := range names {
		out[i] = introspection.Column{Name: n}
	}
	return out
}

func tableNames(schema *introspection.Schema) []string {
	out := []string{}
	for _, t := range schema.Tables {
		out = append(out, t.Name)
	}
	return out
}

func TestApplyAllowsAllByDefault(t *testing.T) {
	schema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "users", Columns: columns("id")},
		{Name: "orders", Columns: columns("id")},
	}}

	result := Apply(schema, Config{})
	assert.Equal(t, []string{"users", "orders"}, tableNames(schema))
	assert.Equal(t, Result{}, result)
}

func TestApplyTableAndColumnFilters(t *testing.T) {
	schema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "users", Columns: columns("id", "email", "password_hash")},
		{Name: "audit_intern", Columns: columns("id", "payload")},
	}}

	result := Apply(schema, Config{
		AllowTables: []string{"*"},
		DenyTables:  []string{"*_INTERN"},
		DenyColumns: map[string][]string{"users": {"password_*"}},
	})

	require.Equal(t, []string{"users"}, tableNames(schema))
	assert.Equal(t, columns("id", "email"), schema.Tables[0].Columns)
	assert.Equal(t, Result{DroppedTables: 1, DroppedColumns: 1}, result)
}

func TestApplyAllowColumnsByTablePattern(t *testing.T) {
	schema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "users", Columns: columns("id", "email", "secret")},
		{Name: "user_roles", Columns: columns("id", "role", "secret")},
	}}

	Apply(schema, Config{
		AllowColumns: map[string][]string{
			"*":      {"id"},
			"users":  {"email"},
			"user_*": {"role"},
		},
	})

	assert.Equal(t, columns("id", "email"), schema.Tables[0].Columns)
	assert.Equal(t, columns("id", "role"), schema.Tables[1].Columns)
}

func TestApplyDropsDanglingForeignKeys(t *testing.T) {
	schema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "users", Columns: columns("id")},
		{
			Name:    "posts",
			Columns: columns("id", "user_id", "editor_id"),
			ForeignKeys: []introspection.ForeignKey{
				{ColumnName: "user_id", ReferencedTable: "users", ReferencedColumn: "id", ConstraintName: "fk_user"},
				{ColumnName: "editor_id", ReferencedTable: "users", ReferencedColumn: "id", ConstraintName: "fk_editor"},
			},
		},
		{
			Name:    "comments",
			Columns: columns("id", "post_id", "secret_id"),
			ForeignKeys: []introspection.ForeignKey{
				{ColumnName: "secret_id", ReferencedTable: "secrets", ReferencedColumn: "id", ConstraintName: "fk_secret"},
			},
		},
		{Name: "secrets", Columns: columns("id")},
	}}

	Apply(schema, Config{
		DenyTables:  []string{"secrets"},
		DenyColumns: map[string][]string{"posts": {"editor_id"}},
	})

	require.Equal(t, []string{"users", "posts", "comments"}, tableNames(schema))
	require.Len(t, schema.Tables[1].ForeignKeys, 1)
	assert.Equal(t, "fk_user", schema.Tables[1].ForeignKeys[0].ConstraintName)
	assert.Empty(t, schema.Tables[2].ForeignKeys)
}

func TestApplyDropsTablesWithoutColumns(t *testing.T) {
	schema := &introspection.Schema{Tables: []introspection.Table{
		{Name: "blobs", Columns: columns("data")},
	}}

	result := Apply(schema, Config{DenyColumns: map[string][]string{"*": {"data"}}})
	assert.Empty(t, schema.Tables)
	assert.Equal(t, 1, result.DroppedTables)
}

func TestApplyScanViews(t *testing.T) {
	newSchema := func() *introspection.Schema {
		return &introspection.Schema{Tables: []introspection.Table{
			{Name: "users", Columns: columns("id")},
			{Name: "active_users", IsView: true, Columns: columns("id")},
		}}
	}

	schema := newSchema()
	Apply(schema, Config{})
	assert.Equal(t, []string{"users"}, tableNames(schema))

	schema = newSchema()
	Apply(schema, Config{ScanViewsEnabled: true})
	assert.Equal(t, []string{"users", "active_users"}, tableNames(schema))
}

func TestApplyNilSchema(t *testing.T) {
	assert.Equal(t, Result{}, Apply(nil, Config{}))
}
