package introspection

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospectDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE", "TABLE_COMMENT"}).
			AddRow("products", "BASE TABLE", " catalog items ").
			AddRow("product_view", "VIEW", nil))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "products").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "COLUMN_COMMENT", "IS_NULLABLE"}).
			AddRow("id", "bigint", "bigint unsigned", "", "NO").
			AddRow("status", "enum", "enum('draft','active')", "lifecycle", "NO").
			AddRow("category_id", "int", "int", nil, "YES"))
	mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
		WithArgs("shop", "products").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("shop", "products").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME", "CONSTRAINT_NAME", "ORDINAL_POSITION"}).
			AddRow("category_id", "categories", "id", "fk_category", 1))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "product_view").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "COLUMN_COMMENT", "IS_NULLABLE"}).
			AddRow("id", "bigint", "bigint", "", "NO"))

	schema, err := IntrospectDatabase(context.Background(), db, "shop")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 2)
	products := schema.Tables[0]
	assert.Equal(t, "shop", schema.Database)
	assert.Equal(t, "catalog items", products.Comment)
	assert.False(t, products.IsView)
	require.Len(t, products.Columns, 3)
	assert.True(t, products.Columns[0].IsPrimaryKey)
	assert.False(t, products.Columns[1].IsPrimaryKey)
	assert.Equal(t, []string{"draft", "active"}, products.Columns[1].Values)
	assert.True(t, products.Columns[2].IsNullable)
	assert.Equal(t, []ForeignKey{{
		ColumnName: "category_id", ReferencedTable: "categories", ReferencedColumn: "id",
		ConstraintName: "fk_category", OrdinalPosition: 1,
	}}, products.ForeignKeys)

	view := schema.Tables[1]
	assert.True(t, view.IsView)
	assert.Empty(t, view.ForeignKeys)
}

func TestIntrospectDatabasePropagatesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE", "TABLE_COMMENT"}).
			AddRow("products", "BASE TABLE", ""))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "products").
		WillReturnError(errors.New("boom"))

	_, err = IntrospectDatabase(context.Background(), db, "shop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get columns for products")
	assert.Contains(t, err.Error(), "boom")
}
