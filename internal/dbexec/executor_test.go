package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardExecutorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `posts`").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	rows, err := NewStandardExecutor(db).QueryContext(context.Background(), "SELECT `id` FROM `posts` WHERE `id` = ?", int64(3))
	require.NoError(t, err)

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int64{3}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStandardExecutorTimeoutWrapsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))

	exec := NewStandardExecutor(db, WithQueryTimeout(time.Second))
	rows, err := exec.QueryContext(context.Background(), "SELECT 1")
	require.NoError(t, err)

	wrapped, ok := rows.(*deadlineRows)
	require.True(t, ok)
	require.True(t, rows.Next())
	require.NoError(t, rows.Close())
	assert.NotPanics(t, assert.PanicTestFunc(wrapped.cancel))
}

func TestStandardExecutorTimeoutReleasesOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("gone"))

	_, err = NewStandardExecutor(db, WithQueryTimeout(time.Second)).QueryContext(context.Background(), "SELECT 1")
	assert.EqualError(t, err, "gone")
}

func TestStandardExecutorWithoutDB(t *testing.T) {
	_, err := NewStandardExecutor(nil).QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
