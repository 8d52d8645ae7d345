package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/npezzotti/isupipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM livestream_viewers_history").
			WithArgs(1, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(context.Background(), nil, func(tx *sqlx.Tx) error {
			return DeleteViewerHistory(context.Background(), tx, 1, 2)
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		store := NewStore(db)
		errBoom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(context.Background(), nil, func(tx *sqlx.Tx) error {
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "unexpected", func() {
			_ = store.WithTx(context.Background(), nil, func(tx *sqlx.Tx) error {
				panic("unexpected")
			})
		})
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		store := NewStore(db)

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err := store.WithTx(context.Background(), nil, func(tx *sqlx.Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin transaction")
		assert.False(t, called)
	})

	t.Run("commit failure", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := store.WithTx(context.Background(), nil, func(tx *sqlx.Tx) error {
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit")
	})
}
