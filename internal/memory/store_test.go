package memory

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS global_memory").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT key, value, updated_at FROM global_memory").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow("favorite color", "blue", now).
			AddRow("wallet", "lace", now))

	entries, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "favorite color", entries[0].Key)
	assert.Equal(t, "lace", entries[1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO global_memory").
		WithArgs("favorite color", "blue").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Put(context.Background(), "  favorite color ", "blue"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutRequiresKey(t *testing.T) {
	store, _ := newMockStore(t)

	assert.ErrorIs(t, store.Put(context.Background(), " ", "x"), ErrEmptyKey)
}

func TestStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM global_memory").WithArgs("wallet").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM global_memory").WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), "wallet"))
	assert.ErrorIs(t, store.Delete(context.Background(), "missing"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Context(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT key, value, updated_at FROM global_memory").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow("favorite color", "blue", time.Now()))

	block, err := store.Context(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "[Global memory]\n- favorite color: blue\n\n", block)
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
}
