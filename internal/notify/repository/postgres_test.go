package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subvault/internal/ledger"
	"subvault/internal/notify"
)

func testAddr(b byte) ledger.Address {
	var a ledger.Address
	a[31] = b
	return a
}

func newMockRepo(t *testing.T) (*PostgresContactRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresContactRepository(db), mock
}

func TestPostgresContactSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	wallet := testAddr(1)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notify_contacts")).
		WithArgs(wallet.String(), "sealed", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(ctx, notify.StoredContact{Wallet: wallet, EmailEncrypted: "sealed", UpdatedAt: now}))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email_encrypted, updated_at FROM notify_contacts WHERE wallet = $1")).
		WithArgs(wallet.String()).
		WillReturnRows(sqlmock.NewRows([]string{"email_encrypted", "updated_at"}).AddRow("sealed", now))
	got, err := repo.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "sealed", got.EmailEncrypted)
	assert.Equal(t, wallet, got.Wallet)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContactMissing(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepo(t)
	wallet := testAddr(2)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email_encrypted")).
		WithArgs(wallet.String()).
		WillReturnRows(sqlmock.NewRows([]string{"email_encrypted", "updated_at"}))
	_, err := repo.Get(ctx, wallet)
	assert.ErrorIs(t, err, notify.ErrContactNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notify_contacts")).
		WithArgs(wallet.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, wallet), notify.ErrContactNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryContactRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryContactRepository()
	wallet := testAddr(3)

	_, err := repo.Get(ctx, wallet)
	assert.ErrorIs(t, err, notify.ErrContactNotFound)

	require.NoError(t, repo.Save(ctx, notify.StoredContact{Wallet: wallet, EmailEncrypted: "x"}))
	got, err := repo.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "x", got.EmailEncrypted)

	require.NoError(t, repo.Delete(ctx, wallet))
	assert.ErrorIs(t, repo.Delete(ctx, wallet), notify.ErrContactNotFound)
}
