package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"subvault/internal/ledger"
	"subvault/internal/notify"
)

//go:embed schema.sql
var schema string

var _ notify.ContactRepository = (*PostgresContactRepository)(nil)

type PostgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

func (r *PostgresContactRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply contacts schema: %w", err)
	}
	return nil
}

func (r *PostgresContactRepository) Save(ctx context.Context, c notify.StoredContact) error {
	query := `
		INSERT INTO notify_contacts (wallet, email_encrypted, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet) DO UPDATE
		SET email_encrypted = EXCLUDED.email_encrypted, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, c.Wallet.String(), c.EmailEncrypted, c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}

func (r *PostgresContactRepository) Get(ctx context.Context, wallet ledger.Address) (*notify.StoredContact, error) {
	c := &notify.StoredContact{Wallet: wallet}
	query := `SELECT email_encrypted, updated_at FROM notify_contacts WHERE wallet = $1`
	err := r.db.QueryRowContext(ctx, query, wallet.String()).Scan(&c.EmailEncrypted, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notify.ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	return c, nil
}

func (r *PostgresContactRepository) Delete(ctx context.Context, wallet ledger.Address) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notify_contacts WHERE wallet = $1`, wallet.String())
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notify.ErrContactNotFound
	}
	return nil
}
