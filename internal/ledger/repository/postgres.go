package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/lib/pq"

	"subvault/internal/ledger"
)

//go:embed schema.sql
var schema string

// ErrConflict is returned when the database aborts a transaction because a
// concurrent transaction touched the same accounts. The caller may retry.
var ErrConflict = errors.New("ledger transaction conflict")

const serializationFailure = "40001"

var _ ledger.Store = (*PostgresStore)(nil)

// PostgresStore keeps ledger accounts in Postgres. Every ledger transaction
// is one SERIALIZABLE SQL transaction; rows read for writing are locked.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*PostgresStore)

func WithClock(now func() time.Time) Option {
	return func(s *PostgresStore) { s.now = now }
}

func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	s := &PostgresStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the ledger tables when they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.beginTransaction(ctx, false)
	if err != nil {
		return err
	}
	// no-op after a successful commit
	defer s.rollback(tx)
	if err := fn(&pgTx{tx: tx, now: s.now(), writable: true}); err != nil {
		return classify(err)
	}
	return classify(s.commit(tx))
}

func (s *PostgresStore) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.beginTransaction(ctx, true)
	if err != nil {
		return err
	}
	defer s.rollback(tx)
	return fn(&pgTx{tx: tx, now: s.now()})
}

func (s *PostgresStore) Events(ctx context.Context, limit int) ([]ledger.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT program, name, data, emitted_at FROM ledger_events ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		var (
			ev      ledger.Event
			program string
			data    []byte
		)
		if err := rows.Scan(&program, &ev.Name, &data, &ev.Timestamp); err != nil {
			return nil, err
		}
		if ev.Program, err = ledger.ParseAddress(program); err != nil {
			return nil, err
		}
		ev.Data = data
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

func (s *PostgresStore) beginTransaction(ctx context.Context, readOnly bool) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) rollback(tx *sql.Tx) {
	if tx != nil {
		_ = tx.Rollback()
	}
}

func (s *PostgresStore) commit(tx *sql.Tx) error {
	if tx != nil {
		return tx.Commit()
	}
	return nil
}

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == serializationFailure {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

type pgTx struct {
	tx       *sql.Tx
	now      time.Time
	writable bool
}

func (t *pgTx) Get(ctx context.Context, addr ledger.Address) (*ledger.Account, error) {
	query := `SELECT address, lamports, owner, data FROM ledger_accounts WHERE address = $1`
	if t.writable {
		query += ` FOR UPDATE`
	}
	acc, err := scanAccount(t.tx.QueryRowContext(ctx, query, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	return acc, err
}

func (t *pgTx) Put(ctx context.Context, acc *ledger.Account) error {
	if !t.writable {
		return ledger.ErrReadOnly
	}
	data := acc.Data
	if data == nil {
		data = []byte{}
	}
	_, err := t.tx.ExecContext(ctx, `
        INSERT INTO ledger_accounts (address, lamports, owner, data, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (address) DO UPDATE SET
            lamports = EXCLUDED.lamports,
            owner = EXCLUDED.owner,
            data = EXCLUDED.data,
            updated_at = NOW()`,
		acc.Address.String(), strconv.FormatUint(acc.Lamports, 10), acc.Owner.String(), data)
	return err
}

func (t *pgTx) ListByOwner(ctx context.Context, program ledger.Address) ([]*ledger.Account, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT address, lamports, owner, data FROM ledger_accounts WHERE owner = $1 ORDER BY address`,
		program.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (t *pgTx) Emit(ctx context.Context, ev ledger.Event) error {
	if !t.writable {
		return ledger.ErrReadOnly
	}
	// jsonb needs text, not bytea
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO ledger_events (program, name, data, emitted_at) VALUES ($1, $2, $3, $4)`,
		ev.Program.String(), ev.Name, string(ev.Data), ev.Timestamp)
	return err
}

func (t *pgTx) Now() time.Time { return t.now }

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*ledger.Account, error) {
	var (
		address, lamports, owner string
		data                     []byte
	)
	if err := row.Scan(&address, &lamports, &owner, &data); err != nil {
		return nil, err
	}
	acc := &ledger.Account{Data: data}
	var err error
	if acc.Address, err = ledger.ParseAddress(address); err != nil {
		return nil, err
	}
	if acc.Owner, err = ledger.ParseAddress(owner); err != nil {
		return nil, err
	}
	if acc.Lamports, err = strconv.ParseUint(lamports, 10, 64); err != nil {
		return nil, fmt.Errorf("corrupt lamports for %s: %w", address, err)
	}
	return acc, nil
}
