package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// querier is the query surface shared by *pgxpool.Pool and pgx.Tx, so the
// same store code serves both pooled and transactional calls.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store. A Store bound to a transaction has a nil
// pool; InTx on it runs the function in the already open transaction.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

// NewStore creates the store aggregate over a client's pool.
func NewStore(client *Client) *Store {
	return &Store{db: client.Pool(), pool: client.Pool()}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) Accounts() domain.AccountStore   { return &AccountStore{db: s.db} }
func (s *Store) House() domain.HouseWalletStore  { return &HouseWalletStore{db: s.db} }
func (s *Store) Rounds() domain.RoundStore       { return &RoundStore{db: s.db} }
func (s *Store) Wagers() domain.WagerStore       { return &WagerStore{db: s.db} }
func (s *Store) Ledger() domain.LedgerStore      { return &LedgerStore{db: s.db} }
func (s *Store) Snapshots() domain.SnapshotStore { return &SnapshotStore{db: s.db} }
func (s *Store) Queue() domain.QueueStore        { return &QueueStore{db: s.db} }

// InTx runs fn against stores bound to one transaction and commits on
// success. fn returning an error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, st domain.Store) error) error {
	if s.pool == nil {
		// Already inside a transaction.
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// mapNotFound converts pgx's no-rows error to the domain sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
