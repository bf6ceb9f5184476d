package postgres

import (
	"context"
	"fmt"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	db querier
}

// Create inserts a new account.
func (s *AccountStore) Create(ctx context.Context, acc domain.Account) error {
	const query = `
		INSERT INTO accounts (id, name, balance, win_streak, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`

	_, err := s.db.Exec(ctx, query,
		acc.ID, acc.Name, acc.Balance, acc.WinStreak, acc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", acc.ID, err)
	}
	return nil
}

// GetByID fetches one account.
func (s *AccountStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const query = `
		SELECT id, name, balance, win_streak, created_at, updated_at
		FROM accounts WHERE id = $1`

	var acc domain.Account
	err := s.db.QueryRow(ctx, query, id).Scan(
		&acc.ID, &acc.Name, &acc.Balance, &acc.WinStreak,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, mapNotFound(err))
	}
	return acc, nil
}

// GetByIDForUpdate fetches one account with its row locked until the
// enclosing transaction ends.
func (s *AccountStore) GetByIDForUpdate(ctx context.Context, id string) (domain.Account, error) {
	const query = `
		SELECT id, name, balance, win_streak, created_at, updated_at
		FROM accounts WHERE id = $1
		FOR UPDATE`

	var acc domain.Account
	err := s.db.QueryRow(ctx, query, id).Scan(
		&acc.ID, &acc.Name, &acc.Balance, &acc.WinStreak,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: lock account %s: %w", id, mapNotFound(err))
	}
	return acc, nil
}

// Update writes the account's balance and win streak.
func (s *AccountStore) Update(ctx context.Context, acc domain.Account) error {
	const query = `
		UPDATE accounts
		SET name = $2, balance = $3, win_streak = $4, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, acc.ID, acc.Name, acc.Balance, acc.WinStreak)
	if err != nil {
		return fmt.Errorf("postgres: update account %s: %w", acc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update account %s: %w", acc.ID, domain.ErrNotFound)
	}
	return nil
}

// Count returns the number of accounts.
func (s *AccountStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count accounts: %w", err)
	}
	return n, nil
}

// HouseWalletStore implements domain.HouseWalletStore using PostgreSQL.
// The wallet is a single row keyed by a fixed ID.
type HouseWalletStore struct {
	db querier
}

const houseWalletID = "house"

// Get fetches the singleton house wallet.
func (s *HouseWalletStore) Get(ctx context.Context) (domain.HouseWallet, error) {
	const query = `
		SELECT id, balance, total_profit, updated_at
		FROM house_wallet WHERE id = $1`

	var w domain.HouseWallet
	err := s.db.QueryRow(ctx, query, houseWalletID).Scan(
		&w.ID, &w.Balance, &w.TotalProfit, &w.UpdatedAt,
	)
	if err != nil {
		return domain.HouseWallet{}, fmt.Errorf("postgres: get house wallet: %w", mapNotFound(err))
	}
	return w, nil
}

// Apply adds the deltas to the wallet's balance and lifetime profit.
func (s *HouseWalletStore) Apply(ctx context.Context, balanceDelta, profitDelta float64) error {
	const query = `
		UPDATE house_wallet
		SET balance = balance + $2, total_profit = total_profit + $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, houseWalletID, balanceDelta, profitDelta)
	if err != nil {
		return fmt.Errorf("postgres: apply house profit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: apply house profit: %w", domain.ErrNotFound)
	}
	return nil
}
