package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// WagerStore implements domain.WagerStore using PostgreSQL.
type WagerStore struct {
	db querier
}

const wagerColumns = `
	id, user_id, round_id, side, stake, potential_payout, payout, status,
	balance_before, balance_after, stake_entry_id, payout_entry_id,
	placed_at, settled_at`

// Create inserts a new wager.
func (s *WagerStore) Create(ctx context.Context, w domain.Wager) error {
	const query = `
		INSERT INTO wagers (
			id, user_id, round_id, side, stake, potential_payout, payout, status,
			balance_before, balance_after, stake_entry_id, payout_entry_id,
			placed_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14
		)`

	_, err := s.db.Exec(ctx, query,
		w.ID, w.UserID, w.RoundID, string(w.Side), w.Stake,
		w.PotentialPayout, w.Payout, string(w.Status),
		w.BalanceBefore, w.BalanceAfter, w.StakeEntryID, w.PayoutEntryID,
		w.PlacedAt, w.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create wager %s: %w", w.ID, err)
	}
	return nil
}

// Update rewrites the wager's settlement fields.
func (s *WagerStore) Update(ctx context.Context, w domain.Wager) error {
	const query = `
		UPDATE wagers SET
			side = $2, stake = $3, potential_payout = $4, payout = $5, status = $6,
			balance_before = $7, balance_after = $8,
			stake_entry_id = $9, payout_entry_id = $10, settled_at = $11
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		w.ID, string(w.Side), w.Stake, w.PotentialPayout, w.Payout, string(w.Status),
		w.BalanceBefore, w.BalanceAfter, w.StakeEntryID, w.PayoutEntryID, w.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update wager %s: %w", w.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update wager %s: %w", w.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches one wager.
func (s *WagerStore) GetByID(ctx context.Context, id string) (domain.Wager, error) {
	query := "SELECT " + wagerColumns + " FROM wagers WHERE id = $1"
	w, err := scanWager(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Wager{}, fmt.Errorf("postgres: get wager %s: %w", id, mapNotFound(err))
	}
	return w, nil
}

// GetPending returns the user's open wager on the round.
func (s *WagerStore) GetPending(ctx context.Context, roundID, userID string) (domain.Wager, error) {
	query := "SELECT " + wagerColumns + `
		FROM wagers
		WHERE round_id = $1 AND user_id = $2 AND status = 'pending'
		LIMIT 1`
	w, err := scanWager(s.db.QueryRow(ctx, query, roundID, userID))
	if err != nil {
		return domain.Wager{}, fmt.Errorf("postgres: get pending wager: %w", mapNotFound(err))
	}
	return w, nil
}

// ListByRound returns every wager of a round in placement order.
func (s *WagerStore) ListByRound(ctx context.Context, roundID string) ([]domain.Wager, error) {
	query := "SELECT " + wagerColumns + `
		FROM wagers WHERE round_id = $1 ORDER BY placed_at ASC, id ASC`
	rows, err := s.db.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers by round: %w", err)
	}
	defer rows.Close()
	return collectWagers(rows)
}

// ListByUser returns a user's wagers, newest first.
func (s *WagerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Wager, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + wagerColumns + " FROM wagers WHERE user_id = $1")
	args := []any{userID}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND placed_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&sb, " AND placed_at < $%d", len(args))
	}
	sb.WriteString(" ORDER BY placed_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers by user: %w", err)
	}
	defer rows.Close()
	return collectWagers(rows)
}

func collectWagers(rows pgx.Rows) ([]domain.Wager, error) {
	var out []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWager(row pgx.Row) (domain.Wager, error) {
	var (
		w            domain.Wager
		side, status string
	)
	err := row.Scan(
		&w.ID, &w.UserID, &w.RoundID, &side, &w.Stake,
		&w.PotentialPayout, &w.Payout, &status,
		&w.BalanceBefore, &w.BalanceAfter, &w.StakeEntryID, &w.PayoutEntryID,
		&w.PlacedAt, &w.SettledAt,
	)
	if err != nil {
		return domain.Wager{}, err
	}
	w.Side = domain.Side(side)
	w.Status = domain.WagerStatus(status)
	return w, nil
}
