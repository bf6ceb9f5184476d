package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	db querier
}

const snapshotColumns = `
	id, user_id, previous_balance, new_balance, change, percent_change,
	kind, round_id, wager_id, description, created_at`

// Create inserts a new balance snapshot.
func (s *SnapshotStore) Create(ctx context.Context, snap domain.BalanceSnapshot) error {
	const query = `
		INSERT INTO balance_snapshots (
			id, user_id, previous_balance, new_balance, change, percent_change,
			kind, round_id, wager_id, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.Exec(ctx, query,
		snap.ID, snap.UserID, snap.PreviousBalance, snap.NewBalance,
		snap.Change, snap.PercentChange, string(snap.Kind),
		nullIfEmpty(snap.RoundID), nullIfEmpty(snap.WagerID),
		snap.Description, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create balance snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// ListByUser returns a user's snapshot trail, newest first.
func (s *SnapshotStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.BalanceSnapshot, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + snapshotColumns + " FROM balance_snapshots WHERE user_id = $1")
	args := []any{userID}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&sb, " AND created_at < $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
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
		return nil, fmt.Errorf("postgres: list snapshots by user: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// ListBefore returns snapshots created before the cutoff, oldest first.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.BalanceSnapshot, error) {
	query := "SELECT " + snapshotColumns + `
		FROM balance_snapshots WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := s.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// DeleteBatch removes snapshots by ID.
func (s *SnapshotStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM balance_snapshots WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("postgres: delete snapshots: %w", err)
	}
	return nil
}

func collectSnapshots(rows pgx.Rows) ([]domain.BalanceSnapshot, error) {
	var out []domain.BalanceSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (domain.BalanceSnapshot, error) {
	var (
		snap             domain.BalanceSnapshot
		kind             string
		roundID, wagerID *string
	)
	err := row.Scan(
		&snap.ID, &snap.UserID, &snap.PreviousBalance, &snap.NewBalance,
		&snap.Change, &snap.PercentChange, &kind,
		&roundID, &wagerID, &snap.Description, &snap.CreatedAt,
	)
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	snap.Kind = domain.SnapshotKind(kind)
	snap.RoundID = deref(roundID)
	snap.WagerID = deref(wagerID)
	return snap, nil
}
