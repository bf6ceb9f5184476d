package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. Entries are
// append-only; the only permitted mutation is the status flip used by
// outcome reversal.
type LedgerStore struct {
	db querier
}

const ledgerColumns = `
	id, user_id, kind, amount, status, description, round_id, wager_id, created_at`

// Create inserts a new ledger entry.
func (s *LedgerStore) Create(ctx context.Context, e domain.LedgerEntry) error {
	const query = `
		INSERT INTO ledger_entries (
			id, user_id, kind, amount, status, description, round_id, wager_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		e.ID, nullIfEmpty(e.UserID), string(e.Kind), e.Amount, string(e.Status),
		e.Description, nullIfEmpty(e.RoundID), nullIfEmpty(e.WagerID), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create ledger entry %s: %w", e.ID, err)
	}
	return nil
}

// UpdateStatus flips an entry's status.
func (s *LedgerStore) UpdateStatus(ctx context.Context, id string, status domain.EntryStatus) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE ledger_entries SET status = $2 WHERE id = $1",
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update ledger entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update ledger entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches one entry.
func (s *LedgerStore) GetByID(ctx context.Context, id string) (domain.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + " FROM ledger_entries WHERE id = $1"
	e, err := scanLedgerEntry(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("postgres: get ledger entry %s: %w", id, mapNotFound(err))
	}
	return e, nil
}

// ListByRound returns a round's entries in creation order.
func (s *LedgerStore) ListByRound(ctx context.Context, roundID string) ([]domain.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + `
		FROM ledger_entries WHERE round_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.db.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger by round: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// ListByUser returns a user's entries, newest first.
func (s *LedgerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + ledgerColumns + " FROM ledger_entries WHERE user_id = $1")
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
		return nil, fmt.Errorf("postgres: list ledger by user: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// ListBefore returns entries created before the cutoff, oldest first.
func (s *LedgerStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + `
		FROM ledger_entries WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := s.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger before: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// DeleteBatch removes entries by ID.
func (s *LedgerStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM ledger_entries WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("postgres: delete ledger entries: %w", err)
	}
	return nil
}

func collectLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (domain.LedgerEntry, error) {
	var (
		e                       domain.LedgerEntry
		kind, status            string
		userID, roundID, wagerID *string
	)
	err := row.Scan(
		&e.ID, &userID, &kind, &e.Amount, &status,
		&e.Description, &roundID, &wagerID, &e.CreatedAt,
	)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	e.Kind = domain.EntryKind(kind)
	e.Status = domain.EntryStatus(status)
	e.UserID = deref(userID)
	e.RoundID = deref(roundID)
	e.WagerID = deref(wagerID)
	return e, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
