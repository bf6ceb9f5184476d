package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// QueueStore implements domain.QueueStore using PostgreSQL.
type QueueStore struct {
	db querier
}

const queueColumns = `
	id, user_id, name, stake, status, round_id, created_at, expires_at`

// Create inserts a new queue entry.
func (s *QueueStore) Create(ctx context.Context, e domain.QueueEntry) error {
	const query = `
		INSERT INTO queue_entries (
			id, user_id, name, stake, status, round_id, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, query,
		e.ID, e.UserID, e.Name, e.Stake, string(e.Status),
		nullIfEmpty(e.RoundID), e.CreatedAt, e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create queue entry %s: %w", e.ID, err)
	}
	return nil
}

// Update rewrites an entry's status and match linkage.
func (s *QueueStore) Update(ctx context.Context, e domain.QueueEntry) error {
	const query = `
		UPDATE queue_entries
		SET status = $2, round_id = $3, expires_at = $4
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		e.ID, string(e.Status), nullIfEmpty(e.RoundID), e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update queue entry %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update queue entry %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches one entry.
func (s *QueueStore) GetByID(ctx context.Context, id string) (domain.QueueEntry, error) {
	query := "SELECT " + queueColumns + " FROM queue_entries WHERE id = $1"
	e, err := scanQueueEntry(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("postgres: get queue entry %s: %w", id, mapNotFound(err))
	}
	return e, nil
}

// GetWaiting returns the user's waiting entry.
func (s *QueueStore) GetWaiting(ctx context.Context, userID string) (domain.QueueEntry, error) {
	query := "SELECT " + queueColumns + `
		FROM queue_entries
		WHERE user_id = $1 AND status = 'waiting'
		ORDER BY created_at DESC
		LIMIT 1`
	e, err := scanQueueEntry(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("postgres: get waiting entry for %s: %w", userID, mapNotFound(err))
	}
	return e, nil
}

// GetMatched returns the user's most recent matched entry.
func (s *QueueStore) GetMatched(ctx context.Context, userID string) (domain.QueueEntry, error) {
	query := "SELECT " + queueColumns + `
		FROM queue_entries
		WHERE user_id = $1 AND status = 'matched'
		ORDER BY created_at DESC
		LIMIT 1`
	e, err := scanQueueEntry(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("postgres: get matched entry for %s: %w", userID, mapNotFound(err))
	}
	return e, nil
}

// ListWaiting returns all waiting entries, oldest first.
func (s *QueueStore) ListWaiting(ctx context.Context) ([]domain.QueueEntry, error) {
	query := "SELECT " + queueColumns + `
		FROM queue_entries WHERE status = 'waiting' ORDER BY created_at ASC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list waiting entries: %w", err)
	}
	defer rows.Close()

	var out []domain.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanQueueEntry(row pgx.Row) (domain.QueueEntry, error) {
	var (
		e       domain.QueueEntry
		status  string
		roundID *string
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.Name, &e.Stake, &status,
		&roundID, &e.CreatedAt, &e.ExpiresAt,
	)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	e.Status = domain.QueueStatus(status)
	e.RoundID = deref(roundID)
	return e, nil
}
