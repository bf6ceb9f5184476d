package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL. Sides and seats
// are flattened into fixed columns; a round always has exactly two of each.
type RoundStore struct {
	db querier
}

const roundColumns = `
	id, number, variant, phase, cycle,
	side_1, side_1_label, side_1_staked, side_1_count,
	side_2, side_2_label, side_2_staked, side_2_count,
	seat_1_user, seat_1_name, seat_1_stake, seat_1_roll,
	seat_2_user, seat_2_name, seat_2_stake, seat_2_roll,
	multiplier, decided_side, dice_result, override_side, override_by,
	total_staked, total_payout, house_profit,
	started_at, closed_at, completed_at`

// Create inserts a new round.
func (s *RoundStore) Create(ctx context.Context, r domain.Round) error {
	const query = `
		INSERT INTO rounds (
			id, number, variant, phase, cycle,
			side_1, side_1_label, side_1_staked, side_1_count,
			side_2, side_2_label, side_2_staked, side_2_count,
			seat_1_user, seat_1_name, seat_1_stake, seat_1_roll,
			seat_2_user, seat_2_name, seat_2_stake, seat_2_roll,
			multiplier, decided_side, dice_result, override_side, override_by,
			total_staked, total_payout, house_profit,
			started_at, closed_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, $23, $24, $25, $26,
			$27, $28, $29,
			$30, $31, $32
		)`

	_, err := s.db.Exec(ctx, query, roundArgs(r)...)
	if err != nil {
		return fmt.Errorf("postgres: create round %s: %w", r.ID, err)
	}
	return nil
}

// Update rewrites the whole round row.
func (s *RoundStore) Update(ctx context.Context, r domain.Round) error {
	const query = `
		UPDATE rounds SET
			number = $2, variant = $3, phase = $4, cycle = $5,
			side_1 = $6, side_1_label = $7, side_1_staked = $8, side_1_count = $9,
			side_2 = $10, side_2_label = $11, side_2_staked = $12, side_2_count = $13,
			seat_1_user = $14, seat_1_name = $15, seat_1_stake = $16, seat_1_roll = $17,
			seat_2_user = $18, seat_2_name = $19, seat_2_stake = $20, seat_2_roll = $21,
			multiplier = $22, decided_side = $23, dice_result = $24,
			override_side = $25, override_by = $26,
			total_staked = $27, total_payout = $28, house_profit = $29,
			started_at = $30, closed_at = $31, completed_at = $32
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, roundArgs(r)...)
	if err != nil {
		return fmt.Errorf("postgres: update round %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update round %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches one round.
func (s *RoundStore) GetByID(ctx context.Context, id string) (domain.Round, error) {
	query := "SELECT " + roundColumns + " FROM rounds WHERE id = $1"
	r, err := scanRound(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Round{}, fmt.Errorf("postgres: get round %s: %w", id, mapNotFound(err))
	}
	return r, nil
}

// GetByIDForUpdate fetches one round with its row locked until the enclosing
// transaction ends.
func (s *RoundStore) GetByIDForUpdate(ctx context.Context, id string) (domain.Round, error) {
	query := "SELECT " + roundColumns + " FROM rounds WHERE id = $1 FOR UPDATE"
	r, err := scanRound(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Round{}, fmt.Errorf("postgres: lock round %s: %w", id, mapNotFound(err))
	}
	return r, nil
}

// GetActive returns the newest non-terminal round of the variant.
func (s *RoundStore) GetActive(ctx context.Context, variant domain.RoundVariant) (domain.Round, error) {
	query := "SELECT " + roundColumns + `
		FROM rounds
		WHERE variant = $1 AND phase NOT IN ('completed', 'cancelled')
		ORDER BY number DESC
		LIMIT 1`
	r, err := scanRound(s.db.QueryRow(ctx, query, string(variant)))
	if err != nil {
		return domain.Round{}, fmt.Errorf("postgres: get active %s round: %w", variant, mapNotFound(err))
	}
	return r, nil
}

// GetOpenDuel returns the non-terminal head-to-head round the user is
// seated in.
func (s *RoundStore) GetOpenDuel(ctx context.Context, userID string) (domain.Round, error) {
	query := "SELECT " + roundColumns + `
		FROM rounds
		WHERE variant = 'head_to_head'
		  AND phase NOT IN ('completed', 'cancelled')
		  AND (seat_1_user = $1 OR seat_2_user = $1)
		ORDER BY number DESC
		LIMIT 1`
	r, err := scanRound(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.Round{}, fmt.Errorf("postgres: get open duel for %s: %w", userID, mapNotFound(err))
	}
	return r, nil
}

// LastNumber returns the highest round number ever created, zero when no
// rounds exist.
func (s *RoundStore) LastNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, "SELECT COALESCE(MAX(number), 0) FROM rounds").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: last round number: %w", err)
	}
	return n, nil
}

// ListCompletedBefore returns terminal rounds completed before the cutoff,
// oldest first.
func (s *RoundStore) ListCompletedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Round, error) {
	query := "SELECT " + roundColumns + `
		FROM rounds
		WHERE phase IN ('completed', 'cancelled') AND completed_at < $1
		ORDER BY number ASC
		LIMIT $2`
	rows, err := s.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list completed rounds: %w", err)
	}
	defer rows.Close()

	var out []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteBatch removes rounds by ID.
func (s *RoundStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM rounds WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("postgres: delete rounds: %w", err)
	}
	return nil
}

func roundArgs(r domain.Round) []any {
	return []any{
		r.ID, r.Number, string(r.Variant), string(r.Phase), r.Cycle,
		string(r.Sides[0].Side), r.Sides[0].Label, r.Sides[0].TotalStaked, r.Sides[0].WagerCount,
		string(r.Sides[1].Side), r.Sides[1].Label, r.Sides[1].TotalStaked, r.Sides[1].WagerCount,
		r.Seats[0].UserID, r.Seats[0].Name, r.Seats[0].Stake, r.Seats[0].Roll,
		r.Seats[1].UserID, r.Seats[1].Name, r.Seats[1].Stake, r.Seats[1].Roll,
		r.Multiplier, string(r.DecidedSide), r.DiceResult, string(r.Override), r.OverrideBy,
		r.TotalStaked, r.TotalPayout, r.HouseProfit,
		r.StartedAt, r.ClosedAt, r.CompletedAt,
	}
}

func scanRound(row pgx.Row) (domain.Round, error) {
	var (
		r                               domain.Round
		variant, phase, decided, override string
		side1, side2                    string
	)
	err := row.Scan(
		&r.ID, &r.Number, &variant, &phase, &r.Cycle,
		&side1, &r.Sides[0].Label, &r.Sides[0].TotalStaked, &r.Sides[0].WagerCount,
		&side2, &r.Sides[1].Label, &r.Sides[1].TotalStaked, &r.Sides[1].WagerCount,
		&r.Seats[0].UserID, &r.Seats[0].Name, &r.Seats[0].Stake, &r.Seats[0].Roll,
		&r.Seats[1].UserID, &r.Seats[1].Name, &r.Seats[1].Stake, &r.Seats[1].Roll,
		&r.Multiplier, &decided, &r.DiceResult, &override, &r.OverrideBy,
		&r.TotalStaked, &r.TotalPayout, &r.HouseProfit,
		&r.StartedAt, &r.ClosedAt, &r.CompletedAt,
	)
	if err != nil {
		return domain.Round{}, err
	}
	r.Variant = domain.RoundVariant(variant)
	r.Phase = domain.RoundPhase(phase)
	r.Sides[0].Side = domain.Side(side1)
	r.Sides[1].Side = domain.Side(side2)
	r.DecidedSide = domain.Side(decided)
	r.Override = domain.Side(override)
	return r, nil
}
