package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// postMovement applies one signed balance change to an account and records
// the ledger entry plus balance snapshot backing it. The caller must run it
// inside a store transaction; acc is mutated in place so later movements in
// the same pass see the updated balance.
func postMovement(
	ctx context.Context,
	st domain.Store,
	acc *domain.Account,
	delta float64,
	kind domain.EntryKind,
	snapKind domain.SnapshotKind,
	roundID, wagerID, desc string,
) (string, error) {
	prev := acc.Balance
	acc.Balance = domain.Round2(prev + delta)

	entry := domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      acc.ID,
		Kind:        kind,
		Amount:      domain.Round2(delta),
		Status:      domain.EntryStatusCompleted,
		Description: desc,
		RoundID:     roundID,
		WagerID:     wagerID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := st.Ledger().Create(ctx, entry); err != nil {
		return "", fmt.Errorf("wallet: create ledger entry: %w", err)
	}

	snap := domain.BalanceSnapshot{
		ID:              uuid.NewString(),
		UserID:          acc.ID,
		PreviousBalance: prev,
		NewBalance:      acc.Balance,
		Change:          domain.Round2(delta),
		PercentChange:   domain.PercentOf(delta, prev),
		Kind:            snapKind,
		RoundID:         roundID,
		WagerID:         wagerID,
		Description:     desc,
		CreatedAt:       entry.CreatedAt,
	}
	if err := st.Snapshots().Create(ctx, snap); err != nil {
		return "", fmt.Errorf("wallet: create balance snapshot: %w", err)
	}

	if err := st.Accounts().Update(ctx, *acc); err != nil {
		return "", fmt.Errorf("wallet: update account %q: %w", acc.ID, err)
	}
	return entry.ID, nil
}

// postHouseProfit records profit (or its reversal, when negative) on the
// house wallet as a user-less ledger entry.
func postHouseProfit(ctx context.Context, st domain.Store, amount float64, roundID, desc string) error {
	if amount == 0 {
		return nil
	}
	entry := domain.LedgerEntry{
		ID:          uuid.NewString(),
		Kind:        domain.EntryKindHouseProfit,
		Amount:      domain.Round2(amount),
		Status:      domain.EntryStatusCompleted,
		Description: desc,
		RoundID:     roundID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := st.Ledger().Create(ctx, entry); err != nil {
		return fmt.Errorf("wallet: create house ledger entry: %w", err)
	}
	if err := st.House().Apply(ctx, domain.Round2(amount), domain.Round2(amount)); err != nil {
		return fmt.Errorf("wallet: apply house profit: %w", err)
	}
	return nil
}
