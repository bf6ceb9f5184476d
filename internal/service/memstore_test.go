package service

import (
	"context"
	"sort"
	"time"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// memState is the backing data of the in-memory store fake.
type memState struct {
	accounts map[string]domain.Account
	house    domain.HouseWallet
	rounds   map[string]domain.Round
	wagers   map[string]domain.Wager
	ledger   map[string]domain.LedgerEntry
	ledgerID []string
	snaps    []domain.BalanceSnapshot
	queue    map[string]domain.QueueEntry

	// IDs read through the ForUpdate accessors, for asserting that mutation
	// paths take row locks.
	lockedAccounts []string
	lockedRounds   []string
}

func newMemState() *memState {
	return &memState{
		accounts: map[string]domain.Account{},
		house:    domain.HouseWallet{ID: "house"},
		rounds:   map[string]domain.Round{},
		wagers:   map[string]domain.Wager{},
		ledger:   map[string]domain.LedgerEntry{},
		queue:    map[string]domain.QueueEntry{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.house = s.house
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.rounds {
		c.rounds[k] = v
	}
	for k, v := range s.wagers {
		c.wagers[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	c.ledgerID = append(c.ledgerID, s.ledgerID...)
	c.snaps = append(c.snaps, s.snaps...)
	for k, v := range s.queue {
		c.queue[k] = v
	}
	c.lockedAccounts = append(c.lockedAccounts, s.lockedAccounts...)
	c.lockedRounds = append(c.lockedRounds, s.lockedRounds...)
	return c
}

// memStore implements domain.Store over memState. InTx runs against a copy
// and commits it back only on success, mirroring transaction semantics.
type memStore struct {
	st *memState
}

func newMemStore() *memStore { return &memStore{st: newMemState()} }

func (m *memStore) addAccount(id string, balance float64, streak int) {
	m.st.accounts[id] = domain.Account{
		ID: id, Name: id, Balance: balance, WinStreak: streak,
		CreatedAt: time.Now().UTC(),
	}
}

func (m *memStore) Accounts() domain.AccountStore   { return memAccounts{m.st} }
func (m *memStore) House() domain.HouseWalletStore  { return memHouse{m.st} }
func (m *memStore) Rounds() domain.RoundStore       { return memRounds{m.st} }
func (m *memStore) Wagers() domain.WagerStore       { return memWagers{m.st} }
func (m *memStore) Ledger() domain.LedgerStore      { return memLedger{m.st} }
func (m *memStore) Snapshots() domain.SnapshotStore { return memSnaps{m.st} }
func (m *memStore) Queue() domain.QueueStore        { return memQueue{m.st} }

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, s domain.Store) error) error {
	work := &memStore{st: m.st.clone()}
	if err := fn(ctx, work); err != nil {
		return err
	}
	*m.st = *work.st
	return nil
}

type memAccounts struct{ st *memState }

func (s memAccounts) Create(_ context.Context, acc domain.Account) error {
	s.st.accounts[acc.ID] = acc
	return nil
}

func (s memAccounts) GetByID(_ context.Context, id string) (domain.Account, error) {
	acc, ok := s.st.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acc, nil
}

func (s memAccounts) GetByIDForUpdate(ctx context.Context, id string) (domain.Account, error) {
	s.st.lockedAccounts = append(s.st.lockedAccounts, id)
	return s.GetByID(ctx, id)
}

func (s memAccounts) Update(_ context.Context, acc domain.Account) error {
	if _, ok := s.st.accounts[acc.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.accounts[acc.ID] = acc
	return nil
}

func (s memAccounts) Count(_ context.Context) (int64, error) {
	return int64(len(s.st.accounts)), nil
}

type memHouse struct{ st *memState }

func (s memHouse) Get(_ context.Context) (domain.HouseWallet, error) {
	return s.st.house, nil
}

func (s memHouse) Apply(_ context.Context, balanceDelta, profitDelta float64) error {
	s.st.house.Balance = domain.Round2(s.st.house.Balance + balanceDelta)
	s.st.house.TotalProfit = domain.Round2(s.st.house.TotalProfit + profitDelta)
	s.st.house.UpdatedAt = time.Now().UTC()
	return nil
}

type memRounds struct{ st *memState }

func (s memRounds) Create(_ context.Context, r domain.Round) error {
	s.st.rounds[r.ID] = r
	return nil
}

func (s memRounds) Update(_ context.Context, r domain.Round) error {
	if _, ok := s.st.rounds[r.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.rounds[r.ID] = r
	return nil
}

func (s memRounds) GetByID(_ context.Context, id string) (domain.Round, error) {
	r, ok := s.st.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, nil
}

func (s memRounds) GetByIDForUpdate(ctx context.Context, id string) (domain.Round, error) {
	s.st.lockedRounds = append(s.st.lockedRounds, id)
	return s.GetByID(ctx, id)
}

func (s memRounds) GetActive(_ context.Context, variant domain.RoundVariant) (domain.Round, error) {
	var best domain.Round
	found := false
	for _, r := range s.st.rounds {
		if r.Variant != variant || r.Phase.Terminal() {
			continue
		}
		if !found || r.Number > best.Number {
			best, found = r, true
		}
	}
	if !found {
		return domain.Round{}, domain.ErrNotFound
	}
	return best, nil
}

func (s memRounds) GetOpenDuel(_ context.Context, userID string) (domain.Round, error) {
	for _, r := range s.st.rounds {
		if r.Variant == domain.VariantHeadToHead && !r.Phase.Terminal() && r.SeatByUser(userID) >= 0 {
			return r, nil
		}
	}
	return domain.Round{}, domain.ErrNotFound
}

func (s memRounds) LastNumber(_ context.Context) (int64, error) {
	var max int64
	for _, r := range s.st.rounds {
		if r.Number > max {
			max = r.Number
		}
	}
	return max, nil
}

func (s memRounds) ListCompletedBefore(_ context.Context, before time.Time, limit int) ([]domain.Round, error) {
	var out []domain.Round
	for _, r := range s.st.rounds {
		if r.Phase.Terminal() && r.CompletedAt != nil && r.CompletedAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memRounds) DeleteBatch(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.st.rounds, id)
	}
	return nil
}

type memWagers struct{ st *memState }

func (s memWagers) Create(_ context.Context, w domain.Wager) error {
	s.st.wagers[w.ID] = w
	return nil
}

func (s memWagers) Update(_ context.Context, w domain.Wager) error {
	if _, ok := s.st.wagers[w.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.wagers[w.ID] = w
	return nil
}

func (s memWagers) GetByID(_ context.Context, id string) (domain.Wager, error) {
	w, ok := s.st.wagers[id]
	if !ok {
		return domain.Wager{}, domain.ErrNotFound
	}
	return w, nil
}

func (s memWagers) GetPending(_ context.Context, roundID, userID string) (domain.Wager, error) {
	for _, w := range s.st.wagers {
		if w.RoundID == roundID && w.UserID == userID && w.Status == domain.WagerStatusPending {
			return w, nil
		}
	}
	return domain.Wager{}, domain.ErrNotFound
}

func (s memWagers) ListByRound(_ context.Context, roundID string) ([]domain.Wager, error) {
	var out []domain.Wager
	for _, w := range s.st.wagers {
		if w.RoundID == roundID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out, nil
}

func (s memWagers) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Wager, error) {
	var out []domain.Wager
	for _, w := range s.st.wagers {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memLedger struct{ st *memState }

func (s memLedger) Create(_ context.Context, e domain.LedgerEntry) error {
	s.st.ledger[e.ID] = e
	s.st.ledgerID = append(s.st.ledgerID, e.ID)
	return nil
}

func (s memLedger) UpdateStatus(_ context.Context, id string, status domain.EntryStatus) error {
	e, ok := s.st.ledger[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = status
	s.st.ledger[id] = e
	return nil
}

func (s memLedger) GetByID(_ context.Context, id string) (domain.LedgerEntry, error) {
	e, ok := s.st.ledger[id]
	if !ok {
		return domain.LedgerEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (s memLedger) ListByRound(_ context.Context, roundID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, id := range s.st.ledgerID {
		if e := s.st.ledger[id]; e.RoundID == roundID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s memLedger) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, id := range s.st.ledgerID {
		if e := s.st.ledger[id]; e.UserID == userID {
			out = append(out, e)
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s memLedger) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, id := range s.st.ledgerID {
		if e := s.st.ledger[id]; e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memLedger) DeleteBatch(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.st.ledger, id)
	}
	return nil
}

type memSnaps struct{ st *memState }

func (s memSnaps) Create(_ context.Context, snap domain.BalanceSnapshot) error {
	s.st.snaps = append(s.st.snaps, snap)
	return nil
}

func (s memSnaps) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.BalanceSnapshot, error) {
	var out []domain.BalanceSnapshot
	for _, snap := range s.st.snaps {
		if snap.UserID == userID {
			out = append(out, snap)
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s memSnaps) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.BalanceSnapshot, error) {
	var out []domain.BalanceSnapshot
	for _, snap := range s.st.snaps {
		if snap.CreatedAt.Before(before) {
			out = append(out, snap)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memSnaps) DeleteBatch(_ context.Context, ids []string) error {
	kept := s.st.snaps[:0]
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	for _, snap := range s.st.snaps {
		if !drop[snap.ID] {
			kept = append(kept, snap)
		}
	}
	s.st.snaps = kept
	return nil
}

type memQueue struct{ st *memState }

func (s memQueue) Create(_ context.Context, e domain.QueueEntry) error {
	s.st.queue[e.ID] = e
	return nil
}

func (s memQueue) Update(_ context.Context, e domain.QueueEntry) error {
	if _, ok := s.st.queue[e.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.queue[e.ID] = e
	return nil
}

func (s memQueue) GetByID(_ context.Context, id string) (domain.QueueEntry, error) {
	e, ok := s.st.queue[id]
	if !ok {
		return domain.QueueEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (s memQueue) GetWaiting(_ context.Context, userID string) (domain.QueueEntry, error) {
	for _, e := range s.st.queue {
		if e.UserID == userID && e.Status == domain.QueueStatusWaiting {
			return e, nil
		}
	}
	return domain.QueueEntry{}, domain.ErrNotFound
}

func (s memQueue) GetMatched(_ context.Context, userID string) (domain.QueueEntry, error) {
	var best domain.QueueEntry
	found := false
	for _, e := range s.st.queue {
		if e.UserID != userID || e.Status != domain.QueueStatusMatched {
			continue
		}
		if !found || e.CreatedAt.After(best.CreatedAt) {
			best, found = e, true
		}
	}
	if !found {
		return domain.QueueEntry{}, domain.ErrNotFound
	}
	return best, nil
}

func (s memQueue) ListWaiting(_ context.Context) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	for _, e := range s.st.queue {
		if e.Status == domain.QueueStatusWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
