package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWagerService struct {
	receipt domain.WagerReceipt
	wagers  []domain.Wager
	err     error
}

func (f *fakeWagerService) PlaceWager(ctx context.Context, userID, roundID string, side domain.Side, stake float64) (domain.WagerReceipt, error) {
	return f.receipt, f.err
}

func (f *fakeWagerService) ListUserWagers(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Wager, error) {
	return f.wagers, f.err
}

func TestPlaceWagerSuccess(t *testing.T) {
	svc := &fakeWagerService{receipt: domain.WagerReceipt{
		WagerID: "w-1",
		RoundID: "round-1",
		Side:    domain.SideWin,
		Stake:   50,
		Balance: 950,
	}}
	h := NewWagerHandler(svc, testLogger())

	body, _ := json.Marshal(map[string]any{
		"user_id":  "alice",
		"round_id": "round-1",
		"side":     "win",
		"stake":    50,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/wagers", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.PlaceWager(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var receipt domain.WagerReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "w-1", receipt.WagerID)
	assert.Equal(t, 950.0, receipt.Balance)
}

func TestPlaceWagerErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrRoundNotFound, http.StatusNotFound},
		{domain.ErrInvalidPhase, http.StatusConflict},
		{domain.ErrInvalidSide, http.StatusBadRequest},
		{domain.ErrInvalidStake, http.StatusBadRequest},
		{domain.ErrSelfWagerForbidden, http.StatusForbidden},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		h := NewWagerHandler(&fakeWagerService{err: tc.err}, testLogger())

		body, _ := json.Marshal(map[string]any{
			"user_id":  "alice",
			"round_id": "round-1",
			"side":     "win",
			"stake":    50,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/wagers", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		h.PlaceWager(rec, req)

		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestPlaceWagerRejectsMissingFields(t *testing.T) {
	h := NewWagerHandler(&fakeWagerService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/wagers", bytes.NewReader([]byte(`{"stake": 10}`)))
	rec := httptest.NewRecorder()

	h.PlaceWager(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListWagersRequiresUserID(t *testing.T) {
	h := NewWagerHandler(&fakeWagerService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/wagers", nil)
	rec := httptest.NewRecorder()

	h.ListWagers(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeQueueService struct {
	join   service.JoinResult
	status domain.QueueEntry
	roll   service.RollResult
	err    error
}

func (f *fakeQueueService) Join(ctx context.Context, userID, name string, stake float64) (service.JoinResult, error) {
	return f.join, f.err
}

func (f *fakeQueueService) Leave(ctx context.Context, userID string) error { return f.err }

func (f *fakeQueueService) Status(ctx context.Context, userID string) (domain.QueueEntry, error) {
	return f.status, f.err
}

func (f *fakeQueueService) Roll(ctx context.Context, userID string) (service.RollResult, error) {
	return f.roll, f.err
}

func TestQueueStatusExpiredMapsToGone(t *testing.T) {
	h := NewQueueHandler(&fakeQueueService{err: domain.ErrQueueEntryExpired}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/queue/alice", nil)
	req.SetPathValue("user_id", "alice")
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestQueueJoinMatchedReturnsRound(t *testing.T) {
	now := time.Now().UTC()
	h := NewQueueHandler(&fakeQueueService{join: service.JoinResult{
		Entry: domain.QueueEntry{
			ID:        "q-1",
			UserID:    "alice",
			Stake:     100,
			Status:    domain.QueueStatusMatched,
			RoundID:   "duel-1",
			CreatedAt: now,
			ExpiresAt: now.Add(5 * time.Minute),
		},
		Matched: true,
		RoundID: "duel-1",
	}}, testLogger())

	body, _ := json.Marshal(map[string]any{"user_id": "alice", "stake": 100})
	req := httptest.NewRequest(http.MethodPost, "/api/queue", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Join(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Matched bool   `json:"matched"`
		RoundID string `json:"round_id"`
		Entry   struct {
			Status string `json:"status"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.Equal(t, "duel-1", resp.RoundID)
	assert.Equal(t, "matched", resp.Entry.Status)
}

func TestRollWithoutDuelMapsToNotFound(t *testing.T) {
	h := NewQueueHandler(&fakeQueueService{err: domain.ErrNotFound}, testLogger())

	body, _ := json.Marshal(map[string]any{"user_id": "alice"})
	req := httptest.NewRequest(http.MethodPost, "/api/duels/roll", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Roll(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeRoundService struct {
	snap  domain.RoundSnapshot
	round domain.Round
	stats service.RoundStats
	err   error
}

func (f *fakeRoundService) ActiveSnapshot(ctx context.Context) (domain.RoundSnapshot, error) {
	return f.snap, f.err
}

func (f *fakeRoundService) GetRound(ctx context.Context, roundID string) (domain.Round, error) {
	return f.round, f.err
}

func (f *fakeRoundService) Stats(ctx context.Context, roundID string) (service.RoundStats, error) {
	return f.stats, f.err
}

func TestActiveRoundNoRoundMapsToNotFound(t *testing.T) {
	h := NewRoundHandler(&fakeRoundService{err: domain.ErrRoundNotFound}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/rounds/active", nil)
	rec := httptest.NewRecorder()

	h.ActiveRound(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveRoundReturnsSnapshot(t *testing.T) {
	h := NewRoundHandler(&fakeRoundService{snap: domain.RoundSnapshot{
		RoundID:  "round-1",
		Number:   7,
		Phase:    domain.PhaseBetting,
		TimeLeft: 8,
	}}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/rounds/active", nil)
	rec := httptest.NewRecorder()

	h.ActiveRound(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.RoundSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(7), snap.Number)
	assert.Equal(t, domain.PhaseBetting, snap.Phase)
}

type fakeAdminServices struct {
	summary domain.SettlementSummary
	err     error
}

func (f *fakeAdminServices) SubmitAdminDecision(ctx context.Context, adminID, roundID string, side domain.Side) error {
	return f.err
}

func (f *fakeAdminServices) ChangeOutcome(ctx context.Context, roundID string, newSide domain.Side, adminID string) (domain.SettlementSummary, error) {
	return f.summary, f.err
}

func TestChangeOutcomeErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrRoundNotFound, http.StatusNotFound},
		{domain.ErrInvalidPhase, http.StatusConflict},
		{domain.ErrOverrideForbidden, http.StatusForbidden},
		{domain.ErrInvalidSide, http.StatusBadRequest},
	}

	for _, tc := range cases {
		svc := &fakeAdminServices{err: tc.err}
		h := NewAdminHandler(svc, svc, testLogger())

		body, _ := json.Marshal(map[string]any{"admin_id": "root", "side": "loss"})
		req := httptest.NewRequest(http.MethodPost, "/api/admin/rounds/round-1/outcome", bytes.NewReader(body))
		req.SetPathValue("id", "round-1")
		rec := httptest.NewRecorder()

		h.ChangeOutcome(rec, req)

		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestSubmitDecisionRecorded(t *testing.T) {
	svc := &fakeAdminServices{}
	h := NewAdminHandler(svc, svc, testLogger())

	body, _ := json.Marshal(map[string]any{"admin_id": "root", "side": "win"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/rounds/round-1/decision", bytes.NewReader(body))
	req.SetPathValue("id", "round-1")
	rec := httptest.NewRecorder()

	h.SubmitDecision(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recorded"`)
}
