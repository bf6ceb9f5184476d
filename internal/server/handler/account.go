package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// HistoryService defines the balance-trail method the handler requires.
type HistoryService interface {
	BalanceHistory(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.BalanceSnapshot, error)
}

// AccountHandler serves account-related HTTP endpoints.
type AccountHandler struct {
	history HistoryService
	logger  *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and logger.
func NewAccountHandler(history HistoryService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		history: history,
		logger:  logger,
	}
}

// balanceSnapshotResponse is the wire form of one balance-trail event.
type balanceSnapshotResponse struct {
	ID              string  `json:"id"`
	PreviousBalance float64 `json:"previous_balance"`
	NewBalance      float64 `json:"new_balance"`
	Change          float64 `json:"change"`
	PercentChange   float64 `json:"percent_change"`
	Kind            string  `json:"kind"`
	RoundID         string  `json:"round_id,omitempty"`
	WagerID         string  `json:"wager_id,omitempty"`
	Description     string  `json:"description,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// balanceHistoryResponse wraps the history endpoint output.
type balanceHistoryResponse struct {
	UserID  string                    `json:"user_id"`
	History []balanceSnapshotResponse `json:"history"`
}

// BalanceHistory returns the user's balance trail, newest first.
// GET /api/accounts/{id}/history?limit=50&offset=0
func (h *AccountHandler) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	snaps, err := h.history.BalanceHistory(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: balance history failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load balance history")
		return
	}

	out := make([]balanceSnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, balanceSnapshotResponse{
			ID:              s.ID,
			PreviousBalance: s.PreviousBalance,
			NewBalance:      s.NewBalance,
			Change:          s.Change,
			PercentChange:   s.PercentChange,
			Kind:            string(s.Kind),
			RoundID:         s.RoundID,
			WagerID:         s.WagerID,
			Description:     s.Description,
			CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, balanceHistoryResponse{
		UserID:  userID,
		History: out,
	})
}
