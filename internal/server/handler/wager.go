package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// WagerService defines the methods that the wager handler requires from the
// service layer.
type WagerService interface {
	PlaceWager(ctx context.Context, userID, roundID string, side domain.Side, stake float64) (domain.WagerReceipt, error)
	ListUserWagers(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Wager, error)
}

// WagerHandler serves wager-related HTTP endpoints.
type WagerHandler struct {
	wagers WagerService
	logger *slog.Logger
}

// NewWagerHandler creates a WagerHandler with the given service and logger.
func NewWagerHandler(wagers WagerService, logger *slog.Logger) *WagerHandler {
	return &WagerHandler{
		wagers: wagers,
		logger: logger,
	}
}

// placeWagerRequest is the JSON body for placing a wager.
type placeWagerRequest struct {
	UserID  string  `json:"user_id"`
	RoundID string  `json:"round_id"`
	Side    string  `json:"side"`
	Stake   float64 `json:"stake"`
}

// PlaceWager stakes an amount on a side of a round.
// POST /api/wagers
func (h *WagerHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	var req placeWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" || req.RoundID == "" || req.Side == "" {
		writeError(w, http.StatusBadRequest, "user_id, round_id and side are required")
		return
	}

	receipt, err := h.wagers.PlaceWager(r.Context(), req.UserID, req.RoundID, domain.Side(req.Side), req.Stake)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotFound), errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "round or account not found")
		case errors.Is(err, domain.ErrInvalidPhase):
			writeError(w, http.StatusConflict, "round is not accepting wagers")
		case errors.Is(err, domain.ErrInvalidSide):
			writeError(w, http.StatusBadRequest, "unknown side for this round")
		case errors.Is(err, domain.ErrInvalidStake):
			writeError(w, http.StatusBadRequest, "stake is below the minimum")
		case errors.Is(err, domain.ErrSelfWagerForbidden):
			writeError(w, http.StatusForbidden, "seated players cannot wager on their own duel")
		case errors.Is(err, domain.ErrInsufficientBalance):
			writeError(w, http.StatusUnprocessableEntity, "insufficient balance")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place wager failed",
				slog.String("user_id", req.UserID),
				slog.String("round_id", req.RoundID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place wager")
		}
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// listWagersResponse wraps the list wagers response.
type listWagersResponse struct {
	Wagers []domain.Wager `json:"wagers"`
}

// ListWagers returns a user's wager history, newest first.
// GET /api/wagers?user_id=...&limit=50&offset=0
func (h *WagerHandler) ListWagers(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	wagers, err := h.wagers.ListUserWagers(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list wagers failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list wagers")
		return
	}

	if wagers == nil {
		wagers = []domain.Wager{}
	}

	writeJSON(w, http.StatusOK, listWagersResponse{Wagers: wagers})
}
