package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/service"
)

// RoundService defines the methods that the round handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type RoundService interface {
	ActiveSnapshot(ctx context.Context) (domain.RoundSnapshot, error)
	GetRound(ctx context.Context, roundID string) (domain.Round, error)
	Stats(ctx context.Context, roundID string) (service.RoundStats, error)
}

// RoundHandler serves round-related HTTP endpoints.
type RoundHandler struct {
	rounds RoundService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler with the given service and logger.
func NewRoundHandler(rounds RoundService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{
		rounds: rounds,
		logger: logger,
	}
}

// ActiveRound returns the snapshot of the lobby round currently in play.
// GET /api/rounds/active
func (h *RoundHandler) ActiveRound(w http.ResponseWriter, r *http.Request) {
	snap, err := h.rounds.ActiveSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			writeError(w, http.StatusNotFound, "no active round")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: active round failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load active round")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetRound returns a single round by its ID.
// GET /api/rounds/{id}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing round id")
		return
	}

	round, err := h.rounds.GetRound(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get round failed",
			slog.String("round_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get round")
		return
	}

	writeJSON(w, http.StatusOK, round)
}

// RoundStats returns per-side wagering aggregates for a round.
// GET /api/rounds/{id}/stats
func (h *RoundHandler) RoundStats(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing round id")
		return
	}

	stats, err := h.rounds.Stats(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: round stats failed",
			slog.String("round_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute round stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
