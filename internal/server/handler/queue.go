package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/service"
)

// QueueService defines the methods that the queue handler requires from the
// service layer.
type QueueService interface {
	Join(ctx context.Context, userID, name string, stake float64) (service.JoinResult, error)
	Leave(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (domain.QueueEntry, error)
	Roll(ctx context.Context, userID string) (service.RollResult, error)
}

// QueueHandler serves matchmaking and duel HTTP endpoints.
type QueueHandler struct {
	queue  QueueService
	logger *slog.Logger
}

// NewQueueHandler creates a QueueHandler with the given service and logger.
func NewQueueHandler(queue QueueService, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		queue:  queue,
		logger: logger,
	}
}

// queueEntryResponse is the wire form of a queue entry.
type queueEntryResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Stake     float64 `json:"stake"`
	Status    string  `json:"status"`
	RoundID   string  `json:"round_id,omitempty"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt string  `json:"expires_at"`
}

func toQueueEntryResponse(e domain.QueueEntry) queueEntryResponse {
	return queueEntryResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		Name:      e.Name,
		Stake:     e.Stake,
		Status:    string(e.Status),
		RoundID:   e.RoundID,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt: e.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// joinQueueRequest is the JSON body for joining the duel queue.
type joinQueueRequest struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Stake  float64 `json:"stake"`
}

// joinQueueResponse reports the outcome of a join.
type joinQueueResponse struct {
	Entry   queueEntryResponse `json:"entry"`
	Matched bool               `json:"matched"`
	RoundID string             `json:"round_id,omitempty"`
}

// Join reserves the stake and enters the matchmaking queue.
// POST /api/queue
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.queue.Join(r.Context(), req.UserID, req.Name, req.Stake)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		case errors.Is(err, domain.ErrInvalidStake):
			writeError(w, http.StatusBadRequest, "stake is below the minimum")
		case errors.Is(err, domain.ErrInsufficientBalance):
			writeError(w, http.StatusUnprocessableEntity, "insufficient balance")
		default:
			h.logger.ErrorContext(r.Context(), "handler: queue join failed",
				slog.String("user_id", req.UserID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to join queue")
		}
		return
	}

	status := http.StatusCreated
	if result.Matched {
		status = http.StatusOK
	}
	writeJSON(w, status, joinQueueResponse{
		Entry:   toQueueEntryResponse(result.Entry),
		Matched: result.Matched,
		RoundID: result.RoundID,
	})
}

// Leave withdraws the user's waiting entry and refunds the stake.
// DELETE /api/queue/{user_id}
func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	if err := h.queue.Leave(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no waiting queue entry")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: queue leave failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to leave queue")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "left",
		"user_id": userID,
	})
}

// Status reports the user's current queue entry.
// GET /api/queue/{user_id}
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	entry, err := h.queue.Status(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQueueEntryExpired):
			writeError(w, http.StatusGone, "queue entry expired, stake refunded")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no queue entry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: queue status failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read queue status")
		}
		return
	}

	writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
}

// rollRequest is the JSON body for a duel dice roll.
type rollRequest struct {
	UserID string `json:"user_id"`
}

// Roll rolls the die for the caller's open duel.
// POST /api/duels/roll
func (h *QueueHandler) Roll(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.queue.Roll(r.Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no open duel")
		case errors.Is(err, domain.ErrQueueEntryExpired):
			writeError(w, http.StatusGone, "duel abandoned, stakes refunded")
		case errors.Is(err, domain.ErrInvalidPhase):
			writeError(w, http.StatusConflict, "duel is not awaiting this roll")
		default:
			h.logger.ErrorContext(r.Context(), "handler: duel roll failed",
				slog.String("user_id", req.UserID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to roll")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
