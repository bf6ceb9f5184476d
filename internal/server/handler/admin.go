package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// DecisionService defines the admin decision method the handler requires.
type DecisionService interface {
	SubmitAdminDecision(ctx context.Context, adminID, roundID string, side domain.Side) error
}

// OutcomeService defines the outcome-change method the handler requires.
type OutcomeService interface {
	ChangeOutcome(ctx context.Context, roundID string, newSide domain.Side, adminID string) (domain.SettlementSummary, error)
}

// AdminHandler serves operator endpoints: pre-deadline decision overrides and
// post-settlement outcome changes.
type AdminHandler struct {
	decisions DecisionService
	outcomes  OutcomeService
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given services and logger.
func NewAdminHandler(decisions DecisionService, outcomes OutcomeService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		decisions: decisions,
		outcomes:  outcomes,
		logger:    logger,
	}
}

// adminDecisionRequest is the JSON body for both admin operations.
type adminDecisionRequest struct {
	AdminID string `json:"admin_id"`
	Side    string `json:"side"`
}

// SubmitDecision records an override that the decider will honor when the
// round's betting phase closes.
// POST /api/admin/rounds/{id}/decision
func (h *AdminHandler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing round id")
		return
	}

	var req adminDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AdminID == "" || req.Side == "" {
		writeError(w, http.StatusBadRequest, "admin_id and side are required")
		return
	}

	err := h.decisions.SubmitAdminDecision(r.Context(), req.AdminID, id, domain.Side(req.Side))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotFound):
			writeError(w, http.StatusNotFound, "round not found")
		case errors.Is(err, domain.ErrInvalidSide):
			writeError(w, http.StatusBadRequest, "unknown side for this round")
		case errors.Is(err, domain.ErrAlreadySettled):
			writeError(w, http.StatusConflict, "round is already decided")
		case errors.Is(err, domain.ErrOverrideForbidden):
			writeError(w, http.StatusForbidden, "overrides are not allowed for this round")
		default:
			h.logger.ErrorContext(r.Context(), "handler: admin decision failed",
				slog.String("round_id", id),
				slog.String("admin_id", req.AdminID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to submit decision")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "recorded",
		"round_id": id,
		"side":     req.Side,
	})
}

// ChangeOutcome reverses a settled round and re-settles it on the new side.
// POST /api/admin/rounds/{id}/outcome
func (h *AdminHandler) ChangeOutcome(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing round id")
		return
	}

	var req adminDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AdminID == "" || req.Side == "" {
		writeError(w, http.StatusBadRequest, "admin_id and side are required")
		return
	}

	summary, err := h.outcomes.ChangeOutcome(r.Context(), id, domain.Side(req.Side), req.AdminID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotFound):
			writeError(w, http.StatusNotFound, "round not found")
		case errors.Is(err, domain.ErrInvalidSide):
			writeError(w, http.StatusBadRequest, "unknown side for this round")
		case errors.Is(err, domain.ErrInvalidPhase):
			writeError(w, http.StatusConflict, "round has not been settled yet")
		case errors.Is(err, domain.ErrOverrideForbidden):
			writeError(w, http.StatusForbidden, "outcome changes are not allowed for this round")
		default:
			h.logger.ErrorContext(r.Context(), "handler: change outcome failed",
				slog.String("round_id", id),
				slog.String("admin_id", req.AdminID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to change outcome")
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
