package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRoundNotFound       = errors.New("round not found")
	ErrInvalidPhase        = errors.New("round not accepting this operation in its current phase")
	ErrInvalidSide         = errors.New("side does not belong to this round")
	ErrInvalidStake        = errors.New("invalid stake amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSelfWagerForbidden  = errors.New("players cannot bet on their own match")
	ErrAlreadySettled      = errors.New("round already settled")
	ErrOverrideForbidden   = errors.New("override not allowed for this round")
	ErrQueueEntryExpired   = errors.New("queue entry expired")
	ErrAlreadyQueued       = errors.New("already waiting in queue")
	ErrClockRunning        = errors.New("round clock already running")
	ErrLockHeld            = errors.New("lock already held")
	ErrContextDone         = errors.New("context cancelled")
)
