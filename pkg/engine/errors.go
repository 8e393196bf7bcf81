package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNoLegalMove             = errors.New("no legal move")
	ErrPolicyContractViolation = errors.New("policy proposed an illegal move")
	ErrNotRollTime             = errors.New("not time to roll")
	ErrInvalidRoll             = errors.New("invalid roll")
	ErrUnknownScorer           = errors.New("unknown scorer")
	ErrUnknownAI               = errors.New("unknown AI")
	ErrNoRandomSource          = errors.New("random source required")
	ErrInvalidBudget           = errors.New("simulation budget must be positive")
	ErrIllegalMove             = errors.New("illegal move")
)

// PolicyViolationError records a move rejected during a simulation.
type PolicyViolationError struct {
	State *GameState
	Move  int
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s: move %d in %s", ErrPolicyContractViolation, e.Move, e.State)
}

func (e *PolicyViolationError) Unwrap() error {
	return ErrPolicyContractViolation
}
