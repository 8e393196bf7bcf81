package engine

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Policy picks a move for the player on turn. state has a pending roll and
// must not be modified. rng is owned by the caller for the duration of the
// call; a policy must draw all of its randomness from it.
type Policy interface {
	ChooseMove(state *GameState, rng *rand.Rand) (int, error)
}

// PolicyFunc adapts a function to Policy
type PolicyFunc func(state *GameState, rng *rand.Rand) (int, error)

// ChooseMove calls f
func (f PolicyFunc) ChooseMove(state *GameState, rng *rand.Rand) (int, error) {
	return f(state, rng)
}

// RandomAI plays a uniformly random legal move
type RandomAI struct{}

// ChooseMove implements Policy
func (RandomAI) ChooseMove(state *GameState, rng *rand.Rand) (int, error) {
	moves := state.LegalMoves()
	switch len(moves) {
	case 0:
		return 0, fmt.Errorf("%w: %s", ErrNoLegalMove, state)
	case 1:
		return moves[0], nil
	}
	if rng == nil {
		return 0, ErrNoRandomSource
	}
	return moves[rng.Intn(len(moves))], nil
}

// FirstMoveAI always plays the lowest legal square. It is deterministic and
// useful as a fixed opponent.
var FirstMoveAI = PolicyFunc(func(state *GameState, _ *rand.Rand) (int, error) {
	moves := state.LegalMoves()
	if len(moves) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoLegalMove, state)
	}
	return moves[0], nil
})

// LastMoveAI always plays the most advanced legal square, exiting a piece
// whenever it can.
var LastMoveAI = PolicyFunc(func(state *GameState, _ *rand.Rand) (int, error) {
	moves := state.LegalMoves()
	if len(moves) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoLegalMove, state)
	}
	return moves[len(moves)-1], nil
})
