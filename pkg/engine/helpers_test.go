package engine

import (
	"golang.org/x/exp/rand"
)

// stateWith builds a state from both players' piece positions. Both slices
// must have the same length.
func stateWith(p0, p1 []int, player, roll int) *GameState {
	s := &GameState{
		NumPieces:     len(p0),
		CurrentPlayer: player,
		Roll:          roll,
		LastRoll:      roll,
	}
	for i, v := range p0 {
		s.Board[0][i] = uint8(v)
	}
	for i, v := range p1 {
		s.Board[1][i] = uint8(v)
	}
	return s
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// greedyAI exits when it can, captures when it can and otherwise moves its
// most advanced piece.
var greedyAI = PolicyFunc(func(s *GameState, _ *rand.Rand) (int, error) {
	moves := s.LegalMoves()
	if len(moves) == 0 {
		return 0, ErrNoLegalMove
	}
	for _, m := range moves {
		if m+s.Roll == Exit {
			return m, nil
		}
	}
	for _, m := range moves {
		if ScoreKnockout(m, s) == 1 {
			return m, nil
		}
	}
	return moves[len(moves)-1], nil
})

// countingPolicy counts how often it is asked for a move
type countingPolicy struct {
	calls int
	next  Policy
}

func (c *countingPolicy) ChooseMove(s *GameState, rng *rand.Rand) (int, error) {
	c.calls++
	return c.next.ChooseMove(s, rng)
}
