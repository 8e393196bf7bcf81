package engine

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// IsFlower returns true for the rosette squares that grant another turn
func IsFlower(pos int) bool {
	return pos == 4 || pos == 8 || pos == Exit-1
}

// IsShared returns true for squares both players pass through
func IsShared(pos int) bool {
	return pos >= 5 && pos <= Exit-3
}

// IsCapturable returns true for squares where a landing piece knocks out an
// opposing piece. The flower in the shared lane is safe.
func IsCapturable(pos int) bool {
	return IsShared(pos) && !IsFlower(pos)
}

// canMoveTo checks whether player may land on next
func (s *GameState) canMoveTo(player, next int) bool {
	if s.IsFinished() {
		return false
	}
	if next == Exit {
		return true
	}
	if next > Exit {
		return false
	}
	if IsShared(next) && IsFlower(next) {
		return !s.Occupies(0, next) && !s.Occupies(1, next)
	}
	return !s.Occupies(player, next)
}

// CanMove checks whether player has a piece on position that may advance steps.
func (s *GameState) CanMove(player, position, steps int) bool {
	if steps <= 0 || position < Start || position >= Exit {
		return false
	}
	return s.Occupies(player, position) && s.canMoveTo(player, position+steps)
}

// canMoveWith reports whether any piece of the player on turn can use roll
func (s *GameState) canMoveWith(roll int) bool {
	if roll <= 0 {
		return false
	}
	for i := 0; i < s.NumPieces; i++ {
		if s.canMoveTo(s.CurrentPlayer, int(s.Board[s.CurrentPlayer][i])+roll) {
			return true
		}
	}
	return false
}

// LegalMoves returns the squares, ascending, holding a piece of the player on
// turn that can move with the pending roll. Empty while a roll is required or
// after the game has ended.
func (s *GameState) LegalMoves() []int {
	if s.Roll <= 0 || s.IsFinished() {
		return nil
	}
	var moves []int
	for pos := Start; pos < Exit; pos++ {
		if s.CanMove(s.CurrentPlayer, pos, s.Roll) {
			moves = append(moves, pos)
		}
	}
	return moves
}

// Move advances the piece of the player on turn standing on position by the
// pending roll. It returns false and leaves the state untouched if the move is
// not legal.
func (s *GameState) Move(position int) bool {
	if s.Roll <= 0 || s.IsFinished() {
		return false
	}
	player := s.CurrentPlayer
	if !s.CanMove(player, position, s.Roll) {
		return false
	}

	slot := s.slotAt(player, position)
	next := position + s.Roll
	s.Board[player][slot] = uint8(next)

	if IsCapturable(next) {
		opp := 1 - player
		for i := 0; i < s.NumPieces; i++ {
			if int(s.Board[opp][i]) == next {
				s.Board[opp][i] = Start
			}
		}
	}

	s.Roll = NotRolled
	if !IsFlower(next) {
		s.CurrentPlayer = 1 - player
	}
	return true
}

// Apply returns the state after playing the move on a copy. The receiver is
// never modified.
func (s *GameState) Apply(position int) (*GameState, bool) {
	next := s.Copy()
	if !next.Move(position) {
		return s, false
	}
	return next, true
}

// ApplyRoll records a dice sum. If no piece can use it (a sum of 0 never can)
// the turn passes and the state still needs a roll.
func (s *GameState) ApplyRoll(sum int) error {
	if !s.NeedsRoll() {
		return fmt.Errorf("%w: roll is %d", ErrNotRollTime, s.Roll)
	}
	if sum < 0 || sum > 4 {
		return fmt.Errorf("%w: %d", ErrInvalidRoll, sum)
	}
	s.LastRoll = sum
	if s.canMoveWith(sum) {
		s.Roll = sum
	} else {
		s.CurrentPlayer = 1 - s.CurrentPlayer
	}
	return nil
}

// RollWith throws the dice with rng and applies the result, returning the sum.
// It returns -1 if the state does not need a roll.
func (s *GameState) RollWith(rng *rand.Rand) int {
	if !s.NeedsRoll() {
		return -1
	}
	sum := RollDice(rng)
	// sum is always in range and a roll is due
	_ = s.ApplyRoll(sum)
	return sum
}
