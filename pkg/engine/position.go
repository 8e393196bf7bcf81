// Package engine provides the public API for the Royal Game of Ur engine.
package engine

import (
	"fmt"
	"strings"

	"github.com/yourusername/urengine/internal/positionid"
)

const (
	MaxPieces = 7  // Piece slots per player
	Start     = 0  // Off board, not yet entered
	Exit      = 15 // Borne off
	NotRolled = -1 // No pending roll
	NoWinner  = -1

	// DefaultPieces is the number of pieces in a standard game
	DefaultPieces = 7
)

// Board represents piece positions for both players.
// Board[player][slot] is a track position 0-15:
// 0 = start, 1-4 private entry lane, 5-12 shared lane,
// 13-14 private home lane, 15 = exit.
// Slots at or beyond NumPieces are unused and always 0.
type Board [2][MaxPieces]uint8

// GameState represents the full state needed to pick a move.
// It contains only fixed-size arrays, so a plain value copy never aliases.
type GameState struct {
	Board         Board // Piece positions
	NumPieces     int   // Active slots per player (1-7)
	CurrentPlayer int   // 0 or 1 - who makes the next decision
	Roll          int   // Pending roll 1-4, or NotRolled
	LastRoll      int   // Most recent dice sum, kept after the roll is consumed
}

// NewGameState returns a game with all pieces at the start, player 0 to roll.
func NewGameState(numPieces int) *GameState {
	if numPieces < 1 || numPieces > MaxPieces {
		numPieces = DefaultPieces
	}
	return &GameState{
		NumPieces:     numPieces,
		CurrentPlayer: 0,
		Roll:          NotRolled,
		LastRoll:      NotRolled,
	}
}

// Copy returns an independent copy of the state.
func (s *GameState) Copy() *GameState {
	c := *s
	return &c
}

// mirror returns the state with the players' roles exchanged
func (s *GameState) mirror() *GameState {
	m := s.Copy()
	m.Board = Board(positionid.SwapSides(positionid.Board(s.Board)))
	m.CurrentPlayer = 1 - s.CurrentPlayer
	return m
}

// Opponent returns the index of the player not on turn.
func (s *GameState) Opponent() int {
	return 1 - s.CurrentPlayer
}

// Pieces returns the track positions of a player's active pieces in slot order.
func (s *GameState) Pieces(player int) []int {
	out := make([]int, s.NumPieces)
	for i := 0; i < s.NumPieces; i++ {
		out[i] = int(s.Board[player][i])
	}
	return out
}

// Occupies reports whether the player has a piece on the given square.
func (s *GameState) Occupies(player, pos int) bool {
	return s.slotAt(player, pos) >= 0
}

// slotAt returns the first slot of player holding pos, or -1.
func (s *GameState) slotAt(player, pos int) int {
	if pos < 0 || pos > Exit {
		return -1
	}
	for i := 0; i < s.NumPieces; i++ {
		if int(s.Board[player][i]) == pos {
			return i
		}
	}
	return -1
}

// Winner returns the player with every piece at the exit, or NoWinner.
func (s *GameState) Winner() int {
	for p := 0; p < 2; p++ {
		done := true
		for i := 0; i < s.NumPieces; i++ {
			if s.Board[p][i] != Exit {
				done = false
				break
			}
		}
		if done {
			return p
		}
	}
	return NoWinner
}

// IsFinished returns true once a player has borne off all pieces
func (s *GameState) IsFinished() bool {
	return s.Winner() != NoWinner
}

// NeedsRoll returns true if the player on turn must roll before moving
func (s *GameState) NeedsRoll() bool {
	return s.Roll == NotRolled && !s.IsFinished()
}

// PositionID returns the compact position ID of the state
func (s *GameState) PositionID() string {
	return positionid.PositionID(s.toPositionID())
}

func (s *GameState) toPositionID() positionid.Position {
	return positionid.Position{
		Board:     positionid.Board(s.Board),
		NumPieces: s.NumPieces,
		Player:    s.CurrentPlayer,
		Roll:      s.Roll,
	}
}

// FromPositionID decodes a position ID into a game state.
func FromPositionID(posID string) (*GameState, error) {
	pos, err := positionid.FromPositionID(posID)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", posID, err)
	}
	s := &GameState{
		Board:         Board(pos.Board),
		NumPieces:     pos.NumPieces,
		CurrentPlayer: pos.Player,
		Roll:          pos.Roll,
		LastRoll:      pos.Roll,
	}
	// An unusable roll passes the turn, so it is never pending
	if s.Roll != NotRolled && len(s.LegalMoves()) == 0 {
		return nil, fmt.Errorf("decode %q: %w: roll %d cannot be used", posID, positionid.ErrInvalidPositionID, s.Roll)
	}
	return s, nil
}

// String renders a compact form such as "p0 roll=2 [0 0 4 | 0 7 15]"
func (s *GameState) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "p%d ", s.CurrentPlayer)
	if s.Roll == NotRolled {
		sb.WriteString("roll=- [")
	} else {
		fmt.Fprintf(&sb, "roll=%d [", s.Roll)
	}
	for p := 0; p < 2; p++ {
		if p == 1 {
			sb.WriteString(" |")
		}
		for i := 0; i < s.NumPieces; i++ {
			if p == 1 || i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d", s.Board[p][i])
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
