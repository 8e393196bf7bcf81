// Package positionid implements compact position encoding/decoding for
// Royal Game of Ur positions.
//
// A position (both players' pieces, the player on turn, the pending roll and
// the number of pieces in play) is packed into a 63-bit key and written as an
// 11-character string over the base64 alphabet. Pieces are interchangeable,
// so each player's pieces are sorted before encoding and equal positions always
// produce equal IDs.
package positionid

import (
	"errors"
	"sort"
)

const (
	// PositionIDLength is the length of a position ID string
	PositionIDLength = 11
	// MaxPieces is the number of piece slots per player
	MaxPieces = 7
	// Exit is the track position of a piece that has left the board
	Exit = 15
	// NotRolled marks a position where the player on turn has not rolled yet
	NotRolled = -1

	notRolledCode = 7
)

// Base64 alphabet used for position ID encoding
const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Board holds track positions, [player][slot].
type Board [2][MaxPieces]uint8

// Position is everything a position ID carries.
type Position struct {
	Board     Board
	NumPieces int // Active slots per player (1-7)
	Player    int // Player on turn (0 or 1)
	Roll      int // Pending roll 1-4, or NotRolled
}

// ErrInvalidPositionID is returned when a position ID is invalid
var ErrInvalidPositionID = errors.New("invalid position ID")

// Canonical returns the board with each player's active pieces sorted and
// unused slots cleared.
func Canonical(board Board, numPieces int) Board {
	var out Board
	for p := 0; p < 2; p++ {
		pieces := make([]int, numPieces)
		for i := 0; i < numPieces; i++ {
			pieces[i] = int(board[p][i])
		}
		sort.Ints(pieces)
		for i, v := range pieces {
			out[p][i] = uint8(v)
		}
	}
	return out
}

// MakeKey packs a position into its 63-bit key.
func MakeKey(pos Position) uint64 {
	board := Canonical(pos.Board, pos.NumPieces)

	roll := uint64(notRolledCode)
	if pos.Roll >= 0 {
		roll = uint64(pos.Roll)
	}

	key := uint64(pos.Player & 1)
	key = key<<3 | roll
	key = key<<3 | uint64(pos.NumPieces&7)
	for p := 0; p < 2; p++ {
		for i := 0; i < MaxPieces; i++ {
			key = key<<4 | uint64(board[p][i]&0x0F)
		}
	}
	return key
}

// PositionFromKey unpacks a key. The result is not validated.
func PositionFromKey(key uint64) Position {
	var pos Position
	for p := 1; p >= 0; p-- {
		for i := MaxPieces - 1; i >= 0; i-- {
			pos.Board[p][i] = uint8(key & 0x0F)
			key >>= 4
		}
	}
	pos.NumPieces = int(key & 7)
	key >>= 3
	roll := int(key & 7)
	if roll == notRolledCode {
		roll = NotRolled
	}
	pos.Roll = roll
	key >>= 3
	pos.Player = int(key & 1)
	return pos
}

// PositionIDFromKey writes a key as a position ID string
func PositionIDFromKey(key uint64) string {
	result := make([]byte, PositionIDLength)
	for i := 0; i < PositionIDLength; i++ {
		shift := uint(PositionIDLength-1-i) * 6
		result[i] = base64Chars[(key>>shift)&0x3F]
	}
	return string(result)
}

// PositionID generates a position ID string from a position
func PositionID(pos Position) string {
	return PositionIDFromKey(MakeKey(pos))
}

// base64Decode decodes a base64 character to its value
func base64Decode(ch byte) uint8 {
	if ch >= 'A' && ch <= 'Z' {
		return ch - 'A'
	}
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 26
	}
	if ch >= '0' && ch <= '9' {
		return ch - '0' + 52
	}
	if ch == '+' {
		return 62
	}
	if ch == '/' {
		return 63
	}
	return 255
}

// FromPositionID decodes a position ID string and validates the result.
func FromPositionID(posID string) (Position, error) {
	if len(posID) != PositionIDLength {
		return Position{}, ErrInvalidPositionID
	}

	// Only 63 bits are used, so the first character carries at most 3 bits
	if base64Decode(posID[0]) > 7 {
		return Position{}, ErrInvalidPositionID
	}

	var key uint64
	for i := 0; i < PositionIDLength; i++ {
		v := base64Decode(posID[i])
		if v == 255 {
			return Position{}, ErrInvalidPositionID
		}
		key = key<<6 | uint64(v)
	}
	pos := PositionFromKey(key)
	if !CheckPosition(pos) {
		return pos, ErrInvalidPositionID
	}
	return pos, nil
}

// CheckPosition validates that a position could occur in a game
func CheckPosition(pos Position) bool {
	if pos.NumPieces < 1 || pos.NumPieces > MaxPieces {
		return false
	}
	// A thrown 0 passes the turn at once, so it is never left pending
	if pos.Roll != NotRolled && (pos.Roll < 1 || pos.Roll > 4) {
		return false
	}

	var finished [2]bool
	for p := 0; p < 2; p++ {
		finished[p] = true
		for i := 0; i < MaxPieces; i++ {
			v := int(pos.Board[p][i])
			if i >= pos.NumPieces {
				if v != 0 {
					return false
				}
				continue
			}
			if v != Exit {
				finished[p] = false
			}
			// Only the start and exit squares can hold more than one piece
			if v == 0 || v == Exit {
				continue
			}
			for j := i + 1; j < pos.NumPieces; j++ {
				if int(pos.Board[p][j]) == v {
					return false
				}
			}
		}
	}
	if finished[0] && finished[1] {
		return false
	}

	// Shared lane squares hold at most one piece
	for i := 0; i < pos.NumPieces; i++ {
		v := int(pos.Board[0][i])
		if v < 5 || v > 12 {
			continue
		}
		for j := 0; j < pos.NumPieces; j++ {
			if int(pos.Board[1][j]) == v {
				return false
			}
		}
	}
	return true
}

// EqualBoards returns true if two boards are identical
func EqualBoards(b1, b2 Board) bool {
	return b1 == b2
}

// SwapSides swaps the two sides of the board
func SwapSides(board Board) Board {
	return Board{board[1], board[0]}
}
