package positionid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Starting position: all seven pieces off the board, player 0 to roll.
func startingPosition() Position {
	return Position{NumPieces: 7, Player: 0, Roll: NotRolled}
}

func TestPositionIDStartingPosition(t *testing.T) {
	posID := PositionID(startingPosition())

	require.Len(t, posID, PositionIDLength)
	// player 0, roll code 7, seven pieces: 0b0_111_111 followed by 56 zero bits
	assert.Equal(t, "D8AAAAAAAAA", posID)
}

func TestPositionIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
	}{
		{name: "start", pos: startingPosition()},
		{
			name: "midgame with roll",
			pos: Position{
				Board:     Board{{0, 0, 3, 6, 8, 14, 15}, {0, 1, 2, 5, 9, 13, 15}},
				NumPieces: 7,
				Player:    1,
				Roll:      2,
			},
		},
		{
			name: "single piece",
			pos: Position{
				Board:     Board{{12}, {4}},
				NumPieces: 1,
				Player:    0,
				Roll:      3,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			posID := PositionID(tc.pos)
			got, err := FromPositionID(posID)
			require.NoError(t, err)

			assert.Equal(t, Canonical(tc.pos.Board, tc.pos.NumPieces), got.Board)
			assert.Equal(t, tc.pos.NumPieces, got.NumPieces)
			assert.Equal(t, tc.pos.Player, got.Player)
			assert.Equal(t, tc.pos.Roll, got.Roll)
		})
	}
}

func TestPositionIDIgnoresPieceOrder(t *testing.T) {
	a := Position{Board: Board{{6, 0, 3}, {0, 9, 1}}, NumPieces: 3, Roll: NotRolled}
	b := Position{Board: Board{{0, 3, 6}, {9, 1, 0}}, NumPieces: 3, Roll: NotRolled}

	assert.Equal(t, PositionID(a), PositionID(b))
}

func TestFromPositionIDInvalid(t *testing.T) {
	tests := []struct {
		name  string
		posID string
	}{
		{name: "empty", posID: ""},
		{name: "too short", posID: "D8AAAA"},
		{name: "too long", posID: "D8AAAAAAAAAA"},
		{name: "bad character", posID: "D8AAAA!AAAA"},
		{name: "zero pieces", posID: PositionIDFromKey(MakeKey(Position{NumPieces: 0, Roll: NotRolled}))},
		{name: "top bit set", posID: "//AAAAAAAAA"},
		{
			name:  "pending roll of zero",
			posID: PositionIDFromKey(MakeKey(Position{Board: Board{{0, 5}, {0, 0}}, NumPieces: 2, Roll: 0})),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromPositionID(tc.posID)
			require.ErrorIs(t, err, ErrInvalidPositionID)
		})
	}
}

func TestCheckPosition(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{name: "start", pos: startingPosition(), want: true},
		{
			name: "two own pieces on one square",
			pos:  Position{Board: Board{{3, 3}, {0, 0}}, NumPieces: 2, Roll: NotRolled},
			want: false,
		},
		{
			name: "opponents share private squares",
			pos:  Position{Board: Board{{3, 14}, {3, 14}}, NumPieces: 2, Roll: NotRolled},
			want: true,
		},
		{
			name: "opponents share a shared-lane square",
			pos:  Position{Board: Board{{7, 0}, {7, 0}}, NumPieces: 2, Roll: NotRolled},
			want: false,
		},
		{
			name: "both players finished",
			pos:  Position{Board: Board{{15}, {15}}, NumPieces: 1, Roll: NotRolled},
			want: false,
		},
		{
			name: "piece in unused slot",
			pos:  Position{Board: Board{{0, 0, 5}, {0}}, NumPieces: 2, Roll: NotRolled},
			want: false,
		},
		{
			name: "roll out of range",
			pos:  Position{NumPieces: 7, Roll: 5},
			want: false,
		},
		{
			name: "pending roll of zero",
			pos:  Position{Board: Board{{0, 5}, {0, 0}}, NumPieces: 2, Roll: 0},
			want: false,
		},
		{
			name: "pending roll",
			pos:  Position{Board: Board{{0, 5}, {0, 0}}, NumPieces: 2, Roll: 4},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CheckPosition(tc.pos))
		})
	}
}

func TestSwapSides(t *testing.T) {
	board := Board{{1, 2}, {3, 4}}
	swapped := SwapSides(board)

	assert.Equal(t, Board{{3, 4}, {1, 2}}, swapped)
	assert.True(t, EqualBoards(board, SwapSides(swapped)))
}
