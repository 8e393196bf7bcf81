package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/yourusername/urengine/pkg/engine"
)

// Private lanes run right to left from the entry, the shared lane left to
// right; columns 4 and 5 of the private rows are not part of the board.
const boardColumns = 8

var pieceGlyph = [2]string{"X", "O"}

// privateSquare maps a column of a private row to its track position, or 0
// for the gap between the entry and home lanes.
func privateSquare(col int) int {
	switch {
	case col < 4:
		return 4 - col
	case col >= 6:
		return 14 - (col - 6)
	}
	return 0
}

func sharedSquare(col int) int {
	return col + 5
}

type boardPrinter struct {
	out    *termenv.Output
	colors [2]termenv.Color
	flower termenv.Color
}

func newBoardPrinter(out *termenv.Output) *boardPrinter {
	return &boardPrinter{
		out:    out,
		colors: [2]termenv.Color{out.Color("1"), out.Color("4")},
		flower: out.Color("3"),
	}
}

// cell draws square as seen by the given players
func (p *boardPrinter) cell(s *engine.GameState, square int, players ...int) string {
	for _, player := range players {
		if s.Occupies(player, square) {
			return p.out.String(pieceGlyph[player]).Foreground(p.colors[player]).Bold().String()
		}
	}
	if engine.IsFlower(square) {
		return p.out.String("*").Foreground(p.flower).String()
	}
	return "."
}

func (p *boardPrinter) row(s *engine.GameState, shared bool, player int) string {
	cells := make([]string, boardColumns)
	for col := range cells {
		switch {
		case shared:
			cells[col] = p.cell(s, sharedSquare(col), 0, 1)
		case privateSquare(col) == 0:
			cells[col] = " "
		default:
			cells[col] = p.cell(s, privateSquare(col), player)
		}
	}
	return strings.Join(cells, " ")
}

func countAt(s *engine.GameState, player, square int) int {
	n := 0
	for _, v := range s.Pieces(player) {
		if v == square {
			n++
		}
	}
	return n
}

// render draws the board with player 0's lanes on top, then a status line.
func (p *boardPrinter) render(w io.Writer, s *engine.GameState) {
	lane := func(player int) {
		fmt.Fprintf(w, "  %s  %s   start %d  exit %d\n", pieceGlyph[player], p.row(s, false, player),
			countAt(s, player, engine.Start), countAt(s, player, engine.Exit))
	}
	lane(0)
	fmt.Fprintf(w, "     %s\n", p.row(s, true, 0))
	lane(1)

	switch winner := s.Winner(); {
	case winner != engine.NoWinner:
		fmt.Fprintf(w, "  %s has won\n", pieceGlyph[winner])
	case s.NeedsRoll():
		fmt.Fprintf(w, "  %s to roll\n", pieceGlyph[s.CurrentPlayer])
	default:
		fmt.Fprintf(w, "  %s rolled %d\n", pieceGlyph[s.CurrentPlayer], s.Roll)
	}
	fmt.Fprintf(w, "  Position ID: %s\n", s.PositionID())
}
