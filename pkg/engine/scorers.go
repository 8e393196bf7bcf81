package engine

import (
	"sort"
	"strings"
)

// ScoreFunc rates a legal move for the player on turn. move is the square of
// the piece to move. Implementations must not modify state.
type ScoreFunc func(move int, state *GameState) float64

// Scorer is a named evaluation dimension
type Scorer struct {
	Name  string
	Score ScoreFunc
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ScoreKnockout is 1 if the move captures an opposing piece.
func ScoreKnockout(move int, state *GameState) float64 {
	next := move + state.Roll
	return boolScore(IsCapturable(next) && state.Occupies(state.Opponent(), next))
}

// ScorePosition is the progress of the piece before moving, 0 to 1.
func ScorePosition(move int, state *GameState) float64 {
	return float64(move) / Exit
}

// ScoreLeaveFlower is 1 if the piece currently stands on a flower
func ScoreLeaveFlower(move int, state *GameState) float64 {
	return boolScore(IsFlower(move))
}

// ScoreGotoFlower is 1 if the piece lands on a flower
func ScoreGotoFlower(move int, state *GameState) float64 {
	return boolScore(IsFlower(move + state.Roll))
}

// ScoreGotoSafety is 1 if the piece leaves the contested track for the
// private home lane or the exit.
func ScoreGotoSafety(move int, state *GameState) float64 {
	return boolScore(move <= Exit-3 && move+state.Roll > Exit-3)
}

// ScoreLeaveSafety is 1 if the piece leaves the private entry lane.
func ScoreLeaveSafety(move int, state *GameState) float64 {
	return boolScore(move <= 4 && move+state.Roll > 4)
}

// ScoreWhichPiece prefers higher slots, breaking symmetry between pieces.
func ScoreWhichPiece(move int, state *GameState) float64 {
	slot := state.slotAt(state.CurrentPlayer, move)
	if slot < 0 || state.NumPieces == 0 {
		return 0
	}
	return float64(slot+1) / float64(state.NumPieces)
}

// ScoreRiskOfBeingTakenHere is the chance that an opposing piece could
// capture the piece on its current square with the next roll.
func ScoreRiskOfBeingTakenHere(move int, state *GameState) float64 {
	if !IsCapturable(move) {
		return 0
	}
	opp := state.Opponent()
	risk := 0.0
	for i, p := range CaptureRollProbabilities() {
		if state.Occupies(opp, move-(i+1)) {
			risk += p
		}
	}
	return risk
}

// ScoreRiskOfBeingTaken is the chance that, after the move, the opponent
// rolls a number letting some piece capture one of ours.
func ScoreRiskOfBeingTaken(move int, state *GameState) float64 {
	after, ok := state.Apply(move)
	if !ok {
		return 0
	}
	mover := state.CurrentPlayer
	opp := 1 - mover

	risk := 0.0
	for i, p := range CaptureRollProbabilities() {
		roll := i + 1
		for slot := 0; slot < after.NumPieces; slot++ {
			next := int(after.Board[opp][slot]) + roll
			if IsCapturable(next) && after.Occupies(mover, next) {
				risk += p
				break
			}
		}
	}
	return risk
}

// ScoreExit is 1 if the piece bears off exactly
func ScoreExit(move int, state *GameState) float64 {
	return boolScore(move+state.Roll == Exit)
}

var builtinScorers = []Scorer{
	{Name: "knockout", Score: ScoreKnockout},
	{Name: "position", Score: ScorePosition},
	{Name: "leaveFlower", Score: ScoreLeaveFlower},
	{Name: "gotoFlower", Score: ScoreGotoFlower},
	{Name: "gotoSafety", Score: ScoreGotoSafety},
	{Name: "leaveSafety", Score: ScoreLeaveSafety},
	{Name: "whichPiece", Score: ScoreWhichPiece},
	{Name: "riskOfBeingTaken", Score: ScoreRiskOfBeingTaken},
	{Name: "riskOfBeingTakenHere", Score: ScoreRiskOfBeingTakenHere},
	{Name: "exit", Score: ScoreExit},
}

// LookupScorer finds a built-in scorer by name, ignoring case.
func LookupScorer(name string) (Scorer, bool) {
	for _, s := range builtinScorers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Scorer{}, false
}

// ScorerNames returns the built-in scorer names, sorted
func ScorerNames() []string {
	names := make([]string, len(builtinScorers))
	for i, s := range builtinScorers {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}
