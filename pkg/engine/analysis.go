package engine

import "sort"

// AnalysisResult contains the result of scoring analysis
type AnalysisResult struct {
	PositionID string      `json:"positionId"`
	AI         string      `json:"ai"`
	Moves      []MoveScore `json:"moves"` // All moves ranked by score
	BestMove   int         `json:"bestMove"`
	BestScore  float64     `json:"bestScore"`
	NumMoves   int         `json:"numMoves"` // Total number of legal moves
}

// AnalyzeScoring scores every legal move with cfg and ranks them, best first.
// Equal scores keep ascending move order. BestMove is -1 when nothing is
// playable.
func AnalyzeScoring(state *GameState, cfg *ScoringConfig) *AnalysisResult {
	ai := NewScoringAI(cfg)
	moves := ai.ScoreMoves(state)

	result := &AnalysisResult{
		PositionID: state.PositionID(),
		AI:         cfg.Name,
		Moves:      moves,
		BestMove:   -1,
		NumMoves:   len(moves),
	}

	// Sort by score (best first)
	sort.SliceStable(result.Moves, func(i, j int) bool {
		return result.Moves[i].Total > result.Moves[j].Total
	})

	if len(result.Moves) > 0 {
		result.BestMove = result.Moves[0].Move
		result.BestScore = result.Moves[0].Total
	}
	return result
}

// RankMoves scores and ranks the top N moves
// If n <= 0, returns all moves ranked
func RankMoves(state *GameState, cfg *ScoringConfig, n int) []MoveScore {
	analysis := AnalyzeScoring(state, cfg)
	if n <= 0 || n > len(analysis.Moves) {
		return analysis.Moves
	}
	return analysis.Moves[:n]
}
