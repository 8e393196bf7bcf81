package engine

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// WeightedScorer is a scorer with its weight in a configuration
type WeightedScorer struct {
	Scorer
	Weight float64
}

// ScoringConfig is one named weighting of scorers. Treat it as read-only once
// built: the same config is shared by concurrent rollouts.
type ScoringConfig struct {
	Name    string
	Weights []WeightedScorer
}

// NewScoringConfig builds a configuration from scorer names to weights.
// Scorers are ordered by name so that results do not depend on map order.
func NewScoringConfig(name string, weights map[string]float64) (*ScoringConfig, error) {
	names := make([]string, 0, len(weights))
	for n := range weights {
		names = append(names, n)
	}
	sort.Strings(names)

	cfg := &ScoringConfig{Name: name, Weights: make([]WeightedScorer, 0, len(names))}
	for _, n := range names {
		s, ok := LookupScorer(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnknownScorer, n, name)
		}
		cfg.Weights = append(cfg.Weights, WeightedScorer{Scorer: s, Weight: weights[n]})
	}
	return cfg, nil
}

// Scaled returns a copy of the configuration with every weight multiplied by factor
func (c *ScoringConfig) Scaled(name string, factor float64) *ScoringConfig {
	out := &ScoringConfig{Name: name, Weights: make([]WeightedScorer, len(c.Weights))}
	for i, w := range c.Weights {
		out.Weights[i] = WeightedScorer{Scorer: w.Scorer, Weight: w.Weight * factor}
	}
	return out
}

// WeightMap returns the weights keyed by scorer name
func (c *ScoringConfig) WeightMap() map[string]float64 {
	m := make(map[string]float64, len(c.Weights))
	for _, w := range c.Weights {
		m[w.Name] = w.Weight
	}
	return m
}

// MoveScore is the aggregate score of one move with the raw score per scorer
type MoveScore struct {
	Move      int                `json:"move"`
	Total     float64            `json:"total"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// ScoringAI picks the move with the highest weighted score. Moves tied at the
// maximum are chosen between uniformly at random.
type ScoringAI struct {
	Config *ScoringConfig
}

// NewScoringAI creates a scoring policy
func NewScoringAI(cfg *ScoringConfig) *ScoringAI {
	return &ScoringAI{Config: cfg}
}

// Name returns the configuration name
func (ai *ScoringAI) Name() string {
	return ai.Config.Name
}

// Score returns the weighted score of a single legal move.
func (ai *ScoringAI) Score(move int, state *GameState) float64 {
	total, _ := ai.score(move, state, false)
	return total
}

func (ai *ScoringAI) score(move int, state *GameState, breakdown bool) (float64, map[string]float64) {
	n := len(ai.Config.Weights)
	weights := make([]float64, n)
	raw := make([]float64, n)
	for i, w := range ai.Config.Weights {
		weights[i] = w.Weight
		raw[i] = w.Score(move, state)
	}
	total := floats.Dot(weights, raw)

	if !breakdown {
		return total, nil
	}
	m := make(map[string]float64, n)
	for i, w := range ai.Config.Weights {
		m[w.Name] = raw[i]
	}
	return total, m
}

// ScoreMoves scores every legal move, in ascending move order.
func (ai *ScoringAI) ScoreMoves(state *GameState) []MoveScore {
	moves := state.LegalMoves()
	out := make([]MoveScore, len(moves))
	for i, m := range moves {
		total, bd := ai.score(m, state, true)
		out[i] = MoveScore{Move: m, Total: total, Breakdown: bd}
	}
	return out
}

// ChooseMove implements Policy. A single legal move is returned without
// consulting any scorer. rng may be nil as long as no tie has to be broken.
func (ai *ScoringAI) ChooseMove(state *GameState, rng *rand.Rand) (int, error) {
	moves := state.LegalMoves()
	switch len(moves) {
	case 0:
		return 0, fmt.Errorf("%w: %s", ErrNoLegalMove, state)
	case 1:
		return moves[0], nil
	}

	var best []int
	bestScore := 0.0
	for _, m := range moves {
		s := ai.Score(m, state)
		switch {
		case len(best) == 0 || s > bestScore:
			best = append(best[:0], m)
			bestScore = s
		case s == bestScore:
			best = append(best, m)
		}
	}

	if len(best) == 1 {
		return best[0], nil
	}
	if rng == nil {
		return 0, ErrNoRandomSource
	}
	return best[rng.Intn(len(best))], nil
}
