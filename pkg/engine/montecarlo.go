package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

// CandidateProgressFunc receives rollout progress for one candidate move
type CandidateProgressFunc func(move int, progress RolloutProgress)

// MonteCarloAI picks the move whose rollouts, played by a baseline policy for
// both sides, win most often for the player on turn.
type MonteCarloAI struct {
	budget   int
	baseline Policy
	workers  int
	logger   zerolog.Logger
	progress CandidateProgressFunc
}

// MonteCarloOption configures a MonteCarloAI
type MonteCarloOption func(*MonteCarloAI)

// WithWorkers sets the number of rollout goroutines per candidate
func WithWorkers(n int) MonteCarloOption {
	return func(ai *MonteCarloAI) {
		ai.workers = n
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(l zerolog.Logger) MonteCarloOption {
	return func(ai *MonteCarloAI) {
		ai.logger = l
	}
}

// WithProgress reports rollout progress per candidate
func WithProgress(fn CandidateProgressFunc) MonteCarloOption {
	return func(ai *MonteCarloAI) {
		ai.progress = fn
	}
}

// NewMonteCarloAI creates a Monte Carlo policy simulating budget games per
// candidate move.
func NewMonteCarloAI(budget int, baseline Policy, opts ...MonteCarloOption) (*MonteCarloAI, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBudget, budget)
	}
	if baseline == nil {
		return nil, fmt.Errorf("monte carlo: baseline policy is nil")
	}
	ai := &MonteCarloAI{
		budget:   budget,
		baseline: baseline,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ai)
	}
	return ai, nil
}

// Budget returns the number of games simulated per candidate
func (ai *MonteCarloAI) Budget() int {
	return ai.budget
}

// CandidateResult is the rollout estimate for one move
type CandidateResult struct {
	Move    int              `json:"move"`
	Stats   OutcomeStatistic `json:"stats"`
	WinRate float64          `json:"winRate"`
	CI      float64          `json:"ci"`
}

// Decision is the outcome of one Monte Carlo search.
type Decision struct {
	Move         int               `json:"move"`
	Forced       bool              `json:"forced"` // Only one legal move; nothing was simulated
	Candidates   []CandidateResult `json:"candidates,omitempty"`
	BaselineMove int               `json:"baselineMove"` // -1 if the baseline failed
	Disagreement bool              `json:"disagreement"`
}

// Decide evaluates every legal move by rollout. Candidates are ranked by win
// rate; on equal rates the lowest square wins, and an empty statistic never
// beats one with games in it. The baseline policy's own choice is reported
// alongside but never changes the result. Rollout seeds are drawn from rng.
func (ai *MonteCarloAI) Decide(ctx context.Context, state *GameState, rng *rand.Rand) (*Decision, error) {
	moves := state.LegalMoves()
	switch len(moves) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoLegalMove, state)
	case 1:
		return &Decision{Move: moves[0], Forced: true, BaselineMove: moves[0]}, nil
	}
	if rng == nil {
		return nil, ErrNoRandomSource
	}

	observer := state.CurrentPlayer
	candidates := make([]CandidateResult, 0, len(moves))
	for _, m := range moves {
		branch, ok := state.Apply(m)
		if !ok {
			return nil, &PolicyViolationError{State: state.Copy(), Move: m}
		}

		opts := RolloutOptions{Trials: ai.budget, Seed: nextSeed(rng), Workers: ai.workers}
		var (
			stats OutcomeStatistic
			err   error
		)
		if ai.progress != nil {
			move := m
			stats, err = RolloutWithProgress(ctx, branch, ai.baseline, observer, opts, func(p RolloutProgress) {
				ai.progress(move, p)
			})
		} else {
			stats, err = Rollout(ctx, branch, ai.baseline, observer, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("rollout of move %d: %w", m, err)
		}

		ai.logger.Debug().
			Int("move", m).
			Int("wins", stats.Wins).
			Int("games", stats.Total).
			Float64("winRate", stats.WinRate()).
			Msg("candidate evaluated")

		candidates = append(candidates, CandidateResult{
			Move:    m,
			Stats:   stats,
			WinRate: stats.WinRate(),
			CI:      stats.ConfidenceInterval(0.95),
		})
	}

	best := bestCandidate(candidates)
	d := &Decision{
		Move:         candidates[best].Move,
		Candidates:   candidates,
		BaselineMove: -1,
	}

	bm, err := ai.baseline.ChooseMove(state, rng)
	if err != nil {
		ai.logger.Warn().Err(err).Str("state", state.String()).Msg("baseline policy failed")
		return d, nil
	}
	d.BaselineMove = bm
	if bm != d.Move {
		d.Disagreement = true
		ai.logger.Info().
			Str("state", state.String()).
			Int("monteCarlo", d.Move).
			Int("baseline", bm).
			Float64("winRate", candidates[best].WinRate).
			Msg("monte carlo disagrees with baseline")
	}
	return d, nil
}

// ChooseMove implements Policy
func (ai *MonteCarloAI) ChooseMove(state *GameState, rng *rand.Rand) (int, error) {
	d, err := ai.Decide(context.Background(), state, rng)
	if err != nil {
		return 0, err
	}
	return d.Move, nil
}

// bestCandidate returns the index of the first candidate with the highest
// win rate, skipping empty statistics.
func bestCandidate(candidates []CandidateResult) int {
	best := -1
	for i, c := range candidates {
		if c.Stats.Empty() {
			continue
		}
		if best < 0 || c.WinRate > candidates[best].WinRate {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// nextSeed draws a rollout seed; 0 would ask for a random one
func nextSeed(rng *rand.Rand) uint64 {
	seed := rng.Uint64()
	if seed == 0 {
		seed = 1
	}
	return seed
}
