package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// DefaultTrials is the number of games simulated when no count is given
const DefaultTrials = 1000

// RolloutOptions controls rollout execution
type RolloutOptions struct {
	Trials  int    // Number of games to simulate (default 1000)
	Seed    uint64 // RNG seed (0 = random)
	Workers int    // Number of parallel workers (0 = GOMAXPROCS)
}

// RolloutProgress contains progress information during a rollout
type RolloutProgress struct {
	TrialsCompleted int     // Number of trials completed so far
	TrialsTotal     int     // Total number of trials
	Percent         float64 // Percentage complete (0-100)
	WinRate         float64 // Current win rate estimate
	CI              float64 // Current 95% confidence interval
}

// ProgressCallback is called periodically during rollout with progress updates
type ProgressCallback func(progress RolloutProgress)

// DefaultRolloutOptions returns sensible defaults
func DefaultRolloutOptions() RolloutOptions {
	return RolloutOptions{
		Trials:  DefaultTrials,
		Seed:    0, // Random seed
		Workers: 0, // Use all cores
	}
}

func (opts RolloutOptions) withDefaults() RolloutOptions {
	if opts.Trials <= 0 {
		opts.Trials = DefaultTrials
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > opts.Trials {
		opts.Workers = opts.Trials
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	return opts
}

// trialSeed derives the seed of trial t from the rollout seed with a
// splitmix64 step. Every trial owns its random stream, so a seeded rollout
// gives the same result for any number of workers.
func trialSeed(seed uint64, t int) uint64 {
	z := seed + uint64(t+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// trialQueue hands out trial indices to workers in chunks
type trialQueue struct {
	next  atomic.Int64
	total int
	chunk int
}

// claim returns the next chunk [from, to), or false once every trial is taken
func (q *trialQueue) claim() (from, to int, ok bool) {
	from = int(q.next.Add(int64(q.chunk))) - q.chunk
	if from >= q.total {
		return 0, 0, false
	}
	to = from + q.chunk
	if to > q.total {
		to = q.total
	}
	return from, to, true
}

// Simulate plays one game to the end from state with policy choosing every
// move for both players, and returns the result for observer. state is not
// modified.
func Simulate(state *GameState, policy Policy, observer int, rng *rand.Rand) (Outcome, error) {
	return SimulateWith(state, policy, observer, rng, RandomRolls(rng))
}

// SimulateWith is Simulate with the dice taken from rolls.
// A move rejected by the rules is returned as a *PolicyViolationError.
func SimulateWith(state *GameState, policy Policy, observer int, rng *rand.Rand, rolls RollSource) (Outcome, error) {
	winner, err := playOut(state.Copy(), [2]Policy{policy, policy}, rng, rolls)
	if err != nil {
		return Loss, err
	}
	return OutcomeFor(winner, observer), nil
}

// playOut plays g to the end, policies[p] moving for player p, and returns
// the winner. g is modified.
func playOut(g *GameState, policies [2]Policy, rng *rand.Rand, rolls RollSource) (int, error) {
	for !g.IsFinished() {
		for g.NeedsRoll() {
			if err := g.ApplyRoll(rolls.NextRoll()); err != nil {
				return NoWinner, err
			}
		}

		move, err := policies[g.CurrentPlayer].ChooseMove(g, rng)
		if err != nil {
			return NoWinner, fmt.Errorf("rollout policy in %s: %w", g, err)
		}
		if !g.Move(move) {
			return NoWinner, &PolicyViolationError{State: g.Copy(), Move: move}
		}
	}
	return g.Winner(), nil
}

// Rollout plays opts.Trials games from state in parallel and counts the wins
// of observer. Workers pull trials from a shared queue and each trial is
// seeded from opts.Seed and its index; partials are merged once all workers
// are done. The first error stops the remaining workers and is returned.
func Rollout(ctx context.Context, state *GameState, policy Policy, observer int, opts RolloutOptions) (OutcomeStatistic, error) {
	return RolloutWithProgress(ctx, state, policy, observer, opts, nil)
}

// RolloutWithProgress performs a rollout with periodic progress callbacks.
// The callback is called from the calling goroutine after each batch of
// trials completes.
func RolloutWithProgress(ctx context.Context, state *GameState, policy Policy, observer int, opts RolloutOptions, callback ProgressCallback) (OutcomeStatistic, error) {
	opts = opts.withDefaults()

	// Report progress approximately 20 times during the rollout
	batchSize := opts.Trials / 20
	if batchSize < 1 {
		batchSize = 1
	}
	queue := &trialQueue{total: opts.Trials, chunk: batchSize}

	incremental := make(chan OutcomeStatistic, opts.Workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			return rolloutWorker(gctx, state, policy, observer, opts.Seed, queue, incremental)
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(incremental)
	}()

	var total OutcomeStatistic
	for part := range incremental {
		total.Merge(part)
		if callback != nil {
			callback(RolloutProgress{
				TrialsCompleted: total.Total,
				TrialsTotal:     opts.Trials,
				Percent:         100 * float64(total.Total) / float64(opts.Trials),
				WinRate:         total.WinRate(),
				CI:              total.ConfidenceInterval(0.95),
			})
		}
	}

	if err := <-done; err != nil {
		return OutcomeStatistic{}, err
	}
	return total, nil
}

// rolloutWorker plays the chunks it claims from queue and reports one
// partial per chunk.
func rolloutWorker(ctx context.Context, state *GameState, policy Policy, observer int, seed uint64, queue *trialQueue, results chan<- OutcomeStatistic) error {
	rng := rand.New(rand.NewSource(seed))
	for {
		from, to, ok := queue.claim()
		if !ok {
			return nil
		}

		var part OutcomeStatistic
		for t := from; t < to; t++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng.Seed(trialSeed(seed, t))
			outcome, err := Simulate(state, policy, observer, rng)
			if err != nil {
				return err
			}
			part.Observe(outcome)
		}

		select {
		case results <- part:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
