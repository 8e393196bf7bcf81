package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// ArenaOptions controls an AI-versus-AI match
type ArenaOptions struct {
	Games     int    // Number of games (default 100)
	NumPieces int    // Pieces per player (default 7)
	Seed      uint64 // RNG seed (0 = random)
	Workers   int    // Number of parallel workers (0 = GOMAXPROCS)
	Logger    zerolog.Logger
}

// ArenaResult is the score of a match between two policies
type ArenaResult struct {
	MatchID     string              `json:"matchId"`
	Games       int                 `json:"games"`
	Stats       [2]OutcomeStatistic `json:"stats"`       // Results for the first and second policy
	StarterWins int                 `json:"starterWins"` // Games won by whoever moved first
	Duration    time.Duration       `json:"duration"`
}

type arenaPartial struct {
	stats       [2]OutcomeStatistic
	starterWins int
}

// Fight plays a against b. The policies take turns moving first: a starts the
// even-numbered games, b the odd ones.
func Fight(ctx context.Context, a, b Policy, opts ArenaOptions) (*ArenaResult, error) {
	if opts.Games <= 0 {
		opts.Games = 100
	}
	if opts.NumPieces <= 0 {
		opts.NumPieces = DefaultPieces
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > opts.Games {
		opts.Workers = opts.Games
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}

	matchID := uuid.NewString()
	logger := opts.Logger.With().Str("match", matchID).Logger()
	logger.Debug().Int("games", opts.Games).Int("workers", opts.Workers).Uint64("seed", opts.Seed).Msg("arena started")
	start := time.Now()

	partials := make([]arenaPartial, opts.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opts.Seed))
			part := &partials[w]
			for game := w; game < opts.Games; game += opts.Workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				rng.Seed(trialSeed(opts.Seed, game))
				// seat[i] is the policy index playing as player i
				seat := [2]int{0, 1}
				policies := [2]Policy{a, b}
				if game%2 == 1 {
					seat = [2]int{1, 0}
					policies = [2]Policy{b, a}
				}
				winner, err := playOut(NewGameState(opts.NumPieces), policies, rng, RandomRolls(rng))
				if err != nil {
					return err
				}
				for p := 0; p < 2; p++ {
					part.stats[seat[p]].Observe(OutcomeFor(winner, p))
				}
				if winner == 0 {
					part.starterWins++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("arena aborted")
		return nil, err
	}

	result := &ArenaResult{MatchID: matchID, Games: opts.Games, Duration: time.Since(start)}
	for _, p := range partials {
		result.Stats[0].Merge(p.stats[0])
		result.Stats[1].Merge(p.stats[1])
		result.StarterWins += p.starterWins
	}

	logger.Info().
		Int("wins", result.Stats[0].Wins).
		Int("losses", result.Stats[0].Losses()).
		Dur("duration", result.Duration).
		Msg("arena finished")
	return result, nil
}
