// urengine - move analysis for the Royal Game of Ur
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/yourusername/urengine/internal/config"
	"github.com/yourusername/urengine/internal/logging"
	"github.com/yourusername/urengine/pkg/engine"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "move":
		cmdMove(args)
	case "score":
		cmdScore(args)
	case "rollout":
		cmdRollout(args)
	case "arena":
		cmdArena(args)
	case "review":
		cmdReview(args)
	case "show":
		cmdShow(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`urengine - Royal Game of Ur move analysis

Usage: urengine <command> [options]

Commands:
  move      Choose a move with an AI
  score     Rank the legal moves by weighted score
  rollout   Estimate the win rate of a position by simulation
  arena     Play two AIs against each other
  review    Rate the moves of a recorded game
  show      Draw a position
  config    Print the effective configuration

Use "urengine <command> -h" for command-specific help.

Positions are given as 11-character position IDs (see "urengine show").
Every command accepts -config <file>; URE_* environment variables override it.`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// env holds what every command needs once its flags are parsed
type env struct {
	cfg      *config.Config
	manager  *config.Manager
	registry *engine.Registry
	logger   zerolog.Logger
}

// commonFlags registers the flags shared by all commands
type commonFlags struct {
	configPath *string
	position   *string
	roll       *int
}

func newFlagSet(name string, withPosition bool) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cf := commonFlags{
		configPath: fs.String("config", "", "Path to config file"),
	}
	if withPosition {
		cf.position = fs.String("p", "", "Position ID (default: starting position)")
		cf.roll = fs.Int("roll", -1, "Dice sum 0-4 to apply if the position awaits a roll")
	}
	return fs, cf
}

func setup(cf commonFlags) *env {
	m, err := config.Load(*cf.configPath)
	if err != nil {
		fatal("%v", err)
	}
	cfg := m.Get()
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	reg := engine.DefaultRegistry(
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithLogger(logger),
	)
	if err := reg.Define(cfg.Definitions()); err != nil {
		fatal("%v", err)
	}
	return &env{cfg: cfg, manager: m, registry: reg, logger: logger}
}

// state decodes the position flag, or starts a new game, and applies -roll
func (e *env) state(cf commonFlags) *engine.GameState {
	var s *engine.GameState
	if *cf.position == "" {
		s = engine.NewGameState(e.cfg.Engine.NumPieces)
	} else {
		var err error
		if s, err = engine.FromPositionID(*cf.position); err != nil {
			fatal("%v", err)
		}
	}
	if *cf.roll >= 0 {
		if err := s.ApplyRoll(*cf.roll); err != nil {
			fatal("%v", err)
		}
	}
	return s
}

// rng returns a generator seeded from seed, the config seed, or at random
func (e *env) rng(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = e.cfg.Engine.Seed
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewSource(seed))
}

func (e *env) aiName(name string) string {
	if name == "" {
		return e.cfg.Engine.DefaultAI
	}
	return name
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printBoard(s *engine.GameState) {
	newBoardPrinter(termenv.NewOutput(os.Stdout)).render(os.Stdout, s)
}

func cmdShow(args []string) {
	fs, cf := newFlagSet("show", true)
	fs.Parse(args)

	e := setup(cf)
	s := e.state(cf)
	printBoard(s)
	if moves := s.LegalMoves(); len(moves) > 0 {
		fmt.Printf("  Legal moves: %v\n", moves)
	}
}

func cmdMove(args []string) {
	fs, cf := newFlagSet("move", true)
	ai := fs.String("ai", "", "AI name (default from config)")
	seed := fs.Uint64("seed", 0, "Random seed (0 = config or random)")
	fs.Parse(args)

	e := setup(cf)
	s := e.state(cf)
	rng := e.rng(*seed)
	if s.NeedsRoll() && !s.IsFinished() {
		fmt.Printf("Rolled %d\n", s.RollWith(rng))
	}
	printBoard(s)

	name := e.aiName(*ai)
	policy, err := e.registry.Get(name)
	if err != nil {
		fatal("%v", err)
	}
	moves := s.LegalMoves()
	if len(moves) == 0 {
		fmt.Println("No legal moves")
		return
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	var move int
	if mc, ok := policy.(*engine.MonteCarloAI); ok {
		d, err := mc.Decide(ctx, s, rng)
		if err != nil {
			fatal("%v", err)
		}
		move = d.Move
		printDecision(d)
	} else if move, err = policy.ChooseMove(s, rng); err != nil {
		fatal("%v", err)
	}

	next, _ := s.Apply(move)
	fmt.Printf("%s plays %d -> %d (%.2fs)\n", name, move, move+s.Roll, time.Since(start).Seconds())
	fmt.Printf("Next position: %s\n", next.PositionID())
}

func printDecision(d *engine.Decision) {
	if d.Forced {
		fmt.Println("Forced move")
		return
	}
	fmt.Println("  Move  Win rate        Games")
	for _, c := range d.Candidates {
		marker := " "
		if c.Move == d.Move {
			marker = "*"
		}
		fmt.Printf("%s %4d  %5.1f%% ±%4.1f%%  %d\n", marker, c.Move, c.WinRate*100, c.CI*100, c.Stats.Total)
	}
	if d.Disagreement {
		fmt.Printf("  baseline would play %d\n", d.BaselineMove)
	}
}

func cmdScore(args []string) {
	fs, cf := newFlagSet("score", true)
	ai := fs.String("ai", "", "Scoring AI name (default from config)")
	weights := fs.String("weights", "", "Custom weights, e.g. knockout=5,exit=1")
	n := fs.Int("n", 0, "Number of moves to show (0 = all)")
	fs.Parse(args)

	e := setup(cf)
	s := e.state(cf)
	if s.NeedsRoll() {
		fatal("position awaits a roll; pass -roll")
	}

	var (
		cfg *engine.ScoringConfig
		err error
	)
	if *weights != "" {
		w, perr := parseWeights(*weights)
		if perr != nil {
			fatal("%v", perr)
		}
		cfg, err = engine.NewScoringConfig("custom", w)
	} else {
		cfg, err = e.scoringConfig(e.aiName(*ai))
	}
	if err != nil {
		fatal("%v", err)
	}

	printBoard(s)
	moves := engine.RankMoves(s, cfg, *n)
	if len(moves) == 0 {
		fmt.Println("No legal moves")
		return
	}
	fmt.Printf("Moves ranked by %s:\n", cfg.Name)
	for i, m := range moves {
		fmt.Printf("  %d. %2d -> %-2d  %+.3f  %s\n", i+1, m.Move, m.Move+s.Roll, m.Total, formatBreakdown(m.Breakdown))
	}
}

func (e *env) scoringConfig(name string) (*engine.ScoringConfig, error) {
	if def, ok := e.registry.Definition(name); ok && def.IsMonteCarlo() {
		name = def.Baseline
	}
	p, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	ai, ok := p.(*engine.ScoringAI)
	if !ok {
		return nil, fmt.Errorf("%s is not a scoring AI", name)
	}
	return ai.Config, nil
}

func parseWeights(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("weight %q should be name=value", part)
		}
		var w float64
		if _, err := fmt.Sscanf(value, "%g", &w); err != nil {
			return nil, fmt.Errorf("weight %q: %w", part, err)
		}
		out[name] = w
	}
	return out, nil
}

// formatBreakdown lists the non-zero raw scores by name
func formatBreakdown(bd map[string]float64) string {
	names := make([]string, 0, len(bd))
	for k, v := range bd {
		if v != 0 {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%.3g", k, bd[k])
	}
	return strings.Join(parts, " ")
}

func cmdRollout(args []string) {
	fs, cf := newFlagSet("rollout", true)
	ai := fs.String("ai", "", "Policy playing both sides (default from config)")
	trials := fs.Int("trials", 0, "Number of games (0 = config)")
	workers := fs.Int("workers", 0, "Worker goroutines (0 = config or all cores)")
	seed := fs.Uint64("seed", 0, "Random seed (0 = config or random)")
	observer := fs.Int("observer", -1, "Player whose wins are counted (default: player on turn)")
	quiet := fs.Bool("q", false, "Do not report progress")
	fs.Parse(args)

	e := setup(cf)
	s := e.state(cf)
	policy, err := e.registry.Get(e.aiName(*ai))
	if err != nil {
		fatal("%v", err)
	}

	opts := engine.RolloutOptions{
		Trials:  e.cfg.Engine.RolloutTrials,
		Workers: e.cfg.Engine.Workers,
		Seed:    e.cfg.Engine.Seed,
	}
	if *trials > 0 {
		opts.Trials = *trials
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *seed != 0 {
		opts.Seed = *seed
	}
	obs := s.CurrentPlayer
	if *observer == 0 || *observer == 1 {
		obs = *observer
	}

	ctx, stop := signalContext()
	defer stop()

	printBoard(s)
	start := time.Now()
	var progress engine.ProgressCallback
	if !*quiet {
		progress = func(p engine.RolloutProgress) {
			fmt.Fprintf(os.Stderr, "\r  %5.1f%%  win %5.1f%% ±%.1f%%", p.Percent, p.WinRate*100, p.CI*100)
		}
	}
	stats, err := engine.RolloutWithProgress(ctx, s, policy, obs, opts, progress)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fatal("rollout: %v", err)
	}

	fmt.Printf("Rollout (%d games, %.1fs) for %s:\n", stats.Total, time.Since(start).Seconds(), pieceGlyph[obs])
	fmt.Printf("  Win:  %.2f%% ± %.2f%% (95%% CI)\n", stats.WinRate()*100, stats.ConfidenceInterval(0.95)*100)
	fmt.Printf("  Wins: %d  Losses: %d\n", stats.Wins, stats.Losses())
}

func cmdArena(args []string) {
	fs, cf := newFlagSet("arena", false)
	a := fs.String("a", "#AI_KFE521S3", "First AI")
	b := fs.String("b", "#AI_Random", "Second AI")
	games := fs.Int("games", 100, "Number of games")
	pieces := fs.Int("pieces", 0, "Pieces per player (0 = config)")
	workers := fs.Int("workers", 0, "Worker goroutines (0 = config or all cores)")
	seed := fs.Uint64("seed", 0, "Random seed (0 = config or random)")
	fs.Parse(args)

	e := setup(cf)
	pa, err := e.registry.Get(*a)
	if err != nil {
		fatal("%v", err)
	}
	pb, err := e.registry.Get(*b)
	if err != nil {
		fatal("%v", err)
	}

	opts := engine.ArenaOptions{
		Games:     *games,
		NumPieces: e.cfg.Engine.NumPieces,
		Seed:      e.cfg.Engine.Seed,
		Workers:   e.cfg.Engine.Workers,
		Logger:    e.logger,
	}
	if *pieces > 0 {
		opts.NumPieces = *pieces
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *seed != 0 {
		opts.Seed = *seed
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := engine.Fight(ctx, pa, pb, opts)
	if err != nil {
		fatal("arena: %v", err)
	}

	fmt.Printf("Match %s: %d games in %.1fs\n", res.MatchID, res.Games, res.Duration.Seconds())
	for i, name := range []string{*a, *b} {
		st := res.Stats[i]
		fmt.Printf("  %-24s %4d wins  %5.1f%% ±%.1f%%\n", name, st.Wins, st.WinRate()*100, st.ConfidenceInterval(0.95)*100)
	}
	fmt.Printf("  First player won %d of %d\n", res.StarterWins, res.Games)
}

func cmdConfig(args []string) {
	fs, cf := newFlagSet("config", false)
	fs.Parse(args)

	e := setup(cf)
	if path := e.manager.ConfigFilePath(); path != "" {
		fmt.Printf("# %s\n", path)
	}
	if err := e.manager.Dump(os.Stdout); err != nil {
		fatal("%v", err)
	}
}
