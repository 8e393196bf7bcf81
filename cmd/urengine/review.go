package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/urengine/pkg/engine"
)

// readGameRecord decodes a game record such as
//
//	pieces: 7
//	turns:
//	  - {roll: 2, move: 0}
//	  - {roll: 0}
func readGameRecord(r io.Reader) (engine.GameRecord, error) {
	var rec engine.GameRecord
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return rec, fmt.Errorf("decode game record: %w", err)
	}
	if len(rec.Turns) == 0 {
		return rec, fmt.Errorf("game record has no turns")
	}
	return rec, nil
}

func printReview(w io.Writer, r *engine.GameReview) {
	fmt.Fprintln(w, "  Turn  Player  Roll  Played  Best   Loss")
	for _, m := range r.Moves {
		if m.Forced {
			fmt.Fprintf(w, "  %4d  %-6s  %4d  %6d  %4s\n", m.Turn, pieceGlyph[m.Player], m.Roll, m.Played, "-")
			continue
		}
		fmt.Fprintf(w, "  %4d  %-6s  %4d  %6d  %4d  %5.1f%% %s\n",
			m.Turn, pieceGlyph[m.Player], m.Roll, m.Played, m.Best, m.Loss*100, m.Skill.Abbr())
	}
	fmt.Fprintln(w)
	for p, pr := range r.Players {
		fmt.Fprintf(w, "  %s: %d moves, %d blunders, %d errors, %d doubtful, %.2f%% per move (%s)\n",
			pieceGlyph[p], pr.Moves, pr.Blunders, pr.Errors, pr.Doubtful, pr.LossPerMove*100, pr.Rating)
	}
	if r.Winner != engine.NoWinner {
		fmt.Fprintf(w, "  %s won\n", pieceGlyph[r.Winner])
	}
}

func cmdReview(args []string) {
	fs, cf := newFlagSet("review", false)
	game := fs.String("game", "", "Game record file (YAML)")
	ai := fs.String("ai", "#AI_MonteCarlo", "Monte Carlo AI rating the moves")
	seed := fs.Uint64("seed", 0, "Random seed (0 = config or random)")
	fs.Parse(args)

	if *game == "" {
		fatal("-game is required")
	}
	e := setup(cf)

	f, err := os.Open(*game)
	if err != nil {
		fatal("%v", err)
	}
	rec, err := readGameRecord(f)
	f.Close()
	if err != nil {
		fatal("%v", err)
	}

	policy, err := e.registry.Get(*ai)
	if err != nil {
		fatal("%v", err)
	}
	mc, ok := policy.(*engine.MonteCarloAI)
	if !ok {
		fatal("%s is not a Monte Carlo AI", *ai)
	}

	ctx, stop := signalContext()
	defer stop()

	review, err := mc.ReviewGame(ctx, rec, e.rng(*seed))
	if err != nil {
		fatal("review: %v", err)
	}
	printReview(os.Stdout, review)
}
