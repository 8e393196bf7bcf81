package engine

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"
)

// SkillType rates a played move by the win probability it gave away.
type SkillType int

const (
	SkillVeryBad  SkillType = iota // Blunder: loses >= 10% win probability
	SkillBad                       // Error: loses 5-10%
	SkillDoubtful                  // Doubtful: loses 2-5%
	SkillNone                      // Good or best move
)

func (s SkillType) String() string {
	return [...]string{"Very Bad", "Bad", "Doubtful", "None"}[s]
}

// Abbr returns the annotation mark (??, ?, ?!).
func (s SkillType) Abbr() string {
	return [...]string{"??", "?", "?!", ""}[s]
}

// MarshalText writes the display name.
func (s SkillType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SkillThresholds are the win probability losses for SkillVeryBad, SkillBad
// and SkillDoubtful.
var SkillThresholds = [3]float64{0.10, 0.05, 0.02}

// ClassifySkill rates a loss of win probability, positive for moves worse
// than the best.
func ClassifySkill(loss float64) SkillType {
	switch {
	case loss >= SkillThresholds[0]:
		return SkillVeryBad
	case loss >= SkillThresholds[1]:
		return SkillBad
	case loss >= SkillThresholds[2]:
		return SkillDoubtful
	}
	return SkillNone
}

// RatingType is an overall rating from the average loss per unforced move.
type RatingType int

const (
	RatingUndefined RatingType = iota
	RatingAwful
	RatingBeginner
	RatingCasualPlayer
	RatingIntermediate
	RatingAdvanced
	RatingExpert
	RatingWorldClass
	RatingSupernatural
)

func (r RatingType) String() string {
	return [...]string{
		"Undefined", "Awful", "Beginner", "Casual Player",
		"Intermediate", "Advanced", "Expert", "World Class", "Supernatural",
	}[r]
}

// MarshalText writes the display name.
func (r RatingType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ratingBounds[i] is the upper loss-per-move bound of RatingSupernatural-i
var ratingBounds = [...]float64{0.002, 0.005, 0.01, 0.015, 0.025, 0.035, 0.05}

// GetRating rates an average loss per unforced move. Lower is better.
func GetRating(lossPerMove float64) RatingType {
	for i, bound := range ratingBounds {
		if lossPerMove < bound {
			return RatingSupernatural - RatingType(i)
		}
	}
	return RatingAwful
}

// MoveReview compares a played move with the Monte Carlo choice.
type MoveReview struct {
	Turn          int               `json:"turn"` // Index in the game record
	Player        int               `json:"player"`
	Position      string            `json:"position"`
	Roll          int               `json:"roll"`
	Played        int               `json:"played"`
	Best          int               `json:"best"`
	PlayedWinRate float64           `json:"playedWinRate"`
	BestWinRate   float64           `json:"bestWinRate"`
	Loss          float64           `json:"loss"` // BestWinRate - PlayedWinRate, never negative
	Skill         SkillType         `json:"skill"`
	Forced        bool              `json:"forced"`
	Candidates    []CandidateResult `json:"candidates,omitempty"`
}

// Review rates played, a legal move in state, against a Monte Carlo search.
// A forced move is never an error.
func (ai *MonteCarloAI) Review(ctx context.Context, state *GameState, played int, rng *rand.Rand) (*MoveReview, error) {
	if !state.CanMove(state.CurrentPlayer, played, state.Roll) {
		return nil, fmt.Errorf("%w: %d in %s", ErrIllegalMove, played, state)
	}
	d, err := ai.Decide(ctx, state, rng)
	if err != nil {
		return nil, err
	}

	r := &MoveReview{
		Player:   state.CurrentPlayer,
		Position: state.PositionID(),
		Roll:     state.Roll,
		Played:   played,
		Best:     d.Move,
		Skill:    SkillNone,
		Forced:   d.Forced,
	}
	if d.Forced {
		return r, nil
	}

	r.Candidates = d.Candidates
	for _, c := range d.Candidates {
		if c.Move == d.Move {
			r.BestWinRate = c.WinRate
		}
		if c.Move == played {
			r.PlayedWinRate = c.WinRate
		}
	}
	if loss := r.BestWinRate - r.PlayedWinRate; loss > 0 {
		r.Loss = loss
	}
	r.Skill = ClassifySkill(r.Loss)
	return r, nil
}

// Turn is one entry of a game record: the dice sum thrown and the square of
// the piece moved. Move is ignored when the roll could not be used.
type Turn struct {
	Roll int `json:"roll" yaml:"roll"`
	Move int `json:"move" yaml:"move"`
}

// GameRecord is a game from the starting position.
type GameRecord struct {
	NumPieces int    `json:"pieces" yaml:"pieces"`
	Turns     []Turn `json:"turns" yaml:"turns"`
}

// PlayerReview sums up the reviewed moves of one player.
type PlayerReview struct {
	Moves       int        `json:"moves"`    // Unforced moves
	Blunders    int        `json:"blunders"` // SkillVeryBad
	Errors      int        `json:"errors"`   // SkillBad
	Doubtful    int        `json:"doubtful"`
	TotalLoss   float64    `json:"totalLoss"`
	LossPerMove float64    `json:"lossPerMove"`
	Rating      RatingType `json:"rating"`
}

func (p *PlayerReview) add(r *MoveReview) {
	if r.Forced {
		return
	}
	p.Moves++
	p.TotalLoss += r.Loss
	switch r.Skill {
	case SkillVeryBad:
		p.Blunders++
	case SkillBad:
		p.Errors++
	case SkillDoubtful:
		p.Doubtful++
	}
}

func (p *PlayerReview) finish() {
	if p.Moves == 0 {
		return
	}
	p.LossPerMove = p.TotalLoss / float64(p.Moves)
	p.Rating = GetRating(p.LossPerMove)
}

// GameReview is the review of every move in a game record.
type GameReview struct {
	Moves   []MoveReview    `json:"moves"`
	Players [2]PlayerReview `json:"players"`
	Winner  int             `json:"winner"` // NoWinner if the record stops early
	Final   string          `json:"final"`  // Position ID after the last turn
}

// ReviewGame replays rec and reviews every move played. Turns whose roll
// cannot be used are skipped. An illegal roll or move stops the review with
// an error naming the turn.
func (ai *MonteCarloAI) ReviewGame(ctx context.Context, rec GameRecord, rng *rand.Rand) (*GameReview, error) {
	state := NewGameState(rec.NumPieces)
	review := &GameReview{Winner: NoWinner}

	for i, t := range rec.Turns {
		if state.IsFinished() {
			return nil, fmt.Errorf("turn %d: %w: game already over", i, ErrNotRollTime)
		}
		if err := state.ApplyRoll(t.Roll); err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		if state.NeedsRoll() {
			continue
		}

		r, err := ai.Review(ctx, state, t.Move, rng)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		r.Turn = i
		review.Moves = append(review.Moves, *r)
		review.Players[r.Player].add(r)

		ai.logger.Debug().
			Int("turn", i).
			Int("played", r.Played).
			Int("best", r.Best).
			Float64("loss", r.Loss).
			Stringer("skill", r.Skill).
			Msg("move reviewed")

		state.Move(t.Move)
	}

	for p := range review.Players {
		review.Players[p].finish()
	}
	review.Winner = state.Winner()
	review.Final = state.PositionID()
	return review, nil
}
