package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Outcome is the result of one game from an observer's point of view.
// The game always has a winner, so there are no draws.
type Outcome int

const (
	Loss Outcome = iota
	Win
)

func (o Outcome) String() string {
	if o == Win {
		return "win"
	}
	return "loss"
}

// OutcomeFor interprets a winner for observer
func OutcomeFor(winner, observer int) Outcome {
	if winner == observer {
		return Win
	}
	return Loss
}

// OutcomeStatistic counts wins over a number of games. The zero value is an
// empty statistic. Each goroutine should own its own statistic and combine
// them with Merge when done.
type OutcomeStatistic struct {
	Wins  int `json:"wins"`
	Total int `json:"total"`
}

// Observe adds one outcome
func (s *OutcomeStatistic) Observe(o Outcome) {
	s.Total++
	if o == Win {
		s.Wins++
	}
}

// Merge returns the combination of two statistics.
func Merge(a, b OutcomeStatistic) OutcomeStatistic {
	return OutcomeStatistic{Wins: a.Wins + b.Wins, Total: a.Total + b.Total}
}

// Merge adds other into s
func (s *OutcomeStatistic) Merge(other OutcomeStatistic) {
	*s = Merge(*s, other)
}

// Empty reports whether nothing has been observed. An empty statistic carries
// no information and must not be read as a certain loss.
func (s OutcomeStatistic) Empty() bool {
	return s.Total == 0
}

// Losses returns the number of lost games
func (s OutcomeStatistic) Losses() int {
	return s.Total - s.Wins
}

// WinRate returns Wins/Total, or 0 for an empty statistic.
func (s OutcomeStatistic) WinRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Total)
}

// StdErr returns the standard error of the win rate
func (s OutcomeStatistic) StdErr() float64 {
	if s.Total == 0 {
		return 0
	}
	p := s.WinRate()
	return math.Sqrt(p * (1 - p) / float64(s.Total))
}

// ConfidenceInterval returns the half-width of the normal approximation
// interval at the given level (0.95 for 95%).
func (s OutcomeStatistic) ConfidenceInterval(level float64) float64 {
	if s.Total == 0 || level <= 0 || level >= 1 {
		return 0
	}
	z := distuv.UnitNormal.Quantile(0.5 + level/2)
	return z * s.StdErr()
}
