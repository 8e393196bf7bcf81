package engine

import "golang.org/x/exp/rand"

// NumDice is the number of two-sided dice thrown each turn
const NumDice = 4

// RollProbabilities[sum] is the chance of throwing sum with four binary dice
var RollProbabilities = [NumDice + 1]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// RollDice throws four binary dice and returns the number of marked tips.
func RollDice(rng *rand.Rand) int {
	// One draw covers all four dice
	bits := rng.Uint32() & 0x0F
	sum := 0
	for ; bits != 0; bits &= bits - 1 {
		sum++
	}
	return sum
}

// CaptureRollProbabilities returns the probabilities of the rolls that can
// carry a piece onto another square (1-4). A roll of 0 never captures, so the
// weights sum to 15/16.
func CaptureRollProbabilities() [NumDice]float64 {
	var out [NumDice]float64
	copy(out[:], RollProbabilities[1:])
	return out
}

// RollSource supplies dice sums to a simulation
type RollSource interface {
	NextRoll() int
}

type randomRolls struct {
	rng *rand.Rand
}

func (r randomRolls) NextRoll() int {
	return RollDice(r.rng)
}

// RandomRolls returns a RollSource throwing real dice with rng
func RandomRolls(rng *rand.Rand) RollSource {
	return randomRolls{rng: rng}
}

// FixedRolls replays a sequence of sums, starting over when exhausted.
// It is meant for tests and replays.
type FixedRolls struct {
	Sums []int
	next int
}

// NextRoll returns the next sum in the sequence
func (f *FixedRolls) NextRoll() int {
	if len(f.Sums) == 0 {
		return 0
	}
	sum := f.Sums[f.next%len(f.Sums)]
	f.next++
	return sum
}
