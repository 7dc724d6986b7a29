// Package dice provides the randomness abstraction used for loot, experience
// and behaviour rolls in the simulation.
package dice

import "fmt"

// Source is the randomness provider for every roll in the simulation.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult holds the dice and modifier of a single expression roll.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll as "1d201+49 [17] +49 = 66".
func (r RollResult) String() string {
	return fmt.Sprintf("%s %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// OneIn reports true with probability 1/n, drawing from src.
//
// Precondition: n > 0.
func OneIn(src Source, n int) bool {
	return src.Intn(n) == 0
}

// Percent reports true with probability pct/100. Values outside [0, 100]
// saturate.
func Percent(src Source, pct int) bool {
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return src.Intn(100) < pct
}
