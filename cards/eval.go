package cards

import (
	"github.com/paulhankin/poker"
)

var evalCards [NumCards]poker.Card

func init() {
	suits := [4]poker.Suit{poker.Club, poker.Diamond, poker.Heart, poker.Spade}
	for c := Card(0); c < NumCards; c++ {
		// The evaluator ranks aces as 1 and deuces through kings as 2..13.
		rank := poker.Rank(c.Rank() + 2)
		if c.Rank() == 12 {
			rank = poker.Rank(1)
		}
		pc, err := poker.MakeCard(suits[c.Suit()], rank)
		if err != nil {
			panic(err)
		}
		evalCards[c] = pc
	}
}

// Strength is a comparable hand value. Higher is better; equal values tie.
type Strength int16

// Evaluate returns the strength of the best five-card hand that can be made
// from the hole cards and a complete five-card board.
func Evaluate(hand Hand, board [5]Card) Strength {
	var all [7]poker.Card
	all[0] = evalCards[hand[0]]
	all[1] = evalCards[hand[1]]
	for i, c := range board {
		all[i+2] = evalCards[c]
	}
	return Strength(poker.Eval7(&all))
}
