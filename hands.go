package postflop

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
)

// privateHands lists the hands a player can hold at the start of the
// subgame: every hand with positive weight that does not overlap the
// initial board, ordered by range index.
type privateHands struct {
	hands   []cards.Hand
	sets    []cards.Set
	weights []float64
	// withCard[c] lists the positions of hands containing card c.
	withCard [cards.NumCards][]int32
	// same[i] is the position of hands[i] in the opponent's list, or -1.
	same []int32
}

func newPrivateHands(r *cards.Range, factors *[cards.NumHands]float32, board cards.Set) privateHands {
	var ph privateHands
	for i, w := range r {
		h := cards.HandAt(i)
		if w <= 0 || h.Set().Overlaps(board) {
			continue
		}

		weight := float64(w)
		if factors != nil {
			weight *= float64(factors[i])
		}
		if weight <= 0 {
			continue
		}

		pos := int32(len(ph.hands))
		ph.hands = append(ph.hands, h)
		ph.sets = append(ph.sets, h.Set())
		ph.weights = append(ph.weights, weight)
		ph.withCard[h[0]] = append(ph.withCard[h[0]], pos)
		ph.withCard[h[1]] = append(ph.withCard[h[1]], pos)
	}
	return ph
}

func (ph *privateHands) len() int {
	return len(ph.hands)
}

// buildPrivateHands computes both players' hand lists for the configured
// ranges, board and optional bunching adjustments.
func buildPrivateHands(cc *CardConfig, bunching *BunchingData) ([2]privateHands, error) {
	board := cards.NewSetFromCards(cc.Board())

	var result [2]privateHands
	for p := range result {
		var factors *[cards.NumHands]float32
		if bunching != nil {
			factors = &bunching.Factors[p]
		}
		result[p] = newPrivateHands(&cc.Range[p], factors, board)
		if result[p].len() == 0 {
			return result, errors.Wrapf(cards.ErrInvalidRange,
				"%s range is empty after removing board cards", playerName(p))
		}
	}

	for p := range result {
		opp := &result[1-p]
		index := make(map[cards.Hand]int32, opp.len())
		for i, h := range opp.hands {
			index[h] = int32(i)
		}
		result[p].same = make([]int32, result[p].len())
		for i, h := range result[p].hands {
			if j, ok := index[h]; ok {
				result[p].same[i] = j
			} else {
				result[p].same[i] = -1
			}
		}
	}

	if pairMass(&result) <= 0 {
		return result, errors.Wrap(cards.ErrInvalidRange, "no hand pairs compatible with each other and the board")
	}
	return result, nil
}

// oppSums aggregates opponent reach for card-removal aware lookups.
type oppSums struct {
	total  float64
	byCard [cards.NumCards]float64
}

func newOppSums(opp *privateHands, reach []float64) *oppSums {
	s := &oppSums{}
	for o, r := range reach {
		if r == 0 {
			continue
		}
		h := opp.hands[o]
		s.total += r
		s.byCard[h[0]] += r
		s.byCard[h[1]] += r
	}
	return s
}

// compatible returns the opponent reach that does not share a card with
// the hand at position i of hands.
func (s *oppSums) compatible(hands *privateHands, i int, reach []float64) float64 {
	h := hands.hands[i]
	result := s.total - s.byCard[h[0]] - s.byCard[h[1]]
	if j := hands.same[i]; j >= 0 {
		result += reach[j]
	}
	return result
}
