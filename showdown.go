package postflop

import (
	"math"
	"sort"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/tree"
)

// deadStrength marks hands that share a card with the board.
const deadStrength = cards.Strength(math.MinInt16)

// boardStrengths holds both players' hand strengths on one full board,
// with positions sorted by ascending strength. Dead hands are excluded
// from the sorted order.
type boardStrengths struct {
	strength [2][]cards.Strength
	order    [2][]int32
}

func (g *Game) computeStrengths(board cards.Set) *boardStrengths {
	var b5 [5]cards.Card
	copy(b5[:], board.AsSlice())

	bs := &boardStrengths{}
	for p := range bs.strength {
		ph := &g.hands[p]
		bs.strength[p] = make([]cards.Strength, ph.len())
		for i, h := range ph.hands {
			if ph.sets[i].Overlaps(board) {
				bs.strength[p][i] = deadStrength
				continue
			}
			bs.strength[p][i] = cards.Evaluate(h, b5)
			bs.order[p] = append(bs.order[p], int32(i))
		}

		strength := bs.strength[p]
		sort.SliceStable(bs.order[p], func(i, j int) bool {
			return strength[bs.order[p][i]] < strength[bs.order[p][j]]
		})
	}
	return bs
}

// strengths returns the cached strengths for a complete board.
func (g *Game) strengths(board cards.Set) *boardStrengths {
	return g.strengthCache.GetOrCompute(board, func() *boardStrengths {
		return g.computeStrengths(board)
	})
}

type payoffs struct {
	win, lose, tie float64
}

// showdownPayoffs returns the traversing player's net result at a
// terminal where both players contributed amount.
func (g *Game) showdownPayoffs(amount int32, equity bool) payoffs {
	if equity {
		return payoffs{win: 1, lose: 0, tie: 0.5}
	}

	cfg := &g.tree.Config
	pot := float64(cfg.StartingPot) + 2*float64(amount)
	rake := math.Min(pot*cfg.RakeRate, cfg.RakeCap)
	a := float64(amount)
	return payoffs{
		win:  pot - rake - a,
		lose: -a,
		tie:  (pot-rake)/2 - a,
	}
}

// evaluateTerminal writes the value of every hand of player at terminal
// node n, weighted by the opponent's reach.
func (g *Game) evaluateTerminal(n *tree.Node, player int, dealt cards.Set, oppReach, result []float64, equity bool) {
	pay := g.showdownPayoffs(n.Amount, equity)
	if n.Player == tree.PlayerShowdown {
		g.evaluateShowdown(player, dealt, pay, oppReach, result)
		return
	}

	folder := int(n.Player - tree.PlayerFoldOOP)
	payoff := pay.win
	if folder == player {
		payoff = pay.lose
	}

	hands := &g.hands[player]
	sums := newOppSums(&g.hands[1-player], oppReach)
	for i := range result {
		if hands.sets[i].Overlaps(dealt) {
			continue
		}
		result[i] = payoff * sums.compatible(hands, i, oppReach)
	}
}

func (g *Game) evaluateShowdown(player int, board cards.Set, pay payoffs, oppReach, result []float64) {
	opp := 1 - player
	bs := g.strengths(board)
	hands := &g.hands[player]
	oppHands := &g.hands[opp]
	own, other := bs.strength[player], bs.strength[opp]
	ownOrder, otherOrder := bs.order[player], bs.order[opp]

	// win[i] accumulates opponent reach of strictly weaker hands, lose[i]
	// of strictly stronger ones, both excluding card conflicts.
	win := allocFloatSlice(len(result))
	lose := allocFloatSlice(len(result))
	defer freeFloatSlice(win)
	defer freeFloatSlice(lose)

	var total float64
	var byCard [cards.NumCards]float64
	j := 0
	for _, i := range ownOrder {
		for ; j < len(otherOrder) && other[otherOrder[j]] < own[i]; j++ {
			o := otherOrder[j]
			r := oppReach[o]
			h := oppHands.hands[o]
			total += r
			byCard[h[0]] += r
			byCard[h[1]] += r
		}
		h := hands.hands[i]
		win[i] = total - byCard[h[0]] - byCard[h[1]]
	}

	total = 0
	clear(byCard[:])
	j = len(otherOrder) - 1
	for k := len(ownOrder) - 1; k >= 0; k-- {
		i := ownOrder[k]
		for ; j >= 0 && other[otherOrder[j]] > own[i]; j-- {
			o := otherOrder[j]
			r := oppReach[o]
			h := oppHands.hands[o]
			total += r
			byCard[h[0]] += r
			byCard[h[1]] += r
		}
		h := hands.hands[i]
		lose[i] = total - byCard[h[0]] - byCard[h[1]]
	}

	sums := newOppSums(oppHands, oppReach)
	for _, i := range ownOrder {
		compat := sums.compatible(hands, int(i), oppReach)
		result[i] = (pay.win-pay.tie)*win[i] + (pay.lose-pay.tie)*lose[i] + pay.tie*compat
	}
}
