package postflop

import (
	"expvar"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/tree"
)

var (
	nodesVisited         = expvar.NewInt("postflop/nodes_visited")
	terminalNodesVisited = expvar.NewInt("postflop/nodes_visited/terminal")
	playerNodesVisited   = expvar.NewInt("postflop/nodes_visited/player")
	chanceNodesVisited   = expvar.NewInt("postflop/nodes_visited/chance")
)

// Discounted CFR parameters.
const (
	dcfrAlpha = 1.5
	dcfrBeta  = 0.5
	dcfrGamma = 2.0
)

// discount holds the multipliers applied to cumulative tables before an
// iteration's contribution is added.
type discount struct {
	positive float64
	negative float64
	strategy float64
}

func newDiscount(iteration int) discount {
	t := float64(iteration)
	ta := math.Pow(t, dcfrAlpha)
	tb := math.Pow(t, dcfrBeta)
	return discount{
		positive: ta / (ta + 1),
		negative: tb / (tb + 1),
		strategy: math.Pow(t/(t+1), dcfrGamma),
	}
}

type walkMode uint8

const (
	// modeUpdate runs one CFR iteration for the traversing player.
	modeUpdate walkMode = iota
	// modeBestResponse maximizes over the traversing player's actions
	// against the opponent's average strategy.
	modeBestResponse
	// modeAverage plays both players' average strategies.
	modeAverage
)

// walker computes counterfactual values of one player's hands over a
// subtree. Reach vectors and results are indexed by private hand position.
type walker struct {
	g        *Game
	player   int
	mode     walkMode
	equity   bool
	discount discount
	parallel bool
}

// walk sets result[h] to the value of the traversing player holding hand h
// at node idx, weighted by the opponent's reach. ownReach is only read in
// modeUpdate.
func (wk *walker) walk(idx int32, dealt cards.Set, oppReach, ownReach, result []float64) {
	nodesVisited.Add(1)
	clear(result)
	if allZero(oppReach) {
		return
	}

	n := wk.g.tree.Node(idx)
	switch {
	case n.IsTerminal():
		terminalNodesVisited.Add(1)
		wk.g.evaluateTerminal(n, wk.player, dealt, oppReach, result, wk.equity)
	case n.IsChance():
		chanceNodesVisited.Add(1)
		wk.walkChance(n, dealt, oppReach, ownReach, result)
	case int(n.Player) == wk.player:
		playerNodesVisited.Add(1)
		wk.walkOwn(idx, n, dealt, oppReach, ownReach, result)
	default:
		playerNodesVisited.Add(1)
		wk.walkOpponent(idx, n, dealt, oppReach, ownReach, result)
	}
}

func allZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}

func (wk *walker) walkChance(n *tree.Node, dealt cards.Set, oppReach, ownReach, result []float64) {
	g := wk.g
	opp := 1 - wk.player
	factor := 1 / float64(cards.NumCards-dealt.Len()-4)

	// Each child gets its own buffers so children can run concurrently.
	subResults := make([][]float64, len(n.Children))
	visit := func(wk *walker, i int) {
		card := n.Actions[i].Card
		childDealt := dealt
		childDealt.Add(card)

		childOpp := allocFloatSlice(len(oppReach))
		copy(childOpp, oppReach)
		for _, o := range g.hands[opp].withCard[card] {
			childOpp[o] = 0
		}

		var childOwn []float64
		if wk.mode == modeUpdate {
			childOwn = allocFloatSlice(len(ownReach))
			copy(childOwn, ownReach)
			for _, h := range g.hands[wk.player].withCard[card] {
				childOwn[h] = 0
			}
		}

		sub := allocFloatSlice(len(result))
		wk.walk(n.Children[i], childDealt, childOpp, childOwn, sub)
		for _, h := range g.hands[wk.player].withCard[card] {
			sub[h] = 0
		}
		subResults[i] = sub

		freeFloatSlice(childOpp)
		freeFloatSlice(childOwn)
	}

	if wk.parallel && g.parallelism > 1 {
		child := *wk
		child.parallel = false
		var eg errgroup.Group
		eg.SetLimit(g.parallelism)
		for i := range n.Children {
			i := i
			eg.Go(func() error {
				visit(&child, i)
				return nil
			})
		}
		eg.Wait()
	} else {
		for i := range n.Children {
			visit(wk, i)
		}
	}

	// Summed in child order so results do not depend on scheduling.
	for _, sub := range subResults {
		for h, v := range sub {
			result[h] += factor * v
		}
		freeFloatSlice(sub)
	}
}

// regretMatch fills strategy with the current strategy implied by regrets:
// proportional to positive regret, uniform when no regret is positive.
func regretMatch(regrets, strategy []float64, numActions, numHands int) {
	uniform := 1 / float64(numActions)
	for h := 0; h < numHands; h++ {
		total := 0.0
		for a := 0; a < numActions; a++ {
			total += math.Max(regrets[a*numHands+h], 0)
		}
		for a := 0; a < numActions; a++ {
			if total > 0 {
				strategy[a*numHands+h] = math.Max(regrets[a*numHands+h], 0) / total
			} else {
				strategy[a*numHands+h] = uniform
			}
		}
	}
}

// normalizeStrategy fills strategy with the average strategy implied by
// cumulative strategy sums; hands without mass play uniformly.
func normalizeStrategy(sums, strategy []float64, numActions, numHands int) {
	uniform := 1 / float64(numActions)
	for h := 0; h < numHands; h++ {
		total := 0.0
		for a := 0; a < numActions; a++ {
			total += sums[a*numHands+h]
		}
		for a := 0; a < numActions; a++ {
			if total > 0 {
				strategy[a*numHands+h] = sums[a*numHands+h] / total
			} else {
				strategy[a*numHands+h] = uniform
			}
		}
	}
}

// currentStrategy writes the regret-matched strategy of node idx.
func (g *Game) currentStrategy(idx int32, strategy []float64) {
	n := g.tree.Node(idx)
	d := &g.data[idx]
	numHands := g.hands[n.Player].len()
	buf := allocFloatSlice(d.size())
	regretMatch(d.regretView(buf), strategy, n.NumActions(), numHands)
	freeFloatSlice(buf)
}

// averageStrategy writes the normalized average strategy of node idx.
func (g *Game) averageStrategy(idx int32, strategy []float64) {
	n := g.tree.Node(idx)
	d := &g.data[idx]
	numHands := g.hands[n.Player].len()
	buf := allocFloatSlice(d.size())
	normalizeStrategy(d.strategyView(buf), strategy, n.NumActions(), numHands)
	freeFloatSlice(buf)
}

func (wk *walker) walkOwn(idx int32, n *tree.Node, dealt cards.Set, oppReach, ownReach, result []float64) {
	g := wk.g
	numActions := n.NumActions()
	numHands := len(result)
	size := numActions * numHands

	values := allocFloatSlice(size)
	defer freeFloatSlice(values)

	switch wk.mode {
	case modeBestResponse:
		for a, child := range n.Children {
			wk.walk(child, dealt, oppReach, nil, values[a*numHands:(a+1)*numHands])
		}
		for h := 0; h < numHands; h++ {
			best := values[h]
			for a := 1; a < numActions; a++ {
				best = math.Max(best, values[a*numHands+h])
			}
			result[h] = best
		}

	case modeAverage:
		strategy := allocFloatSlice(size)
		defer freeFloatSlice(strategy)
		g.averageStrategy(idx, strategy)
		for a, child := range n.Children {
			wk.walk(child, dealt, oppReach, nil, values[a*numHands:(a+1)*numHands])
		}
		for i, v := range values {
			result[i%numHands] += strategy[i] * v
		}

	case modeUpdate:
		d := &g.data[idx]
		regretBuf := allocFloatSlice(size)
		strategyBuf := allocFloatSlice(size)
		defer freeFloatSlice(regretBuf)
		defer freeFloatSlice(strategyBuf)
		regrets := d.regretView(regretBuf)

		strategy := allocFloatSlice(size)
		defer freeFloatSlice(strategy)
		regretMatch(regrets, strategy, numActions, numHands)

		childOwn := allocFloatSlice(numHands)
		defer freeFloatSlice(childOwn)
		for a, child := range n.Children {
			for h := range childOwn {
				childOwn[h] = ownReach[h] * strategy[a*numHands+h]
			}
			wk.walk(child, dealt, oppReach, childOwn, values[a*numHands:(a+1)*numHands])
		}
		for i, v := range values {
			result[i%numHands] += strategy[i] * v
		}

		disc := wk.discount
		for i, v := range values {
			r := regrets[i]
			if r > 0 {
				r *= disc.positive
			} else {
				r *= disc.negative
			}
			regrets[i] = r + v - result[i%numHands]
		}

		sums := d.strategyView(strategyBuf)
		for i := range sums {
			sums[i] = sums[i]*disc.strategy + ownReach[i%numHands]*strategy[i]
		}
		d.commit(regrets, sums)
	}
}

func (wk *walker) walkOpponent(idx int32, n *tree.Node, dealt cards.Set, oppReach, ownReach, result []float64) {
	g := wk.g
	numActions := n.NumActions()
	numOpp := len(oppReach)

	strategy := allocFloatSlice(numActions * numOpp)
	defer freeFloatSlice(strategy)
	if wk.mode == modeUpdate {
		g.currentStrategy(idx, strategy)
	} else {
		g.averageStrategy(idx, strategy)
	}

	childReach := allocFloatSlice(numOpp)
	sub := allocFloatSlice(len(result))
	defer freeFloatSlice(childReach)
	defer freeFloatSlice(sub)
	for a, child := range n.Children {
		for o := range childReach {
			childReach[o] = oppReach[o] * strategy[a*numOpp+o]
		}
		wk.walk(child, dealt, childReach, ownReach, sub)
		for h, v := range sub {
			result[h] += v
		}
	}
}
