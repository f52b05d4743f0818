package postflop

import (
	"github.com/timpalpant/postflop/tree"
)

// Strategy returns the acting player's average strategy at the current
// decision node, one row per private hand and one column per action.
// Hands that never reach the node play uniformly.
func (g *Game) Strategy() ([]float32, error) {
	if err := g.requireAtLeast("Strategy", StateMemoryAllocated); err != nil {
		return nil, err
	}
	n := g.tree.Node(g.current)
	if !n.IsDecision() {
		return nil, &NavigationError{Op: "Strategy",
			Reason: "current node is " + tree.PlayerString(n.Player) + ", not a decision node"}
	}

	numActions := n.NumActions()
	numHands := g.hands[n.Player].len()
	strategy := allocFloatSlice(numActions * numHands)
	defer freeFloatSlice(strategy)
	g.averageStrategy(g.current, strategy)

	result := make([]float32, len(strategy))
	for h := 0; h < numHands; h++ {
		for a := 0; a < numActions; a++ {
			result[h*numActions+a] = float32(strategy[a*numHands+h])
		}
	}
	return result, nil
}

// CacheNormalizedWeights computes both players' range weights at the
// current position: initial weights times the probability of playing to
// this node, with hands blocked by the board removed. It must be called
// after navigating and before ExpectedValues or Equity.
func (g *Game) CacheNormalizedWeights() error {
	if err := g.requireAtLeast("CacheNormalizedWeights", StateMemoryAllocated); err != nil {
		return err
	}
	if g.cacheValid {
		return nil
	}

	for p := range g.weights {
		g.weights[p] = append(g.weights[p][:0], g.hands[p].weights...)
	}

	idx := int32(0)
	for _, a := range g.history {
		n := g.tree.Node(idx)
		switch {
		case n.IsChance():
			card := n.Actions[a].Card
			for p := range g.weights {
				for _, h := range g.hands[p].withCard[card] {
					g.weights[p][h] = 0
				}
			}
		case n.IsDecision():
			numHands := g.hands[n.Player].len()
			strategy := allocFloatSlice(n.NumActions() * numHands)
			g.averageStrategy(idx, strategy)
			w := g.weights[n.Player]
			for h := range w {
				w[h] *= strategy[a*numHands+h]
			}
			freeFloatSlice(strategy)
		}
		idx = n.Children[a]
	}

	for p := range g.normalized {
		own, opp := &g.hands[p], &g.hands[1-p]
		sums := newOppSums(opp, g.weights[1-p])
		normalized := make([]float32, own.len())
		compat := make([]float64, own.len())
		total := 0.0
		for h, w := range g.weights[p] {
			if w == 0 {
				continue
			}
			compat[h] = w * sums.compatible(own, h, g.weights[1-p])
			total += compat[h]
		}
		if total > 0 {
			for h, c := range compat {
				normalized[h] = float32(c / total)
			}
		}
		g.normalized[p] = normalized
	}

	g.cacheValid = true
	return nil
}

func (g *Game) requireFreshWeights(op string) error {
	if err := g.requireAtLeast(op, StateMemoryAllocated); err != nil {
		return err
	}
	if !g.cacheValid {
		return &OrderingError{Op: op, Required: StateMemoryAllocated, Actual: g.state,
			Reason: "normalized weights are stale, call CacheNormalizedWeights first"}
	}
	return nil
}

// NormalizedWeights returns the probability of each of player's hands at
// the current position, accounting for the opponent's compatible hands.
// The weights sum to 1 unless the node is unreachable.
func (g *Game) NormalizedWeights(player int) ([]float32, error) {
	if err := g.requireFreshWeights("NormalizedWeights"); err != nil {
		return nil, err
	}
	if err := checkPlayer("NormalizedWeights", player); err != nil {
		return nil, err
	}
	return append([]float32(nil), g.normalized[player]...), nil
}

// ExpectedValues returns player's expected net chip result from the
// current position for each hand when both players follow their average
// strategies. The starting pot counts as dead money, so a hand that wins
// it uncontested nets StartingPot minus rake.
func (g *Game) ExpectedValues(player int) ([]float32, error) {
	return g.perHandValues("ExpectedValues", player, false)
}

// Equity returns player's share of the pot from the current position for
// each hand, counting a win as 1, a tie as 1/2 and a loss or fold as 0.
func (g *Game) Equity(player int) ([]float32, error) {
	return g.perHandValues("Equity", player, true)
}

func (g *Game) perHandValues(op string, player int, equity bool) ([]float32, error) {
	if err := g.requireFreshWeights(op); err != nil {
		return nil, err
	}
	if err := checkPlayer(op, player); err != nil {
		return nil, err
	}

	own, opp := &g.hands[player], &g.hands[1-player]
	oppReach := g.weights[1-player]
	wk := &walker{g: g, player: player, mode: modeAverage, equity: equity, parallel: true}
	values := allocFloatSlice(own.len())
	defer freeFloatSlice(values)
	wk.walk(g.current, g.dealt, oppReach, nil, values)

	sums := newOppSums(opp, oppReach)
	result := make([]float32, own.len())
	for h, v := range values {
		if own.sets[h].Overlaps(g.dealt) {
			continue
		}
		if compat := sums.compatible(own, h, oppReach); compat > 0 {
			result[h] = float32(v / compat)
		}
	}
	return result, nil
}

// MemoryUsage returns the bytes used by the solver tables in uncompressed
// and compressed form.
func (g *Game) MemoryUsage() (uint64, uint64, error) {
	if err := g.requireAtLeast("MemoryUsage", StateMemoryAllocated); err != nil {
		return 0, 0, err
	}
	uncompressed, compressed := g.memoryUsage()
	return uncompressed, compressed, nil
}
