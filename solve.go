package postflop

import (
	"context"
	"expvar"
	"math"

	"github.com/golang/glog"

	"github.com/timpalpant/postflop/cards"
)

var iterations = expvar.NewInt("postflop/iterations")

// exploitabilityInterval is how often Solve measures convergence.
const exploitabilityInterval = 10

// Solve runs up to maxIterations of DCFR, stopping early once the
// exploitability, in chips, is at most target. It returns the last
// measured exploitability.
func (g *Game) Solve(maxIterations int, target float32) (float32, error) {
	return g.SolveContext(context.Background(), maxIterations, target, nil)
}

// SolveContext is Solve with cancellation between iterations. If report
// is non-nil it is called after every completed iteration with the
// iteration count and the latest measured exploitability.
func (g *Game) SolveContext(ctx context.Context, maxIterations int, target float32,
	report func(iteration int, exploitability float32)) (float32, error) {
	if err := g.requireExactly("Solve", StateMemoryAllocated); err != nil {
		return 0, err
	}

	exploitability := g.exploitability()
	glog.Infof("Starting solve at iteration %d: exploitability %.4f, target %.4f",
		g.iteration, exploitability, target)
	if exploitability <= target {
		return exploitability, nil
	}

	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return exploitability, err
		}

		g.step()
		if (i+1)%exploitabilityInterval == 0 || i == maxIterations-1 {
			exploitability = g.exploitability()
			glog.V(1).Infof("Iteration %d: exploitability %.4f", g.iteration, exploitability)
		}
		if report != nil {
			report(g.iteration, exploitability)
		}
		if exploitability <= target {
			break
		}
	}

	glog.Infof("Finished solve at iteration %d: exploitability %.4f", g.iteration, exploitability)
	return exploitability, nil
}

// SolveStep runs a single iteration.
func (g *Game) SolveStep() error {
	if err := g.requireExactly("SolveStep", StateMemoryAllocated); err != nil {
		return err
	}
	g.step()
	return nil
}

func (g *Game) step() {
	d := newDiscount(g.iteration)
	board := g.rootBoard()
	for p := 0; p < 2; p++ {
		wk := &walker{g: g, player: p, mode: modeUpdate, discount: d, parallel: true}
		result := allocFloatSlice(g.hands[p].len())
		wk.walk(0, board, g.hands[1-p].weights, g.hands[p].weights, result)
		freeFloatSlice(result)
	}

	g.iteration++
	iterations.Add(1)
	g.cacheValid = false
}

func (g *Game) rootBoard() cards.Set {
	return cards.NewSetFromCards(g.cardConfig.Board())
}

// Exploitability returns the average chip gain of a best response to each
// player's average strategy. It is zero at equilibrium.
func (g *Game) Exploitability() (float32, error) {
	if err := g.requireAtLeast("Exploitability", StateMemoryAllocated); err != nil {
		return 0, err
	}
	return g.exploitability(), nil
}

func (g *Game) exploitability() float32 {
	var gain float64
	for p := 0; p < 2; p++ {
		br := g.rootValue(p, modeBestResponse)
		avg := g.rootValue(p, modeAverage)
		gain += br - avg
	}
	return float32(math.Max(0, gain/2/g.pairMass()))
}

// rootValue returns player's total value at the root, summed over hands
// and weighted by both players' initial weights.
func (g *Game) rootValue(player int, mode walkMode) float64 {
	wk := &walker{g: g, player: player, mode: mode, parallel: true}
	result := allocFloatSlice(g.hands[player].len())
	defer freeFloatSlice(result)
	wk.walk(0, g.rootBoard(), g.hands[1-player].weights, nil, result)

	total := 0.0
	for h, v := range result {
		total += g.hands[player].weights[h] * v
	}
	return total
}

func (g *Game) pairMass() float64 {
	return pairMass(&g.hands)
}

// pairMass is the total weight of non-conflicting (OOP, IP) hand pairs.
func pairMass(hands *[2]privateHands) float64 {
	oop, ip := &hands[0], &hands[1]
	sums := newOppSums(ip, ip.weights)
	total := 0.0
	for h, w := range oop.weights {
		total += w * sums.compatible(oop, h, ip.weights)
	}
	return total
}

// Finalize marks the game solved. Solving again requires Resume.
func (g *Game) Finalize() error {
	if err := g.requireExactly("Finalize", StateMemoryAllocated); err != nil {
		return err
	}
	g.state = StateSolved
	return nil
}

// Resume returns a solved game to StateMemoryAllocated so that it can be
// solved further.
func (g *Game) Resume() error {
	if err := g.requireExactly("Resume", StateSolved); err != nil {
		return err
	}
	g.state = StateMemoryAllocated
	return nil
}
