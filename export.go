package postflop

import (
	"io"
	"strings"

	"github.com/timpalpant/postflop/internal/npyio"
)

// ExportNPZ writes the current position's tables as a NumPy .npz archive:
// per player the hand indices (hands_oop, hands_ip), normalized weights,
// expected values and equities, plus the strategy at a decision node.
// The weight cache must be fresh.
func (g *Game) ExportNPZ(w io.Writer) error {
	if err := g.requireFreshWeights("ExportNPZ"); err != nil {
		return err
	}

	arrays := make(map[string]npyio.Array)
	for p := 0; p < 2; p++ {
		suffix := "_" + strings.ToLower(playerName(p))

		hands := make([]float32, g.hands[p].len())
		for i, h := range g.hands[p].hands {
			hands[i] = float32(h.Index())
		}
		arrays["hands"+suffix] = npyio.Array{Data: hands}
		arrays["weights"+suffix] = npyio.Array{Data: g.normalized[p]}

		ev, err := g.ExpectedValues(p)
		if err != nil {
			return err
		}
		arrays["ev"+suffix] = npyio.Array{Data: ev}

		equity, err := g.Equity(p)
		if err != nil {
			return err
		}
		arrays["equity"+suffix] = npyio.Array{Data: equity}
	}

	if n := g.tree.Node(g.current); n.IsDecision() {
		strategy, err := g.Strategy()
		if err != nil {
			return err
		}
		arrays["strategy"] = npyio.Array{
			Data:  strategy,
			Shape: []int{g.hands[n.Player].len(), n.NumActions()},
		}
	}

	if err := npyio.WriteNPZ(w, arrays); err != nil {
		return &CodecError{Op: "ExportNPZ", Err: err}
	}
	return nil
}
