package postflop

import (
	"math"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/internal/wire"
)

// nodeData holds the cumulative regret and cumulative strategy of one
// decision node, action-major: entry a*numHands + h.
//
// In compressed mode the tables are kept as int16 with one float32 scale
// each and are expanded to float64 scratch space while a node is updated.
type nodeData struct {
	regrets  []float64
	strategy []float64

	regrets16     []int16
	strategy16    []int16
	regretScale   float32
	strategyScale float32
}

func newNodeData(size int, compressed bool) nodeData {
	if compressed {
		return nodeData{
			regrets16:  make([]int16, size),
			strategy16: make([]int16, size),
		}
	}
	return nodeData{
		regrets:  make([]float64, size),
		strategy: make([]float64, size),
	}
}

func (d *nodeData) compressed() bool {
	return d.regrets == nil && d.regrets16 != nil
}

func (d *nodeData) size() int {
	if d.compressed() {
		return len(d.regrets16)
	}
	return len(d.regrets)
}

// regretView returns the cumulative regrets as float64. In compressed mode
// the values are expanded into buf, which must be large enough.
func (d *nodeData) regretView(buf []float64) []float64 {
	if !d.compressed() {
		return d.regrets
	}
	return expand(d.regrets16, d.regretScale, buf[:len(d.regrets16)])
}

func (d *nodeData) strategyView(buf []float64) []float64 {
	if !d.compressed() {
		return d.strategy
	}
	return expand(d.strategy16, d.strategyScale, buf[:len(d.strategy16)])
}

// commit stores updated views back. It is a no-op in uncompressed mode,
// where the views alias the tables.
func (d *nodeData) commit(regrets, strategy []float64) {
	if !d.compressed() {
		return
	}
	d.regretScale = quantize(regrets, d.regrets16)
	d.strategyScale = quantize(strategy, d.strategy16)
}

func expand(q []int16, scale float32, dst []float64) []float64 {
	s := float64(scale)
	for i, v := range q {
		dst[i] = float64(v) * s
	}
	return dst
}

// quantize maps xs onto int16 with a shared scale chosen so the largest
// magnitude maps to math.MaxInt16.
func quantize(xs []float64, dst []int16) float32 {
	maxAbs := 0.0
	for _, x := range xs {
		maxAbs = math.Max(maxAbs, math.Abs(x))
	}
	scale := float32(maxAbs / math.MaxInt16)
	if scale == 0 {
		clear(dst)
		return 0
	}

	s := float64(scale)
	for i, x := range xs {
		q := math.Round(x / s)
		q = math.Max(-math.MaxInt16, math.Min(math.MaxInt16, q))
		dst[i] = int16(q)
	}
	return scale
}

func (d *nodeData) encode(w *wire.Writer) {
	if d.compressed() {
		for _, table := range []struct {
			scale float32
			q     []int16
		}{{d.regretScale, d.regrets16}, {d.strategyScale, d.strategy16}} {
			w.F32(table.scale)
			w.Len(len(table.q))
			for _, v := range table.q {
				w.I16(v)
			}
		}
		return
	}

	for _, table := range [][]float64{d.regrets, d.strategy} {
		w.Len(len(table))
		for _, v := range table {
			w.F64(v)
		}
	}
}

func decodeNodeData(r *wire.Reader, size int, compressed bool) nodeData {
	d := newNodeData(size, compressed)
	checkLen := func() bool {
		n := r.Len()
		if r.Err() == nil && n != size {
			r.Fail(errors.Errorf("accumulator table has %d entries, expected %d", n, size))
		}
		return r.Err() == nil
	}

	if compressed {
		d.regretScale = r.F32()
		if checkLen() {
			for i := range d.regrets16 {
				d.regrets16[i] = r.I16()
			}
		}
		d.strategyScale = r.F32()
		if checkLen() {
			for i := range d.strategy16 {
				d.strategy16[i] = r.I16()
			}
		}
		return d
	}

	if checkLen() {
		for i := range d.regrets {
			d.regrets[i] = r.F64()
		}
	}
	if checkLen() {
		for i := range d.strategy {
			d.strategy[i] = r.F64()
		}
	}
	return d
}

// memoryUsage returns the bytes needed by the accumulator tables of a tree
// in uncompressed and compressed form.
func (g *Game) memoryUsage() (uint64, uint64) {
	var uncompressed, compressed uint64
	for i := range g.tree.Nodes {
		n := &g.tree.Nodes[i]
		if !n.IsDecision() {
			continue
		}
		entries := uint64(n.NumActions() * g.hands[n.Player].len())
		uncompressed += 2 * entries * 8
		compressed += 2*entries*2 + 2*4
	}
	return uncompressed, compressed
}
