package postflop

import (
	"fmt"

	"github.com/timpalpant/postflop/internal/wire"
)

// State is the lifecycle stage of a Game. States are ordered; an operation
// that requires a state also accepts every later one unless it says
// otherwise.
type State uint32

const (
	// StateConfigError is terminal until Reset.
	StateConfigError State = iota
	StateUninitialized
	StateTreeBuilt
	StateMemoryAllocated
	StateSolved
)

var stateStr = [...]string{
	"ConfigError",
	"Uninitialized",
	"TreeBuilt",
	"MemoryAllocated",
	"Solved",
}

func (s State) String() string {
	if int(s) >= len(stateStr) {
		return fmt.Sprintf("State(%d)", uint32(s))
	}
	return stateStr[s]
}

func (s State) Encode(w *wire.Writer) {
	w.Tag(uint32(s))
}

func DecodeState(r *wire.Reader) State {
	return State(r.Tag("State", uint32(StateSolved)))
}

func (g *Game) requireAtLeast(op string, min State) error {
	if g.state < min {
		return &OrderingError{Op: op, Required: min, Actual: g.state}
	}
	return nil
}

func (g *Game) requireExactly(op string, s State) error {
	if g.state != s {
		return &OrderingError{Op: op, Required: s, Actual: g.state}
	}
	return nil
}
