// Package tree builds the public betting tree of a heads-up postflop
// subgame from a declarative bet-size abstraction.
package tree

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/wire"
)

// Values of Node.Player. Terminal markers record how the hand ended.
const (
	PlayerOOP uint8 = iota
	PlayerIP
	PlayerChance
	PlayerShowdown
	PlayerFoldOOP
	PlayerFoldIP
)

var playerStr = [...]string{
	"OOP",
	"IP",
	"Chance",
	"Showdown",
	"FoldOOP",
	"FoldIP",
}

// PlayerString returns a readable name for a Node.Player value.
func PlayerString(p uint8) string {
	if int(p) >= len(playerStr) {
		return "Unknown"
	}
	return playerStr[p]
}

// Node is a vertex of the betting tree. len(Actions) must always equal
// len(Children), and Children[i] is reached by taking Actions[i].
type Node struct {
	Player uint8
	// Board is the street the node belongs to. Chance nodes belong to the
	// street they close.
	Board BoardState
	// Amount is the contribution both players have matched since the start
	// of the subgame. The pot is StartingPot + 2*Amount plus any uncalled
	// bet. At a fold it is the folder's contribution.
	Amount   int32
	Actions  []Action
	Children []int32
}

// IsTerminal returns whether the hand ends at this node.
func (n *Node) IsTerminal() bool {
	return n.Player >= PlayerShowdown
}

// IsChance returns whether a community card is dealt at this node.
func (n *Node) IsChance() bool {
	return n.Player == PlayerChance
}

// IsDecision returns whether one of the players acts at this node.
func (n *Node) IsDecision() bool {
	return n.Player <= PlayerIP
}

func (n *Node) NumActions() int {
	return len(n.Actions)
}

// Tree is an arena of Nodes addressed by index. Nodes are stored in
// depth-first pre-order, so the root is at index 0 and every child has a
// larger index than its parent.
type Tree struct {
	Config TreeConfig
	// Board holds the community cards known before the subgame starts.
	Board []cards.Card
	Nodes []Node
}

// Root returns the node the subgame starts at.
func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// Node returns the node at index i.
func (t *Tree) Node(i int32) *Node {
	return &t.Nodes[i]
}

func (t *Tree) NumNodes() int {
	return len(t.Nodes)
}

// NumDecisionNodes returns the number of nodes at which a player acts.
func (t *Tree) NumDecisionNodes() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsDecision() {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of the arena.
func (t *Tree) Validate() error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}

	stack := t.Config.EffectiveStack
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if len(n.Actions) != len(n.Children) {
			return errors.Errorf("node %d has %d actions but %d children",
				i, len(n.Actions), len(n.Children))
		}
		if n.IsTerminal() != (len(n.Actions) == 0) {
			return errors.Errorf("node %d (%s) has %d actions",
				i, PlayerString(n.Player), len(n.Actions))
		}
		if n.Amount < 0 || n.Amount > stack {
			return errors.Errorf("node %d contribution %d exceeds stack %d", i, n.Amount, stack)
		}
		for j, child := range n.Children {
			if int(child) <= i || int(child) >= len(t.Nodes) {
				return errors.Errorf("node %d has out of order child %d", i, child)
			}
			if a := n.Actions[j]; a.IsAggressive() && a.Amount > stack {
				return errors.Errorf("node %d action %v exceeds stack %d", i, a, stack)
			}
		}
	}

	return nil
}

// Mismatch returns the index of the first node that differs from nodes,
// or -1 if the arenas are identical.
func (t *Tree) Mismatch(nodes []Node) int {
	for i := range t.Nodes {
		if i >= len(nodes) {
			return i
		}
		a, b := &t.Nodes[i], &nodes[i]
		if a.Player != b.Player || a.Board != b.Board || a.Amount != b.Amount ||
			!slices.Equal(a.Actions, b.Actions) || !slices.Equal(a.Children, b.Children) {
			return i
		}
	}
	if len(nodes) > len(t.Nodes) {
		return len(t.Nodes)
	}
	return -1
}

// EncodeNodes writes the tree recursively starting at the root.
func (t *Tree) EncodeNodes(w *wire.Writer) {
	t.encodeNode(w, 0)
}

func (t *Tree) encodeNode(w *wire.Writer, i int32) {
	n := &t.Nodes[i]
	w.U8(n.Player)
	n.Board.Encode(w)
	w.I32(n.Amount)
	w.Len(len(n.Actions))
	for _, a := range n.Actions {
		a.Encode(w)
	}
	w.Len(len(n.Children))
	for _, child := range n.Children {
		t.encodeNode(w, child)
	}
}

// maxDepth bounds recursion while decoding corrupt input. Real trees are
// far shallower.
const maxDepth = 256

// DecodeNodes reads nodes written by EncodeNodes back into pre-order.
func DecodeNodes(r *wire.Reader) []Node {
	var nodes []Node
	decodeNode(r, &nodes, 0)
	return nodes
}

func decodeNode(r *wire.Reader, nodes *[]Node, depth int) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, Node{})
	if depth > maxDepth {
		r.Fail(errors.Errorf("tree deeper than %d", maxDepth))
		return idx
	}

	var n Node
	n.Player = r.U8()
	if r.Err() == nil && n.Player > PlayerFoldIP {
		r.Fail(wire.NewRangeError("Player", uint32(n.Player), 0, uint32(PlayerFoldIP)))
	}
	n.Board = DecodeBoardState(r)
	n.Amount = r.I32()
	numActions := r.Len()
	for i := 0; i < numActions && r.Err() == nil; i++ {
		n.Actions = append(n.Actions, DecodeAction(r))
	}
	numChildren := r.Len()
	if r.Err() == nil && numChildren != numActions {
		r.Fail(errors.Errorf("node has %d actions but %d children", numActions, numChildren))
	}
	for i := 0; i < numChildren && r.Err() == nil; i++ {
		n.Children = append(n.Children, decodeNode(r, nodes, depth+1))
	}

	(*nodes)[idx] = n
	return idx
}
