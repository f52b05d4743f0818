package postflop

import (
	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/tree"
)

// AvailableActions returns the actions at the current position.
func (g *Game) AvailableActions() ([]tree.Action, error) {
	if err := g.requireAtLeast("AvailableActions", StateMemoryAllocated); err != nil {
		return nil, err
	}
	return append([]tree.Action(nil), g.tree.Node(g.current).Actions...), nil
}

// Play moves the current position to the child reached by the action at
// index. At a chance node the index selects the dealt card.
func (g *Game) Play(index int) error {
	if err := g.requireAtLeast("Play", StateMemoryAllocated); err != nil {
		return err
	}

	n := g.tree.Node(g.current)
	if n.IsTerminal() {
		return &NavigationError{Op: "Play", Index: index, Reason: "current node is terminal"}
	}
	if index < 0 || index >= n.NumActions() {
		return &NavigationError{Op: "Play", Index: index, NumActions: n.NumActions()}
	}

	if n.IsChance() {
		g.dealt.Add(n.Actions[index].Card)
	}
	g.current = n.Children[index]
	g.history = append(g.history, index)
	g.cacheValid = false
	return nil
}

// BackToRoot returns the current position to the root of the tree.
func (g *Game) BackToRoot() error {
	if err := g.requireAtLeast("BackToRoot", StateMemoryAllocated); err != nil {
		return err
	}
	g.backToRoot()
	return nil
}

func (g *Game) backToRoot() {
	g.current = 0
	g.history = nil
	g.dealt = g.rootBoard()
	g.cacheValid = false
}

// History returns the action indices played from the root.
func (g *Game) History() []int {
	return append([]int(nil), g.history...)
}

// CurrentPlayer returns the Node.Player marker of the current position.
func (g *Game) CurrentPlayer() (uint8, error) {
	if err := g.requireAtLeast("CurrentPlayer", StateMemoryAllocated); err != nil {
		return 0, err
	}
	return g.tree.Node(g.current).Player, nil
}

// CurrentNode returns the node at the current position.
func (g *Game) CurrentNode() (*tree.Node, error) {
	if err := g.requireAtLeast("CurrentNode", StateMemoryAllocated); err != nil {
		return nil, err
	}
	return g.tree.Node(g.current), nil
}

// Board returns the community cards at the current position, including
// cards dealt by chance nodes played since the root, in dealing order.
func (g *Game) Board() []cards.Card {
	board := g.cardConfig.Board()
	if g.tree == nil {
		return board
	}
	idx := int32(0)
	for _, a := range g.history {
		n := g.tree.Node(idx)
		if n.IsChance() {
			board = append(board, n.Actions[a].Card)
		}
		idx = n.Children[a]
	}
	return board
}
