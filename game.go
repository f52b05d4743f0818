// Package postflop solves heads-up postflop poker subgames with
// discounted counterfactual regret minimization.
//
// A Game moves through a fixed lifecycle: Init builds the betting tree,
// AllocateMemory creates the regret tables, Solve iterates, and the query
// methods read strategies, expected values and equities at a navigable
// position in the tree.
package postflop

import (
	"runtime"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/safemap"
	"github.com/timpalpant/postflop/tree"
)

// Game is a single subgame. It is not safe for concurrent use.
type Game struct {
	state      State
	cardConfig CardConfig
	tree       *tree.Tree
	bunching   *BunchingData
	hands      [2]privateHands

	data       []nodeData
	compressed bool
	iteration  int

	parallelism   int
	strengthCache *safemap.Map[cards.Set, *boardStrengths]

	// Navigation.
	current int32
	history []int
	dealt   cards.Set

	// Normalized weights at the current position, valid only while
	// cacheValid is set.
	weights    [2][]float64
	normalized [2][]float32
	cacheValid bool
}

// New returns an uninitialized game.
func New() *Game {
	return &Game{
		state:         StateUninitialized,
		parallelism:   runtime.GOMAXPROCS(0),
		strengthCache: safemap.New[cards.Set, *boardStrengths](),
	}
}

// State returns the lifecycle stage of the game.
func (g *Game) State() State {
	return g.state
}

// SetParallelism bounds the number of chance subtrees solved concurrently.
// n < 1 means one.
func (g *Game) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	g.parallelism = n
}

// Init validates the configuration and builds the betting tree.
// On failure the game moves to StateConfigError and must be Reset.
func (g *Game) Init(cc CardConfig, tc tree.TreeConfig) error {
	if err := g.requireExactly("Init", StateUninitialized); err != nil {
		return err
	}

	if err := g.init(cc, tc); err != nil {
		glog.Warningf("Init failed: %v", err)
		g.state = StateConfigError
		return &ConfigurationError{Err: err}
	}

	glog.Infof("Built tree with %d nodes (%d decision nodes), %d OOP and %d IP hands",
		g.tree.NumNodes(), g.tree.NumDecisionNodes(), g.hands[0].len(), g.hands[1].len())
	g.state = StateTreeBuilt
	return nil
}

func (g *Game) init(cc CardConfig, tc tree.TreeConfig) error {
	if err := cc.Validate(); err != nil {
		return err
	}
	if tc.InitialState != cc.InitialState() {
		return errors.Wrapf(tree.ErrInvalidConfig,
			"tree starts on the %v but the dealt cards are a %v board",
			tc.InitialState, cc.InitialState())
	}

	t, err := tree.Build(tc, cc.Board())
	if err != nil {
		return err
	}

	hands, err := buildPrivateHands(&cc, nil)
	if err != nil {
		return err
	}

	g.cardConfig = cc
	g.tree = t
	g.hands = hands
	g.dealt = cards.NewSetFromCards(cc.Board())
	return nil
}

// SetBunchingData applies card-removal adjustments for players who folded
// before the subgame. It must be called before AllocateMemory.
func (g *Game) SetBunchingData(b *BunchingData) error {
	if err := g.requireExactly("SetBunchingData", StateTreeBuilt); err != nil {
		return err
	}

	if err := b.Validate(g.cardConfig.Flop); err != nil {
		g.state = StateConfigError
		return &ConfigurationError{Err: err}
	}
	hands, err := buildPrivateHands(&g.cardConfig, b)
	if err != nil {
		g.state = StateConfigError
		return &ConfigurationError{Err: err}
	}

	g.bunching = b
	g.hands = hands
	g.strengthCache = safemap.New[cards.Set, *boardStrengths]()
	return nil
}

// AllocateMemory creates the regret and strategy tables. Compressed tables
// use a quarter of the memory at some loss of precision.
func (g *Game) AllocateMemory(compressed bool) error {
	if err := g.requireExactly("AllocateMemory", StateTreeBuilt); err != nil {
		return err
	}

	g.allocate(compressed)
	uncompressedBytes, compressedBytes := g.memoryUsage()
	glog.Infof("Allocated solver memory (compressed=%v): %d bytes uncompressed, %d bytes compressed",
		compressed, uncompressedBytes, compressedBytes)
	g.state = StateMemoryAllocated
	g.backToRoot()
	return nil
}

func (g *Game) allocate(compressed bool) {
	g.data = make([]nodeData, g.tree.NumNodes())
	for i := range g.tree.Nodes {
		n := &g.tree.Nodes[i]
		if n.IsDecision() {
			g.data[i] = newNodeData(n.NumActions()*g.hands[n.Player].len(), compressed)
		}
	}
	g.compressed = compressed
	g.iteration = 0
}

// Reset discards everything and returns the game to StateUninitialized.
// The parallelism setting is kept.
func (g *Game) Reset() {
	parallelism := g.parallelism
	*g = *New()
	g.parallelism = parallelism
}

// Tree returns the betting tree, or nil before Init.
func (g *Game) Tree() *tree.Tree {
	return g.tree
}

// CardConfig returns the ranges and board the game was initialized with.
func (g *Game) CardConfig() CardConfig {
	return g.cardConfig
}

// Iteration returns the number of completed solver iterations.
func (g *Game) Iteration() int {
	return g.iteration
}

// IsCompressed returns whether the solver tables are quantized.
func (g *Game) IsCompressed() bool {
	return g.compressed
}

// PrivateHands returns player's hands in the order used by every per-hand
// query.
func (g *Game) PrivateHands(player int) ([]cards.Hand, error) {
	if err := g.requireAtLeast("PrivateHands", StateTreeBuilt); err != nil {
		return nil, err
	}
	if err := checkPlayer("PrivateHands", player); err != nil {
		return nil, err
	}
	return append([]cards.Hand(nil), g.hands[player].hands...), nil
}

func checkPlayer(op string, player int) error {
	if player != 0 && player != 1 {
		return &NavigationError{Op: op, Index: player, NumActions: 2,
			Reason: "player must be 0 (OOP) or 1 (IP)"}
	}
	return nil
}
