package postflop

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/safemap"
	"github.com/timpalpant/postflop/internal/wire"
	"github.com/timpalpant/postflop/tree"
)

var fileMagic = [4]byte{'P', 'F', 'L', 'P'}

// FormatVersion is the version of the encoding written by Save.
const FormatVersion = 1

// Save writes the game, including the solver tables once allocated.
func (g *Game) Save(w io.Writer) error {
	if err := g.requireAtLeast("Save", StateTreeBuilt); err != nil {
		return err
	}

	ww := wire.NewWriter(w)
	ww.Raw(fileMagic[:])
	ww.U32(FormatVersion)
	g.state.Encode(ww)
	g.cardConfig.Encode(ww)
	g.tree.Config.Encode(ww)
	ww.Bool(g.bunching != nil)
	if g.bunching != nil {
		g.bunching.Encode(ww)
	}
	g.tree.EncodeNodes(ww)
	ww.Bool(g.compressed)
	ww.U32(uint32(g.iteration))
	if g.state >= StateMemoryAllocated {
		for i := range g.tree.Nodes {
			if g.tree.Nodes[i].IsDecision() {
				g.data[i].encode(ww)
			}
		}
	}

	if err := ww.Err(); err != nil {
		return &CodecError{Op: "Save", Err: err}
	}
	return nil
}

// Load replaces the game with one written by Save. On error the game is
// left unchanged.
func (g *Game) Load(r io.Reader) error {
	loaded, err := decodeGame(r)
	if err != nil {
		return &CodecError{Op: "Load", Err: err}
	}

	loaded.parallelism = g.parallelism
	*g = *loaded
	glog.V(1).Infof("Loaded %v game with %d nodes at iteration %d",
		g.state, g.tree.NumNodes(), g.iteration)
	return nil
}

// Load reads a game written by Game.Save.
func Load(r io.Reader) (*Game, error) {
	g := New()
	if err := g.Load(r); err != nil {
		return nil, err
	}
	return g, nil
}

func decodeGame(r io.Reader) (*Game, error) {
	rr := wire.NewReader(r)
	var magic [4]byte
	rr.Raw(magic[:])
	version := rr.U32()
	if err := rr.Err(); err != nil {
		return nil, err
	}
	if magic != fileMagic {
		return nil, errors.Errorf("bad magic %q", magic[:])
	}
	if version != FormatVersion {
		return nil, errors.Errorf("unsupported format version %d, expected %d", version, FormatVersion)
	}

	g := New()
	g.state = DecodeState(rr)
	g.cardConfig = DecodeCardConfig(rr)
	tc := tree.DecodeTreeConfig(rr)
	if rr.Bool("Option<BunchingData>") {
		g.bunching = DecodeBunchingData(rr)
	}
	nodes := tree.DecodeNodes(rr)
	compressed := rr.Bool("bool")
	iteration := rr.U32()
	if err := rr.Err(); err != nil {
		return nil, err
	}

	if g.state < StateTreeBuilt {
		return nil, errors.Errorf("cannot load a game in state %v", g.state)
	}
	if err := g.cardConfig.Validate(); err != nil {
		return nil, err
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if g.bunching != nil {
		if err := g.bunching.Validate(g.cardConfig.Flop); err != nil {
			return nil, err
		}
	}

	if tc.InitialState != g.cardConfig.InitialState() {
		return nil, errors.Errorf("tree starts on the %v but the dealt cards are a %v board",
			tc.InitialState, g.cardConfig.InitialState())
	}
	decoded := &tree.Tree{Config: tc, Board: g.cardConfig.Board(), Nodes: nodes}
	if err := decoded.Validate(); err != nil {
		return nil, err
	}
	// The node table must be exactly the tree its configuration produces.
	built, err := tree.Build(tc, g.cardConfig.Board())
	if err != nil {
		return nil, err
	}
	if i := built.Mismatch(nodes); i >= 0 {
		return nil, errors.Errorf("node %d does not match the tree built from the stored configuration", i)
	}
	g.tree = built
	hands, err := buildPrivateHands(&g.cardConfig, g.bunching)
	if err != nil {
		return nil, err
	}
	g.hands = hands
	g.strengthCache = safemap.New[cards.Set, *boardStrengths]()
	g.dealt = g.rootBoard()
	g.compressed = compressed
	g.iteration = int(iteration)

	if g.state >= StateMemoryAllocated {
		g.data = make([]nodeData, len(nodes))
		for i := range nodes {
			n := &nodes[i]
			if !n.IsDecision() {
				continue
			}
			size := n.NumActions() * g.hands[n.Player].len()
			g.data[i] = decodeNodeData(rr, size, compressed)
			if rr.Err() != nil {
				break
			}
		}
		if err := rr.Err(); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// SaveToFile writes the game to path.
func (g *Game) SaveToFile(path string) error {
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}

// LoadFromFile replaces the game with the one saved at path.
func (g *Game) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return g.Load(bufio.NewReader(f))
}
