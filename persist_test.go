package postflop

import (
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/wire"
	"github.com/timpalpant/postflop/tree"
)

func solvedGame(t *testing.T, compressed bool) *Game {
	t.Helper()
	cc := mustCardConfig(t, "AA,KK,QQ,AK,AQ,98s", "JJ,TT,AK,KQ,QJ", riverBoard)
	g := newGame(t, cc, "50%,a", compressed)
	if _, err := g.Solve(20, 0); err != nil {
		t.Fatal(err)
	}
	return g
}

func saveBytes(t *testing.T, g *Game) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type snapshot struct {
	strategy []float32
	ev       [2][]float32
	equity   [2][]float32
}

func takeSnapshot(t *testing.T, g *Game, history ...int) snapshot {
	t.Helper()
	if err := g.BackToRoot(); err != nil {
		t.Fatal(err)
	}
	mustPlay(t, g, history...)
	if err := g.CacheNormalizedWeights(); err != nil {
		t.Fatal(err)
	}

	var s snapshot
	var err error
	if s.strategy, err = g.Strategy(); err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 2; p++ {
		if s.ev[p], err = g.ExpectedValues(p); err != nil {
			t.Fatal(err)
		}
		if s.equity[p], err = g.Equity(p); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		g := solvedGame(t, compressed)
		if err := g.Finalize(); err != nil {
			t.Fatal(err)
		}
		saved := saveBytes(t, g)

		loaded, err := Load(bytes.NewReader(saved))
		if err != nil {
			t.Fatalf("compressed=%v: %v", compressed, err)
		}
		if loaded.State() != StateSolved || loaded.Iteration() != g.Iteration() ||
			loaded.IsCompressed() != compressed {
			t.Errorf("compressed=%v: loaded %v game at iteration %d", compressed, loaded.State(), loaded.Iteration())
		}

		if resaved := saveBytes(t, loaded); !bytes.Equal(saved, resaved) {
			t.Errorf("compressed=%v: re-encoding changed %d bytes to %d bytes", compressed, len(saved), len(resaved))
		}

		for _, history := range [][]int{nil, {0}, {1}, {0, 1}} {
			expected := takeSnapshot(t, g, history...)
			got := takeSnapshot(t, loaded, history...)
			if !reflect.DeepEqual(expected, got) {
				t.Errorf("compressed=%v history %v: loaded game answers differ", compressed, history)
			}
		}

		u1, c1, _ := g.MemoryUsage()
		u2, c2, _ := loaded.MemoryUsage()
		if u1 != u2 || c1 != c2 {
			t.Errorf("memory usage changed from (%d, %d) to (%d, %d)", u1, c1, u2, c2)
		}
	}
}

func TestSaveLoadTreeBuilt(t *testing.T) {
	cc := mustCardConfig(t, "AA,KK", "QQ,JJ", riverBoard)
	g := New()
	if err := g.Init(cc, treeConfig(t, cc, "50%,a")); err != nil {
		t.Fatal(err)
	}
	saved := saveBytes(t, g)

	loaded, err := Load(bytes.NewReader(saved))
	if err != nil {
		t.Fatal(err)
	}
	if loaded.State() != StateTreeBuilt {
		t.Errorf("loaded game is %v", loaded.State())
	}
	if !reflect.DeepEqual(loaded.Tree().Nodes, g.Tree().Nodes) {
		t.Error("loaded tree differs")
	}
	if err := loaded.AllocateMemory(false); err != nil {
		t.Errorf("AllocateMemory on loaded game: %v", err)
	}
}

// corruptTree saves a turn game whose node table was changed by mutate.
func corruptTree(t *testing.T, mutate func(nodes []tree.Node)) []byte {
	t.Helper()
	cc := mustCardConfig(t, "AA", "KK", "QsJh2h7c")
	g := New()
	if err := g.Init(cc, treeConfig(t, cc, "a")); err != nil {
		t.Fatal(err)
	}
	mutate(g.tree.Nodes)
	return saveBytes(t, g)
}

func firstChance(t *testing.T, nodes []tree.Node) *tree.Node {
	t.Helper()
	for i := range nodes {
		if nodes[i].IsChance() {
			return &nodes[i]
		}
	}
	t.Fatal("tree has no chance node")
	return nil
}

func TestLoadFailureLeavesGameUntouched(t *testing.T) {
	saved := saveBytes(t, solvedGame(t, false))

	badVersion := append([]byte(nil), saved...)
	binary.LittleEndian.PutUint32(badVersion[4:], FormatVersion+1)
	badState := append([]byte(nil), saved...)
	binary.LittleEndian.PutUint32(badState[8:], 9)
	badMagic := append([]byte(nil), saved...)
	badMagic[0] = 'X'
	invalidCard := corruptTree(t, func(nodes []tree.Node) {
		firstChance(t, nodes).Actions[0].Card = 60
	})
	boardCard := corruptTree(t, func(nodes []tree.Node) {
		qs, _ := cards.ParseCard("Qs")
		firstChance(t, nodes).Actions[0].Card = qs
	})
	wrongAmount := corruptTree(t, func(nodes []tree.Node) {
		nodes[0].Actions[1].Amount--
	})
	wrongMarker := corruptTree(t, func(nodes []tree.Node) {
		for i := range nodes {
			if nodes[i].Player == tree.PlayerFoldIP {
				nodes[i].Player = tree.PlayerFoldOOP
				return
			}
		}
	})

	testCases := []struct {
		name  string
		input []byte
		check func(err error) bool
	}{
		{"truncated", saved[:len(saved)/2], func(err error) bool {
			return errors.Cause(err) == io.ErrUnexpectedEOF
		}},
		{"truncated header", saved[:6], func(err error) bool {
			return errors.Cause(err) == io.ErrUnexpectedEOF
		}},
		{"newer version", badVersion, func(err error) bool { return true }},
		{"bad magic", badMagic, func(err error) bool { return true }},
		{"chance card out of range", invalidCard, func(err error) bool { return true }},
		{"chance card on board", boardCard, func(err error) bool { return true }},
		{"wrong wager", wrongAmount, func(err error) bool { return true }},
		{"wrong fold marker", wrongMarker, func(err error) bool { return true }},
		{"bad state", badState, func(err error) bool {
			var v *wire.UnexpectedVariantError
			return errors.As(err, &v) && v.Type == "State" && v.Found == 9
		}},
	}

	cc := mustCardConfig(t, "AA", "KK", riverBoard)
	g := newGame(t, cc, "a", false)
	if err := g.SolveStep(); err != nil {
		t.Fatal(err)
	}
	before := saveBytes(t, g)

	for _, tc := range testCases {
		err := g.Load(bytes.NewReader(tc.input))
		var codecErr *CodecError
		if !errors.As(err, &codecErr) {
			t.Errorf("%s: expected CodecError, got %v", tc.name, err)
			continue
		}
		if !tc.check(err) {
			t.Errorf("%s: unexpected cause %v", tc.name, err)
		}
		if g.State() != StateMemoryAllocated || g.Iteration() != 1 {
			t.Errorf("%s: game changed to %v at iteration %d", tc.name, g.State(), g.Iteration())
		}
		if after := saveBytes(t, g); !bytes.Equal(before, after) {
			t.Errorf("%s: game contents changed", tc.name)
		}
	}
}

func TestSaveLoadFile(t *testing.T) {
	g := solvedGame(t, true)
	path := filepath.Join(t.TempDir(), "game.pflp")
	if err := g.SaveToFile(path); err != nil {
		t.Fatal(err)
	}

	loaded := New()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(saveBytes(t, g), saveBytes(t, loaded)) {
		t.Error("file round trip changed the game")
	}

	if err := loaded.LoadFromFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error loading a missing file")
	}
}
