package tree

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/wire"
)

func mustCards(t *testing.T, s string) []cards.Card {
	cs, err := cards.ParseCards(s)
	if err != nil {
		t.Fatal(err)
	}
	return cs
}

func mustSizes(t *testing.T, bet, raise string) BetSizeOptions {
	o, err := ParseBetSizeOptions(bet, raise)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func actionsEqual(a, b []Action) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRootActions(t *testing.T) {
	cfg := DefaultTreeConfig(River, 6, 25)
	cfg.SetAllBetSizes(mustSizes(t, "50%,a", "50%,a"))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	expected := []Action{
		{Type: ActionCheck},
		{Type: ActionBet, Amount: 3},
		{Type: ActionAllIn, Amount: 25},
	}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}
	if err := tree.Validate(); err != nil {
		t.Error(err)
	}
}

func TestRootActionsOnFlop(t *testing.T) {
	cfg := DefaultTreeConfig(Flop, 6, 25)
	cfg.SetAllBetSizes(mustSizes(t, "50%,a", "50%,a"))
	tree, err := Build(cfg, mustCards(t, "QsJh2h"))
	if err != nil {
		t.Fatal(err)
	}

	expected := []Action{
		{Type: ActionCheck},
		{Type: ActionBet, Amount: 3},
		{Type: ActionAllIn, Amount: 25},
	}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}
	if err := tree.Validate(); err != nil {
		t.Error(err)
	}
}

func TestOversizedBetIsAllIn(t *testing.T) {
	for _, sizes := range []string{"99999999999%", "50%,99999999999%"} {
		cfg := DefaultTreeConfig(River, 6, 25)
		cfg.SetAllBetSizes(mustSizes(t, sizes, ""))
		tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
		if err != nil {
			t.Fatal(err)
		}

		root := tree.Root().Actions
		last := root[len(root)-1]
		if last != (Action{Type: ActionAllIn, Amount: 25}) {
			t.Errorf("%s: got root actions %v, expected an all-in", sizes, root)
		}
		for _, a := range root {
			if a.IsAggressive() && a.Amount < 3 {
				t.Errorf("%s: got undersized wager %v", sizes, a)
			}
		}
	}
}

func TestFlopTree(t *testing.T) {
	cfg := DefaultTreeConfig(Flop, 6, 25)
	cfg.SetAllBetSizes(mustSizes(t, "a", ""))
	tree, err := Build(cfg, mustCards(t, "QsJh2h"))
	if err != nil {
		t.Fatal(err)
	}

	expected := []Action{{Type: ActionCheck}, {Type: ActionAllIn, Amount: 25}}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}

	checkCheck := tree.Node(tree.Node(tree.Root().Children[0]).Children[0])
	if !checkCheck.IsChance() || checkCheck.Board != Flop {
		t.Fatalf("expected flop chance node, got %+v", checkCheck)
	}
	if len(checkCheck.Children) != cards.NumCards-3 {
		t.Errorf("got %d turn cards, expected %d", len(checkCheck.Children), cards.NumCards-3)
	}
	turn := tree.Node(checkCheck.Children[0])
	if turn.Board != Turn || turn.Player != PlayerOOP {
		t.Errorf("got turn node %+v", turn)
	}
	if err := tree.Validate(); err != nil {
		t.Error(err)
	}
}

func TestSmallRiverTree(t *testing.T) {
	cfg := DefaultTreeConfig(River, 10, 10)
	cfg.SetAllBetSizes(mustSizes(t, "a", ""))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	if tree.NumNodes() != 9 {
		t.Errorf("got %d nodes, expected %d", tree.NumNodes(), 9)
	}
	if tree.NumDecisionNodes() != 4 {
		t.Errorf("got %d decision nodes, expected %d", tree.NumDecisionNodes(), 4)
	}

	root := tree.Root()
	expected := []Action{{Type: ActionCheck}, {Type: ActionAllIn, Amount: 10}}
	if !actionsEqual(root.Actions, expected) {
		t.Errorf("got root actions %v, expected %v", root.Actions, expected)
	}

	facing := tree.Node(root.Children[1])
	if facing.Player != PlayerIP {
		t.Errorf("got player %v facing all-in, expected IP", facing.Player)
	}
	expected = []Action{{Type: ActionFold}, {Type: ActionCall}}
	if !actionsEqual(facing.Actions, expected) {
		t.Errorf("got actions %v facing all-in, expected %v", facing.Actions, expected)
	}
	if fold := tree.Node(facing.Children[0]); fold.Player != PlayerFoldIP || fold.Amount != 0 {
		t.Errorf("got fold node %+v", fold)
	}
	if call := tree.Node(facing.Children[1]); call.Player != PlayerShowdown || call.Amount != 10 {
		t.Errorf("got call node %+v", call)
	}
}

func TestActionsMatchChildren(t *testing.T) {
	cfg := DefaultTreeConfig(Turn, 20, 100)
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c"))
	if err != nil {
		t.Fatal(err)
	}

	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if len(n.Actions) != len(n.Children) {
			t.Fatalf("node %d has %d actions and %d children", i, len(n.Actions), len(n.Children))
		}
		if n.Amount > cfg.EffectiveStack {
			t.Fatalf("node %d has contribution %d above stack", i, n.Amount)
		}
		if n.IsChance() && len(n.Children) != cards.NumCards-4 {
			t.Fatalf("turn chance node %d has %d children", i, len(n.Children))
		}
		for _, a := range n.Actions {
			if a.IsAggressive() && a.Amount > cfg.EffectiveStack {
				t.Fatalf("node %d action %v exceeds stack", i, a)
			}
		}
	}
	if err := tree.Validate(); err != nil {
		t.Error(err)
	}
}

func TestWagerOrdering(t *testing.T) {
	cfg := DefaultTreeConfig(River, 100, 1000)
	cfg.SetAllBetSizes(mustSizes(t, "a,100%,33%", "3x,a"))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	expected := []Action{
		{Type: ActionCheck},
		{Type: ActionBet, Amount: 33},
		{Type: ActionBet, Amount: 100},
		{Type: ActionAllIn, Amount: 1000},
	}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}

	// Facing a 33 chip bet: fold, call, raise to 99, all-in.
	facing := tree.Node(tree.Root().Children[1])
	expected = []Action{
		{Type: ActionFold},
		{Type: ActionCall},
		{Type: ActionRaise, Amount: 99},
		{Type: ActionAllIn, Amount: 1000},
	}
	if !actionsEqual(facing.Actions, expected) {
		t.Errorf("got actions %v, expected %v", facing.Actions, expected)
	}
}

func TestMergingThreshold(t *testing.T) {
	cfg := DefaultTreeConfig(River, 100, 1000)
	cfg.SetAllBetSizes(mustSizes(t, "50%,55%,100%", ""))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	// 55 is within 10% of 50 and is dropped in favor of the earlier rule.
	expected := []Action{
		{Type: ActionCheck},
		{Type: ActionBet, Amount: 50},
		{Type: ActionBet, Amount: 100},
	}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}
}

func TestForceAllIn(t *testing.T) {
	cfg := DefaultTreeConfig(River, 100, 110)
	cfg.SetAllBetSizes(mustSizes(t, "100%", ""))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	// A pot sized bet leaves 10 < 0.15*110 behind and becomes all-in.
	expected := []Action{{Type: ActionCheck}, {Type: ActionAllIn, Amount: 110}}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}
}

func TestAddAllIn(t *testing.T) {
	cfg := DefaultTreeConfig(River, 100, 140)
	cfg.SetAllBetSizes(mustSizes(t, "100%", ""))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	// 100 * 1.5 >= 140, so an all-in is added after the sized bet.
	expected := []Action{
		{Type: ActionCheck},
		{Type: ActionBet, Amount: 100},
		{Type: ActionAllIn, Amount: 140},
	}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}
}

func TestRaiseLimit(t *testing.T) {
	cfg := DefaultTreeConfig(River, 10, 1000)
	sizes := mustSizes(t, "50%", "2x")
	sizes.RaiseLimit = 1
	cfg.SetAllBetSizes(sizes)
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	// Bet 5, raise to 10, then only fold or call.
	bet := tree.Node(tree.Root().Children[1])
	raise := tree.Node(bet.Children[2])
	if bet.Actions[2] != (Action{Type: ActionRaise, Amount: 10}) {
		t.Fatalf("got %v, expected Raise(10)", bet.Actions[2])
	}
	expected := []Action{{Type: ActionFold}, {Type: ActionCall}}
	if !actionsEqual(raise.Actions, expected) {
		t.Errorf("got actions %v after raise limit, expected %v", raise.Actions, expected)
	}
}

func TestGeometric(t *testing.T) {
	cfg := DefaultTreeConfig(River, 100, 100)
	cfg.SetAllBetSizes(mustSizes(t, "e", ""))
	cfg.AddAllInThreshold = 0
	cfg.ForceAllInThreshold = 0
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	// One street left: the geometric size is exactly all-in.
	expected := []Action{{Type: ActionCheck}, {Type: ActionAllIn, Amount: 100}}
	if got := tree.Root().Actions; !actionsEqual(got, expected) {
		t.Errorf("got root actions %v, expected %v", got, expected)
	}
}

func TestDonkSizes(t *testing.T) {
	cfg := DefaultTreeConfig(Turn, 10, 1000)
	cfg.SetAllBetSizes(mustSizes(t, "50%", ""))
	cfg.RiverDonkSizes = &DonkSizeOptions{Donk: []BetSize{{Kind: PotRelative, Ratio: 0.2}}}
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c"))
	if err != nil {
		t.Fatal(err)
	}

	// OOP checks, IP bets 5, OOP calls: the river is a donk spot.
	check := tree.Node(tree.Root().Children[0])
	bet := tree.Node(check.Children[1])
	call := tree.Node(bet.Children[1])
	if !call.IsChance() {
		t.Fatalf("expected chance node after call, got %+v", call)
	}
	river := tree.Node(call.Children[0])
	// Pot is 20 on the river; 20% is 4.
	expected := []Action{{Type: ActionCheck}, {Type: ActionBet, Amount: 4}}
	if !actionsEqual(river.Actions, expected) {
		t.Errorf("got river actions %v, expected %v", river.Actions, expected)
	}

	// Checked through turn: regular sizes apply (50% of 10).
	checkCheck := tree.Node(check.Children[0])
	river = tree.Node(checkCheck.Children[0])
	expected = []Action{{Type: ActionCheck}, {Type: ActionBet, Amount: 5}}
	if !actionsEqual(river.Actions, expected) {
		t.Errorf("got river actions %v, expected %v", river.Actions, expected)
	}
}

func TestAllInRunout(t *testing.T) {
	cfg := DefaultTreeConfig(Turn, 10, 10)
	cfg.SetAllBetSizes(mustSizes(t, "a", ""))
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c"))
	if err != nil {
		t.Fatal(err)
	}

	allIn := tree.Node(tree.Root().Children[1])
	runout := tree.Node(allIn.Children[1])
	if !runout.IsChance() || len(runout.Children) != 48 {
		t.Fatalf("expected river runout after all-in call, got %+v", runout)
	}
	for _, child := range runout.Children {
		if n := tree.Node(child); n.Player != PlayerShowdown || n.Board != River {
			t.Fatalf("expected showdown on river, got %+v", n)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	board := mustCards(t, "QsJh2h7c3d")
	testCases := []struct {
		name  string
		cfg   TreeConfig
		board []cards.Card
	}{
		{"zero stack", DefaultTreeConfig(River, 10, 0), board},
		{"negative stack", DefaultTreeConfig(River, 10, -5), board},
		{"zero pot", DefaultTreeConfig(River, 0, 10), board},
		{"board mismatch", DefaultTreeConfig(Flop, 10, 10), board},
		{"duplicate board", DefaultTreeConfig(River, 10, 10), mustCards(t, "QsJh2h7c")[:4:4]},
	}
	testCases[4].board = append(testCases[4].board, board[0])

	for _, tc := range testCases {
		tree, err := Build(tc.cfg, tc.board)
		if tree != nil {
			t.Errorf("%s: got tree, expected none", tc.name)
		}
		if errors.Cause(err) != ErrInvalidConfig {
			t.Errorf("%s: got error %v, expected ErrInvalidConfig", tc.name, err)
		}
	}

	cfg := DefaultTreeConfig(River, 10, 10)
	cfg.RiverBetSizes[0].Bet = []BetSize{{Kind: PrevBetRelative, Ratio: 2}}
	if _, err := Build(cfg, board); errors.Cause(err) != ErrInvalidConfig {
		t.Errorf("got error %v, expected ErrInvalidConfig", err)
	}
}

func TestNodeCodec(t *testing.T) {
	cfg := DefaultTreeConfig(River, 6, 25)
	tree, err := Build(cfg, mustCards(t, "QsJh2h7c3d"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	cfg.Encode(w)
	tree.EncodeNodes(w)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	encoded := append([]byte(nil), buf.Bytes()...)

	r := wire.NewReader(&buf)
	decodedCfg := DecodeTreeConfig(r)
	nodes := DecodeNodes(r)
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	if len(nodes) != tree.NumNodes() {
		t.Fatalf("decoded %d nodes, expected %d", len(nodes), tree.NumNodes())
	}
	decoded := &Tree{Config: decodedCfg, Nodes: nodes}
	if err := decoded.Validate(); err != nil {
		t.Error(err)
	}

	var again bytes.Buffer
	w = wire.NewWriter(&again)
	decodedCfg.Encode(w)
	decoded.EncodeNodes(w)
	if !bytes.Equal(again.Bytes(), encoded) {
		t.Error("re-encoded tree differs from original encoding")
	}
}

func TestDecodeBadAction(t *testing.T) {
	var buf bytes.Buffer
	wire.NewWriter(&buf).Tag(9)
	r := wire.NewReader(&buf)
	DecodeAction(r)

	var verr *wire.UnexpectedVariantError
	if !errors.As(r.Err(), &verr) || verr.Type != "Action" || verr.Found != 9 {
		t.Errorf("got error %v, expected unexpected Action variant 9", r.Err())
	}
}

func TestDecodeBadBetSize(t *testing.T) {
	var buf bytes.Buffer
	wire.NewWriter(&buf).Tag(5)
	r := wire.NewReader(&buf)
	DecodeBetSize(r)

	var verr *wire.UnexpectedVariantError
	if !errors.As(r.Err(), &verr) || verr.Type != "BetSize" {
		t.Errorf("got error %v, expected unexpected BetSize variant", r.Err())
	}
}

func TestDecodeBadBoardState(t *testing.T) {
	var buf bytes.Buffer
	wire.NewWriter(&buf).Tag(3)
	r := wire.NewReader(&buf)
	DecodeBoardState(r)

	var verr *wire.UnexpectedVariantError
	if !errors.As(r.Err(), &verr) || verr.Type != "BoardState" {
		t.Errorf("got error %v, expected unexpected BoardState variant", r.Err())
	}
}
