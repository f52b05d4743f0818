package tree

import (
	"math"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
)

// streetState is the betting state carried while expanding one street.
type streetState struct {
	board BoardState
	dealt cards.Set
	// base is each player's contribution when the street began.
	base int32
	// numBets counts the opening bet and every raise on this street.
	numBets int32
	// lastRaise is the size of the last bet or raise increment.
	lastRaise     int32
	aggressor     int8
	prevAggressor int8
}

type builder struct {
	cfg   *TreeConfig
	nodes []Node
}

// Build expands the full betting tree for cfg starting from the given
// community cards. len(board) must match cfg.InitialState. Nothing is
// returned on error.
func Build(cfg TreeConfig, board []cards.Card) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(board) != cfg.InitialState.NumBoardCards() {
		return nil, errors.Wrapf(ErrInvalidConfig, "%v subgame needs %d board cards, got %d",
			cfg.InitialState, cfg.InitialState.NumBoardCards(), len(board))
	}
	for _, c := range board {
		if !c.IsValid() {
			return nil, errors.Wrapf(ErrInvalidConfig, "invalid board card %v", c)
		}
	}
	dealt := cards.NewSetFromCards(board)
	if dealt.Len() != len(board) {
		return nil, errors.Wrapf(ErrInvalidConfig, "duplicate board cards in %v", board)
	}

	b := &builder{cfg: &cfg}
	b.decision(streetState{
		board:         cfg.InitialState,
		dealt:         dealt,
		aggressor:     -1,
		prevAggressor: -1,
	}, PlayerOOP, [2]int32{})

	t := &Tree{
		Config: cfg,
		Board:  append([]cards.Card(nil), board...),
		Nodes:  b.nodes,
	}
	glog.V(1).Infof("Built %v tree with %d nodes (%d decision nodes)",
		cfg.InitialState, t.NumNodes(), t.NumDecisionNodes())
	return t, nil
}

func (b *builder) add(n Node) int32 {
	b.nodes = append(b.nodes, n)
	return int32(len(b.nodes) - 1)
}

func (b *builder) terminal(marker uint8, board BoardState, amount int32) int32 {
	return b.add(Node{Player: marker, Board: board, Amount: amount})
}

func (b *builder) decision(st streetState, player uint8, contrib [2]int32) int32 {
	opp := 1 - player
	idx := b.add(Node{
		Player: player,
		Board:  st.board,
		Amount: min(contrib[0], contrib[1]),
	})

	streetStack := b.cfg.EffectiveStack - st.base
	mine := contrib[player] - st.base
	theirs := contrib[opp] - st.base
	pot := b.cfg.StartingPot + contrib[0] + contrib[1]

	var actions []Action
	var children []int32
	if theirs == mine {
		actions = append(actions, Action{Type: ActionCheck})
		if player == PlayerOOP {
			children = append(children, b.decision(st, opp, contrib))
		} else {
			children = append(children, b.endStreet(st, contrib))
		}

		sizes := b.cfg.BetSizes(st.board, player).Bet
		if player == PlayerOOP && st.prevAggressor == int8(PlayerIP) {
			if donk := b.cfg.DonkSizes(st.board); donk != nil {
				sizes = donk.Donk
			}
		}

		for _, to := range b.wagers(sizes, st, pot, 0, 0, streetStack, false) {
			a := Action{Type: ActionBet, Amount: to}
			if to == streetStack {
				a.Type = ActionAllIn
			}
			next := st
			next.numBets = 1
			next.lastRaise = to
			next.aggressor = int8(player)
			c := contrib
			c[player] = st.base + to
			actions = append(actions, a)
			children = append(children, b.decision(next, opp, c))
		}
	} else {
		actions = append(actions, Action{Type: ActionFold})
		children = append(children, b.terminal(foldMarker(player), st.board, contrib[player]))

		actions = append(actions, Action{Type: ActionCall})
		called := contrib
		called[player] = contrib[opp]
		children = append(children, b.endStreet(st, called))

		sizes := b.cfg.BetSizes(st.board, player)
		canRaise := theirs < streetStack &&
			(sizes.RaiseLimit <= 0 || st.numBets-1 < sizes.RaiseLimit)
		if canRaise {
			for _, to := range b.wagers(sizes.Raise, st, pot, theirs-mine, theirs, streetStack, true) {
				a := Action{Type: ActionRaise, Amount: to}
				if to == streetStack {
					a.Type = ActionAllIn
				}
				next := st
				next.numBets++
				next.lastRaise = to - theirs
				next.aggressor = int8(player)
				c := contrib
				c[player] = st.base + to
				actions = append(actions, a)
				children = append(children, b.decision(next, opp, c))
			}
		}
	}

	b.nodes[idx].Actions = actions
	b.nodes[idx].Children = children
	return idx
}

func foldMarker(player uint8) uint8 {
	if player == PlayerOOP {
		return PlayerFoldOOP
	}
	return PlayerFoldIP
}

// endStreet is called once both players have matched contributions.
func (b *builder) endStreet(st streetState, contrib [2]int32) int32 {
	if st.board == River {
		return b.terminal(PlayerShowdown, River, contrib[0])
	}
	return b.chance(st, contrib)
}

func (b *builder) chance(st streetState, contrib [2]int32) int32 {
	idx := b.add(Node{Player: PlayerChance, Board: st.board, Amount: contrib[0]})
	allIn := contrib[0] >= b.cfg.EffectiveStack

	var actions []Action
	var children []int32
	for c := cards.Card(0); c < cards.NumCards; c++ {
		if st.dealt.Contains(c) {
			continue
		}

		next := streetState{
			board:         st.board + 1,
			dealt:         st.dealt,
			base:          contrib[0],
			aggressor:     -1,
			prevAggressor: st.aggressor,
		}
		next.dealt.Add(c)

		var child int32
		if allIn {
			child = b.endStreet(next, contrib)
		} else {
			child = b.decision(next, PlayerOOP, contrib)
		}
		actions = append(actions, Action{Type: ActionChance, Card: c})
		children = append(children, child)
	}

	b.nodes[idx].Actions = actions
	b.nodes[idx].Children = children
	return idx
}

// wagers returns the distinct street-level amounts produced by sizes,
// ascending. An amount equal to streetStack is an all-in.
func (b *builder) wagers(sizes []BetSize, st streetState, pot, toCall, theirs, streetStack int32, raise bool) []int32 {
	minTo := int32(1)
	if raise {
		minTo = theirs + max(st.lastRaise, 1)
	}

	var kept []int32
	for _, size := range sizes {
		to, ok := b.wagerAmount(size, st, pot, toCall, theirs, streetStack, raise)
		if !ok {
			continue
		}
		if to < minTo {
			to = minTo
		}
		if to > streetStack {
			to = streetStack
		}
		if float64(streetStack-to) < b.cfg.ForceAllInThreshold*float64(streetStack) {
			to = streetStack
		}
		if to <= theirs {
			continue
		}
		if !b.merges(kept, to) {
			kept = append(kept, to)
		}
	}

	if len(kept) > 0 {
		largest := kept[0]
		hasAllIn := false
		for _, to := range kept {
			largest = max(largest, to)
			hasAllIn = hasAllIn || to == streetStack
		}
		if !hasAllIn && float64(largest)*b.cfg.AddAllInThreshold >= float64(streetStack) {
			kept = append(kept, streetStack)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	return kept
}

// merges returns whether to is within the merging threshold of an amount
// that was already kept.
func (b *builder) merges(kept []int32, to int32) bool {
	for _, k := range kept {
		if k == to {
			return true
		}
		diff := math.Abs(float64(k - to))
		if diff <= b.cfg.MergingThreshold*float64(max(k, to)) {
			return true
		}
	}
	return false
}

// chips rounds a wager to whole chips, saturating at limit so that
// oversized or non-finite amounts become all-ins rather than overflow.
func chips(x float64, limit int32) int32 {
	if !(x < float64(limit)) {
		return limit
	}
	return int32(math.Round(x))
}

func (b *builder) wagerAmount(size BetSize, st streetState, pot, toCall, theirs, streetStack int32, raise bool) (int32, bool) {
	switch size.Kind {
	case PotRelative:
		if raise {
			return chips(float64(theirs)+float64(pot+toCall)*size.Ratio, streetStack), true
		}
		return chips(float64(pot)*size.Ratio, streetStack), true
	case PrevBetRelative:
		if !raise {
			return 0, false
		}
		return chips(float64(theirs)*size.Ratio, streetStack), true
	case Additive:
		if raise {
			if size.Cap > 0 && st.numBets-1 >= size.Cap {
				return 0, false
			}
			return chips(float64(theirs)+float64(size.Amount), streetStack), true
		}
		return chips(float64(size.Amount), streetStack), true
	case Geometric:
		streets := size.Streets
		if streets == 0 {
			streets = int32(River-st.board) + 1
		}
		p := float64(pot + toCall)
		remaining := float64(streetStack - theirs)
		ratio := (math.Pow(1+2*remaining/p, 1/float64(streets)) - 1) / 2
		if size.Max > 0 && ratio > size.Max {
			ratio = size.Max
		}
		return chips(float64(theirs)+p*ratio, streetStack), true
	case AllIn:
		return streetStack, true
	}
	return 0, false
}
