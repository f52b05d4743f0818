package tree

import (
	"fmt"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/wire"
)

// ActionType is the discriminant of an Action.
type ActionType uint32

const (
	ActionNone ActionType = iota
	ActionFold
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
	ActionAllIn
	ActionChance
)

var actionTypeStr = [...]string{
	"None",
	"Fold",
	"Check",
	"Call",
	"Bet",
	"Raise",
	"AllIn",
	"Chance",
}

func (t ActionType) String() string {
	if int(t) >= len(actionTypeStr) {
		return fmt.Sprintf("ActionType(%d)", uint32(t))
	}
	return actionTypeStr[t]
}

// Action is one edge of the public game tree.
//
// For Bet, Raise and AllIn, Amount is the total the acting player has put
// in on the current street after taking the action. For Chance, Card is the
// community card dealt.
type Action struct {
	Type   ActionType
	Amount int32
	Card   cards.Card
}

// IsAggressive returns whether the action puts new chips at risk.
func (a Action) IsAggressive() bool {
	return a.Type == ActionBet || a.Type == ActionRaise || a.Type == ActionAllIn
}

func (a Action) String() string {
	switch a.Type {
	case ActionBet, ActionRaise, ActionAllIn:
		return fmt.Sprintf("%v(%d)", a.Type, a.Amount)
	case ActionChance:
		return fmt.Sprintf("Chance(%v)", a.Card)
	default:
		return a.Type.String()
	}
}

// Encode writes the action as a u32 discriminant followed by its payload.
func (a Action) Encode(w *wire.Writer) {
	w.Tag(uint32(a.Type))
	switch a.Type {
	case ActionBet, ActionRaise, ActionAllIn:
		w.I32(a.Amount)
	case ActionChance:
		w.U8(uint8(a.Card))
	}
}

// DecodeAction reads an Action written by Encode.
func DecodeAction(r *wire.Reader) Action {
	a := Action{Type: ActionType(r.Tag("Action", uint32(ActionChance)))}
	switch a.Type {
	case ActionBet, ActionRaise, ActionAllIn:
		a.Amount = r.I32()
	case ActionChance:
		a.Card = cards.Card(r.U8())
	}
	return a
}
