package postflop

import (
	"math"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/cards"
	"github.com/timpalpant/postflop/internal/wire"
	"github.com/timpalpant/postflop/tree"
)

// CardConfig holds the players' ranges and the known community cards.
type CardConfig struct {
	// Range[0] is the out-of-position player, Range[1] in position.
	Range [2]cards.Range
	Flop  [3]cards.Card
	// Turn and River are cards.NotDealt when unknown.
	Turn  cards.Card
	River cards.Card
}

// ParseCardConfig builds a CardConfig from range strings and a board of
// three to five cards.
func ParseCardConfig(oopRange, ipRange, board string) (CardConfig, error) {
	c := CardConfig{Turn: cards.NotDealt, River: cards.NotDealt}
	for p, s := range [2]string{oopRange, ipRange} {
		r, err := cards.ParseRange(s)
		if err != nil {
			return c, errors.Wrapf(err, "%s range", playerName(p))
		}
		c.Range[p] = r
	}

	bs, err := cards.ParseCards(board)
	if err != nil {
		return c, err
	}
	if len(bs) < 3 || len(bs) > 5 {
		return c, errors.Wrapf(cards.ErrInvalidCard, "board %q has %d cards, expected 3 to 5", board, len(bs))
	}
	copy(c.Flop[:], bs)
	if len(bs) > 3 {
		c.Turn = bs[3]
	}
	if len(bs) > 4 {
		c.River = bs[4]
	}
	return c, nil
}

// Validate checks the cards for validity and overlap and both ranges for
// weights outside [0, 1].
func (c *CardConfig) Validate() error {
	for _, card := range c.Flop {
		if !card.IsValid() {
			return errors.Wrapf(cards.ErrInvalidCard, "flop card %v", card)
		}
	}
	if c.Turn != cards.NotDealt && !c.Turn.IsValid() {
		return errors.Wrapf(cards.ErrInvalidCard, "turn card %v", c.Turn)
	}
	if c.River != cards.NotDealt && !c.River.IsValid() {
		return errors.Wrapf(cards.ErrInvalidCard, "river card %v", c.River)
	}
	if c.Turn == cards.NotDealt && c.River != cards.NotDealt {
		return errors.Wrap(cards.ErrInvalidCard, "river is dealt but turn is not")
	}

	board := c.Board()
	if cards.NewSetFromCards(board).Len() != len(board) {
		return errors.Wrapf(cards.ErrInvalidCard, "board %v contains duplicates", board)
	}

	for p := range c.Range {
		if err := c.Range[p].Validate(); err != nil {
			return errors.Wrapf(err, "%s range", playerName(p))
		}
	}
	return nil
}

// InitialState returns the street implied by the dealt cards.
func (c *CardConfig) InitialState() tree.BoardState {
	switch {
	case c.River != cards.NotDealt:
		return tree.River
	case c.Turn != cards.NotDealt:
		return tree.Turn
	default:
		return tree.Flop
	}
}

// Board returns the dealt community cards in order.
func (c *CardConfig) Board() []cards.Card {
	board := append([]cards.Card(nil), c.Flop[:]...)
	if c.Turn != cards.NotDealt {
		board = append(board, c.Turn)
	}
	if c.River != cards.NotDealt {
		board = append(board, c.River)
	}
	return board
}

func (c *CardConfig) Encode(w *wire.Writer) {
	for p := range c.Range {
		for _, weight := range c.Range[p] {
			w.F32(weight)
		}
	}
	for _, card := range c.Flop {
		w.U8(uint8(card))
	}
	w.U8(uint8(c.Turn))
	w.U8(uint8(c.River))
}

func DecodeCardConfig(r *wire.Reader) CardConfig {
	var c CardConfig
	for p := range c.Range {
		for i := range c.Range[p] {
			c.Range[p][i] = r.F32()
		}
	}
	for i := range c.Flop {
		c.Flop[i] = cards.Card(r.U8())
	}
	c.Turn = cards.Card(r.U8())
	c.River = cards.Card(r.U8())
	return c
}

// BunchingData holds precomputed card-removal adjustments for the cards
// folded by players who left the hand before the subgame. Factors[p][i]
// scales player p's initial weight for the hand with range index i.
type BunchingData struct {
	Flop    [3]cards.Card
	Factors [2][cards.NumHands]float32
}

// Validate checks the factors and that the data was computed for flop.
func (b *BunchingData) Validate(flop [3]cards.Card) error {
	if cards.NewSetFromCards(b.Flop[:]) != cards.NewSetFromCards(flop[:]) {
		return errors.Errorf("bunching data computed for flop %v, game flop is %v", b.Flop, flop)
	}
	for p := range b.Factors {
		for i, f := range b.Factors[p] {
			if !(f >= 0) || math.IsInf(float64(f), 1) {
				return errors.Errorf("bunching factor %v for %v is invalid", f, cards.HandAt(i))
			}
		}
	}
	return nil
}

func (b *BunchingData) Encode(w *wire.Writer) {
	for _, card := range b.Flop {
		w.U8(uint8(card))
	}
	for p := range b.Factors {
		for _, f := range b.Factors[p] {
			w.F32(f)
		}
	}
}

func DecodeBunchingData(r *wire.Reader) *BunchingData {
	b := &BunchingData{}
	for i := range b.Flop {
		b.Flop[i] = cards.Card(r.U8())
	}
	for p := range b.Factors {
		for i := range b.Factors[p] {
			b.Factors[p][i] = r.F32()
		}
	}
	return b
}

func playerName(p int) string {
	return tree.PlayerString(uint8(p))
}
