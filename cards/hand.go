package cards

// NumHands is the number of distinct two-card starting hands.
const NumHands = NumCards * (NumCards - 1) / 2

// Hand is an unordered pair of distinct cards, stored low card first.
type Hand [2]Card

var (
	handIndex [NumCards][NumCards]uint16
	handCards [NumHands]Hand
)

func init() {
	i := 0
	for c1 := Card(0); c1 < NumCards; c1++ {
		for c2 := c1 + 1; c2 < NumCards; c2++ {
			handIndex[c1][c2] = uint16(i)
			handIndex[c2][c1] = uint16(i)
			handCards[i] = Hand{c1, c2}
			i++
		}
	}
}

// NewHand orders the two cards.
func NewHand(c1, c2 Card) Hand {
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return Hand{c1, c2}
}

// HandIndex returns the position of the hand {c1, c2} in a Range.
// c1 and c2 must be distinct valid cards.
func HandIndex(c1, c2 Card) int {
	return int(handIndex[c1][c2])
}

// HandAt is the inverse of HandIndex.
func HandAt(i int) Hand {
	return handCards[i]
}

// Index returns the position of h in a Range.
func (h Hand) Index() int {
	return HandIndex(h[0], h[1])
}

// Set returns the two cards as a Set.
func (h Hand) Set() Set {
	return Set(1<<h[0] | 1<<h[1])
}

// String renders the higher card first, e.g. "AsKd".
func (h Hand) String() string {
	return h[1].String() + h[0].String()
}
