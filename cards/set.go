package cards

import (
	"math/bits"
	"strings"
)

// Set represents an unordered set of distinct cards as a 52-bit mask.
type Set uint64

// NewSetFromCards creates a new Set from the given slice of Cards.
// NotDealt entries are ignored.
func NewSetFromCards(cards []Card) Set {
	result := Set(0)
	for _, card := range cards {
		if card.IsValid() {
			result.Add(card)
		}
	}

	return result
}

// IsEmpty returns whether this Set contains any Cards.
func (s Set) IsEmpty() bool {
	return s == 0
}

// Contains returns whether the Set contains the given Card.
func (s Set) Contains(card Card) bool {
	return s&(1<<card) != 0
}

// Add inserts card into the Set.
func (s *Set) Add(card Card) {
	*s |= 1 << card
}

// Remove deletes card from the Set.
func (s *Set) Remove(card Card) {
	*s &^= 1 << card
}

// Overlaps returns whether the two sets share any card.
func (s Set) Overlaps(other Set) bool {
	return s&other != 0
}

// Union returns the cards in either set.
func (s Set) Union(other Set) Set {
	return s | other
}

// Len returns the number of cards in the Set.
func (s Set) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Iter calls cb for each card in ascending order.
func (s Set) Iter(cb func(card Card)) {
	for s != 0 {
		i := bits.TrailingZeros64(uint64(s))
		cb(Card(i))
		s &= s - 1
	}
}

// AsSlice returns the cards in ascending order.
func (s Set) AsSlice() []Card {
	result := make([]Card, 0, s.Len())
	s.Iter(func(card Card) {
		result = append(result, card)
	})
	return result
}

func (s Set) String() string {
	var b strings.Builder
	s.Iter(func(card Card) {
		b.WriteString(card.String())
	})
	return b.String()
}
