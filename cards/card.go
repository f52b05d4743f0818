package cards

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidCard is the cause of every card-string parsing failure.
var ErrInvalidCard = errors.New("invalid card")

// Card identifies one of the 52 cards of a standard deck as 4*rank + suit,
// where rank 0 is a deuce and rank 12 is an ace, and suits are ordered
// clubs, diamonds, hearts, spades.
type Card uint8

// NumCards is the size of the deck.
const NumCards = 52

// NotDealt marks a community card slot that has not been dealt yet.
const NotDealt Card = 0xFF

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// NewCard returns the card with the given rank (0..12) and suit (0..3).
func NewCard(rank, suit uint8) Card {
	return Card(4*rank + suit)
}

// Rank returns 0 (deuce) through 12 (ace).
func (c Card) Rank() uint8 {
	return uint8(c) / 4
}

// Suit returns 0 (clubs) through 3 (spades).
func (c Card) Suit() uint8 {
	return uint8(c) % 4
}

// IsValid returns whether c names one of the 52 cards.
func (c Card) IsValid() bool {
	return c < NumCards
}

// String implements Stringer.
func (c Card) String() string {
	if c == NotDealt {
		return "-"
	}
	if !c.IsValid() {
		return "??"
	}
	return string([]byte{rankChars[c.Rank()], suitChars[c.Suit()]})
}

func parseRank(b byte) (uint8, bool) {
	i := strings.IndexByte(rankChars, upper(b))
	if i < 0 {
		return 0, false
	}
	return uint8(i), true
}

func parseSuit(b byte) (uint8, bool) {
	i := strings.IndexByte(suitChars, lower(b))
	if i < 0 {
		return 0, false
	}
	return uint8(i), true
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// ParseCard parses a two-character card such as "As" or "td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, errors.Wrapf(ErrInvalidCard, "%q", s)
	}
	rank, ok := parseRank(s[0])
	if !ok {
		return 0, errors.Wrapf(ErrInvalidCard, "%q: bad rank", s)
	}
	suit, ok := parseSuit(s[1])
	if !ok {
		return 0, errors.Wrapf(ErrInvalidCard, "%q: bad suit", s)
	}
	return NewCard(rank, suit), nil
}

// ParseCards parses a run of concatenated cards ("QsJh2h"), optionally
// separated by whitespace or commas. Duplicates are rejected.
func ParseCards(s string) ([]Card, error) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == ',' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if len(s)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidCard, "%q: odd length", s)
	}

	var seen Set
	result := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, err
		}
		if seen.Contains(c) {
			return nil, errors.Wrapf(ErrInvalidCard, "%v appears twice", c)
		}
		seen.Add(c)
		result = append(result, c)
	}

	return result, nil
}

// ParseFlop parses exactly three distinct cards.
func ParseFlop(s string) ([3]Card, error) {
	var flop [3]Card
	cs, err := ParseCards(s)
	if err != nil {
		return flop, err
	}
	if len(cs) != 3 {
		return flop, errors.Wrapf(ErrInvalidCard, "flop %q has %d cards, expected 3", s, len(cs))
	}
	copy(flop[:], cs)
	return flop, nil
}

// ParseOptionalCard parses a single card, mapping "" and "-" to NotDealt.
func ParseOptionalCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return NotDealt, nil
	}
	return ParseCard(s)
}
