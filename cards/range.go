package cards

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidRange is the cause of every range-string parsing failure.
var ErrInvalidRange = errors.New("invalid range")

// Range assigns a weight in [0, 1] to each two-card hand, indexed by HandIndex.
type Range [NumHands]float32

// FullRange returns a range holding every hand with weight 1.
func FullRange() Range {
	var r Range
	for i := range r {
		r[i] = 1
	}
	return r
}

// Weight returns the weight of the hand {c1, c2}.
func (r *Range) Weight(c1, c2 Card) float32 {
	return r[HandIndex(c1, c2)]
}

// SetWeight sets the weight of the hand {c1, c2}.
func (r *Range) SetWeight(c1, c2 Card, w float32) {
	r[HandIndex(c1, c2)] = w
}

// IsEmpty returns whether no hand has positive weight.
func (r *Range) IsEmpty() bool {
	for _, w := range r {
		if w > 0 {
			return false
		}
	}
	return true
}

// NumCombos returns the sum of weights.
func (r *Range) NumCombos() float64 {
	total := 0.0
	for _, w := range r {
		total += float64(w)
	}
	return total
}

// Validate checks that every weight lies in [0, 1].
func (r *Range) Validate() error {
	for i, w := range r {
		if !(w >= 0 && w <= 1) {
			return errors.Wrapf(ErrInvalidRange, "hand %v has weight %v", HandAt(i), w)
		}
	}
	return nil
}

// ParseRange parses a comma separated list of hand groups, each optionally
// followed by ":weight". Supported groups:
//
//	AA, AKs, AKo, AK          pairs, suited, offsuit, both
//	QQ+, A2s+, K9o+           all hands from the given one up to the top
//	KK-TT, A5s-A2s            inclusive spans sharing the first rank
//	AsKs                      a single explicit combination
//
// Later groups overwrite the weights of earlier ones.
func ParseRange(s string) (Range, error) {
	var r Range
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		weight := float32(1)
		if i := strings.IndexByte(part, ':'); i >= 0 {
			w, err := strconv.ParseFloat(strings.TrimSpace(part[i+1:]), 32)
			if err != nil || w < 0 || w > 1 {
				return r, errors.Wrapf(ErrInvalidRange, "%q: bad weight", part)
			}
			weight = float32(w)
			part = strings.TrimSpace(part[:i])
		}

		hands, err := parseGroup(part)
		if err != nil {
			return r, err
		}
		for _, h := range hands {
			r[h.Index()] = weight
		}
	}

	return r, nil
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

type suitedness uint8

const (
	anySuits suitedness = iota
	suitedOnly
	offsuitOnly
)

type handClass struct {
	hi, lo uint8
	suits  suitedness
}

func parseClass(s string) (handClass, error) {
	if len(s) < 2 || len(s) > 3 {
		return handClass{}, errors.Wrapf(ErrInvalidRange, "%q", s)
	}
	r1, ok1 := parseRank(s[0])
	r2, ok2 := parseRank(s[1])
	if !ok1 || !ok2 {
		return handClass{}, errors.Wrapf(ErrInvalidRange, "%q: bad rank", s)
	}
	if r1 < r2 {
		r1, r2 = r2, r1
	}

	c := handClass{hi: r1, lo: r2}
	if len(s) == 3 {
		switch lower(s[2]) {
		case 's':
			c.suits = suitedOnly
		case 'o':
			c.suits = offsuitOnly
		default:
			return c, errors.Wrapf(ErrInvalidRange, "%q: bad suitedness", s)
		}
		if r1 == r2 {
			return c, errors.Wrapf(ErrInvalidRange, "%q: pair cannot be suited or offsuit", s)
		}
	}

	return c, nil
}

func (c handClass) hands() []Hand {
	var result []Hand
	for s1 := uint8(0); s1 < 4; s1++ {
		for s2 := uint8(0); s2 < 4; s2++ {
			if c.hi == c.lo && s2 <= s1 {
				continue
			}
			if c.suits == suitedOnly && s1 != s2 {
				continue
			}
			if c.suits == offsuitOnly && s1 == s2 {
				continue
			}
			result = append(result, NewHand(NewCard(c.hi, s1), NewCard(c.lo, s2)))
		}
	}
	return result
}

func parseGroup(s string) ([]Hand, error) {
	// Explicit combination, e.g. "AsKs".
	if len(s) == 4 {
		if c1, err := ParseCard(s[:2]); err == nil {
			c2, err := ParseCard(s[2:])
			if err != nil || c1 == c2 {
				return nil, errors.Wrapf(ErrInvalidRange, "%q: bad combination", s)
			}
			return []Hand{NewHand(c1, c2)}, nil
		}
	}

	if strings.HasSuffix(s, "+") {
		c, err := parseClass(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		top := c
		if c.hi == c.lo {
			top.hi, top.lo = 12, 12
		} else {
			top.lo = c.hi - 1
		}
		return span(c, top)
	}

	if i := strings.IndexByte(s, '-'); i >= 0 {
		from, err := parseClass(s[:i])
		if err != nil {
			return nil, err
		}
		to, err := parseClass(s[i+1:])
		if err != nil {
			return nil, err
		}
		return span(from, to)
	}

	c, err := parseClass(s)
	if err != nil {
		return nil, err
	}
	return c.hands(), nil
}

// span enumerates all classes between a and b inclusive. Pairs span by
// rank; non-pairs must share their high card and suitedness.
func span(a, b handClass) ([]Hand, error) {
	if a.suits != b.suits {
		return nil, errors.Wrapf(ErrInvalidRange, "mismatched suitedness")
	}

	var result []Hand
	switch {
	case a.hi == a.lo && b.hi == b.lo:
		lo, hi := a.hi, b.hi
		if lo > hi {
			lo, hi = hi, lo
		}
		for r := lo; r <= hi; r++ {
			result = append(result, handClass{hi: r, lo: r}.hands()...)
		}
	case a.hi == b.hi && a.hi != a.lo && b.hi != b.lo:
		lo, hi := a.lo, b.lo
		if lo > hi {
			lo, hi = hi, lo
		}
		for r := lo; r <= hi; r++ {
			result = append(result, handClass{hi: a.hi, lo: r, suits: a.suits}.hands()...)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidRange, "cannot span between unrelated hands")
	}

	return result, nil
}
