package tree

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/internal/wire"
)

// ErrInvalidBetSize is the cause of every bet-size parsing or validation
// failure.
var ErrInvalidBetSize = errors.New("invalid bet size")

// BetSizeKind is the discriminant of a BetSize rule.
type BetSizeKind uint32

const (
	// PotRelative sizes a wager as a fraction of the pot.
	PotRelative BetSizeKind = iota
	// PrevBetRelative sizes a raise as a multiple of the bet faced.
	PrevBetRelative
	// Additive adds a fixed number of chips, optionally capped by a
	// number of raises.
	Additive
	// Geometric picks the fraction that gets all-in over a number of
	// streets with equal pot-relative wagers.
	Geometric
	// AllIn wagers the whole remaining stack.
	AllIn
)

var betSizeKindStr = [...]string{
	"PotRelative",
	"PrevBetRelative",
	"Additive",
	"Geometric",
	"AllIn",
}

func (k BetSizeKind) String() string {
	if int(k) >= len(betSizeKindStr) {
		return fmt.Sprintf("BetSizeKind(%d)", uint32(k))
	}
	return betSizeKindStr[k]
}

// BetSize is one rule of a street's bet-size abstraction.
type BetSize struct {
	Kind BetSizeKind
	// PotRelative, PrevBetRelative: the fraction or multiple.
	Ratio float64
	// Additive: chips added, and the raise count after which the rule no
	// longer applies (0 for no cap).
	Amount int32
	Cap    int32
	// Geometric: number of streets (0 for all remaining streets) and the
	// largest allowed pot fraction (0 for no limit).
	Streets int32
	Max     float64
}

// String renders the rule in the same syntax ParseBetSizes accepts.
func (b BetSize) String() string {
	switch b.Kind {
	case PotRelative:
		return formatFloat(b.Ratio*100) + "%"
	case PrevBetRelative:
		return formatFloat(b.Ratio) + "x"
	case Additive:
		if b.Cap > 0 {
			return fmt.Sprintf("%dc%dr", b.Amount, b.Cap)
		}
		return fmt.Sprintf("%dc", b.Amount)
	case Geometric:
		s := "e"
		if b.Streets > 0 {
			s = strconv.Itoa(int(b.Streets)) + s
		}
		if b.Max > 0 {
			s += formatFloat(b.Max*100) + "%"
		}
		return s
	case AllIn:
		return "a"
	}
	return b.Kind.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (b BetSize) validate(raise bool) error {
	switch b.Kind {
	case PotRelative:
		if !(b.Ratio > 0) || math.IsInf(b.Ratio, 0) {
			return errors.Wrapf(ErrInvalidBetSize, "%v: ratio must be positive", b)
		}
	case PrevBetRelative:
		if !raise {
			return errors.Wrapf(ErrInvalidBetSize, "%v: only valid for raises", b)
		}
		if !(b.Ratio > 1) || math.IsInf(b.Ratio, 0) {
			return errors.Wrapf(ErrInvalidBetSize, "%v: multiple must exceed 1", b)
		}
	case Additive:
		if b.Amount <= 0 || b.Cap < 0 {
			return errors.Wrapf(ErrInvalidBetSize, "%v: amount must be positive", b)
		}
	case Geometric:
		if b.Streets < 0 || b.Streets > 3 || !(b.Max >= 0) || math.IsInf(b.Max, 0) {
			return errors.Wrapf(ErrInvalidBetSize, "%v: bad geometric parameters", b)
		}
	case AllIn:
	default:
		return errors.Wrapf(ErrInvalidBetSize, "unknown kind %v", b.Kind)
	}
	return nil
}

// Encode writes the rule as a u32 discriminant followed by its payload.
func (b BetSize) Encode(w *wire.Writer) {
	w.Tag(uint32(b.Kind))
	switch b.Kind {
	case PotRelative, PrevBetRelative:
		w.F64(b.Ratio)
	case Additive:
		w.I32(b.Amount)
		w.I32(b.Cap)
	case Geometric:
		w.I32(b.Streets)
		w.F64(b.Max)
	}
}

// DecodeBetSize reads a BetSize written by Encode.
func DecodeBetSize(r *wire.Reader) BetSize {
	b := BetSize{Kind: BetSizeKind(r.Tag("BetSize", uint32(AllIn)))}
	switch b.Kind {
	case PotRelative, PrevBetRelative:
		b.Ratio = r.F64()
	case Additive:
		b.Amount = r.I32()
		b.Cap = r.I32()
	case Geometric:
		b.Streets = r.I32()
		b.Max = r.F64()
	}
	return b
}

func encodeBetSizes(w *wire.Writer, sizes []BetSize) {
	w.Len(len(sizes))
	for _, s := range sizes {
		s.Encode(w)
	}
}

func decodeBetSizes(r *wire.Reader) []BetSize {
	n := r.Len()
	var sizes []BetSize
	for i := 0; i < n && r.Err() == nil; i++ {
		sizes = append(sizes, DecodeBetSize(r))
	}
	return sizes
}

// BetSizeOptions is one player's abstraction for one street.
type BetSizeOptions struct {
	Bet   []BetSize
	Raise []BetSize
	// RaiseLimit caps the number of raises after the opening bet of a
	// street. Zero or negative means no limit.
	RaiseLimit int32
}

// DefaultBetSizeOptions returns the 60%, 100% and all-in ladder with 2.5x
// raises.
func DefaultBetSizeOptions() BetSizeOptions {
	return BetSizeOptions{
		Bet: []BetSize{
			{Kind: PotRelative, Ratio: 0.6},
			{Kind: PotRelative, Ratio: 1},
			{Kind: AllIn},
		},
		Raise: []BetSize{
			{Kind: PrevBetRelative, Ratio: 2.5},
		},
	}
}

func (o BetSizeOptions) validate() error {
	for _, b := range o.Bet {
		if err := b.validate(false); err != nil {
			return err
		}
	}
	for _, b := range o.Raise {
		if err := b.validate(true); err != nil {
			return err
		}
	}
	return nil
}

func (o BetSizeOptions) Encode(w *wire.Writer) {
	encodeBetSizes(w, o.Bet)
	encodeBetSizes(w, o.Raise)
	w.I32(o.RaiseLimit)
}

func DecodeBetSizeOptions(r *wire.Reader) BetSizeOptions {
	var o BetSizeOptions
	o.Bet = decodeBetSizes(r)
	o.Raise = decodeBetSizes(r)
	o.RaiseLimit = r.I32()
	return o
}

// DonkSizeOptions replaces the out-of-position player's opening bet sizes
// on the turn or river when the in-position player was the last aggressor
// on the previous street.
type DonkSizeOptions struct {
	Donk []BetSize
}

func (o DonkSizeOptions) Encode(w *wire.Writer) {
	encodeBetSizes(w, o.Donk)
}

func DecodeDonkSizeOptions(r *wire.Reader) DonkSizeOptions {
	return DonkSizeOptions{Donk: decodeBetSizes(r)}
}

// ParseBetSizes parses a comma separated list of rules:
//
//	50%       pot relative
//	2.5x      multiple of the bet faced (raises only)
//	100c      additive chips; 100c3r stops applying after 3 raises
//	e         geometric over the remaining streets; 2e over two streets;
//	          3e200% caps the pot fraction at 200%
//	a         all-in
func ParseBetSizes(s string, raise bool) ([]BetSize, error) {
	var result []BetSize
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}

		b, err := parseBetSize(tok)
		if err != nil {
			return nil, err
		}
		if err := b.validate(raise); err != nil {
			return nil, err
		}
		result = append(result, b)
	}

	return result, nil
}

func parseBetSize(tok string) (BetSize, error) {
	bad := func(reason string) (BetSize, error) {
		return BetSize{}, errors.Wrapf(ErrInvalidBetSize, "%q: %s", tok, reason)
	}

	switch {
	case tok == "a":
		return BetSize{Kind: AllIn}, nil
	case strings.HasSuffix(tok, "%") && !strings.Contains(tok, "e"):
		f, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
		if err != nil {
			return bad("bad percentage")
		}
		return BetSize{Kind: PotRelative, Ratio: f / 100}, nil
	case strings.HasSuffix(tok, "x"):
		f, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
		if err != nil {
			return bad("bad multiple")
		}
		return BetSize{Kind: PrevBetRelative, Ratio: f}, nil
	case strings.HasSuffix(tok, "c") || strings.HasSuffix(tok, "r"):
		body := tok
		raiseCap := 0
		if strings.HasSuffix(body, "r") {
			i := strings.IndexByte(body, 'c')
			if i < 0 {
				return bad("missing chip amount")
			}
			n, err := strconv.ParseInt(body[i+1:len(body)-1], 10, 32)
			if err != nil {
				return bad("bad raise cap")
			}
			raiseCap = int(n)
			body = body[:i+1]
		}
		n, err := strconv.ParseInt(body[:len(body)-1], 10, 32)
		if err != nil {
			return bad("bad chip amount")
		}
		return BetSize{Kind: Additive, Amount: int32(n), Cap: int32(raiseCap)}, nil
	case strings.Contains(tok, "e"):
		i := strings.IndexByte(tok, 'e')
		b := BetSize{Kind: Geometric}
		if i > 0 {
			n, err := strconv.Atoi(tok[:i])
			if err != nil {
				return bad("bad street count")
			}
			b.Streets = int32(n)
		}
		if rest := tok[i+1:]; rest != "" {
			if !strings.HasSuffix(rest, "%") {
				return bad("geometric cap must be a percentage")
			}
			f, err := strconv.ParseFloat(rest[:len(rest)-1], 64)
			if err != nil {
				return bad("bad geometric cap")
			}
			b.Max = f / 100
		}
		return b, nil
	}

	return bad("unrecognized")
}

// ParseBetSizeOptions parses one player's street abstraction. An empty bet
// string selects DefaultBetSizeOptions; an empty raise string allows no
// sized raises.
func ParseBetSizeOptions(bet, raise string) (BetSizeOptions, error) {
	if strings.TrimSpace(bet) == "" && strings.TrimSpace(raise) == "" {
		return DefaultBetSizeOptions(), nil
	}

	var o BetSizeOptions
	var err error
	if o.Bet, err = ParseBetSizes(bet, false); err != nil {
		return o, errors.Wrap(err, "bet sizes")
	}
	if o.Raise, err = ParseBetSizes(raise, true); err != nil {
		return o, errors.Wrap(err, "raise sizes")
	}
	return o, nil
}

// ParseDonkSizeOptions returns nil for an empty string.
func ParseDonkSizeOptions(s string) (*DonkSizeOptions, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	sizes, err := ParseBetSizes(s, false)
	if err != nil {
		return nil, errors.Wrap(err, "donk sizes")
	}
	return &DonkSizeOptions{Donk: sizes}, nil
}
