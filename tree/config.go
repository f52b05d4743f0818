package tree

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop/internal/wire"
)

// ErrInvalidConfig is the cause of every TreeConfig validation failure.
var ErrInvalidConfig = errors.New("invalid tree configuration")

// BoardState is the street a node belongs to.
type BoardState uint32

const (
	Flop BoardState = iota
	Turn
	River
)

var boardStateStr = [...]string{"Flop", "Turn", "River"}

func (b BoardState) String() string {
	if int(b) >= len(boardStateStr) {
		return fmt.Sprintf("BoardState(%d)", uint32(b))
	}
	return boardStateStr[b]
}

// NumBoardCards returns the number of community cards visible on b.
func (b BoardState) NumBoardCards() int {
	return 3 + int(b)
}

func (b BoardState) Encode(w *wire.Writer) {
	w.Tag(uint32(b))
}

func DecodeBoardState(r *wire.Reader) BoardState {
	return BoardState(r.Tag("BoardState", uint32(River)))
}

// TreeConfig declares the betting structure of a subgame.
type TreeConfig struct {
	// InitialState is the street the subgame starts on.
	InitialState BoardState
	// StartingPot is the pot at the start of the subgame.
	StartingPot int32
	// EffectiveStack is the smaller of the two stacks behind.
	EffectiveStack int32
	// RakeRate is the fraction of every won pot taken as rake, up to RakeCap.
	RakeRate float64
	RakeCap  float64
	// Bet sizes per street, indexed by player (0 = OOP, 1 = IP).
	FlopBetSizes  [2]BetSizeOptions
	TurnBetSizes  [2]BetSizeOptions
	RiverBetSizes [2]BetSizeOptions
	// Optional out-of-position lead sizes.
	TurnDonkSizes  *DonkSizeOptions
	RiverDonkSizes *DonkSizeOptions
	// AddAllInThreshold appends an all-in when the largest sized wager
	// times this factor reaches the stack.
	AddAllInThreshold float64
	// ForceAllInThreshold replaces a wager with all-in when it leaves less
	// than this fraction of the street stack behind.
	ForceAllInThreshold float64
	// MergingThreshold drops a wager within this relative distance of an
	// earlier declared one.
	MergingThreshold float64
}

// DefaultTreeConfig returns a configuration with the default bet sizes on
// every street and the usual thresholds. Pot and stack must still be set.
func DefaultTreeConfig(initial BoardState, pot, stack int32) TreeConfig {
	sizes := DefaultBetSizeOptions()
	return TreeConfig{
		InitialState:        initial,
		StartingPot:         pot,
		EffectiveStack:      stack,
		FlopBetSizes:        [2]BetSizeOptions{sizes, sizes},
		TurnBetSizes:        [2]BetSizeOptions{sizes, sizes},
		RiverBetSizes:       [2]BetSizeOptions{sizes, sizes},
		AddAllInThreshold:   1.5,
		ForceAllInThreshold: 0.15,
		MergingThreshold:    0.1,
	}
}

// SetAllBetSizes uses the same options for both players on every street.
func (c *TreeConfig) SetAllBetSizes(o BetSizeOptions) {
	c.FlopBetSizes = [2]BetSizeOptions{o, o}
	c.TurnBetSizes = [2]BetSizeOptions{o, o}
	c.RiverBetSizes = [2]BetSizeOptions{o, o}
}

// BetSizes returns the options for player on street b.
func (c *TreeConfig) BetSizes(b BoardState, player uint8) BetSizeOptions {
	switch b {
	case Flop:
		return c.FlopBetSizes[player]
	case Turn:
		return c.TurnBetSizes[player]
	default:
		return c.RiverBetSizes[player]
	}
}

// DonkSizes returns the lead sizes for street b, or nil.
func (c *TreeConfig) DonkSizes(b BoardState) *DonkSizeOptions {
	switch b {
	case Turn:
		return c.TurnDonkSizes
	case River:
		return c.RiverDonkSizes
	}
	return nil
}

// Validate checks the configuration without building anything.
func (c *TreeConfig) Validate() error {
	if c.InitialState > River {
		return errors.Wrapf(ErrInvalidConfig, "initial state %v", c.InitialState)
	}
	if c.StartingPot <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "starting pot must be positive, got %d", c.StartingPot)
	}
	if c.EffectiveStack <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "effective stack must be positive, got %d", c.EffectiveStack)
	}
	if !(c.RakeRate >= 0 && c.RakeRate <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "rake rate %v outside [0, 1]", c.RakeRate)
	}
	if !(c.RakeCap >= 0) {
		return errors.Wrapf(ErrInvalidConfig, "rake cap %v is negative", c.RakeCap)
	}
	if !(c.AddAllInThreshold >= 0) {
		return errors.Wrapf(ErrInvalidConfig, "add all-in threshold %v is negative", c.AddAllInThreshold)
	}
	if !(c.ForceAllInThreshold >= 0 && c.ForceAllInThreshold < 1) {
		return errors.Wrapf(ErrInvalidConfig, "force all-in threshold %v outside [0, 1)", c.ForceAllInThreshold)
	}
	if !(c.MergingThreshold >= 0) {
		return errors.Wrapf(ErrInvalidConfig, "merging threshold %v is negative", c.MergingThreshold)
	}

	for _, street := range []BoardState{Flop, Turn, River} {
		for player := uint8(0); player < 2; player++ {
			o := c.BetSizes(street, player)
			if err := o.validate(); err != nil {
				return errors.Wrapf(ErrInvalidConfig, "%v %v: %v", street, playerStr[player], err)
			}
		}
		if d := c.DonkSizes(street); d != nil {
			for _, b := range d.Donk {
				if err := b.validate(false); err != nil {
					return errors.Wrapf(ErrInvalidConfig, "%v donk: %v", street, err)
				}
			}
		}
	}

	return nil
}

// Encode writes the configuration fields in declaration order.
func (c *TreeConfig) Encode(w *wire.Writer) {
	c.InitialState.Encode(w)
	w.I32(c.StartingPot)
	w.I32(c.EffectiveStack)
	w.F64(c.RakeRate)
	w.F64(c.RakeCap)
	for _, sizes := range [][2]BetSizeOptions{c.FlopBetSizes, c.TurnBetSizes, c.RiverBetSizes} {
		sizes[0].Encode(w)
		sizes[1].Encode(w)
	}
	for _, d := range []*DonkSizeOptions{c.TurnDonkSizes, c.RiverDonkSizes} {
		w.Bool(d != nil)
		if d != nil {
			d.Encode(w)
		}
	}
	w.F64(c.AddAllInThreshold)
	w.F64(c.ForceAllInThreshold)
	w.F64(c.MergingThreshold)
}

// DecodeTreeConfig reads a TreeConfig written by Encode.
func DecodeTreeConfig(r *wire.Reader) TreeConfig {
	var c TreeConfig
	c.InitialState = DecodeBoardState(r)
	c.StartingPot = r.I32()
	c.EffectiveStack = r.I32()
	c.RakeRate = r.F64()
	c.RakeCap = r.F64()
	for _, sizes := range []*[2]BetSizeOptions{&c.FlopBetSizes, &c.TurnBetSizes, &c.RiverBetSizes} {
		sizes[0] = DecodeBetSizeOptions(r)
		sizes[1] = DecodeBetSizeOptions(r)
	}
	for _, d := range []**DonkSizeOptions{&c.TurnDonkSizes, &c.RiverDonkSizes} {
		if r.Bool("Option<DonkSizeOptions>") {
			opts := DecodeDonkSizeOptions(r)
			*d = &opts
		}
	}
	c.AddAllInThreshold = r.F64()
	c.ForceAllInThreshold = r.F64()
	c.MergingThreshold = r.F64()
	return c
}
