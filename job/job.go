// Package job describes a complete solver run declaratively, as read from
// TOML, YAML or JSON files and HTTP request bodies.
package job

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/timpalpant/postflop"
	"github.com/timpalpant/postflop/tree"
)

// StreetSizes overrides the bet sizes of one street. Empty IP sizes
// default to the OOP ones.
type StreetSizes struct {
	Bet     string `json:"bet" toml:"bet" yaml:"bet"`
	Raise   string `json:"raise" toml:"raise" yaml:"raise"`
	IPBet   string `json:"ip_bet" toml:"ip_bet" yaml:"ip_bet"`
	IPRaise string `json:"ip_raise" toml:"ip_raise" yaml:"ip_raise"`
	// Donk applies to the turn and river only.
	Donk string `json:"donk" toml:"donk" yaml:"donk"`
}

// Job is a game configuration plus solver settings.
type Job struct {
	OOPRange string `json:"oop_range" toml:"oop_range" yaml:"oop_range"`
	IPRange  string `json:"ip_range" toml:"ip_range" yaml:"ip_range"`
	// Board holds three to five cards, e.g. "QsJh2h".
	Board string `json:"board" toml:"board" yaml:"board"`

	StartingPot    int32   `json:"starting_pot" toml:"starting_pot" yaml:"starting_pot"`
	EffectiveStack int32   `json:"effective_stack" toml:"effective_stack" yaml:"effective_stack"`
	RakeRate       float64 `json:"rake_rate" toml:"rake_rate" yaml:"rake_rate"`
	RakeCap        float64 `json:"rake_cap" toml:"rake_cap" yaml:"rake_cap"`

	// Bet and Raise apply to both players on every street unless a
	// street override is given. Both empty selects the default sizes.
	Bet   string       `json:"bet" toml:"bet" yaml:"bet"`
	Raise string       `json:"raise" toml:"raise" yaml:"raise"`
	Flop  *StreetSizes `json:"flop,omitempty" toml:"flop" yaml:"flop,omitempty"`
	Turn  *StreetSizes `json:"turn,omitempty" toml:"turn" yaml:"turn,omitempty"`
	River *StreetSizes `json:"river,omitempty" toml:"river" yaml:"river,omitempty"`

	AddAllInThreshold   *float64 `json:"add_allin_threshold,omitempty" toml:"add_allin_threshold" yaml:"add_allin_threshold,omitempty"`
	ForceAllInThreshold *float64 `json:"force_allin_threshold,omitempty" toml:"force_allin_threshold" yaml:"force_allin_threshold,omitempty"`
	MergingThreshold    *float64 `json:"merging_threshold,omitempty" toml:"merging_threshold" yaml:"merging_threshold,omitempty"`

	Compressed    bool `json:"compressed" toml:"compressed" yaml:"compressed"`
	MaxIterations int  `json:"max_iterations" toml:"max_iterations" yaml:"max_iterations"`
	// TargetExploitability is in chips.
	TargetExploitability float64 `json:"target_exploitability" toml:"target_exploitability" yaml:"target_exploitability"`
	Parallelism          int     `json:"parallelism" toml:"parallelism" yaml:"parallelism"`
}

// Configs parses the job into the configuration structures accepted by
// postflop.Game.Init. Errors are *postflop.ConfigurationError.
func (j *Job) Configs() (postflop.CardConfig, tree.TreeConfig, error) {
	cc, tc, err := j.configs()
	if err != nil {
		return cc, tc, &postflop.ConfigurationError{Err: err}
	}
	return cc, tc, nil
}

func (j *Job) configs() (postflop.CardConfig, tree.TreeConfig, error) {
	cc, err := postflop.ParseCardConfig(j.OOPRange, j.IPRange, j.Board)
	if err != nil {
		return cc, tree.TreeConfig{}, err
	}

	tc := tree.DefaultTreeConfig(cc.InitialState(), j.StartingPot, j.EffectiveStack)
	tc.RakeRate = j.RakeRate
	tc.RakeCap = j.RakeCap
	if j.AddAllInThreshold != nil {
		tc.AddAllInThreshold = *j.AddAllInThreshold
	}
	if j.ForceAllInThreshold != nil {
		tc.ForceAllInThreshold = *j.ForceAllInThreshold
	}
	if j.MergingThreshold != nil {
		tc.MergingThreshold = *j.MergingThreshold
	}

	all, err := tree.ParseBetSizeOptions(j.Bet, j.Raise)
	if err != nil {
		return cc, tc, err
	}
	tc.SetAllBetSizes(all)

	for _, s := range []struct {
		name  string
		sizes *StreetSizes
		dst   *[2]tree.BetSizeOptions
		donk  **tree.DonkSizeOptions
	}{
		{"flop", j.Flop, &tc.FlopBetSizes, nil},
		{"turn", j.Turn, &tc.TurnBetSizes, &tc.TurnDonkSizes},
		{"river", j.River, &tc.RiverBetSizes, &tc.RiverDonkSizes},
	} {
		if s.sizes == nil {
			continue
		}
		if err := s.sizes.apply(s.dst, s.donk); err != nil {
			return cc, tc, errors.Wrap(err, s.name)
		}
	}

	return cc, tc, nil
}

func (s *StreetSizes) apply(dst *[2]tree.BetSizeOptions, donk **tree.DonkSizeOptions) error {
	oop, err := tree.ParseBetSizeOptions(s.Bet, s.Raise)
	if err != nil {
		return err
	}
	ip := oop
	if s.IPBet != "" || s.IPRaise != "" {
		if ip, err = tree.ParseBetSizeOptions(s.IPBet, s.IPRaise); err != nil {
			return errors.Wrap(err, "IP")
		}
	}
	*dst = [2]tree.BetSizeOptions{oop, ip}

	if s.Donk != "" {
		if donk == nil {
			return errors.Wrap(tree.ErrInvalidConfig, "donk sizes are only allowed on the turn and river")
		}
		if *donk, err = tree.ParseDonkSizeOptions(s.Donk); err != nil {
			return err
		}
	}
	return nil
}

// NewGame initializes and allocates a game for the job.
func (j *Job) NewGame() (*postflop.Game, error) {
	cc, tc, err := j.Configs()
	if err != nil {
		return nil, err
	}

	g := postflop.New()
	if j.Parallelism > 0 {
		g.SetParallelism(j.Parallelism)
	}
	if err := g.Init(cc, tc); err != nil {
		return nil, err
	}
	if err := g.AllocateMemory(j.Compressed); err != nil {
		return nil, err
	}
	return g, nil
}

// Load reads a job file, choosing the format by extension: .toml, .yaml,
// .yml or .json.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	j := &Job{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		_, err = toml.Decode(string(data), j)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, j)
	case ".json":
		err = json.Unmarshal(data, j)
	default:
		return nil, errors.Errorf("unknown job file extension %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return j, nil
}
