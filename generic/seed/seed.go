// Package seed provides the "seed" generic extension: a --seed flag that
// makes model output reproducible by fixing the base seed of every model
// random source.
package seed

import (
	"os"
	"strconv"

	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/model"
)

// envVar overrides the default seed when the flag is not given
const envVar = "AVALON_SEED"

// Generic wires the --seed flag into the model random sources.
type Generic struct{}

// New creates the seed generic.
func New(_ extension.Values) (any, error) {
	return &Generic{}, nil
}

// PreAddArgs implements extension.Generic.
func (*Generic) PreAddArgs(_ *extension.Parser) error {
	return nil
}

// PostAddArgs implements extension.Generic.
func (*Generic) PostAddArgs(_ *extension.Parser) error {
	return nil
}

// PostParseArgs seeds the model random sources when a seed was given
// explicitly or through the environment.
func (*Generic) PostParseArgs(p *extension.Parser) error {
	if p.WasSet("seed") {
		if v, ok := p.Get("seed"); ok {
			model.SetSeed(v.(int64))
		}
		return nil
	}

	if env := os.Getenv(envVar); env != "" {
		n, err := strconv.ParseInt(env, 10, 64)
		if err == nil {
			model.SetSeed(n)
		}
	}
	return nil
}

// Register adds the seed generic and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyGeneric,
		Title:       "seed",
		Description: "reproducible model output via a fixed random seed",
		ArgsMapping: map[string]string{"seed": "value"},
		AddArguments: func(g *extension.Group) {
			g.Int64("seed", 0,
				"Fix the model random seed for reproducible output (env: AVALON_SEED)")
		},
		New: New,
	})
}
