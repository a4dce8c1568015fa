// Package mapping provides record transforms: the chain applied between a
// model and its format, the cast mappings converting time values, and the
// declarative rule mappings loaded from file:// URLs.
package mapping

import (
	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
)

// Chain is an ordered list of mappings applied to each record. Per-producer
// inline mappings come first (declared order), then global --map mappings in
// command-line order, then flag-enabled registered mappings.
type Chain []extension.Mapping

// Apply runs the record through the chain. A nil record return means the
// record was dropped by one of the mappings.
func (c Chain) Apply(r extension.Record) (extension.Record, error) {
	for _, m := range c {
		var err error
		r, err = m.Map(r)
		if err != nil {
			return nil, errors.Wrap(err, "Chain", "Apply", "mapping")
		}
		if r == nil {
			return nil, nil
		}
	}
	return r, nil
}

// Func adapts a plain function to the Mapping interface.
type Func func(extension.Record) (extension.Record, error)

// Map implements extension.Mapping.
func (f Func) Map(r extension.Record) (extension.Record, error) {
	return f(r)
}
