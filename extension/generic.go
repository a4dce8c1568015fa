package extension

import (
	"fmt"

	"github.com/admirito/avalon/errors"
)

// Generics instantiates every registered generic extension in hook order
// (stable, sorted by title). Generic factories run before parsing, so they
// receive no attached values; generics read parser state in their hooks.
func Generics(reg *Registry) ([]Generic, error) {
	descs := reg.Descriptors(FamilyGeneric)
	gens := make([]Generic, 0, len(descs))

	for _, d := range descs {
		inst, err := d.New(nil)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Generics", "New",
				fmt.Sprintf("instantiate generic %q", d.Title))
		}
		gen, ok := inst.(Generic)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Generics", "New",
				fmt.Sprintf("generic %q does not implement the Generic interface", d.Title))
		}
		gens = append(gens, gen)
	}
	return gens, nil
}

// HookStage names one of the three generic hook points.
type HookStage int

const (
	// HookPreAddArgs runs before any extension contributes arguments
	HookPreAddArgs HookStage = iota
	// HookPostAddArgs runs after all extensions contributed, before parsing
	HookPostAddArgs
	// HookPostParseArgs runs after parsing, before pipeline construction
	HookPostParseArgs
)

// RunHooks calls one hook stage on every generic, in order. The first error
// aborts with a GenericHookFailed wrap.
func RunHooks(gens []Generic, stage HookStage, p *Parser) error {
	for i, g := range gens {
		var err error
		switch stage {
		case HookPreAddArgs:
			err = g.PreAddArgs(p)
		case HookPostAddArgs:
			err = g.PostAddArgs(p)
		case HookPostParseArgs:
			err = g.PostParseArgs(p)
		}
		if err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: generic #%d: %w", errors.ErrGenericHookFailed, i, err),
				"RunHooks", "hook", fmt.Sprintf("stage %d", stage))
		}
	}
	return nil
}
