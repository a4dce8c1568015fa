package extension

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/admirito/avalon/errors"
)

// Family identifies one of the five extension families.
type Family int

const (
	// FamilyModel produces records
	FamilyModel Family = iota
	// FamilyMapping transforms records
	FamilyMapping
	// FamilyFormat serializes batches
	FamilyFormat
	// FamilyMedium delivers batches to sinks
	FamilyMedium
	// FamilyGeneric hooks into the startup lifecycle
	FamilyGeneric
)

// String returns the family name
func (f Family) String() string {
	switch f {
	case FamilyModel:
		return "model"
	case FamilyMapping:
		return "mapping"
	case FamilyFormat:
		return "format"
	case FamilyMedium:
		return "medium"
	case FamilyGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Factory creates an extension instance from its attached argument values.
// The returned instance must implement the family's interface (Model,
// Mapping, Format, Medium, or Generic).
type Factory func(v Values) (any, error)

// Descriptor is a registry entry for one extension.
type Descriptor struct {
	Family      Family
	Title       string
	Description string

	// ArgsPrefix is the destination prefix this extension owns. Empty means
	// the default: the title with non-identifier runes mapped to '_' plus a
	// trailing '_' (e.g. "json-lines" -> "json_lines_").
	ArgsPrefix string

	// ArgsMapping claims destinations outside the prefix: keys are parsed
	// destination names, values are the names they attach under.
	ArgsMapping map[string]string

	// AddArguments contributes the extension's flags to its labeled group.
	// May be nil for extensions without options.
	AddArguments func(g *Group)

	// New builds an instance from the post-parse attached values.
	New Factory
}

// Prefix returns the effective destination prefix for the descriptor.
func (d *Descriptor) Prefix() string {
	if d.ArgsPrefix != "" {
		return d.ArgsPrefix
	}
	if d.Title == "" {
		return ""
	}
	return DestName(d.Title) + "_"
}

// DestName normalizes a flag or title to its destination name: every run
// of non-identifier runes becomes a single underscore.
func DestName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		valid := r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if valid {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return b.String()
}

// Registry holds the descriptors of all registered extensions, keyed by
// (family, title). Registration happens once at startup; lookups after that
// are read-only, so a single mutex suffices.
type Registry struct {
	mu       sync.Mutex
	families map[Family]map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		families: make(map[Family]map[string]*Descriptor),
	}
}

// Register adds a descriptor. Titles must be unique per family; a collision
// returns ErrDuplicateExtension.
func (r *Registry) Register(d Descriptor) error {
	if d.Title == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Registry", "Register", fmt.Sprintf("%s extension with empty title", d.Family))
	}
	if d.New == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Registry", "Register", fmt.Sprintf("%s %q has no factory", d.Family, d.Title))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byTitle := r.families[d.Family]
	if byTitle == nil {
		byTitle = make(map[string]*Descriptor)
		r.families[d.Family] = byTitle
	}

	if _, exists := byTitle[d.Title]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateExtension,
			"Registry", "Register", fmt.Sprintf("%s %q already registered", d.Family, d.Title))
	}

	desc := d
	byTitle[d.Title] = &desc
	return nil
}

// Lookup returns the descriptor for (family, title).
func (r *Registry) Lookup(f Family, title string) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.families[f][title]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrUnknownExtension,
			"Registry", "Lookup", fmt.Sprintf("%s %q", f, title))
	}
	return d, nil
}

// Has reports whether (family, title) is registered.
func (r *Registry) Has(f Family, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.families[f][title]
	return ok
}

// Titles returns the sorted titles of a family.
func (r *Registry) Titles(f Family) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	titles := make([]string, 0, len(r.families[f]))
	for title := range r.families[f] {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

// Descriptors returns a family's descriptors sorted by title. This is the
// hook ordering for generics: registration order is stable by title.
func (r *Registry) Descriptors(f Family) []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	descs := make([]*Descriptor, 0, len(r.families[f]))
	for _, d := range r.families[f] {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Title < descs[j].Title })
	return descs
}

// All returns every descriptor across all families, sorted by family then
// title. Used by the parser to assemble argument groups deterministically.
func (r *Registry) All() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	var descs []*Descriptor
	for _, byTitle := range r.families {
		for _, d := range byTitle {
			descs = append(descs, d)
		}
	}
	sort.Slice(descs, func(i, j int) bool {
		if descs[i].Family != descs[j].Family {
			return descs[i].Family < descs[j].Family
		}
		return descs[i].Title < descs[j].Title
	})
	return descs
}
