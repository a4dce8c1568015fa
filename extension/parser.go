package extension

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/admirito/avalon/errors"
)

// Parser assembles the CLI surface from core flags and every registered
// extension's argument contributions, parses user input, and exposes the
// parsed destinations for the binder.
//
// Flag names use dashes on the command line; a flag's destination is its
// name with dash runs collapsed to underscores ("kafka-topic" ->
// "kafka_topic"). The descriptor prefix and mapping rules operate on
// destinations.
type Parser struct {
	fs     *flag.FlagSet
	logger *slog.Logger

	destFlag map[string]string // destination -> flag name
	flagDest map[string]string // flag name -> destination
	setIndex map[string]int    // destination -> first explicit position in args
	posArgs  []string          // positional arguments in order
	parsed   bool
}

// NewParser creates a parser for the named program.
func NewParser(name string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {} // usage is rendered by the caller
	return &Parser{
		fs:       fs,
		logger:   logger,
		destFlag: make(map[string]string),
		flagDest: make(map[string]string),
		setIndex: make(map[string]int),
	}
}

// SetOutput redirects the underlying flag set's error output.
func (p *Parser) SetOutput(w io.Writer) {
	p.fs.SetOutput(w)
}

// Core returns the argument group for non-extension flags. Core flags have
// no namespace rules.
func (p *Parser) Core() *Group {
	return &Group{parser: p}
}

// GroupFor returns the labeled argument group of a descriptor. Flags added
// through the group are checked against the descriptor's prefix and mapping
// rules; a destination outside both is reported as a binding warning and
// the flag is not attached to the extension.
func (p *Parser) GroupFor(d *Descriptor) *Group {
	return &Group{parser: p, desc: d}
}

// AddExtensionArgs contributes the argument groups of every descriptor in
// the registry, in deterministic family/title order.
func (p *Parser) AddExtensionArgs(reg *Registry) {
	for _, d := range reg.All() {
		if d.AddArguments != nil {
			d.AddArguments(p.GroupFor(d))
		}
	}
}

// Parse parses the argument list (not including the program name). Flags
// and positional arguments may interleave, the way the model-spec grammar
// expects. Parse records the first position at which each flag was
// explicitly set, for auto-media selection and mapping-order decisions.
func (p *Parser) Parse(args []string) error {
	flags, positionals := p.splitArgs(args)

	if err := p.fs.Parse(flags); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return err
		}
		return errors.WrapInvalid(err, "Parser", "Parse", "argument parsing")
	}
	p.parsed = true
	p.posArgs = append(positionals, p.fs.Args()...)

	for i, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		dest, ok := p.flagDest[name]
		if !ok {
			continue
		}
		if _, seen := p.setIndex[dest]; !seen {
			p.setIndex[dest] = i
		}
	}
	return nil
}

// splitArgs separates interleaved flags from positional arguments. A
// known non-boolean flag given as "--name value" keeps its value token;
// everything after a bare "--" is positional.
func (p *Parser) splitArgs(args []string) (flags, positionals []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			positionals = append(positionals, arg)
			continue
		}

		flags = append(flags, arg)

		name := strings.TrimLeft(arg, "-")
		if strings.ContainsRune(name, '=') {
			continue
		}
		if f := p.fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positionals
}

// isBoolFlag reports whether a flag takes no value token.
func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// Args returns the positional arguments in their command-line order.
func (p *Parser) Args() []string {
	return p.posArgs
}

// Get returns the parsed value of a destination.
func (p *Parser) Get(dest string) (any, bool) {
	name, ok := p.destFlag[dest]
	if !ok {
		return nil, false
	}
	f := p.fs.Lookup(name)
	if f == nil {
		return nil, false
	}
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return f.Value.String(), true
	}
	return getter.Get(), true
}

// WasSet reports whether the destination's flag was explicitly given.
func (p *Parser) WasSet(dest string) bool {
	_, ok := p.setIndex[dest]
	return ok
}

// Values harvests the attached values for a descriptor: destinations in its
// args mapping attach under the mapped name, destinations carrying its
// prefix attach with the prefix stripped, everything else is ignored.
func (p *Parser) Values(d *Descriptor) Values {
	prefix := d.Prefix()
	vals := make(Values)

	for dest := range p.destFlag {
		if mapped, ok := d.ArgsMapping[dest]; ok {
			if v, found := p.Get(dest); found {
				vals[mapped] = v
			}
			continue
		}
		if prefix != "" && strings.HasPrefix(dest, prefix) {
			if v, found := p.Get(dest); found {
				vals[dest[len(prefix):]] = v
			}
		}
	}
	return vals
}

// FirstSetIndex returns the earliest command-line position at which any
// destination attached to the descriptor was explicitly set, or MaxInt if
// none were. The medium whose namespace was populated first wins
// auto-selection.
func (p *Parser) FirstSetIndex(d *Descriptor) int {
	prefix := d.Prefix()
	first := math.MaxInt

	for dest, idx := range p.setIndex {
		claimed := false
		if _, ok := d.ArgsMapping[dest]; ok {
			claimed = true
		} else if prefix != "" && strings.HasPrefix(dest, prefix) {
			claimed = true
		}
		if claimed && idx < first {
			first = idx
		}
	}
	return first
}

// VisitAll visits all defined flags in lexical order.
func (p *Parser) VisitAll(fn func(f *flag.Flag)) {
	p.fs.VisitAll(fn)
}

// PrintDefaults writes the flag defaults to the parser's output.
func (p *Parser) PrintDefaults() {
	p.fs.PrintDefaults()
}

// Group is a labeled argument group owned by one descriptor (or the core).
// Registration methods mirror the stdlib flag set but record destinations
// and enforce the namespace rules.
type Group struct {
	parser *Parser
	desc   *Descriptor
}

// Title returns the owning extension title, or "" for the core group.
func (g *Group) Title() string {
	if g.desc == nil {
		return ""
	}
	return g.desc.Title
}

// register records the flag/destination pair, warning when an extension
// contributes a destination outside its namespace. Returns false when the
// flag name is already taken (the first definition wins; the extension can
// still claim the shared destination through its args mapping).
func (g *Group) register(name string) bool {
	p := g.parser
	dest := DestName(name)

	if _, exists := p.flagDest[name]; exists {
		p.logger.Warn("flag already defined, keeping first definition",
			"flag", name,
			"extension", g.Title())
		return false
	}

	if g.desc != nil {
		prefix := g.desc.Prefix()
		_, mapped := g.desc.ArgsMapping[dest]
		if !mapped && (prefix == "" || !strings.HasPrefix(dest, prefix)) {
			err := errors.WrapInvalid(errors.ErrArgBinding, "Group", "register",
				fmt.Sprintf("destination %q of %s %q", dest, g.desc.Family, g.desc.Title))
			p.logger.Warn("argument registered but not attached to its extension",
				"flag", name,
				"extension", g.desc.Title,
				"error", err)
		}
	}

	p.flagDest[name] = dest
	p.destFlag[dest] = name
	return true
}

// String adds a string flag to the group.
func (g *Group) String(name, value, usage string) {
	if g.register(name) {
		g.parser.fs.String(name, value, usage)
	}
}

// Int adds an int flag to the group.
func (g *Group) Int(name string, value int, usage string) {
	if g.register(name) {
		g.parser.fs.Int(name, value, usage)
	}
}

// Int64 adds an int64 flag to the group.
func (g *Group) Int64(name string, value int64, usage string) {
	if g.register(name) {
		g.parser.fs.Int64(name, value, usage)
	}
}

// Bool adds a bool flag to the group.
func (g *Group) Bool(name string, value bool, usage string) {
	if g.register(name) {
		g.parser.fs.Bool(name, value, usage)
	}
}

// Float64 adds a float64 flag to the group.
func (g *Group) Float64(name string, value float64, usage string) {
	if g.register(name) {
		g.parser.fs.Float64(name, value, usage)
	}
}

// Duration adds a time.Duration flag to the group.
func (g *Group) Duration(name string, value time.Duration, usage string) {
	if g.register(name) {
		g.parser.fs.Duration(name, value, usage)
	}
}

// StringSlice adds a repeatable string flag to the group; each occurrence
// appends to the slice.
func (g *Group) StringSlice(name, usage string) {
	if g.register(name) {
		g.parser.fs.Var(&stringSliceValue{}, name, usage)
	}
}

// stringSliceValue collects repeated flag occurrences.
type stringSliceValue struct {
	values []string
}

func (s *stringSliceValue) String() string {
	return strings.Join(s.values, ",")
}

func (s *stringSliceValue) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}

func (s *stringSliceValue) Get() any {
	return append([]string(nil), s.values...)
}

// Values holds the argument values attached to one extension instance,
// keyed by the attached (prefix-stripped or mapped) name.
type Values map[string]any

// Has reports whether a key was attached.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// String returns the string value for key, or def when absent.
func (v Values) String(key, def string) string {
	if s, ok := v[key].(string); ok {
		return s
	}
	return def
}

// Int returns the int value for key, or def when absent.
func (v Values) Int(key string, def int) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Int64 returns the int64 value for key, or def when absent.
func (v Values) Int64(key string, def int64) int64 {
	switch n := v[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return def
}

// Bool returns the bool value for key, or def when absent.
func (v Values) Bool(key string, def bool) bool {
	if b, ok := v[key].(bool); ok {
		return b
	}
	return def
}

// Float64 returns the float64 value for key, or def when absent.
func (v Values) Float64(key string, def float64) float64 {
	if f, ok := v[key].(float64); ok {
		return f
	}
	return def
}

// Duration returns the duration value for key, or def when absent.
func (v Values) Duration(key string, def time.Duration) time.Duration {
	if d, ok := v[key].(time.Duration); ok {
		return d
	}
	return def
}

// Strings returns the string-slice value for key, or nil when absent.
func (v Values) Strings(key string) []string {
	if s, ok := v[key].([]string); ok {
		return s
	}
	return nil
}
