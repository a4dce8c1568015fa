package main

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/mapping"
	"github.com/admirito/avalon/scheduler"
)

// pipeline is the assembled run configuration: expanded producers and the
// selected medium.
type pipeline struct {
	producers   []scheduler.Producer
	medium      extension.Medium
	formatTitle string
	mediumTitle string
}

// assemblePipeline expands the producer specs into workers, builds each
// worker's mapping chain and format instance, and instantiates the
// selected medium.
func assemblePipeline(
	reg *extension.Registry,
	parser *extension.Parser,
	cfg *CLIConfig,
	logger *slog.Logger,
) (*pipeline, error) {
	tokens := parser.Args()
	if len(tokens) == 0 {
		tokens = []string{"test"}
	}

	specs, err := scheduler.ParseSpecs(tokens)
	if err != nil {
		return nil, err
	}

	formatTitle, mediumTitle := resolveOutputs(reg, parser, cfg)

	formatDesc, err := reg.Lookup(extension.FamilyFormat, formatTitle)
	if err != nil {
		return nil, err
	}
	mediumDesc, err := reg.Lookup(extension.FamilyMedium, mediumTitle)
	if err != nil {
		return nil, err
	}

	producers, err := expandProducers(reg, parser, cfg, specs, formatDesc)
	if err != nil {
		return nil, err
	}

	mediumInst, err := mediumDesc.New(parser.Values(mediumDesc))
	if err != nil {
		return nil, err
	}
	m, ok := mediumInst.(extension.Medium)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "assemblePipeline", "medium",
			fmt.Sprintf("medium %q does not implement the Medium interface", mediumTitle))
	}

	logger.Debug("pipeline assembled",
		"specs", len(specs),
		"producers", len(producers),
		"format", formatTitle,
		"media", mediumTitle)

	return &pipeline{
		producers:   producers,
		medium:      m,
		formatTitle: formatTitle,
		mediumTitle: mediumTitle,
	}, nil
}

// resolveOutputs decides the format and medium titles. --textlog selects
// the syslog/json-lines combination unless either flag was given
// explicitly; with no medium selected, the medium whose arguments appeared
// earliest on the command line wins, and stdout is the fallback.
func resolveOutputs(reg *extension.Registry, parser *extension.Parser, cfg *CLIConfig) (string, string) {
	formatTitle := cfg.OutputFormat
	mediumTitle := cfg.OutputMedia

	if cfg.Textlog {
		if !parser.WasSet("output_format") {
			formatTitle = "json-lines"
		}
		if mediumTitle == "" {
			mediumTitle = "syslog"
		}
	}

	if mediumTitle == "" {
		mediumTitle = autoSelectMedium(reg, parser)
	}
	return formatTitle, mediumTitle
}

// autoSelectMedium picks the medium whose declared argument namespace was
// populated first on the command line, stdout's file medium when none was.
func autoSelectMedium(reg *extension.Registry, parser *extension.Parser) string {
	best := ""
	bestIndex := math.MaxInt

	for _, d := range reg.Descriptors(extension.FamilyMedium) {
		if idx := parser.FirstSetIndex(d); idx < bestIndex {
			best = d.Title
			bestIndex = idx
		}
	}
	if best == "" {
		return "file"
	}
	return best
}

// expandProducers creates the per-worker model, chain, and format
// instances. A spec of count N becomes N workers sharing the spec's weight
// evenly; instances are never shared between workers.
func expandProducers(
	reg *extension.Registry,
	parser *extension.Parser,
	cfg *CLIConfig,
	specs []scheduler.ProducerSpec,
	formatDesc *extension.Descriptor,
) ([]scheduler.Producer, error) {
	var producers []scheduler.Producer

	for _, spec := range specs {
		modelDesc, err := reg.Lookup(extension.FamilyModel, spec.Title)
		if err != nil {
			return nil, err
		}

		weight := float64(spec.Weight) / float64(spec.Count)

		for i := 0; i < spec.Count; i++ {
			modelInst, err := modelDesc.New(parser.Values(modelDesc))
			if err != nil {
				return nil, err
			}
			m, ok := modelInst.(extension.Model)
			if !ok {
				return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
					"expandProducers", "model",
					fmt.Sprintf("model %q does not implement the Model interface", spec.Title))
			}

			chain, err := buildChain(reg, parser, cfg, spec.MappingURIs)
			if err != nil {
				return nil, err
			}

			formatInst, err := formatDesc.New(parser.Values(formatDesc))
			if err != nil {
				return nil, err
			}
			f, ok := formatInst.(extension.Format)
			if !ok {
				return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
					"expandProducers", "format",
					fmt.Sprintf("format %q does not implement the Format interface", formatDesc.Title))
			}

			producers = append(producers, scheduler.Producer{
				Title:  spec.Title,
				Weight: weight,
				Model:  m,
				Chain:  chain,
				Format: f,
			})
		}
	}

	return producers, nil
}

// buildChain composes one worker's mapping chain: per-producer inline
// mappings first in declared order, then global --map mappings in
// command-line order, then registered mappings enabled through their own
// flags. Every worker gets its own instances.
func buildChain(
	reg *extension.Registry,
	parser *extension.Parser,
	cfg *CLIConfig,
	inlineURIs []string,
) (mapping.Chain, error) {
	var chain mapping.Chain

	for _, uri := range inlineURIs {
		m, err := mapping.LoadURL(uri)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
	}

	for _, entry := range cfg.Maps {
		m, err := resolveMapping(reg, parser, entry)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
	}

	for _, d := range reg.Descriptors(extension.FamilyMapping) {
		vals := parser.Values(d)
		if !vals.Bool("enable", false) {
			continue
		}
		inst, err := d.New(vals)
		if err != nil {
			return nil, err
		}
		m, ok := inst.(extension.Mapping)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "buildChain", "mapping",
				fmt.Sprintf("mapping %q does not implement the Mapping interface", d.Title))
		}
		chain = append(chain, m)
	}

	return chain, nil
}

// resolveMapping turns one --map entry into an instance: a file:// URL
// loads a declarative rule document, anything else must be a registered
// mapping title.
func resolveMapping(reg *extension.Registry, parser *extension.Parser, entry string) (extension.Mapping, error) {
	if len(entry) >= 7 && entry[:7] == "file://" {
		return mapping.LoadURL(entry)
	}

	d, err := reg.Lookup(extension.FamilyMapping, entry)
	if err != nil {
		return nil, err
	}
	inst, err := d.New(parser.Values(d))
	if err != nil {
		return nil, err
	}
	m, ok := inst.(extension.Mapping)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "resolveMapping", "mapping",
			fmt.Sprintf("mapping %q does not implement the Mapping interface", entry))
	}
	return m, nil
}
