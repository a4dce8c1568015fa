// Package scheduler runs the generation pipeline: it expands producer
// specs into weighted workers, governs the global rate and emitted count,
// interposes mapping chains between models and formats, and routes batches
// through a bounded writer pool into the medium.
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/admirito/avalon/errors"
)

// specPattern matches "[count]title[weight][{uri[,uri]*}]", e.g.
// "10snort1000{file:///rules.yml}". Titles are letters, underscores, and
// dashes, so the trailing digits are unambiguously the weight.
var specPattern = regexp.MustCompile(`^(\d*)([A-Za-z_][A-Za-z_-]*)(\d*)(?:\{([^{}]*)\})?$`)

// ProducerSpec is one parsed model-spec token: Count parallel instances of
// the model Title sharing the spec's Weight, with the inline mapping URIs
// applied to this producer only.
type ProducerSpec struct {
	Count       int
	Title       string
	Weight      int
	MappingURIs []string
}

// ParseSpec parses one model-spec token. Omitted count and weight default
// to 1; both must be at least 1.
func ParseSpec(token string) (ProducerSpec, error) {
	m := specPattern.FindStringSubmatch(token)
	if m == nil {
		return ProducerSpec{}, errors.WrapInvalid(errors.ErrInvalidSpec,
			"ParseSpec", "match", fmt.Sprintf("malformed producer spec %q", token))
	}

	spec := ProducerSpec{Count: 1, Title: m[2], Weight: 1}

	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return ProducerSpec{}, errors.WrapInvalid(errors.ErrInvalidSpec,
				"ParseSpec", "count", fmt.Sprintf("bad instance count in %q", token))
		}
		spec.Count = n
	}

	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil || n < 1 {
			return ProducerSpec{}, errors.WrapInvalid(errors.ErrInvalidSpec,
				"ParseSpec", "weight", fmt.Sprintf("bad weight in %q", token))
		}
		spec.Weight = n
	}

	if m[4] != "" {
		for _, uri := range strings.Split(m[4], ",") {
			if uri = strings.TrimSpace(uri); uri != "" {
				spec.MappingURIs = append(spec.MappingURIs, uri)
			}
		}
	}

	return spec, nil
}

// ParseSpecs parses a token list, splitting tokens that arrived as one
// whitespace-joined argument.
func ParseSpecs(tokens []string) ([]ProducerSpec, error) {
	var specs []ProducerSpec
	for _, token := range tokens {
		for _, field := range strings.Fields(token) {
			spec, err := ParseSpec(field)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}
