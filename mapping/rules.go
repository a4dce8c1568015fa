package mapping

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
)

// MappingPathEnv extends the search path for relative file:// mapping
// documents, colon-separated.
const MappingPathEnv = "AVALON_MAPPING_PATH"

// Rule is one ordered operation of a declarative rule mapping. Exactly the
// populated operations run, in struct order.
type Rule struct {
	// Set assigns literal values to fields.
	Set map[string]any `yaml:"set,omitempty"`
	// Rename moves fields; a missing source field is ignored.
	Rename map[string]string `yaml:"rename,omitempty"`
	// Drop removes fields.
	Drop []string `yaml:"drop,omitempty"`
	// DropRecordIfMissing drops the whole record unless all fields exist.
	DropRecordIfMissing []string `yaml:"drop_record_if_missing,omitempty"`
	// DropRecordIf drops the whole record when every listed field equals
	// the given value.
	DropRecordIf map[string]any `yaml:"drop_record_if,omitempty"`
}

// document is one YAML document of a rule file.
type document struct {
	Rules []Rule `yaml:"rules"`
}

// RuleMapping applies a declarative rule list to each record. This is the
// constrained transform surface behind file:// mapping URLs: no general
// interpreter, just field-level set/rename/drop operations.
type RuleMapping struct {
	rules []Rule
}

// NewRuleMapping builds a mapping over the given rules.
func NewRuleMapping(rules []Rule) *RuleMapping {
	return &RuleMapping{rules: rules}
}

// Map implements extension.Mapping. A nil return drops the record.
func (m *RuleMapping) Map(r extension.Record) (extension.Record, error) {
	for i := range m.rules {
		rule := &m.rules[i]

		for field, value := range rule.Set {
			r[field] = value
		}

		for from, to := range rule.Rename {
			if v, ok := r[from]; ok {
				delete(r, from)
				r[to] = v
			}
		}

		for _, field := range rule.Drop {
			delete(r, field)
		}

		for _, field := range rule.DropRecordIfMissing {
			if _, ok := r[field]; !ok {
				return nil, nil
			}
		}

		if len(rule.DropRecordIf) > 0 {
			match := true
			for field, value := range rule.DropRecordIf {
				if r[field] != value {
					match = false
					break
				}
			}
			if match {
				return nil, nil
			}
		}
	}
	return r, nil
}

// LoadURL loads a rule mapping from a file:// URL. When the file holds
// several YAML documents, the first one declaring rules wins. Relative
// paths are searched in the working directory and then along
// AVALON_MAPPING_PATH.
func LoadURL(rawURL string) (*RuleMapping, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.WrapInvalid(err, "RuleMapping", "LoadURL", "parse mapping URL")
	}
	if u.Scheme != "file" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "RuleMapping", "LoadURL",
			"unsupported mapping URL scheme "+u.Scheme)
	}

	path := u.Path
	if u.Host != "" && u.Host != "localhost" {
		// file://relative/path parses the first segment as a host
		path = filepath.Join(u.Host, u.Path)
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, errors.WrapInvalid(err, "RuleMapping", "LoadURL", "open mapping file")
	}
	defer f.Close()

	return decodeRules(f)
}

// resolvePath locates a mapping file, consulting AVALON_MAPPING_PATH for
// relative names.
func resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	for _, dir := range strings.Split(os.Getenv(MappingPathEnv), ":") {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.WrapInvalid(errors.ErrInvalidConfig, "RuleMapping", "resolvePath",
		"mapping file not found: "+path)
}

// decodeRules reads YAML documents until one declares rules.
func decodeRules(r io.Reader) (*RuleMapping, error) {
	dec := yaml.NewDecoder(r)
	for {
		var doc document
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapInvalid(err, "RuleMapping", "decodeRules", "decode mapping document")
		}
		if len(doc.Rules) > 0 {
			return NewRuleMapping(doc.Rules), nil
		}
	}
	return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "RuleMapping", "decodeRules",
		"no rules document found in mapping file")
}
