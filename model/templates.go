package model

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/admirito/avalon/extension"
)

// Seed is the per-record substitution context for templates.
type Seed map[string]any

// FieldFunc computes a field value from the seed.
type FieldFunc func(seed Seed) any

// Field is one ordered key/value pair of a template. Value may be a
// literal, a FieldFunc, or a string with {name} placeholders resolved
// against the seed.
type Field struct {
	Key   string
	Value any
}

// Template is one weighted record shape. SeedFunc, when set, extends the
// default seed before the fields render.
type Template struct {
	Weight   int
	SeedFunc func(rng *rand.Rand, seed Seed) Seed
	Fields   []Field
}

// TemplateModel generates records by randomly selecting among weighted
// templates and rendering each field against a per-record seed, the way
// IDS and firewall appliances emit a handful of message shapes with
// varying endpoints.
type TemplateModel struct {
	rng         *rand.Rand
	templates   []Template
	totalWeight int

	// DisableDefaultSeeds skips the common log seed values (ctime, aid,
	// endpoints) for models that provide a fully custom seed.
	DisableDefaultSeeds bool
}

// NewTemplateModel builds a model over the given weighted templates.
// Templates with weight < 1 count as weight 1.
func NewTemplateModel(templates []Template) *TemplateModel {
	total := 0
	for i := range templates {
		if templates[i].Weight < 1 {
			templates[i].Weight = 1
		}
		total += templates[i].Weight
	}
	return &TemplateModel{
		rng:         NewRand(),
		templates:   templates,
		totalWeight: total,
	}
}

// defaultSeed provides the common log requirements: creation time, analyzer
// id, and random source/destination endpoints.
func (m *TemplateModel) defaultSeed() Seed {
	seed := Seed{}
	if m.DisableDefaultSeeds {
		return seed
	}

	now := time.Now()
	seed["ctime"] = float64(now.UnixNano()) / float64(time.Second)
	seed["aid"] = os.Getpid()

	srcInt, srcIP := RandomIP(m.rng, 100)
	dstInt, dstIP := RandomIP(m.rng, 100)
	seed["srcip_int"] = srcInt
	seed["srcip"] = srcIP
	seed["dstip_int"] = dstInt
	seed["dstip"] = dstIP
	seed["srcport"] = RandomPort(m.rng, 2, 0.4)
	seed["dstport"] = RandomPort(m.rng, 2, 0.4)
	return seed
}

// pick selects a template according to the weights.
func (m *TemplateModel) pick() *Template {
	n := m.rng.Intn(m.totalWeight)
	for i := range m.templates {
		if n < m.templates[i].Weight {
			return &m.templates[i]
		}
		n -= m.templates[i].Weight
	}
	return &m.templates[len(m.templates)-1]
}

// Next renders one record.
func (m *TemplateModel) Next() (extension.Record, error) {
	seed := m.defaultSeed()
	tpl := m.pick()

	if tpl.SeedFunc != nil {
		for k, v := range tpl.SeedFunc(m.rng, seed) {
			seed[k] = v
		}
	}

	record := make(extension.Record, len(tpl.Fields))
	for _, f := range tpl.Fields {
		switch v := f.Value.(type) {
		case FieldFunc:
			record[f.Key] = v(seed)
		case func(Seed) any:
			record[f.Key] = v(seed)
		case string:
			record[f.Key] = Expand(v, seed)
		default:
			record[f.Key] = v
		}
	}
	return record, nil
}

// Rand exposes the model's random source for seed functions that need
// extra sampling.
func (m *TemplateModel) Rand() *rand.Rand {
	return m.rng
}

// Expand substitutes {name} placeholders in s with the seed values. Unknown
// names expand to an empty string; "{{" and "}}" escape literal braces.
func Expand(s string, seed Seed) string {
	if !strings.ContainsRune(s, '{') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 16)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+1 : i+end]
			b.WriteString(formatSeedValue(seed[name]))
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func formatSeedValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return ""
	}
}
