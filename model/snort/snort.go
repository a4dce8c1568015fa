// Package snort provides the "snort" model: IDS alert records in the shape
// a snort sensor reports, rendered from a handful of weighted alert
// templates with random endpoints.
package snort

import (
	"math/rand"

	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/model"
)

// alert field helpers shared by every template
func seedInt(key string) model.FieldFunc {
	return func(seed model.Seed) any { return seed[key] }
}

func alertFields(ident, clstext, msg, severity string) []model.Field {
	return []model.Field{
		{Key: "ctime", Value: seedInt("ctime")},
		{Key: "aname", Value: "snort"},
		{Key: "aclass", Value: "ids"},
		{Key: "amodel", Value: "snort"},
		{Key: "aid", Value: "{aid}"},
		{Key: "severity", Value: severity},
		{Key: "srcip", Value: seedInt("srcip_int")},
		{Key: "srcport", Value: seedInt("srcport")},
		{Key: "dstip", Value: seedInt("dstip_int")},
		{Key: "dstport", Value: seedInt("dstport")},
		{Key: "ident", Value: ident},
		{Key: "msg", Value: msg},
		{Key: "clstext", Value: clstext},
	}
}

// templates follows the distribution of a busy perimeter sensor: mostly
// scan noise, occasional high-severity payload alerts.
func templates() []model.Template {
	return []model.Template{
		{
			Weight: 100,
			Fields: alertFields(
				"122:1:1", "Attempted Information Leak",
				"(portscan) TCP Portscan from {srcip} to {dstip}",
				"medium"),
		},
		{
			Weight: 60,
			Fields: alertFields(
				"384:1:1", "Misc activity",
				"ICMP PING from {srcip}",
				"low"),
		},
		{
			Weight: 40,
			Fields: alertFields(
				"1:2013028:1", "Potential Corporate Privacy Violation",
				"ET POLICY curl User-Agent Outbound from {srcip}:{srcport}",
				"low"),
		},
		{
			Weight: 10,
			SeedFunc: func(rng *rand.Rand, seed model.Seed) model.Seed {
				// shellcode alerts target a service port
				return model.Seed{"dstport": model.RandomValidPort(rng)}
			},
			Fields: alertFields(
				"1:648:1", "Executable Code was Detected",
				"SHELLCODE x86 NOOP to {dstip}:{dstport}",
				"high"),
		},
		{
			Weight: 5,
			Fields: alertFields(
				"1:1390:1", "Attempted Administrator Privilege Gain",
				"SQL injection attempt from {srcip} against {dstip}:{dstport}",
				"high"),
		},
	}
}

// New creates a snort model instance.
func New(_ extension.Values) (any, error) {
	return model.NewTemplateModel(templates()), nil
}

// Register adds the snort model to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyModel,
		Title:       "snort",
		Description: "IDS alerts in the shape a snort sensor reports",
		New:         New,
	})
}
