// Package asa provides the "asa" model: firewall connection log records in
// the shape a Cisco ASA appliance reports.
package asa

import (
	"math/rand"

	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/model"
)

func seedVal(key string) model.FieldFunc {
	return func(seed model.Seed) any { return seed[key] }
}

func asaFields(ident, severity, msg string) []model.Field {
	return []model.Field{
		{Key: "ctime", Value: seedVal("ctime")},
		{Key: "aname", Value: "asa"},
		{Key: "aclass", Value: "firewall"},
		{Key: "amodel", Value: "cisco-asa"},
		{Key: "aid", Value: "{aid}"},
		{Key: "severity", Value: severity},
		{Key: "srcip", Value: seedVal("srcip_int")},
		{Key: "srcport", Value: seedVal("srcport")},
		{Key: "dstip", Value: seedVal("dstip_int")},
		{Key: "dstport", Value: seedVal("dstport")},
		{Key: "ident", Value: ident},
		{Key: "msg", Value: msg},
	}
}

func templates() []model.Template {
	connID := func(rng *rand.Rand, seed model.Seed) model.Seed {
		return model.Seed{"conn": rng.Intn(1 << 24)}
	}

	return []model.Template{
		{
			Weight:   100,
			SeedFunc: connID,
			Fields: asaFields("302013", "low",
				"%ASA-6-302013: Built outbound TCP connection {conn} for "+
					"outside:{dstip}/{dstport} to inside:{srcip}/{srcport}"),
		},
		{
			Weight:   90,
			SeedFunc: connID,
			Fields: asaFields("302014", "low",
				"%ASA-6-302014: Teardown TCP connection {conn} for "+
					"outside:{dstip}/{dstport} to inside:{srcip}/{srcport} duration "+
					"0:01:00 bytes 4321 TCP FINs"),
		},
		{
			Weight: 30,
			Fields: asaFields("106023", "medium",
				"%ASA-4-106023: Deny tcp src outside:{srcip}/{srcport} dst "+
					"inside:{dstip}/{dstport} by access-group \"outside_access_in\""),
		},
		{
			Weight: 5,
			Fields: asaFields("106017", "high",
				"%ASA-2-106017: Deny IP due to Land Attack from {srcip} to {dstip}"),
		},
	}
}

// New creates an asa model instance.
func New(_ extension.Values) (any, error) {
	return model.NewTemplateModel(templates()), nil
}

// Register adds the asa model to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyModel,
		Title:       "asa",
		Description: "firewall connection logs in the shape a Cisco ASA reports",
		New:         New,
	})
}
