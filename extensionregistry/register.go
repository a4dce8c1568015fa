// Package extensionregistry wires every in-tree extension into a registry.
// This is the build-time replacement for filesystem discovery: the binary
// links exactly the set registered here, and third-party distributions add
// their own Register calls alongside these.
package extensionregistry

import (
	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/format"
	"github.com/admirito/avalon/mapping"

	"github.com/admirito/avalon/generic/metricsrv"
	"github.com/admirito/avalon/generic/seed"

	"github.com/admirito/avalon/model/asa"
	"github.com/admirito/avalon/model/rflow"
	"github.com/admirito/avalon/model/snort"
	"github.com/admirito/avalon/model/testgen"

	"github.com/admirito/avalon/medium/directory"
	"github.com/admirito/avalon/medium/file"
	"github.com/admirito/avalon/medium/grpcstream"
	"github.com/admirito/avalon/medium/httppost"
	"github.com/admirito/avalon/medium/kafka"
	"github.com/admirito/avalon/medium/natspub"
	"github.com/admirito/avalon/medium/sqldb"
	"github.com/admirito/avalon/medium/syslog"
	"github.com/admirito/avalon/medium/websocket"
)

// RegisterAll registers the complete in-tree extension set:
//
// Models:
//   - test (pipeline smoke tests)
//   - rflow (network flow export)
//   - snort (IDS alerts)
//   - asa (firewall connection logs)
//
// Mappings:
//   - dt-to-iso, dt-to-timestamp (time value casts)
//
// Formats:
//   - json-lines, csv, headered-csv, batch-headered-csv, sql-rows
//
// Mediums:
//   - file, directory, http, kafka, sql, grpc, nats, syslog, websocket
//
// Generics:
//   - seed (reproducible runs), metrics (prometheus endpoint)
func RegisterAll(reg *extension.Registry) error {
	registrars := []func(*extension.Registry) error{
		testgen.Register,
		rflow.Register,
		snort.Register,
		asa.Register,

		mapping.RegisterCast,
		format.Register,

		file.Register,
		directory.Register,
		httppost.Register,
		kafka.Register,
		sqldb.Register,
		grpcstream.Register,
		natspub.Register,
		syslog.Register,
		websocket.Register,

		seed.Register,
		metricsrv.Register,
	}

	for _, register := range registrars {
		if err := register(reg); err != nil {
			return errors.Wrap(err, "extensionregistry", "RegisterAll", "extension registration")
		}
	}
	return nil
}
