// Package avalon is an extendable, high-throughput streaming test-data
// generator. It synthesizes records that imitate real system outputs (IDS
// alerts, firewall logs, network flows) at a user-controlled rate, formats
// them into batches, optionally transforms them through mapping chains,
// and delivers them to one of many sinks.
//
// # Architecture
//
// The pipeline is a staged dataflow assembled at startup:
//
//	Model(s) -- records --> Mapping chain --> Format (batch) --> Medium --> Sink
//	    ^                                                          ^
//	    |                                                          |
//	rate/count governor                                  parallel writer pool
//
// Five extension families plug into the core through the extension
// package:
//
//   - Model: produces an unbounded lazy sequence of records
//   - Mapping: transforms or drops individual records
//   - Format: serializes a batch of records into one opaque payload
//   - Medium: delivers payloads to a sink
//   - Generic: hooks into the startup lifecycle
//
// Extensions are linked at build time through extensionregistry; each
// contributes CLI flags under its own destination namespace and is
// hydrated from the parsed arguments by the extension binder.
//
// The scheduler package runs the pipeline: it expands weighted producer
// specs into parallel workers, enforces the global rate and emitted-record
// caps through a single coordinator goroutine, and routes batches through
// a bounded writer pool (pkg/worker) so back-pressure from a slow sink
// reaches the producers.
//
// # Layout
//
//   - cmd/avalon: the command-line entry point
//   - extension, extensionregistry: the plugin contract and build-time wiring
//   - model, mapping, format, medium: the extension families and in-tree extensions
//   - scheduler: producer expansion, rate/count governors, writer pool
//   - metric: prometheus pipeline metrics
//   - errors, pkg/retry, pkg/worker: shared infrastructure
package avalon
