// Package extension defines the plugin contract binding Avalon's five
// extension families together: models produce records, mappings transform
// them, formats serialize batches, mediums deliver batches to sinks, and
// generics hook into the startup lifecycle.
//
// Extensions are linked at build time: each in-tree extension package
// exposes a Register function that adds its descriptors to a Registry, and
// the extensionregistry package wires the full set. A descriptor carries the
// family, a unique title, the argument namespace rules, and a factory.
//
// # Argument namespaces
//
// Every descriptor owns a destination namespace derived from its title:
// a flag named "kafka-topic" has the destination "kafka_topic", which the
// binder attaches to the kafka medium as "topic" (prefix stripped). A
// descriptor may also claim destinations outside its prefix through
// ArgsMapping, e.g. mapping the shared "file_name" destination to its own
// "path" value. Factories receive the attached values and populate typed
// config structs.
package extension
