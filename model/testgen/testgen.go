// Package testgen provides the "test" model: minimal timestamped records
// for smoke-testing pipelines and sinks.
package testgen

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/admirito/avalon/extension"
)

// instance counter shared across workers so every instance gets a distinct
// _id even when producers are expanded from one spec
var idCounter atomic.Int64

// Model emits one record per call carrying an instance id and the current
// time split into seconds and microseconds.
type Model struct {
	id int64
}

// New creates a test model instance.
func New(_ extension.Values) (any, error) {
	return &Model{id: idCounter.Add(1)}, nil
}

// Next returns the next test record.
func (m *Model) Next() (extension.Record, error) {
	now := time.Now()
	return extension.Record{
		"_id": fmt.Sprintf("test%d", m.id),
		"_ts": now.Unix(),
		"_ms": int64(now.Nanosecond() / 1000),
	}, nil
}

// Register adds the test model to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyModel,
		Title:       "test",
		Description: "minimal timestamped records for pipeline smoke tests",
		New:         New,
	})
}
