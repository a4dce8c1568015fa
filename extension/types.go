package extension

import "context"

// Record is a single generated item: a mapping from field names to dynamic
// values (strings, numbers, booleans, nested maps, lists, nil). A record
// lives from Model.Next through the mapping chain into a format's batch
// buffer and is discarded after serialization.
type Record = map[string]any

// Model produces an unbounded lazy sequence of records. Each producer
// worker owns its own instance; implementations need not be safe for
// concurrent use.
type Model interface {
	Next() (Record, error)
}

// Mapping transforms a single record. Returning a nil record drops it from
// the stream; the scheduler accounts for drops when enforcing the emitted
// count.
type Mapping interface {
	Map(Record) (Record, error)
}

// Format serializes size consecutive records drawn from src into one
// payload. The src is a model-shaped proxy whose Next yields post-mapping
// records. size == 0 must return an empty payload that mediums accept as a
// no-op. Record order within the payload is the Next call order.
type Format interface {
	Batch(src Model, size int) (Payload, error)
}

// Medium delivers formatted payloads to a sink. Write is called
// concurrently by the writer pool; the medium owns its connection state and
// retries transient failures per its own policy before returning an error.
type Medium interface {
	Open(ctx context.Context) error
	Write(ctx context.Context, p Payload) error
	Close() error
}

// Generic is a lifecycle-only extension family observing parser assembly
// and post-parse state. Hooks run in registration order (stable, sorted by
// title); an error from any hook aborts startup.
type Generic interface {
	PreAddArgs(p *Parser) error
	PostAddArgs(p *Parser) error
	PostParseArgs(p *Parser) error
}

// Payload is one serialized batch: opaque text or bytes, or raw rows for
// mediums that consume records directly (the SQL medium). Exactly one of
// Text, Bytes, or Rows is populated; Records is the number of records the
// payload represents.
type Payload struct {
	Text    string
	Bytes   []byte
	Rows    []Record
	Records int
}

// Empty reports whether the payload carries no data.
func (p Payload) Empty() bool {
	return p.Text == "" && len(p.Bytes) == 0 && len(p.Rows) == 0
}

// Data returns the payload as bytes regardless of its declared encoding.
// Rows payloads have no byte representation and return nil.
func (p Payload) Data() []byte {
	if len(p.Bytes) > 0 {
		return p.Bytes
	}
	if p.Text != "" {
		return []byte(p.Text)
	}
	return nil
}
