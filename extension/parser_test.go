package extension

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParser_PrefixAttachment(t *testing.T) {
	desc := &Descriptor{Family: FamilyMedium, Title: "kafka", New: nopFactory}

	p := NewParser("avalon", testLogger())
	g := p.GroupFor(desc)
	g.String("kafka-topic", "events", "Kafka topic")
	g.String("kafka-bootstrap-servers", "localhost:9092", "bootstrap servers")
	g.Bool("kafka-force-flush", false, "flush after each batch")

	require.NoError(t, p.Parse([]string{"--kafka-topic=logs", "--kafka-force-flush"}))

	vals := p.Values(desc)
	assert.Equal(t, "logs", vals.String("topic", ""))
	assert.Equal(t, "localhost:9092", vals.String("bootstrap_servers", ""))
	assert.True(t, vals.Bool("force_flush", false))
}

func TestParser_ArgsMappingAttachment(t *testing.T) {
	// The file medium claims the shared file_name destination as "path".
	desc := &Descriptor{
		Family:      FamilyMedium,
		Title:       "file",
		ArgsMapping: map[string]string{"file_name": "path"},
		New:         nopFactory,
	}

	p := NewParser("avalon", testLogger())
	p.Core().String("file-name", "-", "output file name")

	require.NoError(t, p.Parse([]string{"--file-name", "/tmp/out.jsonl"}))

	vals := p.Values(desc)
	assert.Equal(t, "/tmp/out.jsonl", vals.String("path", ""))
	// The mapped destination must not also attach under the prefix rule.
	assert.False(t, vals.Has("name"))
}

func TestParser_ForeignDestinationsIgnored(t *testing.T) {
	kafka := &Descriptor{Family: FamilyMedium, Title: "kafka", New: nopFactory}
	http := &Descriptor{Family: FamilyMedium, Title: "http", New: nopFactory}

	p := NewParser("avalon", testLogger())
	p.GroupFor(kafka).String("kafka-topic", "", "topic")
	p.GroupFor(http).String("http-url", "", "url")

	require.NoError(t, p.Parse([]string{"--kafka-topic=t", "--http-url=u"}))

	kvals := p.Values(kafka)
	assert.True(t, kvals.Has("topic"))
	assert.False(t, kvals.Has("url"))

	hvals := p.Values(http)
	assert.True(t, hvals.Has("url"))
	assert.False(t, hvals.Has("topic"))
}

func TestParser_FirstSetIndex(t *testing.T) {
	kafka := &Descriptor{Family: FamilyMedium, Title: "kafka", New: nopFactory}
	http := &Descriptor{Family: FamilyMedium, Title: "http", New: nopFactory}

	p := NewParser("avalon", testLogger())
	p.GroupFor(kafka).String("kafka-topic", "", "topic")
	p.GroupFor(http).String("http-url", "", "url")

	require.NoError(t, p.Parse([]string{"--http-url=u", "--kafka-topic=t"}))

	assert.Less(t, p.FirstSetIndex(http), p.FirstSetIndex(kafka))

	unused := &Descriptor{Family: FamilyMedium, Title: "sql", New: nopFactory}
	assert.Equal(t, math.MaxInt, p.FirstSetIndex(unused))
}

func TestParser_WasSetAndDefaults(t *testing.T) {
	p := NewParser("avalon", testLogger())
	core := p.Core()
	core.Int("batch-size", 1000, "records per batch")
	core.Int("number", 0, "total records")

	require.NoError(t, p.Parse([]string{"--number", "50"}))

	assert.True(t, p.WasSet("number"))
	assert.False(t, p.WasSet("batch_size"))

	v, ok := p.Get("batch_size")
	require.True(t, ok)
	assert.Equal(t, 1000, v)
}

func TestParser_RepeatableFlag(t *testing.T) {
	p := NewParser("avalon", testLogger())
	p.Core().StringSlice("map", "append a global mapping")

	require.NoError(t, p.Parse([]string{
		"--map", "file:///a.yml",
		"--map", "file:///b.yml",
	}))

	v, ok := p.Get("map")
	require.True(t, ok)
	assert.Equal(t, []string{"file:///a.yml", "file:///b.yml"}, v)
}

func TestParser_Positionals(t *testing.T) {
	p := NewParser("avalon", testLogger())
	p.Core().Int("number", 0, "total records")

	require.NoError(t, p.Parse([]string{"--number=10", "2snort1000", "asa"}))
	assert.Equal(t, []string{"2snort1000", "asa"}, p.Args())
}

func TestParser_InterleavedFlagsAndPositionals(t *testing.T) {
	p := NewParser("avalon", testLogger())
	core := p.Core()
	core.Int("number", 0, "total records")
	core.String("file-name", "-", "output file")
	core.Bool("textlog", false, "textlog shortcut")

	require.NoError(t, p.Parse([]string{
		"snort", "--number", "3", "asa", "--textlog", "--file-name=/tmp/x",
	}))

	assert.Equal(t, []string{"snort", "asa"}, p.Args())

	v, _ := p.Get("number")
	assert.Equal(t, 3, v)
	v, _ = p.Get("textlog")
	assert.Equal(t, true, v)
	v, _ = p.Get("file_name")
	assert.Equal(t, "/tmp/x", v)
}

func TestParser_DoubleDashEndsFlags(t *testing.T) {
	p := NewParser("avalon", testLogger())
	p.Core().Int("number", 0, "total records")

	require.NoError(t, p.Parse([]string{"--number=1", "--", "--number=2"}))

	assert.Equal(t, []string{"--number=2"}, p.Args())
	v, _ := p.Get("number")
	assert.Equal(t, 1, v)
}

func TestParser_DuplicateFlagKeepsFirst(t *testing.T) {
	a := &Descriptor{Family: FamilyFormat, Title: "csv", New: nopFactory}
	b := &Descriptor{Family: FamilyFormat, Title: "headered-csv",
		ArgsMapping: map[string]string{"csv_filters": "filters"}, New: nopFactory}

	p := NewParser("avalon", testLogger())
	p.GroupFor(a).String("csv-filters", "", "field filters")
	p.GroupFor(b).String("csv-filters", "", "field filters") // already defined

	require.NoError(t, p.Parse([]string{"--csv-filters=a,b"}))

	// Both extensions can read the shared destination: one by prefix, one by
	// mapping.
	assert.Equal(t, "a,b", p.Values(a).String("filters", ""))
	assert.Equal(t, "a,b", p.Values(b).String("filters", ""))
}

func TestValues_TypedGetters(t *testing.T) {
	v := Values{
		"topic":   "events",
		"count":   7,
		"ratio":   0.5,
		"flush":   true,
		"timeout": 3 * time.Second,
		"uris":    []string{"a", "b"},
	}

	assert.Equal(t, "events", v.String("topic", ""))
	assert.Equal(t, 7, v.Int("count", 0))
	assert.Equal(t, int64(7), v.Int64("count", 0))
	assert.Equal(t, 0.5, v.Float64("ratio", 0))
	assert.True(t, v.Bool("flush", false))
	assert.Equal(t, 3*time.Second, v.Duration("timeout", 0))
	assert.Equal(t, []string{"a", "b"}, v.Strings("uris"))

	// Defaults for absent keys
	assert.Equal(t, "d", v.String("missing", "d"))
	assert.Equal(t, 9, v.Int("missing", 9))
}
