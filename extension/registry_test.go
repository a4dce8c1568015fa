package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/errors"
)

func nopFactory(Values) (any, error) { return struct{}{}, nil }

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(Descriptor{Family: FamilyModel, Title: "snort", New: nopFactory})
	require.NoError(t, err)

	d, err := reg.Lookup(FamilyModel, "snort")
	require.NoError(t, err)
	assert.Equal(t, "snort", d.Title)
	assert.Equal(t, "snort_", d.Prefix())
}

func TestRegistry_DuplicateTitle(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(Descriptor{Family: FamilyFormat, Title: "csv", New: nopFactory}))

	err := reg.Register(Descriptor{Family: FamilyFormat, Title: "csv", New: nopFactory})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateExtension)
}

func TestRegistry_SameTitleAcrossFamilies(t *testing.T) {
	reg := NewRegistry()

	// Titles are unique per family, not globally.
	require.NoError(t, reg.Register(Descriptor{Family: FamilyFormat, Title: "sql", New: nopFactory}))
	require.NoError(t, reg.Register(Descriptor{Family: FamilyMedium, Title: "sql", New: nopFactory}))
}

func TestRegistry_UnknownTitle(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup(FamilyModel, "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownExtension)
	assert.Contains(t, err.Error(), "nope")
}

func TestRegistry_EmptyTitleRejected(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(Descriptor{Family: FamilyModel, New: nopFactory})
	require.Error(t, err)
}

func TestRegistry_TitlesSortedAndIdempotent(t *testing.T) {
	reg := NewRegistry()

	for _, title := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(Descriptor{Family: FamilyMapping, Title: title, New: nopFactory}))
	}

	first := reg.Titles(FamilyMapping)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, first)

	// Repeating the listing yields the same multiset.
	second := reg.Titles(FamilyMapping)
	assert.Equal(t, first, second)
}

func TestDescriptor_PrefixDefaults(t *testing.T) {
	tests := []struct {
		title    string
		override string
		expected string
	}{
		{"snort", "", "snort_"},
		{"json-lines", "", "json_lines_"},
		{"batch-headered-csv", "", "batch_headered_csv_"},
		{"file", "output_file_", "output_file_"},
	}

	for _, test := range tests {
		t.Run(test.title, func(t *testing.T) {
			d := Descriptor{Title: test.title, ArgsPrefix: test.override}
			assert.Equal(t, test.expected, d.Prefix())
		})
	}
}

func TestDestName(t *testing.T) {
	assert.Equal(t, "kafka_topic", DestName("kafka-topic"))
	assert.Equal(t, "http_url", DestName("http--url"))
	assert.Equal(t, "plain", DestName("plain"))
}
