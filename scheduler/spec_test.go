package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/errors"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		token    string
		expected ProducerSpec
	}{
		{"snort", ProducerSpec{Count: 1, Title: "snort", Weight: 1}},
		{"10snort", ProducerSpec{Count: 10, Title: "snort", Weight: 1}},
		{"snort1000", ProducerSpec{Count: 1, Title: "snort", Weight: 1000}},
		{"10snort1000", ProducerSpec{Count: 10, Title: "snort", Weight: 1000}},
		{"2asa3", ProducerSpec{Count: 2, Title: "asa", Weight: 3}},
		{"headered_csv", ProducerSpec{Count: 1, Title: "headered_csv", Weight: 1}},
		{
			"snort{file:///tmp/a.yml}",
			ProducerSpec{Count: 1, Title: "snort", Weight: 1,
				MappingURIs: []string{"file:///tmp/a.yml"}},
		},
		{
			"10snort1000{file:///a.yml,file:///b.yml}",
			ProducerSpec{Count: 10, Title: "snort", Weight: 1000,
				MappingURIs: []string{"file:///a.yml", "file:///b.yml"}},
		},
	}

	for _, test := range tests {
		t.Run(test.token, func(t *testing.T) {
			spec, err := ParseSpec(test.token)
			require.NoError(t, err)
			assert.Equal(t, test.expected, spec)
		})
	}
}

func TestParseSpec_Invalid(t *testing.T) {
	for _, token := range []string{
		"",
		"123",
		"snort{unclosed",
		"{file:///a.yml}",
		"sn ort",
		"0snort", // count must be >= 1
		"snort0", // weight must be >= 1
	} {
		t.Run(token, func(t *testing.T) {
			_, err := ParseSpec(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidSpec)
		})
	}
}

func TestParseSpecs_WhitespaceJoined(t *testing.T) {
	specs, err := ParseSpecs([]string{"snort3 asa1", "test"})
	require.NoError(t, err)

	require.Len(t, specs, 3)
	assert.Equal(t, "snort", specs[0].Title)
	assert.Equal(t, 3, specs[0].Weight)
	assert.Equal(t, "asa", specs[1].Title)
	assert.Equal(t, 1, specs[1].Weight)
	assert.Equal(t, "test", specs[2].Title)
}
