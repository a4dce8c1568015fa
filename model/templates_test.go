package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	seed := Seed{"srcip": "10.0.0.1", "srcport": 443, "ratio": 0.5}

	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"single", "from {srcip}", "from 10.0.0.1"},
		{"multiple", "{srcip}:{srcport}", "10.0.0.1:443"},
		{"unknown name", "x={nope}", "x="},
		{"escaped braces", "{{literal}}", "{literal}"},
		{"float", "r={ratio}", "r=0.5"},
		{"unterminated", "tail {srcip", "tail {srcip"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Expand(test.in, seed))
		})
	}
}

func TestTemplateModel_Next(t *testing.T) {
	m := NewTemplateModel([]Template{
		{
			Weight: 1,
			Fields: []Field{
				{Key: "static", Value: 42},
				{Key: "fmt", Value: "ip={srcip}"},
				{Key: "fn", Value: FieldFunc(func(seed Seed) any { return seed["srcport"] })},
			},
		},
	})

	record, err := m.Next()
	require.NoError(t, err)

	assert.Equal(t, 42, record["static"])
	assert.Contains(t, record["fmt"], "ip=")
	assert.IsType(t, 0, record["fn"])
}

func TestTemplateModel_WeightedSelection(t *testing.T) {
	SetSeed(1)
	defer func() { seeded = false }()

	m := NewTemplateModel([]Template{
		{Weight: 99, Fields: []Field{{Key: "kind", Value: "heavy"}}},
		{Weight: 1, Fields: []Field{{Key: "kind", Value: "light"}}},
	})

	heavy := 0
	for i := 0; i < 1000; i++ {
		record, err := m.Next()
		require.NoError(t, err)
		if record["kind"] == "heavy" {
			heavy++
		}
	}

	// 99:1 weights should dominate; allow generous slack.
	assert.Greater(t, heavy, 950)
}

func TestTemplateModel_DefaultSeeds(t *testing.T) {
	m := NewTemplateModel([]Template{
		{Fields: []Field{
			{Key: "ctime", Value: FieldFunc(func(seed Seed) any { return seed["ctime"] })},
			{Key: "src", Value: "{srcip}:{srcport}"},
		}},
	})

	record, err := m.Next()
	require.NoError(t, err)

	assert.IsType(t, float64(0), record["ctime"])
	assert.Regexp(t, `^\d+\.\d+\.\d+\.\d+:\d+$`, record["src"])
}

func TestNormInt_Bounds(t *testing.T) {
	rng := NewRand()
	for i := 0; i < 1000; i++ {
		v := NormInt(rng, 1, 100, 5)
		assert.GreaterOrEqual(t, v, int64(1))
		assert.LessOrEqual(t, v, int64(100))
	}

	assert.Equal(t, int64(7), NormInt(rng, 7, 7, 10))
}

func TestRandomPort_Bounds(t *testing.T) {
	rng := NewRand()
	for i := 0; i < 1000; i++ {
		p := RandomPort(rng, 2, 0.4)
		assert.GreaterOrEqual(t, p, 1)
		assert.LessOrEqual(t, p, 65535)
	}
}

func TestSetSeed_Reproducible(t *testing.T) {
	SetSeed(42)
	a := NewRand().Int63()

	SetSeed(42)
	b := NewRand().Int63()

	seeded = false
	assert.Equal(t, a, b)
}
