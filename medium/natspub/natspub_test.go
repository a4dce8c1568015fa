package natspub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/extension"
)

func TestConfig_Validate(t *testing.T) {
	c := Config{}
	require.Error(t, c.Validate(), "url required")

	c = Config{URL: "nats://localhost:4222"}
	require.Error(t, c.Validate(), "subject required")

	c = DefaultConfig()
	require.NoError(t, c.Validate())
}

func TestNew_AttachesArguments(t *testing.T) {
	inst, err := New(extension.Values{
		"url":     "nats://broker:4222",
		"subject": "logs.ids",
		"flush":   true,
	})
	require.NoError(t, err)
	m := inst.(*Medium)

	assert.Equal(t, "nats://broker:4222", m.config.URL)
	assert.Equal(t, "logs.ids", m.config.Subject)
	assert.True(t, m.config.Flush)
}

func TestMedium_WriteWithoutOpenFails(t *testing.T) {
	inst, err := New(nil)
	require.NoError(t, err)

	err = inst.(*Medium).Write(context.Background(),
		extension.Payload{Text: "x", Records: 1})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	reg := extension.NewRegistry()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(extension.FamilyMedium, "nats"))
}
