package syslog

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/extension"
)

func TestMedium_SendsLinePerMessage(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan string, 8)
	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			received <- string(buf[:n])
		}
	}()

	inst, err := New(extension.Values{
		"address": conn.LocalAddr().String(),
		"tag":     "avalon-test",
	})
	require.NoError(t, err)
	m := inst.(*Medium)
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	require.NoError(t, m.Write(context.Background(),
		extension.Payload{Text: "first line\nsecond line\n\n", Records: 2}))

	var messages []string
	for len(messages) < 2 {
		select {
		case msg := <-received:
			messages = append(messages, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d messages, want 2", len(messages))
		}
	}

	for _, msg := range messages {
		assert.True(t, strings.HasPrefix(msg, "<14>"), "user.info priority: %q", msg)
		assert.Contains(t, msg, "avalon-test: ")
	}
	assert.Contains(t, messages[0], "first line")
	assert.Contains(t, messages[1], "second line")
}

func TestConfig_Validate(t *testing.T) {
	c := Config{}
	require.Error(t, c.Validate(), "address required")

	c = DefaultConfig()
	require.NoError(t, c.Validate())

	c = DefaultConfig()
	c.Severity = "loud"
	require.Error(t, c.Validate())

	c = DefaultConfig()
	c.Network = "carrier-pigeon"
	require.Error(t, c.Validate())
}

func TestConfig_NetworkDerivation(t *testing.T) {
	c := Config{Address: "/dev/log"}
	assert.Equal(t, "unixgram", c.network())

	c = Config{Address: "collector:514"}
	assert.Equal(t, "udp", c.network())

	c = Config{Address: "collector:514", Network: "tcp"}
	assert.Equal(t, "tcp", c.network())
}

func TestRegister(t *testing.T) {
	reg := extension.NewRegistry()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(extension.FamilyMedium, "syslog"))
}
