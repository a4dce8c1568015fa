package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/extension"
)

func TestMedium_WriteAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	inst, err := New(extension.Values{"name": path})
	require.NoError(t, err)
	m := inst.(*Medium)

	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Write(context.Background(),
		extension.Payload{Text: "one\n", Records: 1}))
	require.NoError(t, m.Write(context.Background(),
		extension.Payload{Bytes: []byte("two\n"), Records: 1}))
	require.NoError(t, m.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestMedium_EmptyPayloadIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	inst, err := New(extension.Values{"name": path})
	require.NoError(t, err)
	m := inst.(*Medium)

	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Write(context.Background(), extension.Payload{}))
	require.NoError(t, m.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMedium_RowsPayloadRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	inst, err := New(extension.Values{"name": path})
	require.NoError(t, err)
	m := inst.(*Medium)

	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	err = m.Write(context.Background(),
		extension.Payload{Rows: []extension.Record{{"a": 1}}, Records: 1})
	require.Error(t, err)
}

func TestMedium_ConcurrentWritesDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	inst, err := New(extension.Values{"name": path})
	require.NoError(t, err)
	m := inst.(*Medium)
	require.NoError(t, m.Open(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = m.Write(context.Background(),
					extension.Payload{Text: "aaaa\n", Records: 1})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, m.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, line := range splitLines(string(data)) {
		assert.Equal(t, "aaaa", line)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

func TestMedium_StdoutDefault(t *testing.T) {
	inst, err := New(nil)
	require.NoError(t, err)
	m := inst.(*Medium)

	require.NoError(t, m.Open(context.Background()))
	assert.True(t, m.stdout)
	require.NoError(t, m.Close())
}

func TestConfig_Validate(t *testing.T) {
	c := Config{}
	require.Error(t, c.Validate())

	c = DefaultConfig()
	require.NoError(t, c.Validate())
}

func TestRegister(t *testing.T) {
	reg := extension.NewRegistry()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(extension.FamilyMedium, "file"))
}
