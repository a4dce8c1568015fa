package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCapture invokes one CLI run and returns the exit code with captured
// stdout and stderr.
func runCapture(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func TestRun_EmitsExactCountAsJSONLines(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a.jsonl")

	code, _, stderr := runCapture(t,
		"snort", "--number=3", "--output-format=json-lines", "--file-name="+out)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := readLines(t, out)
	require.Len(t, lines, 3)
	for _, line := range lines {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		assert.Contains(t, obj, "msg")
	}
}

func TestRun_UnknownModelExitsTwo(t *testing.T) {
	code, _, stderr := runCapture(t, "unknown_model")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "unknown_model")
}

func TestRun_MalformedSpecExitsTwo(t *testing.T) {
	code, _, stderr := runCapture(t, "123")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "123")
}

func TestRun_RateZeroIsConfigError(t *testing.T) {
	code, _, stderr := runCapture(t, "test", "--rate=0", "--number=1")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "rate")
}

func TestRun_NumberZeroWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.jsonl")

	code, _, _ := runCapture(t, "test", "--number=0", "--file-name="+out)
	assert.Equal(t, exitOK, code)

	// the medium is never opened, so the file must not exist
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_FinalBatchClipped(t *testing.T) {
	out := filepath.Join(t.TempDir(), "one.jsonl")

	code, _, stderr := runCapture(t,
		"test", "--number=1", "--batch-size=100", "--file-name="+out)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	assert.Len(t, readLines(t, out), 1)
}

func TestRun_TwoInstancesBothProduce(t *testing.T) {
	out := filepath.Join(t.TempDir(), "two.jsonl")

	code, _, stderr := runCapture(t,
		"2test", "--number=10", "--batch-size=5", "--file-name="+out)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := readLines(t, out)
	require.Len(t, lines, 10)

	ids := map[string]bool{}
	for _, line := range lines {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		ids[obj["_id"].(string)] = true
	}
	assert.Len(t, ids, 2, "both instances must contribute records")
}

func TestRun_WeightedRatio(t *testing.T) {
	out := filepath.Join(t.TempDir(), "weighted.jsonl")

	code, _, stderr := runCapture(t,
		"snort3 asa1", "--number=400", "--batch-size=10", "--file-name="+out)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := readLines(t, out)
	require.Len(t, lines, 400)

	counts := map[string]int{}
	for _, line := range lines {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		counts[obj["aname"].(string)]++
	}
	assert.InDelta(t, 300, counts["snort"], 10)
	assert.InDelta(t, 100, counts["asa"], 10)
}

func TestRun_GlobalMappingDropsStillReachNumber(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "drop.yml")
	require.NoError(t, os.WriteFile(rules, []byte(`
rules:
  - drop_record_if:
      severity: low
  - set:
      tagged: yes
`), 0o644))

	out := filepath.Join(t.TempDir(), "mapped.jsonl")
	code, _, stderr := runCapture(t,
		"asa", "--number=50", "--batch-size=10",
		"--map=file://"+rules, "--file-name="+out)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := readLines(t, out)
	require.Len(t, lines, 50, "number counts emitted records, drops excluded")
	for _, line := range lines {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		assert.NotEqual(t, "low", obj["severity"])
	}
}

func TestRun_ListCommands(t *testing.T) {
	tests := []struct {
		flag     string
		expected string
	}{
		{"--list-models", "snort"},
		{"--list-formats", "json-lines"},
		{"--list-mediums", "kafka"},
		{"--list-mappings", "dt-to-iso"},
	}

	for _, test := range tests {
		t.Run(test.flag, func(t *testing.T) {
			code, stdout, _ := runCapture(t, test.flag)
			assert.Equal(t, exitOK, code)
			assert.Contains(t, stdout, test.expected)
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCapture(t, "--version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, Version)
}

func TestRun_Help(t *testing.T) {
	code, stdout, _ := runCapture(t, "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "number")
	// extension-contributed flags appear too
	assert.Contains(t, stdout, "kafka-topic")
}

func TestRun_CompletionScript(t *testing.T) {
	code, stdout, _ := runCapture(t, "--completion-script=bash")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "--number")
	assert.Contains(t, stdout, "complete")

	code, _, stderr := runCapture(t, "--completion-script=fish")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "fish")
}

func TestRun_SeedMakesRunsReproducible(t *testing.T) {
	dir := t.TempDir()
	outA := filepath.Join(dir, "a.jsonl")
	outB := filepath.Join(dir, "b.jsonl")

	code, _, _ := runCapture(t, "rflow", "--number=20", "--seed=7", "--file-name="+outA,
		"--map=dt-to-timestamp")
	require.Equal(t, exitOK, code)
	code, _, _ = runCapture(t, "rflow", "--number=20", "--seed=7", "--file-name="+outB,
		"--map=dt-to-timestamp")
	require.Equal(t, exitOK, code)

	linesA := readLines(t, outA)
	linesB := readLines(t, outB)
	require.Len(t, linesA, 20)

	// compare a time-independent field sequence
	var srcA, srcB []string
	for i := range linesA {
		var a, b map[string]any
		require.NoError(t, json.Unmarshal([]byte(linesA[i]), &a))
		require.NoError(t, json.Unmarshal([]byte(linesB[i]), &b))
		srcA = append(srcA, a["src_ip"].(string))
		srcB = append(srcB, b["src_ip"].(string))
	}
	assert.Equal(t, srcA, srcB)
}

func TestRun_TextlogSendsSyslog(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan string, 16)
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

	code, _, stderr := runCapture(t,
		"test", "--number=2", "--batch-size=1", "--textlog",
		"--syslog-address="+conn.LocalAddr().String())
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	select {
	case msg := <-received:
		assert.Contains(t, msg, "avalon")
		assert.Contains(t, msg, "_id")
	case <-time.After(2 * time.Second):
		t.Fatal("no syslog message received")
	}
}

func TestRun_AutoMediaSelection(t *testing.T) {
	// populating the file namespace selects the file medium without
	// --output-media
	out := filepath.Join(t.TempDir(), "auto.jsonl")
	code, _, _ := runCapture(t, "test", "--number=1", "--file-name="+out)
	require.Equal(t, exitOK, code)
	assert.Len(t, readLines(t, out), 1)
}

func TestRun_CSVFormat(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")

	code, _, stderr := runCapture(t,
		"test", "--number=3", "--output-format=headered-csv",
		"--output-format-filters=_id,_ts", "--file-name="+out)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := readLines(t, out)
	require.Len(t, lines, 4, "header plus three records")
	assert.Equal(t, "_id,_ts", lines[0])
}
