package metricsrv

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/extension"
)

func newParser(t *testing.T) (*extension.Parser, *extension.Registry) {
	t.Helper()
	reg := extension.NewRegistry()
	require.NoError(t, Register(reg))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := extension.NewParser("avalon", logger)
	p.AddExtensionArgs(reg)
	return p, reg
}

func TestRegistryIsShared(t *testing.T) {
	assert.Same(t, Registry(), Registry())
	assert.NotNil(t, Registry().Pipeline)
}

func TestGeneric_NoListenerByDefault(t *testing.T) {
	p, reg := newParser(t)
	require.NoError(t, p.Parse(nil))

	gens, err := extension.Generics(reg)
	require.NoError(t, err)
	require.NoError(t, extension.RunHooks(gens, extension.HookPostParseArgs, p))
}

func TestGeneric_ServesMetrics(t *testing.T) {
	// reserve a free port for the listener
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	p, reg := newParser(t)
	require.NoError(t, p.Parse([]string{"--metrics-listen=" + addr}))

	gens, err := extension.Generics(reg)
	require.NoError(t, err)
	require.NoError(t, extension.RunHooks(gens, extension.HookPostParseArgs, p))

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "avalon_records_emitted_total")
}

func TestGeneric_BadAddressFailsStartup(t *testing.T) {
	p, reg := newParser(t)
	require.NoError(t, p.Parse([]string{"--metrics-listen=256.0.0.1:bad"}))

	gens, err := extension.Generics(reg)
	require.NoError(t, err)
	require.Error(t, extension.RunHooks(gens, extension.HookPostParseArgs, p))
}
