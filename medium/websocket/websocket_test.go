package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/extension"
)

// wsServer starts a test websocket server that collects the frames it
// receives.
func wsServer(t *testing.T, frames chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- string(data)
		}
	}))
}

func TestMedium_SendsFrames(t *testing.T) {
	frames := make(chan string, 4)
	srv := wsServer(t, frames)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	inst, err := New(extension.Values{"url": url})
	require.NoError(t, err)
	m := inst.(*Medium)

	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	require.NoError(t, m.Write(context.Background(),
		extension.Payload{Text: "frame one", Records: 1}))
	require.NoError(t, m.Write(context.Background(),
		extension.Payload{Bytes: []byte("frame two"), Records: 1}))

	for _, expected := range []string{"frame one", "frame two"} {
		select {
		case got := <-frames:
			assert.Equal(t, expected, got)
		case <-time.After(2 * time.Second):
			t.Fatal("frame not received")
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	c := Config{}
	require.Error(t, c.Validate(), "url required")

	c = Config{URL: "http://not-ws"}
	require.Error(t, c.Validate())

	c = Config{URL: "ws://host/path", Timeout: time.Second}
	require.NoError(t, c.Validate())
}

func TestRegister(t *testing.T) {
	reg := extension.NewRegistry()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(extension.FamilyMedium, "websocket"))
}
