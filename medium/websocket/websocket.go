// Package websocket provides the "websocket" medium: each batch is sent as
// one text or binary frame over a websocket connection.
package websocket

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// Config holds configuration for the websocket medium
type Config struct {
	URL     string // ws:// or wss:// endpoint
	Binary  bool   // send binary frames instead of text
	Timeout time.Duration
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"url scheme must be ws or wss")
	}
	return nil
}

// DefaultConfig returns the default configuration for the websocket medium
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// Medium sends payload frames over one connection. Gorilla connections
// support one concurrent writer, so frames are serialized with a mutex.
type Medium struct {
	config Config

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a websocket medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.URL = v.String("url", config.URL)
	config.Binary = v.Bool("binary", config.Binary)
	config.Timeout = v.Duration("timeout", config.Timeout)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Medium{config: config}, nil
}

// Open dials the endpoint.
func (m *Medium) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.config.Timeout}
	conn, _, err := dialer.DialContext(ctx, m.config.URL, nil)
	if err != nil {
		return errors.WrapTransient(err, "Medium", "Open", "dial websocket endpoint")
	}
	m.conn = conn
	return nil
}

// Write sends one payload frame.
func (m *Medium) Write(_ context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "websocket medium cannot deliver raw rows"), "WebsocketMedium")
	}

	messageType := websocket.TextMessage
	if m.config.Binary {
		messageType = websocket.BinaryMessage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "WebsocketMedium")
	}

	_ = m.conn.SetWriteDeadline(time.Now().Add(m.config.Timeout))
	if err := m.conn.WriteMessage(messageType, data); err != nil {
		return medium.WriteFailed(err, "WebsocketMedium")
	}
	return nil
}

// Close sends a close frame and disconnects.
func (m *Medium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := m.conn.Close()
	m.conn = nil
	return err
}

// Register adds the websocket medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "websocket",
		Description: "send each batch as one websocket frame",
		AddArguments: func(g *extension.Group) {
			g.String("websocket-url", "",
				"Websocket endpoint (ws:// or wss://)")
			g.Bool("websocket-binary", false,
				"Send binary frames instead of text frames")
			g.Duration("websocket-timeout", 10*time.Second,
				"Handshake and per-frame write timeout")
		},
		New: New,
	})
}
