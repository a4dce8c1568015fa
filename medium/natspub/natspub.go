// Package natspub provides the "nats" medium: each batch is published as
// one message on a NATS subject.
package natspub

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// Config holds configuration for the NATS medium
type Config struct {
	URL     string
	Subject string
	Flush   bool // wait for the server to acknowledge each batch
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"url is required")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"subject is required")
	}
	return nil
}

// DefaultConfig returns the default configuration for the NATS medium
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "avalon",
	}
}

// Medium publishes payloads on one subject. The nats connection is safe
// for concurrent publishers.
type Medium struct {
	config Config
	conn   *nats.Conn
}

// New creates a NATS medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.URL = v.String("url", config.URL)
	config.Subject = v.String("subject", config.Subject)
	config.Flush = v.Bool("flush", config.Flush)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Medium{config: config}, nil
}

// Open connects to the server.
func (m *Medium) Open(_ context.Context) error {
	conn, err := nats.Connect(m.config.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second))
	if err != nil {
		return errors.WrapTransient(err, "Medium", "Open", "connect to nats")
	}
	m.conn = conn
	return nil
}

// Write publishes one payload.
func (m *Medium) Write(_ context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "nats medium cannot deliver raw rows"), "NATSMedium")
	}
	if m.conn == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "NATSMedium")
	}

	if err := m.conn.Publish(m.config.Subject, data); err != nil {
		return medium.WriteFailed(err, "NATSMedium")
	}
	if m.config.Flush {
		if err := m.conn.Flush(); err != nil {
			return medium.WriteFailed(err, "NATSMedium")
		}
	}
	return nil
}

// Close drains and disconnects.
func (m *Medium) Close() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Drain()
	m.conn = nil
	return err
}

// Register adds the NATS medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "nats",
		Description: "publish each batch on a NATS subject",
		AddArguments: func(g *extension.Group) {
			g.String("nats-url", nats.DefaultURL,
				"NATS server URL")
			g.String("nats-subject", "avalon",
				"Subject to publish batches on")
			g.Bool("nats-flush", false,
				"Flush the connection after every batch")
		},
		New: New,
	})
}
