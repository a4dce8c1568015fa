// Package syslog provides the "syslog" medium: each line of a batch is
// sent as one RFC3164 message over UDP, TCP, or a unix datagram socket.
// This is the sink behind the --textlog shortcut.
package syslog

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// severity names to RFC3164 codes
var severities = map[string]int{
	"emerg":   0,
	"alert":   1,
	"crit":    2,
	"err":     3,
	"warning": 4,
	"notice":  5,
	"info":    6,
	"debug":   7,
}

// facility user-level (1), per the original appliance behavior
const facility = 1

// Config holds configuration for the syslog medium
type Config struct {
	Address  string // host:port, or a unix socket path
	Network  string // udp, tcp, or unixgram; derived from the address when empty
	Tag      string
	Severity string
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"address is required")
	}
	if _, ok := severities[c.Severity]; !ok {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown severity %q", c.Severity))
	}
	switch c.network() {
	case "udp", "tcp", "unixgram":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown network %q", c.Network))
	}
	return nil
}

// network derives the transport from the address when not set explicitly.
func (c *Config) network() string {
	if c.Network != "" {
		return c.Network
	}
	if strings.HasPrefix(c.Address, "/") {
		return "unixgram"
	}
	return "udp"
}

// DefaultConfig returns the default configuration for the syslog medium
func DefaultConfig() Config {
	return Config{
		Address:  "localhost:514",
		Tag:      "avalon",
		Severity: "info",
	}
}

// Medium sends each non-empty payload line as one syslog message.
type Medium struct {
	config   Config
	hostname string
	pri      int

	mu   sync.Mutex
	conn net.Conn
}

// New creates a syslog medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.Address = v.String("address", config.Address)
	config.Network = v.String("network", config.Network)
	config.Tag = v.String("tag", config.Tag)
	config.Severity = v.String("severity", config.Severity)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return &Medium{
		config:   config,
		hostname: hostname,
		pri:      facility*8 + severities[config.Severity],
	}, nil
}

// Open connects to the collector.
func (m *Medium) Open(_ context.Context) error {
	conn, err := net.DialTimeout(m.config.network(), m.config.Address, 10*time.Second)
	if err != nil {
		return errors.WrapTransient(err, "Medium", "Open", "dial syslog collector")
	}
	m.conn = conn
	return nil
}

// Write sends every line of the payload as one message.
func (m *Medium) Write(_ context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "syslog medium cannot deliver raw rows"), "SyslogMedium")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "SyslogMedium")
	}

	timestamp := time.Now().Format(time.Stamp)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r ")
		if line == "" {
			continue
		}
		msg := fmt.Sprintf("<%d>%s %s %s: %s\n",
			m.pri, timestamp, m.hostname, m.config.Tag, line)
		if _, err := m.conn.Write([]byte(msg)); err != nil {
			return medium.WriteFailed(err, "SyslogMedium")
		}
	}
	return nil
}

// Close disconnects from the collector.
func (m *Medium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// Register adds the syslog medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "syslog",
		Description: "send each batch line as an RFC3164 syslog message",
		AddArguments: func(g *extension.Group) {
			g.String("syslog-address", "localhost:514",
				"Syslog collector address (host:port or unix socket path)")
			g.String("syslog-network", "",
				"Transport: udp, tcp, or unixgram (default derived from address)")
			g.String("syslog-tag", "avalon",
				"Tag prepended to every message")
			g.String("syslog-severity", "info",
				"Message severity name")
		},
		New: New,
	})
}
