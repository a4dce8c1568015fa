// Package file provides the "file" medium: batches append to a single file
// or to stdout. This is the default sink when no medium is selected.
package file

import (
	"context"
	"os"
	"sync"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// Config holds configuration for the file medium
type Config struct {
	Name string // output file name, "-" for stdout
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"file name is required")
	}
	return nil
}

// DefaultConfig returns the default configuration for the file medium
func DefaultConfig() Config {
	return Config{Name: "-"}
}

// Medium appends every payload to one open file. Writes are serialized
// with a mutex so parallel writer slots cannot interleave partial batches.
type Medium struct {
	config Config

	mu     sync.Mutex
	file   *os.File
	stdout bool
}

// New creates a file medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	if v.Has("name") {
		config.Name = v.String("name", config.Name)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Medium{config: config}, nil
}

// Open prepares the output stream.
func (m *Medium) Open(_ context.Context) error {
	if m.config.Name == "-" {
		m.file = os.Stdout
		m.stdout = true
		return nil
	}

	f, err := os.OpenFile(m.config.Name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "Medium", "Open", "open output file")
	}
	m.file = f
	return nil
}

// Write appends one payload.
func (m *Medium) Write(_ context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "file medium cannot deliver raw rows"), "FileMedium")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "FileMedium")
	}
	if _, err := m.file.Write(data); err != nil {
		return medium.WriteFailed(err, "FileMedium")
	}
	return nil
}

// Close releases the file handle.
func (m *Medium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil || m.stdout {
		m.file = nil
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Register adds the file medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "file",
		Description: "append batches to a file, or stdout with \"-\"",
		AddArguments: func(g *extension.Group) {
			g.String("file-name", "-",
				"Write output to <file> instead of stdout")
		},
		New: New,
	})
}
