// Package directory provides the "directory" medium: every batch becomes a
// new file in a target directory, the way log collectors watch a spool
// directory for complete files.
package directory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// Config holds configuration for the directory medium
type Config struct {
	Path         string // target directory, created when missing
	Suffix       string // file suffix without the dot
	MaxFileCount int    // prune oldest files beyond this count; 0 disables
	Ordered      bool   // sequential index names instead of random names
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"directory path is required")
	}
	if c.MaxFileCount < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max file count cannot be negative")
	}
	return nil
}

// DefaultConfig returns the default configuration for the directory medium
func DefaultConfig() Config {
	return Config{
		Path:   "./avalon-output",
		Suffix: "txt",
	}
}

// Medium writes one file per payload.
type Medium struct {
	config Config

	mu    sync.Mutex
	index int64
}

// New creates a directory medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.Path = v.String("name", config.Path)
	config.Suffix = v.String("suffix", config.Suffix)
	config.MaxFileCount = v.Int("max_file_count", config.MaxFileCount)
	config.Ordered = v.Bool("ordered", config.Ordered)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Medium{config: config}, nil
}

// Open creates the target directory.
func (m *Medium) Open(_ context.Context) error {
	if err := os.MkdirAll(m.config.Path, 0o755); err != nil {
		return errors.WrapFatal(err, "Medium", "Open", "create output directory")
	}
	return nil
}

// nextName reserves the file name for one payload.
func (m *Medium) nextName() string {
	if m.config.Ordered {
		m.mu.Lock()
		idx := m.index
		m.index++
		m.mu.Unlock()
		return fmt.Sprintf("%d.%s", idx, m.config.Suffix)
	}
	return fmt.Sprintf("%s.%s", uuid.NewString(), m.config.Suffix)
}

// Write stores one payload as a new file.
func (m *Medium) Write(_ context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "directory medium cannot deliver raw rows"), "DirectoryMedium")
	}

	path := filepath.Join(m.config.Path, m.nextName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return medium.WriteFailed(err, "DirectoryMedium")
	}

	if m.config.MaxFileCount > 0 {
		if err := m.prune(); err != nil {
			return medium.WriteFailed(err, "DirectoryMedium")
		}
	}
	return nil
}

// prune removes the oldest files beyond the configured count.
func (m *Medium) prune() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.config.Path)
	if err != nil {
		return err
	}

	type fileAge struct {
		name string
		mod  int64
	}
	var files []fileAge
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileAge{e.Name(), info.ModTime().UnixNano()})
	}

	if len(files) <= m.config.MaxFileCount {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })
	for _, f := range files[:len(files)-m.config.MaxFileCount] {
		if err := os.Remove(filepath.Join(m.config.Path, f.name)); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op: every write is self-contained.
func (m *Medium) Close() error {
	return nil
}

// Register adds the directory medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "directory",
		Description: "write each batch as a new file in a directory",
		AddArguments: func(g *extension.Group) {
			g.String("directory-name", "./avalon-output",
				"Target directory for batch files")
			g.String("directory-suffix", "txt",
				"Suffix for batch files (without dot)")
			g.Int("directory-max-file-count", 0,
				"Prune oldest files beyond this count (0 disables)")
			g.Bool("directory-ordered", false,
				"Name files with a sequential index instead of random names")
		},
		New: New,
	})
}
