// Package sqldb provides the "sql" medium: every batch of raw rows becomes
// one multi-row INSERT into a relational table. Pair it with the sql-rows
// format.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	// database drivers selected by DSN scheme
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// tableExpr extracts the table name and column list from an expression
// like "events (src_ip, dst_ip, severity)".
var tableExpr = regexp.MustCompile(`[^\s(),]+`)

// Config holds configuration for the SQL medium
type Config struct {
	DSN    string // driver DSN; postgres:// and mysql DSNs are recognized
	Driver string // driver override: "mysql" or "postgres"
	Table  string // "table (col, col, ...)" expression
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"dsn is required")
	}
	if c.Table == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"table expression is required")
	}
	parts := tableExpr.FindAllString(c.Table, -1)
	if len(parts) < 2 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"table expression must name at least one column, e.g. \"events (a, b)\"")
	}
	switch c.driver() {
	case "mysql", "postgres":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"cannot determine driver from dsn, set the driver explicitly")
	}
	return nil
}

// driver resolves the driver name from the override or the DSN scheme.
func (c *Config) driver() string {
	if c.Driver != "" {
		return c.Driver
	}
	if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(c.DSN, "@tcp(") || strings.Contains(c.DSN, "@unix(") {
		return "mysql"
	}
	return ""
}

// DefaultConfig returns the default configuration for the SQL medium
func DefaultConfig() Config {
	return Config{}
}

// Medium inserts rows into one table. The connection pool of database/sql
// handles writer concurrency.
type Medium struct {
	config  Config
	table   string
	columns []string
	db      *sql.DB
}

// New creates a SQL medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.DSN = v.String("dsn", config.DSN)
	config.Driver = v.String("driver", config.Driver)
	config.Table = v.String("table", config.Table)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	parts := tableExpr.FindAllString(config.Table, -1)
	return &Medium{
		config:  config,
		table:   parts[0],
		columns: parts[1:],
	}, nil
}

// Open connects and verifies the database is reachable.
func (m *Medium) Open(ctx context.Context) error {
	dsn := m.config.DSN
	if m.config.driver() == "mysql" {
		dsn = strings.TrimPrefix(dsn, "mysql://")
	}

	db, err := sql.Open(m.config.driver(), dsn)
	if err != nil {
		return errors.WrapFatal(err, "Medium", "Open", "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.WrapTransient(err, "Medium", "Open", "ping database")
	}
	m.db = db
	return nil
}

// placeholder renders the parameter marker for the driver.
func (m *Medium) placeholder(n int) string {
	if m.config.driver() == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Write inserts one batch of rows.
func (m *Medium) Write(ctx context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	if p.Rows == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "sql medium needs the sql-rows format"), "SQLMedium")
	}
	if m.db == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "SQLMedium")
	}

	var query strings.Builder
	fmt.Fprintf(&query, "INSERT INTO %s (%s) VALUES ",
		m.table, strings.Join(m.columns, ", "))

	args := make([]any, 0, len(p.Rows)*len(m.columns))
	for i, row := range p.Rows {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteByte('(')
		for j, col := range m.columns {
			if j > 0 {
				query.WriteString(", ")
			}
			query.WriteString(m.placeholder(len(args) + 1))
			args = append(args, row[col])
		}
		query.WriteByte(')')
	}

	if _, err := m.db.ExecContext(ctx, query.String(), args...); err != nil {
		return medium.WriteFailed(err, "SQLMedium")
	}
	return nil
}

// Close releases the connection pool.
func (m *Medium) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Register adds the SQL medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "sql",
		Description: "insert each batch of rows into a relational table",
		AddArguments: func(g *extension.Group) {
			g.String("sql-dsn", "",
				"Database DSN (postgres:// URL or mysql user:pass@tcp(host)/db)")
			g.String("sql-driver", "",
				"Driver override: mysql or postgres (default derived from DSN)")
			g.String("sql-table", "",
				"Target table expression, e.g. \"events (src_ip, dst_ip)\"")
		},
		New: New,
	})
}
