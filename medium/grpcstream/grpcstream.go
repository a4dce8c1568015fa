// Package grpcstream provides the "grpc" medium: each batch is sent as the
// raw bytes of one unary invocation of a user-named method, so any service
// accepting a bytes-shaped request can act as a sink without generated
// stubs.
package grpcstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// Config holds configuration for the gRPC medium
type Config struct {
	Endpoint string
	Method   string // full method name, e.g. ingest.Collector/Push
	Timeout  time.Duration
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"endpoint is required")
	}
	if c.Method == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"method is required")
	}
	if !strings.Contains(c.Method, "/") && !strings.Contains(c.Method, ".") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"method must be a full name like package.Service/Method")
	}
	return nil
}

// DefaultConfig returns the default configuration for the gRPC medium
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// rawCodec passes request and response bytes through untouched.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec expects []byte, got %T", v)
	}
	return b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec expects *[]byte, got %T", v)
	}
	*b = data
	return nil
}

func (rawCodec) Name() string { return "avalon-raw" }

// Medium invokes one method per payload.
type Medium struct {
	config Config
	method string
	conn   *grpc.ClientConn
}

// New creates a gRPC medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.Endpoint = v.String("endpoint", config.Endpoint)
	config.Method = v.String("method", config.Method)
	config.Timeout = v.Duration("timeout", config.Timeout)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// accept dotted full names the way reflection clients spell them
	method := config.Method
	if !strings.Contains(method, "/") {
		if i := strings.LastIndex(method, "."); i >= 0 {
			method = method[:i] + "/" + method[i+1:]
		}
	}
	if !strings.HasPrefix(method, "/") {
		method = "/" + method
	}

	return &Medium{config: config, method: method}, nil
}

// Open dials the endpoint.
func (m *Medium) Open(_ context.Context) error {
	conn, err := grpc.NewClient(m.config.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})))
	if err != nil {
		return errors.WrapFatal(err, "Medium", "Open", "dial grpc endpoint")
	}
	m.conn = conn
	return nil
}

// Write invokes the method with one payload.
func (m *Medium) Write(ctx context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "grpc medium cannot deliver raw rows"), "GRPCMedium")
	}
	if m.conn == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "GRPCMedium")
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	var reply []byte
	if err := m.conn.Invoke(callCtx, m.method, data, &reply); err != nil {
		return medium.WriteFailed(err, "GRPCMedium")
	}
	return nil
}

// Close tears down the connection.
func (m *Medium) Close() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// Register adds the gRPC medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "grpc",
		Description: "invoke a grpc method with each batch as raw bytes",
		AddArguments: func(g *extension.Group) {
			g.String("grpc-endpoint", "",
				"gRPC endpoint host:port")
			g.String("grpc-method", "",
				"Full method name, e.g. ingest.Collector/Push")
			g.Duration("grpc-timeout", 10*time.Second,
				"Per-invocation timeout")
		},
		New: New,
	})
}
