// Package httppost provides the "http" medium: one HTTP request per batch,
// with optional gzip compression of the body.
package httppost

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
	"github.com/admirito/avalon/pkg/retry"
)

// Config holds configuration for the HTTP medium
type Config struct {
	URL         string
	Method      string
	ContentType string
	Headers     []string // "Name: value" pairs
	Gzip        bool
	Timeout     time.Duration
	RetryCount  int
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if c.Timeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout cannot be negative")
	}
	if c.RetryCount < 0 || c.RetryCount > 10 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"retry count must be between 0 and 10")
	}
	for _, h := range c.Headers {
		if !strings.Contains(h, ":") {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("malformed header %q, want \"Name: value\"", h))
		}
	}
	return nil
}

// DefaultConfig returns the default configuration for the HTTP medium
func DefaultConfig() Config {
	return Config{
		URL:         "http://localhost:8081/ingest",
		Method:      http.MethodPost,
		ContentType: "application/x-ndjson",
		Timeout:     30 * time.Second,
		RetryCount:  2,
	}
}

// Medium delivers each payload as one HTTP request. Server errors (5xx)
// and transport failures retry with backoff; client errors (4xx) fail the
// batch immediately.
type Medium struct {
	config Config
	client *http.Client
}

// New creates an HTTP medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.URL = v.String("url", config.URL)
	config.Method = v.String("method", config.Method)
	config.ContentType = v.String("content_type", config.ContentType)
	config.Headers = v.Strings("header")
	config.Gzip = v.Bool("gzip", config.Gzip)
	config.Timeout = v.Duration("timeout", config.Timeout)
	config.RetryCount = v.Int("retry_count", config.RetryCount)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Medium{config: config}, nil
}

// Open prepares the HTTP client.
func (m *Medium) Open(_ context.Context) error {
	m.client = &http.Client{Timeout: m.config.Timeout}
	return nil
}

// Write sends one payload.
func (m *Medium) Write(ctx context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "http medium cannot deliver raw rows"), "HTTPMedium")
	}

	body := data
	encoding := ""
	if m.config.Gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return medium.WriteFailed(err, "HTTPMedium")
		}
		if err := zw.Close(); err != nil {
			return medium.WriteFailed(err, "HTTPMedium")
		}
		body = buf.Bytes()
		encoding = "gzip"
	}

	cfg := retry.Writes()
	cfg.MaxAttempts = m.config.RetryCount + 1

	err := retry.Do(ctx, cfg, func() error {
		return m.send(ctx, body, encoding)
	})
	if err != nil {
		return medium.WriteFailed(err, "HTTPMedium")
	}
	return nil
}

// send performs a single request attempt.
func (m *Medium) send(ctx context.Context, body []byte, encoding string) error {
	req, err := http.NewRequestWithContext(ctx, m.config.Method, m.config.URL,
		bytes.NewReader(body))
	if err != nil {
		return retry.NonRetryable(err)
	}

	req.Header.Set("Content-Type", m.config.ContentType)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	for _, h := range m.config.Headers {
		name, value, _ := strings.Cut(h, ":")
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error: %s", resp.Status)
	default:
		return retry.NonRetryable(fmt.Errorf("request rejected: %s", resp.Status))
	}
}

// Close releases idle connections.
func (m *Medium) Close() error {
	if m.client != nil {
		m.client.CloseIdleConnections()
	}
	return nil
}

// Register adds the HTTP medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "http",
		Description: "send each batch as one HTTP request",
		AddArguments: func(g *extension.Group) {
			g.String("http-url", "http://localhost:8081/ingest",
				"Send output to <url>")
			g.String("http-method", http.MethodPost,
				"HTTP method for batch requests")
			g.String("http-content-type", "application/x-ndjson",
				"Content-Type header for batch requests")
			g.StringSlice("http-header",
				"Extra request header as \"Name: value\" (repeatable)")
			g.Bool("http-gzip", false,
				"Enable gzip compression of request bodies")
			g.Duration("http-timeout", 30*time.Second,
				"Per-request timeout")
			g.Int("http-retry-count", 2,
				"Retries for failed requests")
		},
		New: New,
	})
}
