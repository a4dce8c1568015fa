// Package metricsrv provides the "metrics" generic extension: a
// --metrics-listen flag that serves the pipeline's prometheus registry
// over HTTP for the duration of the run.
package metricsrv

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/metric"
)

// registry is the process-wide metrics registry, shared between this
// generic (which serves it) and the pipeline (which feeds it).
var registry = metric.NewMetricsRegistry()

// Registry returns the shared metrics registry.
func Registry() *metric.MetricsRegistry {
	return registry
}

// Generic starts the metrics endpoint after parsing.
type Generic struct {
	server *http.Server
}

// New creates the metrics generic.
func New(_ extension.Values) (any, error) {
	return &Generic{}, nil
}

// PreAddArgs implements extension.Generic.
func (*Generic) PreAddArgs(_ *extension.Parser) error {
	return nil
}

// PostAddArgs implements extension.Generic.
func (*Generic) PostAddArgs(_ *extension.Parser) error {
	return nil
}

// PostParseArgs starts the HTTP listener when an address was configured.
func (g *Generic) PostParseArgs(p *extension.Parser) error {
	v, ok := p.Get("metrics_listen")
	if !ok {
		return nil
	}
	addr, _ := v.(string)
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	g.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.server.ListenAndServe()
	}()

	// give a bad address the chance to fail startup instead of dying later
	select {
	case err := <-errCh:
		return errors.WrapInvalid(err, "Generic", "PostParseArgs", "start metrics listener")
	case <-time.After(50 * time.Millisecond):
	}

	slog.Info("metrics endpoint listening", "addr", addr)
	return nil
}

// Register adds the metrics generic and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyGeneric,
		Title:       "metrics",
		Description: "serve prometheus metrics during the run",
		AddArguments: func(g *extension.Group) {
			g.String("metrics-listen", "",
				"Serve prometheus metrics on this address, e.g. :9090")
		},
		New: New,
	})
}
