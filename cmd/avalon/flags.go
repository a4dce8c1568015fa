package main

import (
	"fmt"
	"os"
	"time"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
)

// CLIConfig holds the parsed core configuration
type CLIConfig struct {
	Number            int64
	Rate              float64
	BatchSize         int
	Duration          int // seconds, 0 disables
	Progress          int // seconds, 0 disables
	OutputWriters     int
	OutputFormat      string
	OutputMedia       string
	Maps              []string
	Textlog           bool
	MaxModelErrors    int
	MaxFormatErrors   int
	MaxMediumFailures int
	ShutdownTimeout   time.Duration

	ListModels   bool
	ListFormats  bool
	ListMediums  bool
	ListMappings bool

	LogLevel   string
	LogFormat  string
	ShowVersion bool
	Completion  string
}

// addCoreFlags contributes the non-extension flags.
func addCoreFlags(g *extension.Group) {
	g.Int64("number", -1,
		"Set the maximum number of emitted records to <N> (default unlimited)")
	g.Float64("rate", 0,
		"Set the average transfer rate to <N> records per second")
	g.Int("batch-size", 1000,
		"Set the default batch size to <N> records")
	g.Int("duration", 0,
		"Set the maximum transferring time to <N> seconds")
	g.Int("progress", 0,
		"Log the progress every <N> seconds")
	g.Int("output-writers", 4,
		"Limit the maximum number of simultaneous output writers to <N>")
	g.String("output-format", "json-lines",
		"Set the output format for serialization")
	g.String("output-media", "",
		"Set the output media for transferring data (default auto-detected)")
	g.String("output-format-filters", "",
		"Restrict and order the serialized fields, comma separated")
	g.StringSlice("map",
		"Append a global mapping: a registered title or a file:// URL (repeatable)")
	g.Bool("textlog", false,
		"Shortcut for the media/format combination mimicking a text-log appliance")

	g.Bool("list-models", false,
		"Print the list of available data models and exit")
	g.Bool("list-formats", false,
		"Print the list of available formats and exit")
	g.Bool("list-mediums", false,
		"Print the list of available mediums and exit")
	g.Bool("list-mappings", false,
		"Print the list of available mappings and exit")

	g.Int("max-model-errors", 100,
		"Retire a producer after <N> consecutive model errors")
	g.Int("max-format-errors", 100,
		"Abort after <N> consecutive format errors")
	g.Int("max-medium-failures", 10,
		"Abort after <N> consecutive medium failures")
	g.Duration("shutdown-timeout", 30*time.Second,
		"Graceful shutdown timeout (env: AVALON_SHUTDOWN_TIMEOUT)")

	g.String("log-level",
		getEnv("AVALON_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: AVALON_LOG_LEVEL)")
	g.String("log-format",
		getEnv("AVALON_LOG_FORMAT", "text"),
		"Log format: json, text (env: AVALON_LOG_FORMAT)")

	g.Bool("version", false, "Print the program version and exit")
	g.String("completion-script", "",
		"Emit a shell completion script (bash or zsh) and exit")
}

// harvestCLI reads the parsed core destinations into a CLIConfig.
func harvestCLI(p *extension.Parser) *CLIConfig {
	get := func(dest string) any {
		v, _ := p.Get(dest)
		return v
	}

	cfg := &CLIConfig{
		Number:            get("number").(int64),
		Rate:              get("rate").(float64),
		BatchSize:         get("batch_size").(int),
		Duration:          get("duration").(int),
		Progress:          get("progress").(int),
		OutputWriters:     get("output_writers").(int),
		OutputFormat:      get("output_format").(string),
		OutputMedia:       get("output_media").(string),
		Textlog:           get("textlog").(bool),
		MaxModelErrors:    get("max_model_errors").(int),
		MaxFormatErrors:   get("max_format_errors").(int),
		MaxMediumFailures: get("max_medium_failures").(int),
		ShutdownTimeout:   get("shutdown_timeout").(time.Duration),
		ListModels:        get("list_models").(bool),
		ListFormats:       get("list_formats").(bool),
		ListMediums:       get("list_mediums").(bool),
		ListMappings:      get("list_mappings").(bool),
		LogLevel:          get("log_level").(string),
		LogFormat:         get("log_format").(string),
		ShowVersion:       get("version").(bool),
		Completion:        get("completion_script").(string),
	}

	if maps, ok := get("map").([]string); ok {
		cfg.Maps = maps
	}

	if env := os.Getenv("AVALON_SHUTDOWN_TIMEOUT"); env != "" && !p.WasSet("shutdown_timeout") {
		if d, err := time.ParseDuration(env); err == nil {
			cfg.ShutdownTimeout = d
		}
	}

	return cfg
}

// validateCLI checks flag combinations that the parser cannot.
func validateCLI(p *extension.Parser, cfg *CLIConfig) error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "CLI", "validate",
			fmt.Sprintf(format, args...))
	}

	if p.WasSet("rate") && cfg.Rate <= 0 {
		return invalid("rate must be a positive number of records per second")
	}
	if cfg.BatchSize < 1 {
		return invalid("batch size must be at least 1")
	}
	if cfg.OutputWriters < 1 {
		return invalid("output writers must be at least 1")
	}
	if cfg.Number < -1 {
		return invalid("number cannot be negative")
	}
	if cfg.Duration < 0 {
		return invalid("duration cannot be negative")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return invalid("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
