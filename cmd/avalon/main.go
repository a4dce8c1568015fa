// Package main implements the avalon command: a streaming test-data
// generator that synthesizes records from pluggable models, transforms
// them through mapping chains, serializes them with pluggable formats, and
// delivers them to one of many sinks under global rate and count caps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	avalonerrors "github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/extensionregistry"
	"github.com/admirito/avalon/generic/metricsrv"
	"github.com/admirito/avalon/scheduler"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "avalon"
)

// exit codes per the CLI contract
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitRuntime)
		}
	}()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	logger := setupLogger(getEnv("AVALON_LOG_LEVEL", "info"), getEnv("AVALON_LOG_FORMAT", "text"))
	slog.SetDefault(logger)

	reg := extension.NewRegistry()
	if err := extensionregistry.RegisterAll(reg); err != nil {
		return fail(stderr, err)
	}

	parser := extension.NewParser(appName, logger)
	parser.SetOutput(stderr)
	addCoreFlags(parser.Core())

	gens, err := extension.Generics(reg)
	if err != nil {
		return fail(stderr, err)
	}
	if err := extension.RunHooks(gens, extension.HookPreAddArgs, parser); err != nil {
		return fail(stderr, err)
	}

	parser.AddExtensionArgs(reg)

	if err := extension.RunHooks(gens, extension.HookPostAddArgs, parser); err != nil {
		return fail(stderr, err)
	}

	if err := parser.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printDetailedHelp(stdout, parser)
			return exitOK
		}
		return fail(stderr, err)
	}

	cfg := harvestCLI(parser)

	logger = setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return exitOK
	}
	if cfg.Completion != "" {
		if err := writeCompletionScript(stdout, cfg.Completion, parser); err != nil {
			return fail(stderr, err)
		}
		return exitOK
	}
	if code, done := runListCommands(stdout, reg, cfg); done {
		return code
	}

	if err := validateCLI(parser, cfg); err != nil {
		return fail(stderr, err)
	}

	if err := extension.RunHooks(gens, extension.HookPostParseArgs, parser); err != nil {
		return fail(stderr, err)
	}

	pipeline, err := assemblePipeline(reg, parser, cfg, logger)
	if err != nil {
		return fail(stderr, err)
	}

	return runPipeline(pipeline, cfg, stderr)
}

// runListCommands handles the --list-* flags. It reports whether one of
// them was given.
func runListCommands(stdout io.Writer, reg *extension.Registry, cfg *CLIConfig) (int, bool) {
	list := func(f extension.Family) int {
		for _, title := range reg.Titles(f) {
			fmt.Fprintln(stdout, title)
		}
		return exitOK
	}

	switch {
	case cfg.ListModels:
		return list(extension.FamilyModel), true
	case cfg.ListFormats:
		return list(extension.FamilyFormat), true
	case cfg.ListMediums:
		return list(extension.FamilyMedium), true
	case cfg.ListMappings:
		return list(extension.FamilyMapping), true
	}
	return exitOK, false
}

// runPipeline runs the scheduler under signal handling. The first
// SIGINT/SIGTERM starts a graceful drain; a second one kills the process
// through the restored default disposition.
func runPipeline(p *pipeline, cfg *CLIConfig, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// restore default signal handling so a second signal aborts hard
		stop()
	}()

	sched, err := scheduler.New(scheduler.Config{
		Number:            cfg.Number,
		Rate:              cfg.Rate,
		BatchSize:         cfg.BatchSize,
		Writers:           cfg.OutputWriters,
		Duration:          secondsToDuration(cfg.Duration),
		ShutdownTimeout:   cfg.ShutdownTimeout,
		Progress:          secondsToDuration(cfg.Progress),
		MaxModelErrors:    cfg.MaxModelErrors,
		MaxFormatErrors:   cfg.MaxFormatErrors,
		MaxMediumFailures: cfg.MaxMediumFailures,
		Logger:            slog.Default(),
		Metrics:           metricsrv.Registry().Pipeline,
	}, p.producers, p.medium)
	if err != nil {
		return fail(stderr, err)
	}

	slog.Info("pipeline starting",
		"producers", len(p.producers),
		"format", p.formatTitle,
		"media", p.mediumTitle,
		"number", cfg.Number,
		"rate", cfg.Rate,
		"batch_size", cfg.BatchSize,
		"writers", cfg.OutputWriters)

	if err := sched.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "avalon: %v\n", err)
		return exitRuntime
	}

	stats := sched.Stats()
	slog.Info("pipeline finished",
		"emitted", stats.Emitted.Load(),
		"produced", stats.Produced.Load(),
		"dropped", stats.Dropped.Load(),
		"write_failures", stats.WriteFailures.Load())
	return exitOK
}

// fail prints a startup error and maps it to the exit code: invalid
// configuration exits 2, everything else 1.
func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "avalon: %v\n", err)
	if avalonerrors.IsInvalid(err) {
		return exitConfig
	}
	return exitRuntime
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// printDetailedHelp writes the usage text with every flag, including the
// dynamically contributed extension flags.
func printDetailedHelp(w io.Writer, parser *extension.Parser) {
	fmt.Fprintf(w, `%[1]s - streaming test-data generator

Usage: %[1]s [options] [[I]model[R][{uri,...}] ...]

Positional arguments select data models: 'I' parallel instances of 'model'
generating the 'R' ratio of the total output, with optional per-producer
mapping URLs in braces, e.g. '10snort1000' or 'snort{file://drop.yml}'.
The default model spec is 'test'.

Options:
`, appName)
	parser.SetOutput(w)
	parser.PrintDefaults()
	fmt.Fprintf(w, "\nVersion: %s\n", Version)
}
