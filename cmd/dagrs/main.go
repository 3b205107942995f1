// Command dagrs runs a graph described by a YAML document through the
// dagrs engine. Flag parsing stays on the standard library's flag
// package rather than a third-party CLI framework — see DESIGN.md for
// the full justification of this choice. Log-level and log-path
// defaults may also be layered in from a --config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dagrs-go/dagrs/pkg/dagrs"
	"github.com/dagrs-go/dagrs/pkg/dagrs/config"
	"github.com/dagrs-go/dagrs/pkg/dagrs/parser"
)

const (
	exitSuccess       = 0
	exitTaskFailure   = 1
	exitStructuralErr = 2
	exitIOErr         = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dagrs", flag.ContinueOnError)
	yamlPath := fs.String("yaml", "", "path to the YAML graph document (required)")
	configPath := fs.String("config", "", "path to a YAML or JSON config file supplying log-level/log-path defaults")
	logPath := fs.String("log-path", "", "log output file; defaults to stdout")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitStructuralErr
	}

	if *yamlPath == "" {
		fmt.Fprintln(os.Stderr, "dagrs: --yaml is required")
		return exitStructuralErr
	}

	cfg := config.New(nil)
	if *configPath != "" {
		loaded, err := config.FromFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "dagrs:", err)
			return exitIOErr
		}
		cfg = loaded
	}

	levelStr := *logLevel
	if levelStr == "" {
		levelStr = cfg.String("log_level", "info")
	}
	level, err := parseLogLevel(levelStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dagrs:", err)
		return exitStructuralErr
	}

	pathStr := *logPath
	if pathStr == "" {
		pathStr = cfg.String("log_path", "")
	}
	logger, closeLog, err := buildLogger(pathStr, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dagrs:", err)
		return exitIOErr
	}
	defer closeLog()

	graph, env, err := parser.Parse(*yamlPath, nil)
	if err != nil {
		var parseErr *dagrs.ParseError
		if errors.As(err, &parseErr) {
			logger.Error("parse error", "reason", parseErr.Reason, "line", parseErr.Line)
			return exitStructuralErr
		}
		logger.Error("failed to read yaml", "error", err)
		return exitIOErr
	}

	graph.SetLogger(logger)
	graph.SetEnv(env)

	if err := graph.Validate(); err != nil {
		logger.Error("structural validation failed", "error", err)
		return exitStructuralErr
	}

	ok, err := graph.RunAsync(context.Background())
	if err != nil {
		logger.Error("run failed to start", "error", err)
		return exitStructuralErr
	}
	if !ok {
		return exitTaskFailure
	}
	return exitSuccess
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("--log-level must be one of debug, info, warn, error (got %q)", s)
	}
}

func buildLogger(path string, level slog.Level) (*slog.Logger, func(), error) {
	out := os.Stdout
	closeFn := func() {}

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open log path: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}
