// Package logging builds the zap logger shared by every lokscan command.
//
// Diagnostics go to stderr so stdout stays clean for reports and JSON.
// The colored user-facing messages of the CLI are not logs and do not go
// through here.
package logging

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger variant.
type Options struct {
	// Verbose enables debug level; otherwise only warnings and errors.
	Verbose bool
	// JSON selects the JSON encoder instead of the console encoder.
	JSON bool
	// File, when set, receives the log instead of stderr.
	File string
	// NoColor disables level colors of the console encoder.
	NoColor bool
}

// New builds a logger.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	if !opts.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = ""
		cfg.EncoderConfig.CallerKey = ""
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if opts.File == "" && !opts.NoColor && colorStderr() {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	if opts.File != "" {
		cfg.OutputPaths = []string{opts.File}
	}

	log, err := cfg.Build(zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

// Must is New for callers that cannot continue without a logger; it
// falls back to a no-op logger.
func Must(opts Options) *zap.Logger {
	log, err := New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return zap.NewNop()
	}
	return log
}

func colorStderr() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
