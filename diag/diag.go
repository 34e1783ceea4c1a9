// Package diag defines the error taxonomy shared by every lokscan package,
// the validation issue model, and the mapping from errors to exit codes.
//
// Errors local to one file or key are collected (see Collector) and reported
// at the end of a run; errors about the setup itself abort before scanning.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitThreshold = 1 // a configured health/consistency threshold was not met
	ExitConfig    = 2 // configuration or table parse error
	ExitFailure   = 3 // any other fatal error
)

// ErrThreshold is returned by commands whose checks ran fine but whose
// result is below a configured threshold.
var ErrThreshold = errors.New("threshold not met")

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

// ConfigError reports invalid or missing configuration. Fatal.
type ConfigError struct {
	// Source is the file or setting the problem was found in.
	Source string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Source == "" {
		return "config: " + msg
	}
	return fmt.Sprintf("config %s: %s", e.Source, msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError with a formatted reason.
func Configf(source, format string, args ...any) *ConfigError {
	return &ConfigError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// ParseError reports a malformed table file.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// LanguageNotFoundError reports an operation on a language that has no
// table (for Module, when set) or is not configured.
type LanguageNotFoundError struct {
	Lang   string
	Module string
}

func (e *LanguageNotFoundError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("language %q has no table for module %q", e.Lang, e.Module)
	}
	return fmt.Sprintf("language %q not found", e.Lang)
}

// TranslationError reports a failed translation of one key. Recoverable.
type TranslationError struct {
	Key  string
	Lang string
	Err  error
}

func (e *TranslationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("translating to %s: %v", e.Lang, e.Err)
	}
	return fmt.Sprintf("translating %q to %s: %v", e.Key, e.Lang, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// IOError reports a failed file operation. Fatal to that single write only.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Exit codes
// ---------------------------------------------------------------------------

// ExitCode maps err to the process exit code. When err aggregates several
// errors, the most severe one wins.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		code := ExitOK
		for _, e := range merr.Errors {
			code = worse(code, ExitCode(e))
		}
		return code
	}

	var cfgErr *ConfigError
	var parseErr *ParseError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &parseErr):
		return ExitConfig
	case errors.Is(err, ErrThreshold):
		return ExitThreshold
	default:
		return ExitFailure
	}
}

// worse orders exit codes by severity: config > failure > threshold > ok.
func worse(a, b int) int {
	rank := func(c int) int {
		switch c {
		case ExitConfig:
			return 3
		case ExitFailure:
			return 2
		case ExitThreshold:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// ---------------------------------------------------------------------------
// Collector
// ---------------------------------------------------------------------------

// Collector aggregates recoverable errors from concurrent workers.
type Collector struct {
	mu  sync.Mutex
	err *multierror.Error
}

// Add records err. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.err = multierror.Append(c.err, err)
	c.mu.Unlock()
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return 0
	}
	return len(c.err.Errors)
}

// Errors returns the recorded errors sorted by message for stable output.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return nil
	}
	out := append([]error(nil), c.err.Errors...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Error() < out[j].Error() })
	return out
}

// Err returns the aggregate error, or nil when nothing was recorded.
func (c *Collector) Err() error {
	errs := c.Errors()
	if len(errs) == 0 {
		return nil
	}
	merr := &multierror.Error{Errors: errs, ErrorFormat: listFormat}
	return merr
}

func listFormat(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  * " + err.Error()
	}
	return fmt.Sprintf("%d errors occurred:\n%s", len(errs), strings.Join(lines, "\n"))
}
