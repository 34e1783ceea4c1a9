// Package stringsfile implements reading and writing of Apple .strings
// localization tables.
//
// Format: one `"key" = "value";` entry per line. Lines starting with `//`
// and `/* ... */` blocks (which may span several lines) are comments and are
// preserved verbatim. Blank lines are preserved too. Files are UTF-8.
//
// File naming convention: one table per module per language:
//
//	Resources/en.lproj/Common.strings  (primary)
//	Resources/de.lproj/Common.strings  (translation)
//
// The File type keeps the original line order so that untouched entries are
// written back byte-for-byte; only entries changed through Set are
// re-rendered.
package stringsfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/minios-linux/lokscan/diag"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

type lineKind int

const (
	lineBlank   lineKind = iota // blank / whitespace-only line
	lineComment                 // `//` line or part of a `/* */` block
	lineEntry                   // "key" = "value";
)

type line struct {
	kind  lineKind
	raw   string // original text; empty for entries created or changed by Set
	key   string
	value string
	num   int // 1-based source line, 0 for new entries
}

// Entry is one key/value pair with the line it was read from.
type Entry struct {
	Key   string
	Value string
	Line  int
}

// File represents a parsed .strings table.
type File struct {
	lines []line
	// index maps key → position in lines.
	index map[string]int
}

// New returns an empty table.
func New() *File {
	return &File{index: make(map[string]int)}
}

// NewFile returns an empty table carrying the standard header comment.
func NewFile(lang, module string) *File {
	f := New()
	header := []string{
		"/*",
		"  " + module + ".strings",
		"  Language: " + lang,
		"*/",
		"",
	}
	for _, h := range header {
		kind := lineComment
		if h == "" {
			kind = lineBlank
		}
		f.lines = append(f.lines, line{kind: kind, raw: h})
	}
	return f
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .strings file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse parses .strings content. name is used in error messages. The first
// syntax error aborts parsing with a *diag.ParseError; duplicate keys are
// errors, not silent overwrites.
func Parse(name string, data []byte) (*File, error) {
	f, issues := parse(name, data, false)
	for _, is := range issues {
		if is.Severity == diag.SeverityError {
			return nil, &diag.ParseError{File: name, Line: is.Line, Reason: is.Message}
		}
	}
	return f, nil
}

// Lint parses content the same way Parse does but keeps going after errors,
// returning every finding: syntax errors, duplicates, empty values and TODO
// comments.
func Lint(name string, data []byte) []diag.Issue {
	_, issues := parse(name, data, true)
	return issues
}

func parse(name string, data []byte, lint bool) (*File, []diag.Issue) {
	f := New()
	var issues []diag.Issue
	report := func(sev diag.Severity, code string, num int, key, format string, args ...any) {
		issues = append(issues, diag.Issue{
			Severity: sev, Code: code, File: name, Line: num, Key: key,
			Message: fmt.Sprintf(format, args...),
		})
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rawLines := strings.Split(text, "\n")
	if len(rawLines) > 0 && rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	if !utf8.ValidString(text) {
		report(diag.SeverityError, diag.CodeInvalidSyntax, 0, "", "file is not valid UTF-8")
		if !lint {
			return nil, issues
		}
	}

	inBlock := false
	for i, raw := range rawLines {
		num := i + 1
		trimmed := strings.TrimSpace(raw)

		if inBlock {
			f.lines = append(f.lines, line{kind: lineComment, raw: raw, num: num})
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			if lint && strings.Contains(strings.ToUpper(trimmed), "TODO") {
				report(diag.SeverityInfo, diag.CodeTodo, num, "", "TODO comment found")
			}
			continue
		}

		switch {
		case trimmed == "":
			f.lines = append(f.lines, line{kind: lineBlank, raw: raw, num: num})

		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "/*"):
			f.lines = append(f.lines, line{kind: lineComment, raw: raw, num: num})
			if strings.HasPrefix(trimmed, "/*") && !strings.Contains(trimmed[2:], "*/") {
				inBlock = true
			}
			if lint && strings.Contains(strings.ToUpper(trimmed), "TODO") {
				report(diag.SeverityInfo, diag.CodeTodo, num, "", "TODO comment found")
			}

		default:
			key, value, code, reason := parseEntry(trimmed)
			if reason != "" {
				report(diag.SeverityError, code, num, key, "%s", reason)
				if !lint {
					return nil, issues
				}
				f.lines = append(f.lines, line{kind: lineComment, raw: raw, num: num})
				continue
			}
			if first, dup := f.index[key]; dup {
				report(diag.SeverityError, diag.CodeDuplicateKey, num, key,
					"duplicate key %q (first defined on line %d)", key, f.lines[first].num)
				if !lint {
					return nil, issues
				}
				continue
			}
			if lint && strings.TrimSpace(value) == "" {
				report(diag.SeverityWarning, diag.CodeEmptyValue, num, key, "empty value for %q", key)
			}
			f.index[key] = len(f.lines)
			f.lines = append(f.lines, line{kind: lineEntry, raw: raw, key: key, value: value, num: num})
		}
	}

	if inBlock {
		report(diag.SeverityError, diag.CodeUnterminated, len(rawLines), "", "unterminated block comment")
	}
	return f, issues
}

// parseEntry parses one `"key" = "value";` line. On failure it returns the
// issue code and a reason.
func parseEntry(s string) (key, value, code, reason string) {
	if s[0] != '"' {
		return "", "", diag.CodeInvalidSyntax, `invalid syntax, expected "key" = "value";`
	}
	key, pos, code, reason := readQuoted(s, 1)
	if reason != "" {
		return key, "", code, reason
	}
	if key == "" {
		return "", "", diag.CodeInvalidSyntax, "empty key"
	}

	pos = skipSpace(s, pos)
	if pos >= len(s) || s[pos] != '=' {
		return key, "", diag.CodeInvalidSyntax, fmt.Sprintf("missing '=' after key %q", key)
	}
	pos = skipSpace(s, pos+1)
	if pos >= len(s) || s[pos] != '"' {
		return key, "", diag.CodeInvalidSyntax, fmt.Sprintf("missing quoted value for key %q", key)
	}
	value, pos, code, reason = readQuoted(s, pos+1)
	if reason != "" {
		return key, "", code, reason
	}

	pos = skipSpace(s, pos)
	if pos >= len(s) || s[pos] != ';' {
		return key, value, diag.CodeMissingSemicolon, fmt.Sprintf("missing ';' after value of %q", key)
	}
	rest := strings.TrimSpace(s[pos+1:])
	if rest != "" && !strings.HasPrefix(rest, "//") && !(strings.HasPrefix(rest, "/*") && strings.HasSuffix(rest, "*/")) {
		return key, value, diag.CodeInvalidSyntax, fmt.Sprintf("unexpected text after entry %q", key)
	}
	return key, value, "", ""
}

// readQuoted reads a quoted string starting right after its opening quote
// and returns the unescaped content and the position after the closing quote.
func readQuoted(s string, pos int) (string, int, string, string) {
	var b strings.Builder
	for pos < len(s) {
		c := s[pos]
		switch c {
		case '"':
			return b.String(), pos + 1, "", ""
		case '\\':
			if pos+1 >= len(s) {
				return b.String(), pos, diag.CodeUnterminated, "unterminated string"
			}
			esc := s[pos+1]
			switch esc {
			case '"', '\\', '\'':
				b.WriteByte(esc)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case 'u', 'U':
				if pos+6 > len(s) {
					return b.String(), pos, diag.CodeInvalidEscape, fmt.Sprintf("invalid escape sequence \\%c", esc)
				}
				n, err := strconv.ParseUint(s[pos+2:pos+6], 16, 32)
				if err != nil {
					return b.String(), pos, diag.CodeInvalidEscape, fmt.Sprintf("invalid escape sequence \\%c%s", esc, s[pos+2:pos+6])
				}
				b.WriteRune(rune(n))
				pos += 6
				continue
			default:
				return b.String(), pos, diag.CodeInvalidEscape, fmt.Sprintf("invalid escape sequence \\%c", esc)
			}
			pos += 2
		default:
			b.WriteByte(c)
			pos++
		}
	}
	return b.String(), pos, diag.CodeUnterminated, "unterminated string"
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Keys returns all keys in document order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.index))
	for _, ln := range f.lines {
		if ln.kind == lineEntry {
			keys = append(keys, ln.key)
		}
	}
	return keys
}

// Entries returns all entries in document order.
func (f *File) Entries() []Entry {
	entries := make([]Entry, 0, len(f.index))
	for _, ln := range f.lines {
		if ln.kind == lineEntry {
			entries = append(entries, Entry{Key: ln.key, Value: ln.value, Line: ln.num})
		}
	}
	return entries
}

// Len returns the number of entries.
func (f *File) Len() int { return len(f.index) }

// Get returns the value for key and whether it was found.
func (f *File) Get(key string) (string, bool) {
	if idx, ok := f.index[key]; ok {
		return f.lines[idx].value, true
	}
	return "", false
}

// Set updates key in place or appends it at the end of the file.
// It reports whether the key was added.
func (f *File) Set(key, value string) bool {
	if idx, ok := f.index[key]; ok {
		if f.lines[idx].value != value {
			f.lines[idx].value = value
			f.lines[idx].raw = ""
		}
		return false
	}
	f.index[key] = len(f.lines)
	f.lines = append(f.lines, line{kind: lineEntry, key: key, value: value})
	return true
}

// Remove deletes key. It reports whether the key existed.
func (f *File) Remove(key string) bool {
	idx, ok := f.index[key]
	if !ok {
		return false
	}
	f.lines = append(f.lines[:idx], f.lines[idx+1:]...)
	delete(f.index, key)
	for k, i := range f.index {
		if i > idx {
			f.index[k] = i - 1
		}
	}
	return true
}

// Stats returns (total, nonEmpty, percentNonEmpty).
func (f *File) Stats() (int, int, float64) {
	total, filled := 0, 0
	for _, ln := range f.lines {
		if ln.kind == lineEntry {
			total++
			if strings.TrimSpace(ln.value) != "" {
				filled++
			}
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(filled) / float64(total) * 100
	}
	return total, filled, pct
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal serialises the table back to .strings format.
func (f *File) Marshal() []byte {
	var buf bytes.Buffer
	for _, ln := range f.lines {
		switch ln.kind {
		case lineBlank:
			buf.WriteByte('\n')
		case lineComment:
			buf.WriteString(ln.raw)
			buf.WriteByte('\n')
		case lineEntry:
			if ln.raw != "" {
				buf.WriteString(ln.raw)
			} else {
				buf.WriteString(FormatEntry(ln.key, ln.value))
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// FormatEntry renders a single `"key" = "value";` line.
func FormatEntry(key, value string) string {
	return `"` + Escape(key) + `" = "` + Escape(value) + `";`
}

// Escape quotes s for use inside a .strings literal.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WriteFile serialises and writes to path through a temporary file in the
// same directory, so readers never observe a half-written table.
func (f *File) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".lokscan-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(f.Marshal()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
