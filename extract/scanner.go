package extract

import (
	"bytes"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind classifies a string occurrence.
type Kind int

const (
	// Hardcoded is a literal not routed through any localization call.
	Hardcoded Kind = iota
	// LocalizedCall is a literal key passed to a localization call.
	LocalizedCall
	// DynamicLocalizedCall is a localized key built with interpolation.
	DynamicLocalizedCall
)

var kindNames = [...]string{"hardcoded", "localized", "dynamic"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText renders the kind by name in JSON reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Occurrence is one classified string literal.
type Occurrence struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	// Offset and End delimit the literal, delimiters included.
	Offset int `json:"-"`
	End    int `json:"-"`
	// Text is the literal content as written in source.
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
	// Key is the unescaped key of a LocalizedCall.
	Key string `json:"key,omitempty"`
	// Prefix and Pattern describe a DynamicLocalizedCall: the key with every
	// interpolation replaced by "*", and an anchored regular expression
	// matching every concrete key the call can produce.
	Prefix  string `json:"prefix,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	// Table is the table named at the call site, if any.
	Table string `json:"table,omitempty"`
	// Context is the UI component or construct the literal appears in.
	Context string `json:"context,omitempty"`
	// Multiline is set for triple-quoted literals.
	Multiline bool `json:"-"`
}

// Scanner classifies the string literals of source files. It holds only
// compiled, read-only state and is safe for concurrent use.
type Scanner struct {
	syntax     CallSyntax
	patterns   *Patterns
	prefixes   []string
	callees    map[string]bool
	tableArg   *regexp.Regexp
	tableLabel *regexp.Regexp

	escape      byte
	interpOpen  byte
	interpClose byte
}

// NewScanner prepares a scanner for syntax. patterns filters hardcoded
// candidates; nil keeps every unmarked literal.
func NewScanner(syntax CallSyntax, patterns *Patterns) (*Scanner, error) {
	s := &Scanner{
		syntax:      syntax,
		patterns:    patterns,
		callees:     make(map[string]bool),
		escape:      '\\',
		interpOpen:  '(',
		interpClose: ')',
	}
	if len(syntax.InterpOpen) >= 2 {
		s.escape = syntax.InterpOpen[0]
		s.interpOpen = syntax.InterpOpen[len(syntax.InterpOpen)-1]
	}
	if syntax.InterpClose != "" {
		s.interpClose = syntax.InterpClose[0]
	}
	for _, p := range syntax.Prefixes {
		norm := stripSpace(p)
		s.prefixes = append(s.prefixes, norm)
		if i := strings.IndexByte(norm, '('); i > 0 {
			s.callees[norm[:i]] = true
		}
	}
	if syntax.TableArg != "" {
		re, err := regexp.Compile(syntax.TableArg)
		if err != nil {
			return nil, fmt.Errorf("call syntax %s: table argument: %w", syntax.Name, err)
		}
		s.tableArg = re
	}
	if len(syntax.TableLabels) > 0 {
		labels := make([]string, len(syntax.TableLabels))
		for i, l := range syntax.TableLabels {
			labels[i] = regexp.QuoteMeta(l)
		}
		s.tableLabel = regexp.MustCompile(`^\s*,\s*(?:` + strings.Join(labels, "|") + `)\s*:\s*"([^"\\]*)"`)
	}
	return s, nil
}

// Syntax returns the call syntax the scanner was built for.
func (s *Scanner) Syntax() CallSyntax { return s.syntax }

// Scan returns every occurrence in src in source order.
func (s *Scanner) Scan(file string, src []byte) []Occurrence {
	return slices.Collect(s.Occurrences(file, src))
}

// Occurrences lazily yields the classified literals of src in source order.
// The sequence can be iterated any number of times.
func (s *Scanner) Occurrences(file string, src []byte) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		pos := newPositioner(src)
		s.lex(src, func(lit literal) bool {
			occ, ok := s.classify(src, lit)
			if !ok {
				return true
			}
			occ.File = file
			occ.Line, occ.Column = pos.at(lit.start)
			return yield(occ)
		})
	}
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func (s *Scanner) classify(src []byte, lit literal) (Occurrence, bool) {
	raw := string(src[lit.contentStart:lit.contentEnd])
	occ := Occurrence{
		Offset:    lit.start,
		End:       lit.end,
		Text:      raw,
		Multiline: lit.multiline,
	}
	if lit.multiline {
		occ.Text = strings.TrimSpace(raw)
	}

	marked, table := s.callMarker(src, lit)
	if marked {
		occ.Table = table
		if !lit.interpolated() {
			occ.Kind = LocalizedCall
			occ.Key = lit.value(s.escape)
			return occ, true
		}
		occ.Kind = DynamicLocalizedCall
		occ.Prefix, occ.Pattern = lit.dynamic(s.escape)
		return occ, true
	}

	ctx := precedingContext(src, lit.start)
	if ctx.ignored(s.callees) {
		return occ, false
	}
	occ.Kind = Hardcoded
	occ.Context = ctx.name()
	if s.patterns != nil {
		if _, excluded := s.patterns.Excluded(occ.Text); excluded {
			return occ, false
		}
	}
	return occ, true
}

// callMarker reports whether lit is the key of a localization call and the
// table named at the call site.
func (s *Scanner) callMarker(src []byte, lit literal) (bool, string) {
	after := src[lit.end:]
	for _, suf := range s.syntax.Suffixes {
		if !bytes.HasPrefix(after, []byte(suf)) {
			continue
		}
		rest := after[len(suf):]
		if len(rest) > 0 && isIdentByte(rest[0]) {
			continue // e.g. .localizedCapitalized
		}
		if s.tableArg != nil {
			if m := s.tableArg.FindSubmatch(head(rest, 128)); m != nil {
				return true, string(m[1])
			}
		}
		return true, ""
	}

	before := stripSpace(string(src[max(0, lit.start-96):lit.start]))
	for _, p := range s.prefixes {
		if !strings.HasSuffix(before, p) {
			continue
		}
		if s.tableLabel != nil {
			if m := s.tableLabel.FindSubmatch(head(after, 128)); m != nil {
				return true, string(m[1])
			}
		}
		return true, ""
	}
	return false, ""
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// literalContext describes what precedes a literal.
type literalContext struct {
	callee string // enclosing call, e.g. "Button", "navigationTitle"
	label  string // argument label, e.g. "title"
	kind   string // "Return", "Variable" or ""
}

// ignoredCallees never take user-facing text.
var ignoredCallees = map[string]bool{
	"print": true, "debugPrint": true, "NSLog": true, "os_log": true, "dump": true,
	"fatalError": true, "assert": true, "assertionFailure": true,
	"precondition": true, "preconditionFailure": true,
	"debug": true, "trace": true, "notice": true, "fault": true, "log": true,
	"Image": true, "UIImage": true, "NSImage": true, "Color": true, "UIColor": true,
	"AppStorage": true, "SceneStorage": true, "Selector": true, "URL": true,
	"Logger": true, "Preview": true, "accessibilityIdentifier": true,
	"UserDefaults": true, "Name": true,
}

// ignoredLabels mark arguments that are identifiers, not text.
var ignoredLabels = map[string]bool{
	"comment": true, "tableName": true, "table": true, "bundle": true,
	"forKey": true, "key": true, "systemName": true, "systemImage": true,
	"named": true, "identifier": true, "withIdentifier": true,
	"forResource": true, "ofType": true, "subsystem": true, "category": true,
	"forCellReuseIdentifier": true, "reuseIdentifier": true, "format": true,
}

func (c literalContext) ignored(localizationCallees map[string]bool) bool {
	return ignoredCallees[c.callee] || ignoredLabels[c.label] || localizationCallees[c.callee]
}

func (c literalContext) name() string {
	switch {
	case c.callee != "" && c.label != "":
		return c.callee + "." + c.label
	case c.callee != "":
		return c.callee
	case c.label != "":
		return c.label
	}
	return c.kind
}

// precedingContext inspects the source before offset start.
func precedingContext(src []byte, start int) literalContext {
	var c literalContext
	p := skipSpaceBack(src, start-1)
	if p < 0 {
		return c
	}
	switch src[p] {
	case '(':
		c.callee = identBefore(src, p)
	case ':':
		c.label = identBefore(src, p)
		c.callee = enclosingCallee(src, p)
	case ',':
		c.callee = enclosingCallee(src, p)
	case '=':
		if p > 0 && strings.IndexByte("=!<>", src[p-1]) < 0 {
			c.kind = "Variable"
		}
	default:
		if identBefore(src, p+1) == "return" {
			c.kind = "Return"
		}
	}
	return c
}

// enclosingCallee finds the call whose unmatched '(' precedes p.
func enclosingCallee(src []byte, p int) string {
	depth := 0
	for i := p - 1; i >= 0 && p-i < 512; i-- {
		switch src[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				return identBefore(src, i)
			}
			depth--
		case '\n', '{', '}':
			if depth == 0 {
				return ""
			}
		}
	}
	return ""
}

// identBefore returns the identifier ending right before p (whitespace
// skipped). A leading '.' is dropped: `.navigationTitle(` yields
// "navigationTitle".
func identBefore(src []byte, p int) string {
	end := skipSpaceBack(src, p-1) + 1
	start := end
	for start > 0 && isIdentByte(src[start-1]) {
		start--
	}
	return string(src[start:end])
}

func skipSpaceBack(src []byte, p int) int {
	for p >= 0 && (src[p] == ' ' || src[p] == '\t' || src[p] == '\n' || src[p] == '\r') {
		p--
	}
	return p
}

func isIdentByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func head(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// positioner converts increasing byte offsets into 1-based line and column.
type positioner struct {
	src       []byte
	off       int
	line      int
	lineStart int
}

func newPositioner(src []byte) *positioner {
	return &positioner{src: src, line: 1}
}

func (p *positioner) at(offset int) (int, int) {
	if offset < p.off {
		p.off, p.line, p.lineStart = 0, 1, 0
	}
	for i := p.off; i < offset; i++ {
		if p.src[i] == '\n' {
			p.line++
			p.lineStart = i + 1
		}
	}
	p.off = offset
	return p.line, utf8.RuneCount(p.src[p.lineStart:offset]) + 1
}
