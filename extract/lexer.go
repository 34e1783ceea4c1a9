package extract

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// literal is one string literal found by the lexer.
type literal struct {
	start, end               int // delimiters included
	contentStart, contentEnd int
	hashes                   int // raw string delimiter count
	multiline                bool
	segments                 []segment
}

// segment is a run of literal text or one interpolation.
type segment struct {
	text   string
	interp bool
}

func (l literal) interpolated() bool {
	for _, sg := range l.segments {
		if sg.interp {
			return true
		}
	}
	return false
}

// value returns the unescaped content of a literal without interpolation.
func (l literal) value(escape byte) string {
	var b strings.Builder
	for _, sg := range l.segments {
		b.WriteString(l.unescape(sg.text, escape))
	}
	return b.String()
}

// dynamic returns the display prefix and the anchored key pattern of an
// interpolated literal. Each interpolation, however complex, becomes one
// wildcard: `[^.]+` when it fills a whole dot segment or a dot follows it,
// `.+` only inside the last segment ("price+\(n)").
func (l literal) dynamic(escape byte) (string, string) {
	var prefix, pattern strings.Builder
	pattern.WriteByte('^')
	for i, sg := range l.segments {
		if !sg.interp {
			text := l.unescape(sg.text, escape)
			prefix.WriteString(text)
			pattern.WriteString(regexp.QuoteMeta(text))
			continue
		}
		prefix.WriteByte('*')
		rest := l.segments[i+1:]
		if dotFollows(rest) || (dotPrecedes(l.segments[:i]) && atEnd(rest)) {
			pattern.WriteString(`[^.]+`)
		} else {
			pattern.WriteString(`.+`)
		}
	}
	pattern.WriteByte('$')
	return prefix.String(), pattern.String()
}

// dotPrecedes reports whether an interpolation starts a dot segment.
func dotPrecedes(before []segment) bool {
	for i := len(before) - 1; i >= 0; i-- {
		if before[i].interp {
			return false
		}
		if t := before[i].text; t != "" {
			return t[len(t)-1] == '.'
		}
	}
	return true
}

func atEnd(rest []segment) bool {
	for _, sg := range rest {
		if sg.interp || sg.text != "" {
			return false
		}
	}
	return true
}

func dotFollows(rest []segment) bool {
	for _, sg := range rest {
		if sg.interp {
			return false
		}
		if sg.text != "" {
			return sg.text[0] == '.'
		}
	}
	return false
}

// unescape resolves escape sequences. Raw literals only honour escapes
// followed by their own number of '#'.
func (l literal) unescape(s string, escape byte) string {
	marker := string(escape) + strings.Repeat("#", l.hashes)
	if !strings.Contains(s, marker) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if !strings.HasPrefix(s[i:], marker) || i+len(marker) >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i + len(marker)
		switch c := s[j]; c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'u':
			// \u{1F600}
			if end := strings.IndexByte(s[j:], '}'); j+1 < len(s) && s[j+1] == '{' && end > 0 {
				if n, err := strconv.ParseUint(s[j+2:j+end], 16, 32); err == nil {
					b.WriteRune(rune(n))
					i = j + end + 1
					continue
				}
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		i = j + 1
	}
	return b.String()
}

// Unescape decodes the escape sequences of a plain (non-raw) Swift literal
// body as found in Occurrence.Text.
func Unescape(text string) string {
	return literal{}.unescape(text, '\\')
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// lex calls yield for every string literal outside comments, in source
// order, until yield returns false. Literals nested inside interpolations
// belong to their enclosing literal and are not reported.
func (s *Scanner) lex(src []byte, yield func(literal) bool) {
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			i = skipLineComment(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlockComment(src, i)
		case c == '"' || c == '#':
			lit, next, ok := s.readLiteral(src, i)
			if ok && !yield(lit) {
				return
			}
			i = next
		default:
			i++
		}
	}
}

// Mask returns a copy of src with comments and string literals blanked
// to spaces. Newlines and offsets are kept, so a code pattern matched in
// the mask can be replaced in src.
func (s *Scanner) Mask(src []byte) []byte {
	out := bytes.Clone(src)
	blank := func(from, to int) {
		for i := from; i < to && i < len(out); i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			j := skipLineComment(src, i)
			blank(i, j)
			i = j
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			j := skipBlockComment(src, i)
			blank(i, j)
			i = j
		case c == '"' || c == '#':
			lit, next, ok := s.readLiteral(src, i)
			if ok {
				blank(lit.start, lit.end)
			}
			i = next
		default:
			i++
		}
	}
	return out
}

func skipLineComment(src []byte, i int) int {
	if n := bytes.IndexByte(src[i:], '\n'); n >= 0 {
		return i + n
	}
	return len(src)
}

// skipBlockComment skips a /* */ comment; they nest.
func skipBlockComment(src []byte, i int) int {
	depth := 0
	for i < len(src) {
		switch {
		case bytes.HasPrefix(src[i:], []byte("/*")):
			depth++
			i += 2
		case bytes.HasPrefix(src[i:], []byte("*/")):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(src)
}

// readLiteral reads the literal starting at start ('"' or the first '#' of
// a raw literal). When start does not open a literal, or the literal is
// unterminated, ok is false and next is where lexing resumes.
func (s *Scanner) readLiteral(src []byte, start int) (lit literal, next int, ok bool) {
	p := start
	for p < len(src) && src[p] == '#' {
		p++
	}
	hashes := p - start
	if p >= len(src) || src[p] != '"' {
		return literal{}, max(p, start+1), false
	}

	multi := bytes.HasPrefix(src[p:], []byte(`"""`))
	closer := `"`
	if multi {
		closer = `"""`
	}
	p += len(closer)
	closer += strings.Repeat("#", hashes)

	lit = literal{start: start, contentStart: p, hashes: hashes, multiline: multi}
	segStart := p
	for p < len(src) {
		c := src[p]
		if c == '\n' && !multi {
			return literal{}, p, false
		}
		if c == s.escape && hasHashes(src, p+1, hashes) {
			q := p + 1 + hashes
			if q < len(src) && src[q] == s.interpOpen {
				lit.addText(src[segStart:p])
				end, ok := s.skipInterpolation(src, q+1)
				if !ok {
					return literal{}, len(src), false
				}
				lit.segments = append(lit.segments, segment{text: string(src[p:end]), interp: true})
				p, segStart = end, end
				continue
			}
			p = q + 1
			continue
		}
		if c == '"' && bytes.HasPrefix(src[p:], []byte(closer)) {
			lit.addText(src[segStart:p])
			lit.contentEnd = p
			lit.end = p + len(closer)
			return lit, lit.end, true
		}
		p++
	}
	return literal{}, len(src), false
}

func (l *literal) addText(b []byte) {
	if len(b) > 0 {
		l.segments = append(l.segments, segment{text: string(b)})
	}
}

// skipInterpolation returns the offset after the close delimiter matching
// an interpolation opened just before p. String literals inside it are
// skipped whole.
func (s *Scanner) skipInterpolation(src []byte, p int) (int, bool) {
	depth := 1
	for p < len(src) {
		c := src[p]
		switch {
		case c == '"' || (c == '#' && p+1 < len(src) && (src[p+1] == '"' || src[p+1] == '#')):
			_, next, ok := s.readLiteral(src, p)
			if !ok && next >= len(src) {
				return 0, false
			}
			p = next
			continue
		case c == s.interpOpen:
			depth++
		case c == s.interpClose:
			depth--
			if depth == 0 {
				return p + 1, true
			}
		}
		p++
	}
	return 0, false
}

func hasHashes(src []byte, p, n int) bool {
	if p+n > len(src) {
		return false
	}
	for i := 0; i < n; i++ {
		if src[p+i] != '#' {
			return false
		}
	}
	return true
}
