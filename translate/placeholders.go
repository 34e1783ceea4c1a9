package translate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// formatPlaceholder matches printf-style specifiers (%@, %d, %1$@, %.2f,
// %lld, %%), brace templates ({{name}}, {0}, {count}).
var formatPlaceholder = regexp.MustCompile(`%(?:\d+\$)?[-+#0]*\d*(?:\.\d+)?(?:hh|h|ll|l|q|z|t|j|L)?[@dDiuUxXoOfFeEgGcCsSpaA%]|\{\{[^{}]+\}\}|\{[A-Za-z0-9_]+\}`)

// tokenPattern finds restored tokens, tolerating the spaces and case
// changes translation services sometimes introduce.
var tokenPattern = regexp.MustCompile(`(?i)__\s*PH\s*(\d+)\s*__`)

func token(i int) string { return "__PH" + strconv.Itoa(i) + "__" }

// Placeholders returns the placeholders of s in order of appearance.
func Placeholders(s string) []string {
	spans := placeholderSpans(s)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = s[sp[0]:sp[1]]
	}
	return out
}

// SamePlaceholders reports whether a and b contain the same multiset of
// placeholders, ignoring order (translations may reorder positional ones).
func SamePlaceholders(a, b string) bool {
	pa, pb := Placeholders(a), Placeholders(b)
	if len(pa) != len(pb) {
		return false
	}
	sort.Strings(pa)
	sort.Strings(pb)
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

// placeholderSpans returns the byte ranges of every placeholder, sorted.
// Swift interpolations \( ... ) are matched with balanced parentheses.
func placeholderSpans(s string) [][2]int {
	var spans [][2]int
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '\\' {
			continue
		}
		if s[i+1] != '(' {
			i++ // skip the escaped character
			continue
		}
		depth := 0
		end := -1
		for j := i + 1; j < len(s) && end < 0; j++ {
			switch s[j] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					end = j + 1
				}
			}
		}
		if end < 0 {
			break
		}
		spans = append(spans, [2]int{i, end})
		i = end - 1
	}

	for _, m := range formatPlaceholder.FindAllStringIndex(s, -1) {
		overlaps := false
		for _, sp := range spans {
			if m[0] < sp[1] && sp[0] < m[1] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			spans = append(spans, [2]int{m[0], m[1]})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	return spans
}

// protected is a text whose placeholders were replaced with tokens.
type protected struct {
	text   string
	values []string
}

func protect(s string) protected {
	spans := placeholderSpans(s)
	if len(spans) == 0 {
		return protected{text: s}
	}
	var b strings.Builder
	p := protected{values: make([]string, 0, len(spans))}
	last := 0
	for i, sp := range spans {
		b.WriteString(s[last:sp[0]])
		b.WriteString(token(i))
		p.values = append(p.values, s[sp[0]:sp[1]])
		last = sp[1]
	}
	b.WriteString(s[last:])
	p.text = b.String()
	return p
}

// restore puts the placeholders back into a translation of p.text. Every
// token must appear exactly once.
func (p protected) restore(translated string) (string, error) {
	if len(p.values) == 0 {
		return translated, nil
	}
	seen := make([]int, len(p.values))
	var bad string
	out := tokenPattern.ReplaceAllStringFunc(translated, func(m string) string {
		n, err := strconv.Atoi(tokenPattern.FindStringSubmatch(m)[1])
		if err != nil || n >= len(p.values) {
			bad = m
			return m
		}
		seen[n]++
		return p.values[n]
	})
	if bad != "" {
		return "", fmt.Errorf("unknown placeholder token %q in translation", bad)
	}
	for i, n := range seen {
		if n != 1 {
			return "", fmt.Errorf("placeholder %s appears %d times in translation %q", p.values[i], n, translated)
		}
	}
	return out, nil
}
