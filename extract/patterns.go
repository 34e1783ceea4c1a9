package extract

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"

	"github.com/minios-linux/lokscan/diag"
)

// DefaultMinLength is the shortest literal (in runes, after trimming) that
// can be reported as hardcoded.
const DefaultMinLength = 2

// ---------------------------------------------------------------------------
// Exclusion patterns
// ---------------------------------------------------------------------------

// Exclusion pattern prefixes. A pattern without a prefix is a regular
// expression.
const (
	globPrefix  = "glob:"
	regexPrefix = "re:"
)

type exclusion struct {
	source string
	match  func(string) bool
}

// ExclusionSet is a compiled, immutable list of user exclusion patterns.
type ExclusionSet struct {
	items []exclusion
}

// CompileExclusionPatterns compiles every pattern or none. When any pattern
// is invalid the returned *diag.ConfigError lists all of them.
func CompileExclusionPatterns(patterns []string) (*ExclusionSet, error) {
	set := &ExclusionSet{}
	var errs *multierror.Error

	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, globPrefix):
			g, err := glob.Compile(strings.TrimPrefix(p, globPrefix))
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%q: %w", p, err))
				continue
			}
			set.items = append(set.items, exclusion{source: p, match: g.Match})
		default:
			re, err := regexp.Compile(strings.TrimPrefix(p, regexPrefix))
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%q: %w", p, err))
				continue
			}
			set.items = append(set.items, exclusion{source: p, match: re.MatchString})
		}
	}

	if errs != nil {
		return nil, &diag.ConfigError{
			Source: "exclude_patterns",
			Reason: fmt.Sprintf("%d invalid pattern(s)", len(errs.Errors)),
			Err:    errs.ErrorOrNil(),
		}
	}
	return set, nil
}

// Match reports the first pattern that matches s.
func (s *ExclusionSet) Match(text string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, it := range s.items {
		if it.match(text) {
			return it.source, true
		}
	}
	return "", false
}

// Len returns the number of compiled patterns.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// ---------------------------------------------------------------------------
// Emoji
// ---------------------------------------------------------------------------

var emojiPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`[` +
		`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
		`\x{1F600}-\x{1F64F}` + // emoticons
		`\x{1F680}-\x{1F6FF}` + // transport & map
		`\x{1F900}-\x{1F9FF}` + // supplemental symbols
		`\x{1FA00}-\x{1FAFF}` + // chess, extended-A
		`\x{1F1E0}-\x{1F1FF}` + // regional indicators (flags)
		`\x{2600}-\x{26FF}` + // misc symbols
		`\x{2700}-\x{27BF}` + // dingbats
		`\x{2300}-\x{23FF}` + // misc technical
		`\x{2194}-\x{2199}\x{21A9}-\x{21AA}` +
		`\x{25AA}-\x{25AB}\x{25B6}\x{25C0}\x{25FB}-\x{25FE}` +
		`\x{2934}-\x{2935}\x{2B05}-\x{2B07}\x{2B1B}-\x{2B1C}\x{2B50}\x{2B55}` +
		`\x{3030}\x{303D}\x{3297}\x{3299}` +
		`\x{FE00}-\x{FE0F}` + // variation selectors
		`\x{200D}` + // zero width joiner
		`\x{1F3FB}-\x{1F3FF}` + // skin tones
		`]+`)
})

// CompileEmojiPattern returns the process-wide emoji pattern.
func CompileEmojiPattern() *regexp.Regexp {
	return emojiPattern()
}

// IsEmojiOnly reports whether s consists of emoji and whitespace only and
// contains at least one emoji.
func IsEmojiOnly(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return strings.TrimSpace(emojiPattern().ReplaceAllString(s, "")) == ""
}

// ---------------------------------------------------------------------------
// Built-in exclusions
// ---------------------------------------------------------------------------

// builtinExclusions catch literals that are almost never user-facing text:
// identifiers, URLs, format strings, asset and symbol names, tokens.
var builtinExclusions = []string{
	`^[a-z][a-zA-Z0-9_]*$`, // camelCase identifiers
	`^[A-Z][A-Z0-9_]*$`,    // CONSTANT_NAMES
	`^[./]`,                // paths
	`https?://`,
	`\.(com|org|net|io)\b`,
	`%[@dflsS]`, // format specifiers
	`\\[nrt]`,   // escape sequences
	`[\[\]{}^$*|\\]`,
	`^\d+\.\d+`, // versions
	`^v\d+`,
	`^\d+$`,
	`^@\w+`,
	`^\$\w+`,
	`^sk-`, `^pk_`, `^sk_`, `^AIza`, // API keys
	`^[A-Za-z0-9]{32,}$`,            // tokens
	`^[0-9]$`,
	`\.(fill|slash|circle|square|badge)$`, // SF Symbols
	`^[a-z]+\.(fill|circle|square)`,
	`^(log|debug|info|warning|error)[:=]`,
	`^[0-9A-Fa-f]{6}$`, // hex colors
	`^(backgroundColor|textColor|borderColor|shadowColor)`,
	`^[a-z]+_[a-z]+`, // snake_case
	`^(TL|USD|EUR|GBP)$`,
	`^[dMyhHmsS/:.\-\s]+$`, // date formats
	`^[\s·\-:;,./|•→←↑↓…()\[\]{}]+$`,
	`^[a-zA-Z]+_\d+$`,
	`^(avatar|asset|image|icon|sprite|texture|model|anim)[_\-]?\d*$`,
	`^\d+[xX]\d+$`,
	`^(DEBUG|TODO|FIXME|HACK|NOTE|XXX|MARK)[:=\s-]`,
	`^\[DEBUG\]`,
	`^(print|log|debug|trace|dump)\s*:`,
	`^(system|user|assistant):\s*`,
	`^(prompt|context|instruction)[:=]`,
	`^\d+\s*(px|pt|em|rem|%|dp|sp|vw|vh)$`,
	`(?i)^\d+(\.\d+)?\s*(mb|kb|gb|ms|fps|hz)$`,
	`^<[^>]+>$`,
	`^[a-zA-Z]+\(\)$`,
	`^\w+\.(png|jpg|jpeg|gif|svg|pdf|json|xml|plist|strings|swift|m|h)$`,
}

var compiledBuiltins = sync.OnceValue(func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(builtinExclusions))
	for i, p := range builtinExclusions {
		out[i] = regexp.MustCompile(p)
	}
	return out
})

// commonUIWords are single ASCII words that are still worth localizing.
var commonUIWords = map[string]bool{
	"Home": true, "Save": true, "Cancel": true, "Delete": true, "Edit": true,
	"Settings": true, "Profile": true, "Search": true, "Filter": true, "Sort": true,
	"View": true, "Add": true, "Back": true, "Next": true, "Done": true,
	"OK": true, "Yes": true, "No": true, "Close": true, "Open": true,
	"Create": true, "Update": true, "Submit": true, "Send": true, "Share": true,
	"Continue": true, "Retry": true, "Skip": true, "Login": true, "Logout": true,
}

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

// PatternConfig is the user-facing part of the hardcoded-string filter.
type PatternConfig struct {
	Exclude   []string
	MinLength int
	// NoBuiltins turns off the built-in exclusions (user patterns, emoji,
	// blank and length checks still apply).
	NoBuiltins bool
}

// Patterns bundles every compiled filter used by the scanner. It is
// immutable after Compile and safe for concurrent use.
type Patterns struct {
	user      *ExclusionSet
	builtins  []*regexp.Regexp
	emoji     *regexp.Regexp
	minLength int
}

// Compile builds the pattern bundle. Invalid user patterns yield a
// *diag.ConfigError.
func Compile(cfg PatternConfig) (*Patterns, error) {
	user, err := CompileExclusionPatterns(cfg.Exclude)
	if err != nil {
		return nil, err
	}
	p := &Patterns{
		user:      user,
		emoji:     CompileEmojiPattern(),
		minLength: cfg.MinLength,
	}
	if p.minLength <= 0 {
		p.minLength = DefaultMinLength
	}
	if !cfg.NoBuiltins {
		p.builtins = compiledBuiltins()
	}
	return p, nil
}

// Excluded reports whether text should not be reported as hardcoded, and
// why.
func (p *Patterns) Excluded(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "blank", true
	}
	if utf8.RuneCountInString(trimmed) < p.minLength {
		return "too short", true
	}
	if strings.TrimSpace(p.emoji.ReplaceAllString(trimmed, "")) == "" {
		return "emoji", true
	}
	if src, ok := p.user.Match(text); ok {
		return src, true
	}
	for _, re := range p.builtins {
		if re.MatchString(text) {
			return "builtin " + re.String(), true
		}
	}
	if p.builtins != nil && isTechnicalWord(trimmed) {
		return "single word", true
	}
	return "", false
}

// isTechnicalWord reports a single ASCII-letter word that is not a common
// UI label. Words with non-ASCII letters are kept; they are almost always
// real text.
func isTechnicalWord(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return !commonUIWords[s]
}
