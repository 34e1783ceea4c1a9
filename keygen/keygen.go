// Package keygen derives localization keys from user-facing text.
//
// Everything here is a pure function over static tables, so it is safe to
// call from any goroutine.
package keygen

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// charMap folds letters that Unicode decomposition leaves alone (or folds
// differently than native speakers expect) to ASCII.
var charMap = map[rune]string{
	// Turkish
	'ı': "i", 'İ': "I",
	// German
	'ß': "ss", 'ẞ': "SS",
	// French, Danish, Norwegian, Icelandic
	'æ': "ae", 'Æ': "AE", 'œ': "oe", 'Œ': "OE",
	// Scandinavian
	'ø': "o", 'Ø': "O",
	// Polish
	'ł': "l", 'Ł': "L",
	// Croatian
	'đ': "d", 'Đ': "D",
	// Icelandic
	'ð': "d", 'Ð': "D", 'þ': "th", 'Þ': "TH",
	// Dutch
	'ĳ': "ij", 'Ĳ': "IJ",
}

var charReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, len(charMap)*2)
	for r, s := range charMap {
		pairs = append(pairs, string(r), s)
	}
	return strings.NewReplacer(pairs...)
}()

// FoldASCII maps accented Latin letters to ASCII: explicit letters through
// the static table first, then NFKD with combining marks dropped. Letters
// outside Latin scripts pass through unchanged.
func FoldASCII(text string) string {
	text = charReplacer.Replace(text)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// words splits ASCII-folded text into alphanumeric words.
func words(text string) []string {
	return strings.FieldsFunc(FoldASCII(text), func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
}

// NormalizeToKey converts text into a camelCase ASCII key segment, e.g.
// "Größe ändern" → "grosseAndern". Text without any ASCII letter or digit
// yields "unknown".
func NormalizeToKey(text string) string {
	w := words(text)
	if len(w) == 0 {
		return "unknown"
	}
	return strcase.ToLowerCamel(strings.ToLower(strings.Join(w, " ")))
}

// componentPrefixes maps the UI component a literal appears in to the
// first key segment.
var componentPrefixes = map[string]string{
	"Button":             "button",
	"Label":              "label",
	"Text":               "text",
	"navigationTitle":    "nav",
	"navigationBarTitle": "nav",
	"Alert":              "alert",
	"alert":              "alert",
	"TextField":          "placeholder",
	"SecureField":        "placeholder",
	"Menu":               "menu",
	"Section":            "section",
}

// component returns the component part of an occurrence context such as
// "Alert.title".
func component(context string) string {
	if i := strings.IndexByte(context, '.'); i >= 0 {
		return context[:i]
	}
	return context
}

// SuggestKey proposes a dotted key for text found in context: a component
// prefix followed by the first four words, e.g. ("Button", "Save changes")
// → "button.save.changes".
func SuggestKey(context, text string) string {
	prefix, ok := componentPrefixes[component(context)]
	if !ok {
		prefix = "common"
	}
	w := words(strings.ToLower(text))
	if len(w) > 4 {
		w = w[:4]
	}
	if len(w) == 0 {
		w = []string{"unknown"}
	}
	return prefix + "." + strings.Join(w, ".")
}

// Category weights used by Priority.
var categoryWeights = map[string]int{
	"visible_ui":     10,
	"user_facing":    8,
	"error_messages": 9,
	"navigation":     7,
	"labels":         6,
	"placeholders":   5,
	"internal":       2,
}

var componentCategories = map[string]string{
	"Text": "visible_ui", "Label": "visible_ui", "Button": "visible_ui",
	"Toggle": "visible_ui", "Picker": "visible_ui", "Stepper": "visible_ui",
	"Menu": "visible_ui", "Section": "visible_ui", "Link": "visible_ui",
	"GroupBox": "visible_ui", "DisclosureGroup": "visible_ui", "LabeledContent": "visible_ui",
	"ContentUnavailableView": "visible_ui",
	"navigationTitle": "navigation", "navigationBarTitle": "navigation",
	"NavigationLink": "navigation", "tabItem": "navigation",
	"Alert": "error_messages", "alert": "error_messages", "confirmationDialog": "error_messages",
	"toast": "error_messages", "banner": "error_messages",
	"TextField": "placeholders", "SecureField": "placeholders", "placeholder": "placeholders",
	"searchPrompt": "placeholders", "prompt": "placeholders",
	"accessibilityLabel": "labels", "help": "labels", "badge": "labels",
	"title": "user_facing", "message": "user_facing", "subtitle": "user_facing",
	"description": "user_facing", "header": "user_facing", "footer": "user_facing",
	"Return": "user_facing",
	"Variable": "internal",
}

var boostedComponents = map[string]bool{"Button": true, "Label": true, "Menu": true, "Alert": true}

// Priority rates how urgently a hardcoded string should be localized,
// from 0 (skip) to 10.
func Priority(context, text string) int {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) <= 2 {
		return 0
	}

	comp := component(context)
	cat, ok := componentCategories[comp]
	if !ok {
		// A label after a call, e.g. "Alert.title".
		cat = componentCategories[strings.TrimPrefix(context, comp+".")]
	}
	score, ok := categoryWeights[cat]
	if !ok {
		score = 5
	}
	if len([]rune(text)) < 20 {
		score += 2
	}
	lower := strings.ToLower(text)
	for _, w := range []string{"error", "warning", "failed", "success"} {
		if strings.Contains(lower, w) {
			score += 3
			break
		}
	}
	if boostedComponents[comp] {
		score += 2
	}
	return min(10, score)
}

// HumanizeKey turns the last segment of a key into placeholder text:
// "settings.saveChanges" → "Save changes".
func HumanizeKey(key string) string {
	seg := key
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		seg = key[i+1:]
	}
	s := strings.TrimSpace(strcase.ToDelimited(seg, ' '))
	if s == "" {
		return key
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// SwiftIdentifier converts a key or table name into a lowerCamelCase Swift
// identifier, prefixing "_" when it would start with a digit.
func SwiftIdentifier(name string) string {
	id := strcase.ToLowerCamel(strings.NewReplacer(".", "_", "-", "_").Replace(name))
	if id == "" {
		return "_"
	}
	if id[0] >= '0' && id[0] <= '9' {
		return "_" + id
	}
	return id
}

// SwiftTypeName converts a table name into an UpperCamelCase Swift type name.
func SwiftTypeName(name string) string {
	id := strcase.ToCamel(strings.NewReplacer(".", "_", "-", "_").Replace(name))
	if id == "" || id[0] >= '0' && id[0] <= '9' {
		return "_" + id
	}
	return id
}
