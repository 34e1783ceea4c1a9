// Package i18n translates lokscan's own messages: report headings,
// recommendations and command output.
//
// Catalogs live in locales/<lang>/LC_MESSAGES/lokscan.po and are embedded
// in the binary. lokscan ships German (de) and Russian (ru); any other
// language falls back to the English msgids. A regional or scripted
// locale such as de_AT or ru-Cyrl-RU selects its base catalog.
//
// LOKSCAN_LANG overrides the gettext environment (LANGUAGE, LC_ALL,
// LC_MESSAGES, LANG), so reports can be produced in English on a
// localized desktop.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "lokscan"

// EnvLang names the variable that forces the message language.
const EnvLang = "LOKSCAN_LANG"

var (
	po   *gotext.Locale
	lang = "en"
)

// Init selects the catalog for lang, or for the environment when lang is
// empty. Call it once before any T, F or N.
func Init(requested string) {
	if requested == "" {
		requested = detectLanguage()
	}
	lang = match(requested)
	if lang == "en" {
		po = nil
		return
	}
	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the catalog in use, "en" when messages are untranslated.
func Lang() string { return lang }

// Catalogs lists the embedded catalogs, sorted.
func Catalogs() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if _, err := fs.Stat(locales, "locales/"+e.Name()+"/LC_MESSAGES/"+domain+".po"); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// match maps a POSIX or BCP 47 locale to an embedded catalog.
func match(requested string) string {
	tag, err := language.Parse(strings.ReplaceAll(requested, "_", "-"))
	if err != nil {
		return "en"
	}
	catalogs := Catalogs()
	supported := []language.Tag{language.English}
	for _, c := range catalogs {
		supported = append(supported, language.Make(c))
	}
	_, i, conf := language.NewMatcher(supported).Match(tag)
	if conf == language.No || i == 0 {
		return "en"
	}
	return catalogs[i-1]
}

// T translates msgid, or returns it unchanged.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// F translates a printf format and applies args to it.
func F(format string, args ...any) string {
	if po == nil {
		return fmt.Sprintf(format, args...)
	}
	return po.Get(format, args...)
}

// N picks the plural form for n under the catalog's Plural-Forms rule.
// The result is still a format when the forms contain verbs.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage follows GNU gettext priority after LOKSCAN_LANG.
func detectLanguage() string {
	for _, env := range []string{EnvLang, "LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// ru_RU.UTF-8, de_DE@euro
		if i := strings.IndexAny(val, ".@"); i >= 0 {
			val = val[:i]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
