// Package langmeta provides a shared language metadata registry
// (native names and emoji flags) used by reports and the lang command,
// plus language code validation for configuration.
package langmeta

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	Name string
	Flag string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"af":      {Name: "Afrikaans", Flag: "🇿🇦"},
	"am":      {Name: "አማርኛ", Flag: "🇪🇹"},
	"ar":      {Name: "العربية", Flag: "🇸🇦"},
	"ar-EG":   {Name: "العربية (مصر)", Flag: "🇪🇬"},
	"az":      {Name: "Azərbaycanca", Flag: "🇦🇿"},
	"be":      {Name: "Беларуская", Flag: "🇧🇾"},
	"bg":      {Name: "Български", Flag: "🇧🇬"},
	"bn":      {Name: "বাংলা", Flag: "🇧🇩"},
	"bs":      {Name: "Bosanski", Flag: "🇧🇦"},
	"ca":      {Name: "Català", Flag: "🇪🇸"},
	"cs":      {Name: "Čeština", Flag: "🇨🇿"},
	"cy":      {Name: "Cymraeg", Flag: "🇬🇧"},
	"da":      {Name: "Dansk", Flag: "🇩🇰"},
	"de":      {Name: "Deutsch", Flag: "🇩🇪"},
	"de-AT":   {Name: "Deutsch (Österreich)", Flag: "🇦🇹"},
	"de-CH":   {Name: "Deutsch (Schweiz)", Flag: "🇨🇭"},
	"el":      {Name: "Ελληνικά", Flag: "🇬🇷"},
	"en":      {Name: "English", Flag: "🇺🇸"},
	"en-AU":   {Name: "English (Australia)", Flag: "🇦🇺"},
	"en-CA":   {Name: "English (Canada)", Flag: "🇨🇦"},
	"en-GB":   {Name: "English (UK)", Flag: "🇬🇧"},
	"en-IN":   {Name: "English (India)", Flag: "🇮🇳"},
	"en-US":   {Name: "English (US)", Flag: "🇺🇸"},
	"es":      {Name: "Español", Flag: "🇪🇸"},
	"es-AR":   {Name: "Español (Argentina)", Flag: "🇦🇷"},
	"es-MX":   {Name: "Español (México)", Flag: "🇲🇽"},
	"et":      {Name: "Eesti", Flag: "🇪🇪"},
	"eu":      {Name: "Euskara", Flag: "🇪🇸"},
	"fa":      {Name: "فارسی", Flag: "🇮🇷"},
	"fi":      {Name: "Suomi", Flag: "🇫🇮"},
	"fr":      {Name: "Français", Flag: "🇫🇷"},
	"fr-BE":   {Name: "Français (Belgique)", Flag: "🇧🇪"},
	"fr-CA":   {Name: "Français (Canada)", Flag: "🇨🇦"},
	"fr-CH":   {Name: "Français (Suisse)", Flag: "🇨🇭"},
	"ga":      {Name: "Gaeilge", Flag: "🇮🇪"},
	"gl":      {Name: "Galego", Flag: "🇪🇸"},
	"gu":      {Name: "ગુજરાતી", Flag: "🇮🇳"},
	"he":      {Name: "עברית", Flag: "🇮🇱"},
	"hi":      {Name: "हिन्दी", Flag: "🇮🇳"},
	"hr":      {Name: "Hrvatski", Flag: "🇭🇷"},
	"hu":      {Name: "Magyar", Flag: "🇭🇺"},
	"hy":      {Name: "Հայերեն", Flag: "🇦🇲"},
	"id":      {Name: "Bahasa Indonesia", Flag: "🇮🇩"},
	"is":      {Name: "Íslenska", Flag: "🇮🇸"},
	"it":      {Name: "Italiano", Flag: "🇮🇹"},
	"ja":      {Name: "日本語", Flag: "🇯🇵"},
	"ka":      {Name: "ქართული", Flag: "🇬🇪"},
	"kk":      {Name: "Қазақ тілі", Flag: "🇰🇿"},
	"km":      {Name: "ខ្មែរ", Flag: "🇰🇭"},
	"ko":      {Name: "한국어", Flag: "🇰🇷"},
	"lo":      {Name: "ລາວ", Flag: "🇱🇦"},
	"lt":      {Name: "Lietuvių", Flag: "🇱🇹"},
	"lv":      {Name: "Latviešu", Flag: "🇱🇻"},
	"mk":      {Name: "Македонски", Flag: "🇲🇰"},
	"ml":      {Name: "മലയാളം", Flag: "🇮🇳"},
	"mn":      {Name: "Монгол", Flag: "🇲🇳"},
	"mr":      {Name: "मराठी", Flag: "🇮🇳"},
	"ms":      {Name: "Bahasa Melayu", Flag: "🇲🇾"},
	"mt":      {Name: "Malti", Flag: "🇲🇹"},
	"my":      {Name: "မြန်မာ", Flag: "🇲🇲"},
	"ne":      {Name: "नेपाली", Flag: "🇳🇵"},
	"nl":      {Name: "Nederlands", Flag: "🇳🇱"},
	"nl-BE":   {Name: "Nederlands (België)", Flag: "🇧🇪"},
	"nb":      {Name: "Norsk bokmål", Flag: "🇳🇴"},
	"nn":      {Name: "Norsk nynorsk", Flag: "🇳🇴"},
	"no":      {Name: "Norsk", Flag: "🇳🇴"},
	"pa":      {Name: "ਪੰਜਾਬੀ", Flag: "🇮🇳"},
	"pl":      {Name: "Polski", Flag: "🇵🇱"},
	"ps":      {Name: "پښتو", Flag: "🇦🇫"},
	"pt":      {Name: "Português", Flag: "🇵🇹"},
	"pt-BR":   {Name: "Português (Brasil)", Flag: "🇧🇷"},
	"pt-PT":   {Name: "Português (Portugal)", Flag: "🇵🇹"},
	"ro":      {Name: "Română", Flag: "🇷🇴"},
	"ru":      {Name: "Русский", Flag: "🇷🇺"},
	"si":      {Name: "සිංහල", Flag: "🇱🇰"},
	"sk":      {Name: "Slovenčina", Flag: "🇸🇰"},
	"sl":      {Name: "Slovenščina", Flag: "🇸🇮"},
	"sq":      {Name: "Shqip", Flag: "🇦🇱"},
	"sr":      {Name: "Српски", Flag: "🇷🇸"},
	"sv":      {Name: "Svenska", Flag: "🇸🇪"},
	"sw":      {Name: "Kiswahili", Flag: "🇹🇿"},
	"ta":      {Name: "தமிழ்", Flag: "🇮🇳"},
	"te":      {Name: "తెలుగు", Flag: "🇮🇳"},
	"th":      {Name: "ไทย", Flag: "🇹🇭"},
	"tr":      {Name: "Türkçe", Flag: "🇹🇷"},
	"uk":      {Name: "Українська", Flag: "🇺🇦"},
	"ur":      {Name: "اردو", Flag: "🇵🇰"},
	"uz":      {Name: "O'zbek", Flag: "🇺🇿"},
	"vi":      {Name: "Tiếng Việt", Flag: "🇻🇳"},
	"xh":      {Name: "isiXhosa", Flag: "🇿🇦"},
	"yo":      {Name: "Yorùbá", Flag: "🇳🇬"},
	"zh":      {Name: "中文", Flag: "🇨🇳"},
	"zh-CN":   {Name: "简体中文", Flag: "🇨🇳"},
	"zh-Hans": {Name: "简体中文", Flag: "🇨🇳"},
	"zh-Hant": {Name: "繁體中文", Flag: "🇹🇼"},
	"zh-TW":   {Name: "繁體中文", Flag: "🇹🇼"},
	"zu":      {Name: "isiZulu", Flag: "🇿🇦"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		if len(parts[1]) == 4 {
			// script subtag, as in zh-Hans
			parts[1] = strings.ToUpper(parts[1][:1]) + strings.ToLower(parts[1][1:])
		} else {
			parts[1] = strings.ToUpper(parts[1])
		}
	}
	return strings.Join(parts, "-")
}

// Canonical returns lang with Apple-style casing: "pt_br" becomes "pt-BR"
// and "zh-hans" becomes "zh-Hans".
func Canonical(lang string) string { return canonicalize(lang) }

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{Name: lang, Flag: ""}
}

// Validate reports whether lang is a well-formed BCP 47 language code.
// "Base" is accepted as the development-language pseudo locale.
func Validate(lang string) error {
	if lang == "Base" {
		return nil
	}
	if strings.TrimSpace(lang) == "" {
		return fmt.Errorf("empty language code")
	}
	if _, err := language.Parse(lang); err != nil {
		return fmt.Errorf("invalid language code %q: %w", lang, err)
	}
	return nil
}

// EnglishName returns the English display name of lang, e.g. "German"
// for "de", falling back to lang itself.
func EnglishName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}

// Label returns "Flag Name (code)" for list output.
func Label(lang string) string {
	m := Resolve(lang)
	if m.Flag == "" {
		return fmt.Sprintf("%s (%s)", m.Name, lang)
	}
	return fmt.Sprintf("%s %s (%s)", m.Flag, m.Name, lang)
}
