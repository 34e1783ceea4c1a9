package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvLang, "")
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old := po
	po = nil
	t.Cleanup(func() { po = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}

	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}

	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}
}

func TestInitLoadsEmbeddedCatalog(t *testing.T) {
	oldPo, oldLang := po, lang
	t.Cleanup(func() { po, lang = oldPo, oldLang })

	Init("de")
	if got := T("Recommendations"); got != "Empfehlungen" {
		t.Fatalf("T(Recommendations) = %q, want %q", got, "Empfehlungen")
	}
	if got := F("and %d more", 3); got != "und 3 weitere" {
		t.Fatalf("F(and %%d more) = %q, want %q", got, "und 3 weitere")
	}
	if got := T("not in any catalog"); got != "not in any catalog" {
		t.Fatalf("T(unknown) = %q, want passthrough", got)
	}
}

func TestCatalogs(t *testing.T) {
	got := Catalogs()
	if len(got) != 2 || got[0] != "de" || got[1] != "ru" {
		t.Fatalf("Catalogs() = %v, want [de ru]", got)
	}
}

func TestMatchSelectsBaseCatalog(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"de", "de"},
		{"de_AT", "de"},
		{"ru_RU", "ru"},
		{"ru-Cyrl-RU", "ru"},
		{"en_GB", "en"},
		{"fr_FR", "en"},
		{"not a locale", "en"},
	}
	for _, tt := range tests {
		if got := match(tt.in); got != tt.want {
			t.Errorf("match(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvLangOverridesGettext(t *testing.T) {
	clearLocaleEnv(t)
	t.Setenv("LANGUAGE", "ru_RU.UTF-8")
	t.Setenv(EnvLang, "de_DE@euro")

	if got := detectLanguage(); got != "de_DE" {
		t.Fatalf("detectLanguage() = %q, want %q", got, "de_DE")
	}

	oldPo, oldLang := po, lang
	t.Cleanup(func() { po, lang = oldPo, oldLang })
	Init("")
	if Lang() != "de" {
		t.Fatalf("Lang() = %q, want de", Lang())
	}
	Init("en_US")
	if Lang() != "en" || T("Recommendations") != "Recommendations" {
		t.Fatalf("Init(en_US): Lang() = %q, T = %q", Lang(), T("Recommendations"))
	}
}
