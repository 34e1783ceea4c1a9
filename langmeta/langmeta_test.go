package langmeta

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "zh-hans", want: "zh-Hans"},
		{in: "ZH_HANT", want: "zh-Hant"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		got := Resolve("en-GB")
		if got.Name != "English (UK)" || got.Flag == "" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("normalized match", func(t *testing.T) {
		got := Resolve("pt_br")
		if got.Name != "Português (Brasil)" || got.Flag == "" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("script variant", func(t *testing.T) {
		got := Resolve("zh-hans")
		if got.Name != "简体中文" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("base fallback", func(t *testing.T) {
		got := Resolve("fr-LU")
		if got.Name != "Français" || got.Flag != "🇫🇷" {
			t.Fatalf("unexpected fallback result: %#v", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("zz-ZZ")
		if got.Name != "zz-ZZ" || got.Flag != "" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		lang string
		ok   bool
	}{
		{"en", true},
		{"pt-BR", true},
		{"zh-Hans", true},
		{"Base", true},
		{"", false},
		{"english!", false},
	}
	for _, tc := range cases {
		err := Validate(tc.lang)
		if (err == nil) != tc.ok {
			t.Errorf("Validate(%q) = %v, want ok=%v", tc.lang, err, tc.ok)
		}
	}
}

func TestEnglishName(t *testing.T) {
	cases := map[string]string{
		"de":  "German",
		"tr":  "Turkish",
		"!!!": "!!!",
	}
	for in, want := range cases {
		if got := EnglishName(in); got != want {
			t.Errorf("EnglishName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("de"); got != "🇩🇪 Deutsch (de)" {
		t.Errorf("Label(de) = %q", got)
	}
	if got := Label("zz"); got != "zz (zz)" {
		t.Errorf("Label(zz) = %q", got)
	}
}
