package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/minios-linux/lokscan/diag"
)

func TestCompileExclusionPatterns_AllOrNothing(t *testing.T) {
	t.Parallel()

	_, err := CompileExclusionPatterns([]string{"^ok$", "(", "glob:*.png", "re:[z-a]"})
	var cfgErr *diag.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *diag.ConfigError", err)
	}
	if !strings.Contains(cfgErr.Error(), `"("`) || !strings.Contains(cfgErr.Error(), `"re:[z-a]"`) {
		t.Errorf("error does not list every bad pattern: %v", cfgErr)
	}
	if !strings.Contains(cfgErr.Reason, "2 invalid") {
		t.Errorf("Reason = %q", cfgErr.Reason)
	}
}

func TestExclusionSet_Match(t *testing.T) {
	t.Parallel()

	set, err := CompileExclusionPatterns([]string{"^DEBUG", "glob:*.png", "re:^tmp_"})
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", set.Len())
	}
	tests := []struct {
		in   string
		want string
	}{
		{"DEBUG: x", "^DEBUG"},
		{"logo.png", "glob:*.png"},
		{"tmp_file", "re:^tmp_"},
		{"Hello there", ""},
	}
	for _, tc := range tests {
		got, _ := set.Match(tc.in)
		if got != tc.want {
			t.Errorf("Match(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsEmojiOnly(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"🎉":           true,
		"🎉 🚀":         true,
		"👍🏽":          true,
		"❤️":           true,
		"🇹🇷":          true,
		"Party 🎉":     false,
		"":            false,
		"   ":         false,
		"Hello":       false,
	}
	for in, want := range tests {
		if got := IsEmojiOnly(in); got != want {
			t.Errorf("IsEmojiOnly(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPatterns_Excluded(t *testing.T) {
	t.Parallel()

	p, err := Compile(PatternConfig{Exclude: []string{"^Internal"}, MinLength: 3})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in   string
		want bool
	}{
		{"Click here", false},
		{"Save", false},
		{"Größe ändern", false},
		{"Zażółć", false},
		{"Hello", true}, // single technical-looking word
		{"Internal build", true},
		{"OK", true}, // shorter than MinLength
		{"   ", true},
		{"🎉🎉", true},
		{"userName", true},
		{"https://example.com", true},
		{"%@ items", true},
		{"icon_12", true},
		{"1.2.3", true},
		{"house.fill", true},
		{"dd/MM/yyyy", true},
		{"Hello \\(name)", true},
		{"AIzaSyA-secret", true},
	}
	for _, tc := range tests {
		if _, got := p.Excluded(tc.in); got != tc.want {
			t.Errorf("Excluded(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPatterns_NoBuiltins(t *testing.T) {
	t.Parallel()

	p, err := Compile(PatternConfig{NoBuiltins: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, excluded := p.Excluded("userName"); excluded {
		t.Error("userName excluded with built-ins off")
	}
	if _, excluded := p.Excluded("x"); !excluded {
		t.Error("single rune not excluded by default minimum length")
	}
}
