package stringsfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minios-linux/lokscan/diag"
)

func TestParse_Basic(t *testing.T) {
	data := []byte(`"welcome.title" = "Welcome";
"welcome.subtitle" = "Glad you're here";
`)
	f, err := Parse("en.lproj/Common.strings", data)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := f.Get("welcome.title"); got != "Welcome" {
		t.Errorf("welcome.title = %q, want %q", got, "Welcome")
	}
	if got, _ := f.Get("welcome.subtitle"); got != "Glad you're here" {
		t.Errorf("welcome.subtitle = %q", got)
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestParse_CommentsAndBlanks(t *testing.T) {
	data := []byte(`/*
  Common.strings
  "not.a" = "key";
*/

// Buttons
"button.save" = "Save"; // trailing comment
`)
	f, err := Parse("x", data)
	if err != nil {
		t.Fatal(err)
	}
	keys := f.Keys()
	if len(keys) != 1 || keys[0] != "button.save" {
		t.Fatalf("Keys() = %v, want [button.save]", keys)
	}
	if string(f.Marshal()) != string(data) {
		t.Errorf("Marshal() did not round-trip:\n%s", f.Marshal())
	}
}

func TestParse_Escapes(t *testing.T) {
	data := []byte(`"k" = "Say \"hi\"\nTab\there \\ \u00e9";` + "\n")
	f, err := Parse("x", data)
	if err != nil {
		t.Fatal(err)
	}
	want := "Say \"hi\"\nTab\there \\ é"
	if got, _ := f.Get("k"); got != want {
		t.Errorf("k = %q, want %q", got, want)
	}
}

func TestParse_BOMAndCRLF(t *testing.T) {
	data := []byte("\ufeff\"a\" = \"1\";\r\n\"b\" = \"2\";\r\n")
	f, err := Parse("x", data)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := f.Get("a"); got != "1" {
		t.Errorf("a = %q, want 1", got)
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		line   int
		reason string
	}{
		{"unterminated", "\"a\" = \"1\";\n\"b\" = \"oops;\n", 2, "unterminated string"},
		{"missing semicolon", "\"a\" = \"1\"\n", 1, "missing ';'"},
		{"missing equals", "\"a\" \"1\";\n", 1, "missing '='"},
		{"bad escape", "\"a\" = \"\\q\";\n", 1, "invalid escape"},
		{"duplicate", "\"a\" = \"1\";\n\n\"a\" = \"2\";\n", 3, "first defined on line 1"},
		{"garbage", "hello\n", 1, "invalid syntax"},
		{"open block", "/* never closed\n\"a\" = \"1\";\n", 2, "unterminated block comment"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("t.strings", []byte(tc.data))
			var pe *diag.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error = %v, want *diag.ParseError", err)
			}
			if pe.Line != tc.line {
				t.Errorf("Line = %d, want %d", pe.Line, tc.line)
			}
			if !strings.Contains(pe.Reason, tc.reason) {
				t.Errorf("Reason = %q, want it to contain %q", pe.Reason, tc.reason)
			}
		})
	}
}

func TestLint_ReportsEverything(t *testing.T) {
	data := []byte(`// TODO: review
"a" = "";
"a" = "dup";
"b" = "x"
`)
	issues := Lint("de.lproj/AI.strings", data)
	codes := map[string]bool{}
	for _, is := range issues {
		codes[is.Code] = true
	}
	for _, want := range []string{diag.CodeTodo, diag.CodeEmptyValue, diag.CodeDuplicateKey, diag.CodeMissingSemicolon} {
		if !codes[want] {
			t.Errorf("Lint() missing %s; got %+v", want, issues)
		}
	}
}

func TestSetRemove(t *testing.T) {
	f, err := Parse("x", []byte("// head\n\"a\" = \"1\";\n\"b\" = \"2\";\n"))
	if err != nil {
		t.Fatal(err)
	}
	if added := f.Set("a", "one"); added {
		t.Error("Set(existing) reported added")
	}
	if added := f.Set("c", "3"); !added {
		t.Error("Set(new) reported not added")
	}
	if !f.Remove("b") {
		t.Error("Remove(b) = false")
	}
	if f.Remove("zzz") {
		t.Error("Remove(zzz) = true")
	}
	want := "// head\n\"a\" = \"one\";\n\"c\" = \"3\";\n"
	if got := string(f.Marshal()); got != want {
		t.Errorf("Marshal() = %q, want %q", got, want)
	}
	if got, _ := f.Get("c"); got != "3" {
		t.Errorf("c = %q after Remove shifted lines", got)
	}
}

func TestStats(t *testing.T) {
	f, err := Parse("x", []byte("\"a\" = \"hello\";\n\"b\" = \"\";\n\"c\" = \"world\";\n"))
	if err != nil {
		t.Fatal(err)
	}
	total, filled, pct := f.Stats()
	if total != 3 || filled != 2 {
		t.Errorf("Stats() = %d, %d, want 3, 2", total, filled)
	}
	if pct < 66 || pct > 67 {
		t.Errorf("pct = %.1f, want ~66.7", pct)
	}
}

// One sample per alphabet the key generator also maps.
var europeanSamples = map[string]string{
	"tr": "Çığ düşün, şöyle: İğne",
	"de": "Größe ändern: Übermäßig",
	"fr": "Français: élève, garçon, œuvre",
	"es": "¿Año nuevo? ¡Señor!",
	"pt": "Ação, coração, pão",
	"pl": "Zażółć gęślą jaźń",
	"cs": "Příliš žluťoučký kůň",
	"sk": "Ďateľ, ľad, ôsmy",
	"hu": "Árvíztűrő tükörfúrógép",
	"ro": "Știință și țară",
	"sv": "Räksmörgås på ön",
	"da": "Rødgrød med fløde, æble",
	"nl": "Ĳsselmeer, één",
	"is": "Þórður og Æsa, ð",
	"hr": "Đakovo, čćžšđ",
	"lv": "Ģimene, ķēķis, ļoti",
	"lt": "Ąžuolas, ėglė, ųų",
	"et": "Õun, jää, äär",
}

func TestWriteFile_RoundTripEuropean(t *testing.T) {
	dir := t.TempDir()
	for lang, text := range europeanSamples {
		t.Run(lang, func(t *testing.T) {
			path := filepath.Join(dir, lang+".lproj", "Common.strings")
			f := NewFile(lang, "Common")
			f.Set("sample.text", text)
			f.Set("sample.quoted", `"`+text+`"`+"\n")
			if err := f.WriteFile(path); err != nil {
				t.Fatal(err)
			}
			back, err := ParseFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if got, _ := back.Get("sample.text"); got != text {
				t.Errorf("sample.text = %q, want %q", got, text)
			}
			if got, _ := back.Get("sample.quoted"); got != `"`+text+`"`+"\n" {
				t.Errorf("sample.quoted = %q", got)
			}
		})
	}
}

func TestWriteFile_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.lproj", "AI.strings")
	f := New()
	f.Set("a", "b")
	if err := f.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".lokscan-*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFormatEntry(t *testing.T) {
	if got := FormatEntry(`say "hi"`, "a\\b"); got != `"say \"hi\"" = "a\\b";` {
		t.Errorf("FormatEntry() = %q", got)
	}
}
