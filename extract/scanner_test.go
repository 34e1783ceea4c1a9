package extract

import (
	"regexp"
	"strings"
	"testing"
)

const homeView = `import SwiftUI

struct HomeView: View {
    var body: some View {
        VStack {
            Text("welcome.title".localized)
            Text("Click here")
            Button(String(localized: "button.save")) {}
            Text("activity.\(kind)".localized(from: .ai))
            Text("style.\(style.rawValue).description".localized)
            // Text("Commented out")
            /* Text("Also /* nested */ commented") */
            Image(systemName: "house.fill")
            print("Debug output here")
            Text(NSLocalizedString("legacy.key", tableName: "Legacy", comment: "A legacy comment"))
        }
        .navigationTitle("Main Screen")
    }
}
`

func newTestScanner(t *testing.T, withPatterns bool) *Scanner {
	t.Helper()
	var p *Patterns
	if withPatterns {
		var err error
		if p, err = Compile(PatternConfig{}); err != nil {
			t.Fatal(err)
		}
	}
	sc, err := NewScanner(Swift(), p)
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func TestScanner_ClassifiesHomeView(t *testing.T) {
	t.Parallel()

	sc := newTestScanner(t, true)
	got := sc.Scan("App/Views/HomeView.swift", []byte(homeView))

	want := []Occurrence{
		{Line: 6, Kind: LocalizedCall, Key: "welcome.title"},
		{Line: 7, Kind: Hardcoded, Text: "Click here", Context: "Text"},
		{Line: 8, Kind: LocalizedCall, Key: "button.save"},
		{Line: 9, Kind: DynamicLocalizedCall, Prefix: "activity.*", Pattern: `^activity\.[^.]+$`, Table: "ai"},
		{Line: 10, Kind: DynamicLocalizedCall, Prefix: "style.*.description", Pattern: `^style\.[^.]+\.description$`},
		{Line: 15, Kind: LocalizedCall, Key: "legacy.key", Table: "Legacy"},
		{Line: 17, Kind: Hardcoded, Text: "Main Screen", Context: "navigationTitle"},
	}
	if len(got) != len(want) {
		for _, o := range got {
			t.Logf("got %d %s %q", o.Line, o.Kind, o.Text)
		}
		t.Fatalf("Scan() returned %d occurrences, want %d", len(got), len(want))
	}
	for i, w := range want {
		g := got[i]
		if g.File != "App/Views/HomeView.swift" {
			t.Errorf("[%d] File = %q", i, g.File)
		}
		if g.Line != w.Line || g.Kind != w.Kind {
			t.Errorf("[%d] = line %d %s, want line %d %s", i, g.Line, g.Kind, w.Line, w.Kind)
		}
		if w.Key != "" && g.Key != w.Key {
			t.Errorf("[%d] Key = %q, want %q", i, g.Key, w.Key)
		}
		if w.Text != "" && g.Text != w.Text {
			t.Errorf("[%d] Text = %q, want %q", i, g.Text, w.Text)
		}
		if g.Prefix != w.Prefix || g.Pattern != w.Pattern {
			t.Errorf("[%d] Prefix/Pattern = %q %q, want %q %q", i, g.Prefix, g.Pattern, w.Prefix, w.Pattern)
		}
		if g.Table != w.Table {
			t.Errorf("[%d] Table = %q, want %q", i, g.Table, w.Table)
		}
		if w.Context != "" && g.Context != w.Context {
			t.Errorf("[%d] Context = %q, want %q", i, g.Context, w.Context)
		}
	}
}

func TestScanner_ColumnAndOffsets(t *testing.T) {
	t.Parallel()

	src := "let ü = \"Grüße zurück\"\n"
	got := newTestScanner(t, false).Scan("a.swift", []byte(src))
	if len(got) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(got))
	}
	o := got[0]
	if o.Line != 1 || o.Column != 9 {
		t.Errorf("position = %d:%d, want 1:9", o.Line, o.Column)
	}
	if src[o.Offset:o.End] != `"Grüße zurück"` {
		t.Errorf("Offset/End cover %q", src[o.Offset:o.End])
	}
	if o.Context != "Variable" {
		t.Errorf("Context = %q, want Variable", o.Context)
	}
}

func TestScanner_LiteralForms(t *testing.T) {
	t.Parallel()

	src := `let a = """
    Hello
    World
    """
let b = #"Raw "quoted" \(notInterp)"#
let c = "Hello \(name ?? "friend")!"
let d = "oops
let e = "after"
`
	got := newTestScanner(t, false).Scan("f.swift", []byte(src))
	want := []struct {
		line int
		text string
	}{
		{1, "Hello\n    World"},
		{5, `Raw "quoted" \(notInterp)`},
		{6, `Hello \(name ?? "friend")!`},
		{8, "after"},
	}
	if len(got) != len(want) {
		for _, o := range got {
			t.Logf("got %d %q", o.Line, o.Text)
		}
		t.Fatalf("got %d occurrences, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Line != w.line || got[i].Text != w.text {
			t.Errorf("[%d] = %d %q, want %d %q", i, got[i].Line, got[i].Text, w.line, w.text)
		}
	}
	if !got[0].Multiline {
		t.Error("triple-quoted literal not marked Multiline")
	}
}

func TestScanner_DynamicPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		prefix  string
		pattern string
		matches []string
		rejects []string
	}{
		{
			name:    "trailing",
			src:     `"activity.\(id)".localized`,
			prefix:  "activity.*",
			pattern: `^activity\.[^.]+$`,
			matches: []string{"activity.work", "activity.friends"},
			rejects: []string{"activity.", "profile.work", "activity.lonely.unused"},
		},
		{
			name:    "middle",
			src:     `"style.\(s).description".localized`,
			prefix:  "style.*.description",
			pattern: `^style\.[^.]+\.description$`,
			matches: []string{"style.friendly.description"},
			rejects: []string{"style.a.b.description", "style.friendly.title"},
		},
		{
			name:    "nested",
			src:     `"a.\(f(x, "y.\(z)")).b".localized`,
			prefix:  "a.*.b",
			pattern: `^a\.[^.]+\.b$`,
			matches: []string{"a.x.b"},
		},
		{
			name:    "raw",
			src:     `#"k.\#(id)"#.localized`,
			prefix:  "k.*",
			pattern: `^k\.[^.]+$`,
			matches: []string{"k.v"},
		},
		{
			name:    "whole key",
			src:     `"\(key)".localized`,
			prefix:  "*",
			pattern: `^[^.]+$`,
			matches: []string{"title"},
			rejects: []string{"a.b"},
		},
		{
			name:    "inside segment",
			src:     `"item_\(n).title".localized`,
			prefix:  "item_*.title",
			pattern: `^item_[^.]+\.title$`,
			matches: []string{"item_3.title"},
			rejects: []string{"item_3.x.title"},
		},
		{
			name:    "metacharacters quoted",
			src:     `String(localized: "price+\(n)")`,
			prefix:  "price+*",
			pattern: `^price\+.+$`,
			matches: []string{"price+10"},
			rejects: []string{"priceee10"},
		},
	}
	sc := newTestScanner(t, false)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sc.Scan("x.swift", []byte(tc.src))
			if len(got) != 1 || got[0].Kind != DynamicLocalizedCall {
				t.Fatalf("Scan(%s) = %+v, want one dynamic call", tc.src, got)
			}
			if got[0].Prefix != tc.prefix || got[0].Pattern != tc.pattern {
				t.Fatalf("Prefix, Pattern = %q, %q, want %q, %q", got[0].Prefix, got[0].Pattern, tc.prefix, tc.pattern)
			}
			re := regexp.MustCompile(got[0].Pattern)
			for _, k := range tc.matches {
				if !re.MatchString(k) {
					t.Errorf("pattern does not match %q", k)
				}
			}
			for _, k := range tc.rejects {
				if re.MatchString(k) {
					t.Errorf("pattern matches %q", k)
				}
			}
		})
	}
}

func TestScanner_SuffixBoundary(t *testing.T) {
	t.Parallel()

	got := newTestScanner(t, false).Scan("x.swift", []byte(`let s = "Some text".localizedCapitalized`))
	if len(got) != 1 || got[0].Kind != Hardcoded {
		t.Fatalf("Scan() = %+v, want one hardcoded literal", got)
	}
}

func TestScanner_EscapedKey(t *testing.T) {
	t.Parallel()

	got := newTestScanner(t, false).Scan("x.swift", []byte(`"say \"hi\"".localized`))
	if len(got) != 1 || got[0].Key != `say "hi"` {
		t.Fatalf("Scan() = %+v, want key %q", got, `say "hi"`)
	}
	if got[0].Text != `say \"hi\"` {
		t.Errorf("Text = %q", got[0].Text)
	}
}

func TestScanner_TableArgWithArguments(t *testing.T) {
	t.Parallel()

	got := newTestScanner(t, false).Scan("x.swift", []byte(`"usage.left".localized(from: .premium, with: count)`))
	if len(got) != 1 || got[0].Key != "usage.left" || got[0].Table != "premium" {
		t.Fatalf("Scan() = %+v, want key usage.left in table premium", got)
	}
}

func TestScanner_Mask(t *testing.T) {
	t.Parallel()

	src := "let a = L10n.Common.title // L10n.Common.note\n" +
		"/* L10n.Common.x /* nested */ */ let b = \"L10n.Common.y\"\n" +
		"let c = #\"L10n.Raw.z\"#"
	got := string(newTestScanner(t, false).Mask([]byte(src)))
	if len(got) != len(src) || strings.Count(got, "\n") != 2 {
		t.Fatalf("Mask() changed length or lines: %q", got)
	}
	if n := strings.Count(got, "L10n."); n != 1 || !strings.HasPrefix(got, "let a = L10n.Common.title ") {
		t.Fatalf("Mask() = %q, want only the code access kept", got)
	}
}

func TestScanner_OccurrencesRestartable(t *testing.T) {
	t.Parallel()

	sc := newTestScanner(t, true)
	seq := sc.Occurrences("h.swift", []byte(homeView))

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	first, second := count(), count()
	if first == 0 || first != second {
		t.Fatalf("iterations yielded %d then %d occurrences", first, second)
	}

	for o := range seq {
		if o.Line != 6 {
			t.Fatalf("first occurrence on line %d, want 6", o.Line)
		}
		break
	}
}

func TestKindMarshalText(t *testing.T) {
	t.Parallel()

	b, err := DynamicLocalizedCall.MarshalText()
	if err != nil || string(b) != "dynamic" {
		t.Fatalf("MarshalText() = %q, %v", b, err)
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`Save changes`, "Save changes"},
		{`Say \"hi\"`, `Say "hi"`},
		{`Line\nbreak\tTab`, "Line\nbreak\tTab"},
		{`Back\\slash`, `Back\slash`},
		{`Smile \u{1F600}`, "Smile \U0001F600"},
	}
	for _, tc := range tests {
		if got := Unescape(tc.in); got != tc.want {
			t.Errorf("Unescape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
