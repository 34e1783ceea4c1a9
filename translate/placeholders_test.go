package translate

import (
	"reflect"
	"testing"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello %@", []string{"%@"}},
		{"%1$@ sent %2$ld photos", []string{"%1$@", "%2$ld"}},
		{"Progress: %.1f%%", []string{"%.1f", "%%"}},
		{"Hi \\(user.name), you have \\(count(of: items)) items", []string{"\\(user.name)", "\\(count(of: items))"}},
		{"\\(percent)% done", []string{"\\(percent)"}},
		{"Welcome {name}, {{app}} v{0}", []string{"{name}", "{{app}}", "{0}"}},
		{"Line one\\nLine two", nil},
		{"100% of users", nil},
		{"Plain text", nil},
	}
	for _, tc := range tests {
		got := Placeholders(tc.in)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Placeholders(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSamePlaceholders(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"%1$@ of %2$@", "%2$@ von %1$@", true},
		{"Hello %@", "Hallo", false},
		{"%d items", "%@ Elemente", false},
		{"Hi \\(name)", "Merhaba \\(name)", true},
		{"No placeholders", "Keine Platzhalter", true},
	}
	for _, tc := range tests {
		if got := SamePlaceholders(tc.a, tc.b); got != tc.want {
			t.Errorf("SamePlaceholders(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestProtectRestore(t *testing.T) {
	in := "Hello \\(name), %d new {kind}"
	p := protect(in)
	if p.text != "Hello __PH0__, __PH1__ new __PH2__" {
		t.Fatalf("protect() = %q", p.text)
	}

	tests := []struct {
		name       string
		translated string
		want       string
		ok         bool
	}{
		{"in order", "Hallo __PH0__, __PH1__ neue __PH2__", "Hallo \\(name), %d neue {kind}", true},
		{"reordered", "__PH1__ neue __PH2__ für __PH0__", "%d neue {kind} für \\(name)", true},
		{"mangled spacing", "Hallo __ ph0 __, __PH1__ neue __PH2__", "Hallo \\(name), %d neue {kind}", true},
		{"lost", "Hallo __PH0__, neue __PH2__", "", false},
		{"duplicated", "__PH0__ __PH0__ __PH1__ __PH2__", "", false},
		{"unknown token", "__PH0__ __PH1__ __PH2__ __PH7__", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.restore(tc.translated)
			if tc.ok {
				if err != nil || got != tc.want {
					t.Fatalf("restore() = %q, %v, want %q", got, err, tc.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("restore() = %q, want an error", got)
			}
		})
	}
}

func TestProtect_NoPlaceholders(t *testing.T) {
	p := protect("Save changes")
	if p.text != "Save changes" {
		t.Fatalf("protect() = %q", p.text)
	}
	if got, err := p.restore("Änderungen speichern"); err != nil || got != "Änderungen speichern" {
		t.Fatalf("restore() = %q, %v", got, err)
	}
}
