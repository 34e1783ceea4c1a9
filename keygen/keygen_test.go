package keygen

import "testing"

func TestNormalizeToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Save Changes", "saveChanges"},
		{"OK BUTTON", "okButton"},
		{"Größe ändern", "grosseAndern"},
		{"Çığ düşün", "cigDusun"},
		{"Zażółć gęślą jaźń", "zazolcGeslaJazn"},
		{"Příliš žluťoučký kůň", "prilisZlutouckyKun"},
		{"Árvíztűrő tükörfúrógép", "arvizturoTukorfurogep"},
		{"Știință și țară", "stiintaSiTara"},
		{"Rødgrød med fløde", "rodgrodMedFlode"},
		{"Þórður og Æsa", "thordurOgAesa"},
		{"Đakovo", "dakovo"},
		{"Ĳsselmeer", "ijsselmeer"},
		{"Ģimene, ķēķis", "gimeneKekis"},
		{"Õun ja jää", "ounJaJaa"},
		{"¿Año nuevo?", "anoNuevo"},
		{"Step 2 of 3", "step2Of3"},
		{"🎉🎉", "unknown"},
		{"   ", "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := NormalizeToKey(tc.in); got != tc.want {
				t.Fatalf("NormalizeToKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSuggestKey(t *testing.T) {
	tests := []struct {
		context, text, want string
	}{
		{"Button", "Save changes", "button.save.changes"},
		{"navigationTitle", "Main Screen", "nav.main.screen"},
		{"Alert.title", "Something went wrong!", "alert.something.went.wrong"},
		{"TextField", "Enter your e-mail address please", "placeholder.enter.your.e.mail"},
		{"Variable", "Größe", "common.grosse"},
		{"", "???", "common.unknown"},
	}
	for _, tc := range tests {
		if got := SuggestKey(tc.context, tc.text); got != tc.want {
			t.Errorf("SuggestKey(%q, %q) = %q, want %q", tc.context, tc.text, got, tc.want)
		}
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		context, text string
		want          int
	}{
		{"Button", "Save", 10},
		{"Text", "OK", 0},
		{"Variable", "Some internal description text", 2},
		{"Variable", "Upload failed", 7},
		{"Alert.title", "A rather long alert title text", 10},
		{"unknownThing", "Just some words here ok", 5},
	}
	for _, tc := range tests {
		if got := Priority(tc.context, tc.text); got != tc.want {
			t.Errorf("Priority(%q, %q) = %d, want %d", tc.context, tc.text, got, tc.want)
		}
	}
}

func TestHumanizeKey(t *testing.T) {
	tests := map[string]string{
		"settings.saveChanges": "Save changes",
		"title":                "Title",
		"onboarding.step_one":  "Step one",
	}
	for in, want := range tests {
		if got := HumanizeKey(in); got != want {
			t.Errorf("HumanizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSwiftNames(t *testing.T) {
	if got := SwiftIdentifier("welcome.title"); got != "welcomeTitle" {
		t.Errorf("SwiftIdentifier() = %q", got)
	}
	if got := SwiftIdentifier("404.title"); got != "_404Title" {
		t.Errorf("SwiftIdentifier(digit) = %q", got)
	}
	if got := SwiftTypeName("in-app"); got != "InApp" {
		t.Errorf("SwiftTypeName() = %q", got)
	}
}
