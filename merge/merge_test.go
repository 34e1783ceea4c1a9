package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/stringsfile"
)

func rec(module, lang string, pairs ...string) keytable.Record {
	var entries []keytable.Entry
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, keytable.Entry{Key: pairs[i], Value: pairs[i+1], Line: i/2 + 1})
	}
	return keytable.Record{
		File:    keytable.TableFile{Module: module, Lang: lang, Path: lang + ".lproj/" + module + ".strings"},
		Entries: entries,
	}
}

func fixtureIndex(extra ...keytable.Record) *keytable.Index {
	records := []keytable.Record{
		rec("Common", "en",
			"welcome.title", "Welcome",
			"button.save", "Save",
			"settings.title", "Settings",
			"settings.privacy.title", "Privacy"),
		rec("Common", "de",
			"welcome.title", "Willkommen",
			"button.save", "Save",
			"old.key", "Alt"),
		rec("AI", "en", "ai.prompt", "Ask"),
		rec("AI", "de", "ai.prompt", "Frag"),
	}
	return keytable.Build(append(records, extra...), "en")
}

func keys(list []DiffEntry) []string {
	var out []string
	for _, e := range list {
		out = append(out, e.Module+"/"+e.Key)
	}
	return out
}

func TestDiff(t *testing.T) {
	d, err := Diff(fixtureIndex(), DiffOptions{Source: "en", Target: "de", Values: true})
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		got  []DiffEntry
		want []string
	}{
		{"OnlyInSource", d.OnlyInSource, []string{"Common/settings.privacy.title", "Common/settings.title"}},
		{"OnlyInTarget", d.OnlyInTarget, []string{"Common/old.key"}},
		{"ValueDifferences", d.ValueDifferences, []string{"AI/ai.prompt", "Common/welcome.title"}},
		{"Untranslated", d.Untranslated, []string{"Common/button.save"}},
	}
	for _, c := range checks {
		if got := keys(c.got); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if d.Total() != 3 {
		t.Errorf("Total() = %d, want 3", d.Total())
	}
}

func TestDiff_ValuesOnlyWhenRequested(t *testing.T) {
	d, err := Diff(fixtureIndex(), DiffOptions{Source: "en", Target: "de"})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.ValueDifferences) != 0 {
		t.Errorf("ValueDifferences = %v without Values", keys(d.ValueDifferences))
	}
}

func TestDiff_Symmetry(t *testing.T) {
	idx := fixtureIndex()
	for _, module := range []string{"", "Common", "AI"} {
		ab, err := Diff(idx, DiffOptions{Source: "en", Target: "de", Module: module})
		if err != nil {
			t.Fatal(err)
		}
		ba, err := Diff(idx, DiffOptions{Source: "de", Target: "en", Module: module})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(keys(ab.OnlyInSource), keys(ba.OnlyInTarget)) {
			t.Errorf("module %q: Diff(en, de).OnlyInSource = %v, Diff(de, en).OnlyInTarget = %v",
				module, keys(ab.OnlyInSource), keys(ba.OnlyInTarget))
		}
		if !reflect.DeepEqual(keys(ab.OnlyInTarget), keys(ba.OnlyInSource)) {
			t.Errorf("module %q: asymmetric OnlyInTarget", module)
		}
	}
}

func TestDiff_KeyFilter(t *testing.T) {
	d, err := Diff(fixtureIndex(), DiffOptions{Source: "en", Target: "de", Keys: []string{"settings.*"}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := keys(d.OnlyInSource), []string{"Common/settings.title"}; !reflect.DeepEqual(got, want) {
		t.Errorf("OnlyInSource = %v, want %v", got, want)
	}
	if len(d.OnlyInTarget)+len(d.Untranslated) != 0 {
		t.Errorf("filter let through %v %v", keys(d.OnlyInTarget), keys(d.Untranslated))
	}
}

func TestDiff_LanguageNotFound(t *testing.T) {
	tests := []struct {
		name   string
		idx    *keytable.Index
		opts   DiffOptions
		lang   string
		module string
	}{
		{"unknown language", fixtureIndex(), DiffOptions{Source: "en", Target: "fr"}, "fr", ""},
		{"module without target", fixtureIndex(rec("Billing", "en", "b", "B")), DiffOptions{Source: "en", Target: "de"}, "de", "Billing"},
		{"explicit module", fixtureIndex(), DiffOptions{Source: "en", Target: "de", Module: "Nope"}, "en", "Nope"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Diff(tc.idx, tc.opts)
			var lnf *diag.LanguageNotFoundError
			if !errors.As(err, &lnf) {
				t.Fatalf("Diff() error = %v, want *diag.LanguageNotFoundError", err)
			}
			if lnf.Lang != tc.lang || lnf.Module != tc.module {
				t.Errorf("error = %+v, want lang %q module %q", lnf, tc.lang, tc.module)
			}
		})
	}
}

// memWriter records writes without touching the index.
type memWriter struct {
	mu      sync.Mutex
	sets    []string
	removed []string
	failKey string
}

func (w *memWriter) Set(module, lang, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if key == w.failKey {
		return &diag.IOError{Op: "writing", Path: lang + "/" + module, Err: errors.New("disk full")}
	}
	w.sets = append(w.sets, fmt.Sprintf("%s/%s/%s=%s", module, lang, key, value))
	return nil
}

func (w *memWriter) Remove(module, lang, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = append(w.removed, module+"/"+lang+"/"+key)
	return nil
}

type fakeTranslator struct {
	fail   map[string]bool
	onCall func(to string)
}

func (f *fakeTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if f.onCall != nil {
		f.onCall(to)
	}
	if f.fail[text] {
		return "", errors.New("quota exceeded")
	}
	return "[" + to + "] " + text, nil
}

func TestSync_DryRun(t *testing.T) {
	w := &memWriter{}
	s, err := Sync(context.Background(), fixtureIndex(), w, nil, SyncOptions{Mode: DryRun, Prune: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.sets)+len(w.removed) != 0 {
		t.Fatalf("dry run wrote %v %v", w.sets, w.removed)
	}
	if len(s.Languages) != 1 || s.Languages[0].Lang != "de" {
		t.Fatalf("Languages = %+v", s.Languages)
	}
	de := s.Languages[0]
	if len(de.Added) != 2 || de.Added[0].Key != "settings.title" || de.Added[1].Key != "settings.privacy.title" {
		t.Errorf("Added = %+v, want primary order", de.Added)
	}
	if len(de.Pruned) != 1 || de.Pruned[0].Key != "old.key" {
		t.Errorf("Pruned = %+v", de.Pruned)
	}
}

func TestSync_Translate(t *testing.T) {
	w := &memWriter{}
	tr := &fakeTranslator{fail: map[string]bool{"Privacy": true}}
	s, err := Sync(context.Background(), fixtureIndex(), w, tr, SyncOptions{Mode: Translate, Workers: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Common/de/settings.title=[de] Settings"}; !reflect.DeepEqual(w.sets, want) {
		t.Errorf("writes = %v, want %v", w.sets, want)
	}
	de := s.Languages[0]
	if de.Translated != 1 || !reflect.DeepEqual(de.Failed, []string{"settings.privacy.title"}) {
		t.Errorf("Translated = %d, Failed = %v", de.Translated, de.Failed)
	}
	var te *diag.TranslationError
	if !errors.As(s.Err(), &te) || te.Key != "settings.privacy.title" || te.Lang != "de" {
		t.Errorf("Err() = %v, want a TranslationError for settings.privacy.title", s.Err())
	}
	if len(w.removed) != 0 {
		t.Errorf("target-only keys removed without Prune: %v", w.removed)
	}
}

func TestSync_TranslateNeedsProvider(t *testing.T) {
	_, err := Sync(context.Background(), fixtureIndex(), &memWriter{}, nil, SyncOptions{Mode: Translate}, nil)
	var cfgErr *diag.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Sync() error = %v, want *diag.ConfigError", err)
	}
}

func TestSync_WriteErrorSkipsOnlyThatKey(t *testing.T) {
	w := &memWriter{failKey: "settings.title"}
	s, err := Sync(context.Background(), fixtureIndex(), w, nil, SyncOptions{Mode: CopySource}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Common/de/settings.privacy.title=Privacy"}; !reflect.DeepEqual(w.sets, want) {
		t.Errorf("writes = %v, want %v", w.sets, want)
	}
	var ioErr *diag.IOError
	if !errors.As(s.Err(), &ioErr) {
		t.Errorf("Err() = %v, want *diag.IOError", s.Err())
	}
	if s.Languages[0].Copied != 1 {
		t.Errorf("Copied = %d, want 1", s.Languages[0].Copied)
	}
}

func TestSync_CancelBetweenLanguages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &memWriter{}
	tr := &fakeTranslator{onCall: func(to string) {
		if to == "es" {
			cancel()
		}
	}}

	s, err := Sync(ctx, fixtureIndex(), w, tr, SyncOptions{Mode: Translate, Targets: []string{"de", "es", "fr"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sync() error = %v, want context.Canceled", err)
	}
	if got := s.Completed(); !reflect.DeepEqual(got, []string{"de"}) {
		t.Errorf("Completed() = %v, want [de]", got)
	}
	if got := s.Interrupted(); !reflect.DeepEqual(got, []string{"es", "fr"}) {
		t.Errorf("Interrupted() = %v, want [es fr]", got)
	}
	for _, set := range w.sets {
		if !strings.Contains(set, "/de/") {
			t.Errorf("interrupted language written: %s", set)
		}
	}
	if len(w.sets) != 2 {
		t.Errorf("de writes = %v, want 2", w.sets)
	}
}

func writeTable(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSync_WritesThroughTables(t *testing.T) {
	root := t.TempDir()
	writeTable(t, root, "en.lproj/Common.strings", "\"welcome.title\" = \"Welcome\";\n\"settings.title\" = \"Settings\";\n")
	writeTable(t, root, "de.lproj/Common.strings", "// German\n\"welcome.title\" = \"Willkommen\";\n\"old.key\" = \"Alt\";\n")

	ctx := context.Background()
	adapter := stringsfile.Adapter{}
	load := func() *keytable.Index {
		idx, err := keytable.Load(ctx, adapter, root, keytable.LoadOptions{Primary: "en"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		return idx
	}

	idx := load()
	w := keytable.NewWriter(adapter, idx, root, nil, nil)
	if _, err := Sync(ctx, idx, w, nil, SyncOptions{Mode: CopySource}, nil); err != nil {
		t.Fatal(err)
	}
	de, _ := load().Table("Common", "de")
	if v, _ := de.Get("settings.title"); v != "Settings" {
		t.Errorf("settings.title = %q after sync", v)
	}
	if !de.Has("old.key") {
		t.Error("target-only key removed without Prune")
	}

	s, err := Sync(ctx, idx, w, nil, SyncOptions{Mode: CopySource, Prune: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Languages[0].Added) != 0 || len(s.Languages[0].Pruned) != 1 {
		t.Errorf("second sync = %+v, want only old.key pruned", s.Languages[0])
	}
	de, _ = load().Table("Common", "de")
	if de.Has("old.key") {
		t.Error("old.key survived Prune")
	}
	data, _ := os.ReadFile(filepath.Join(root, "de.lproj/Common.strings"))
	if !strings.HasPrefix(string(data), "// German\n") {
		t.Errorf("comment lost:\n%s", data)
	}
}

func TestExport(t *testing.T) {
	d, err := Diff(fixtureIndex(), DiffOptions{Source: "en", Target: "de"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, `"only_in_source": 2`},
		{FormatMarkdown, "# Localization diff: en → de"},
		{FormatText, "Missing in de: 2"},
	}
	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := ExportDiff(&buf, d, tc.format); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tc.want) {
				t.Errorf("ExportDiff(%s) =\n%s\nwant it to contain %q", tc.format, buf.String(), tc.want)
			}
		})
	}

	var cfgErr *diag.ConfigError
	if err := ExportDiff(&bytes.Buffer{}, d, "html"); !errors.As(err, &cfgErr) {
		t.Errorf("ExportDiff(html) = %v, want *diag.ConfigError", err)
	}

	s := &SyncSummary{Source: "en", Mode: "copy", Languages: []LangResult{{Lang: "de", Status: StatusCompleted, Added: []Change{{Module: "Common", Key: "k"}}, Copied: 1}}}
	var buf bytes.Buffer
	if err := ExportSync(&buf, s, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "de: completed, +1 keys") {
		t.Errorf("ExportSync(text) =\n%s", buf.String())
	}
}
