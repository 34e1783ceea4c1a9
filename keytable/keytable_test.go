package keytable

import (
	"context"
	"errors"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/extract"
)

// memAdapter keeps tables in memory, laid out as <dir>/<lang>/<module>.
type memAdapter struct {
	mu      sync.Mutex
	files   map[string][]Entry
	broken  map[string]error
	failOn  string
	written []string
}

func newMemAdapter() *memAdapter {
	return &memAdapter{files: map[string][]Entry{}, broken: map[string]error{}}
}

func (m *memAdapter) ListKeyFiles(root string) ([]TableFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TableFile
	for p := range m.files {
		out = append(out, m.describe(p))
	}
	for p := range m.broken {
		out = append(out, m.describe(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *memAdapter) describe(p string) TableFile {
	return TableFile{Module: path.Base(p), Lang: path.Base(path.Dir(p)), Path: p}
}

func (m *memAdapter) ParseTable(p string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.broken[p]; err != nil {
		return nil, err
	}
	return append([]Entry(nil), m.files[p]...), nil
}

func (m *memAdapter) WriteEntry(p, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == m.failOn {
		return errors.New("disk full")
	}
	m.written = append(m.written, p+"#"+key)
	entries := m.files[p]
	for i, e := range entries {
		if e.Key == key {
			entries[i].Value = text
			return nil
		}
	}
	m.files[p] = append(entries, Entry{Key: key, Value: text})
	return nil
}

func (m *memAdapter) RemoveEntry(p, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.files[p]
	for i, e := range entries {
		if e.Key == key {
			m.files[p] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memAdapter) TablePath(dir, lang, module string) string {
	return path.Join(dir, lang, module)
}

func (m *memAdapter) CallSyntax() extract.CallSyntax { return extract.Swift() }

func fixture() *memAdapter {
	a := newMemAdapter()
	a.files["res/en/Common"] = []Entry{{"welcome.title", "Welcome", 1}, {"button.save", "Save", 2}}
	a.files["res/de/Common"] = []Entry{{"welcome.title", "Willkommen", 1}}
	a.files["res/en/AI"] = []Entry{{"ai.prompt", "Ask me", 1}, {"button.save", "Save chat", 2}}
	a.broken["res/tr/Common"] = &diag.ParseError{File: "res/tr/Common", Line: 3, Reason: "unterminated string"}
	return a
}

func TestBuild(t *testing.T) {
	a := fixture()
	files, _ := a.ListKeyFiles("")
	var records []Record
	for _, f := range files {
		entries, err := a.ParseTable(f.Path)
		records = append(records, Record{File: f, Entries: entries, Err: err})
	}
	idx := Build(records, "en")

	if got, want := idx.Modules(), []string{"AI", "Common"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Modules() = %v, want %v", got, want)
	}
	if got, want := idx.Languages(), []string{"de", "en", "tr"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}
	if got, want := idx.LanguagesOf("AI"), []string{"en"}; !reflect.DeepEqual(got, want) {
		t.Errorf("LanguagesOf(AI) = %v, want %v", got, want)
	}

	// The broken table is present but empty.
	tr, ok := idx.Table("Common", "tr")
	if !ok || tr.Len() != 0 {
		t.Errorf("Table(Common, tr) = %v, %v, want empty table", tr, ok)
	}
	var pe *diag.ParseError
	if !errors.As(idx.Diagnostics(), &pe) || pe.Line != 3 {
		t.Errorf("Diagnostics() = %v, want the parse error", idx.Diagnostics())
	}

	if got, want := idx.Owners("button.save", "en"), []string{"AI", "Common"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Owners() = %v, want %v", got, want)
	}
	if m, ok := idx.Owner("welcome.title", "en"); !ok || m != "Common" {
		t.Errorf("Owner() = %q, %v", m, ok)
	}
	if _, ok := idx.Owner("nope", "en"); ok {
		t.Error("Owner(nope) found a module")
	}
	if !idx.HasLanguage("de") || idx.HasLanguage("fr") {
		t.Error("HasLanguage() wrong")
	}

	common, _ := idx.Table("Common", "en")
	if got, want := common.Keys(), []string{"welcome.title", "button.save"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want insertion order %v", got, want)
	}
	if common.Line("button.save") != 2 {
		t.Errorf("Line() = %d, want 2", common.Line("button.save"))
	}
}

func TestBuild_DuplicateTable(t *testing.T) {
	records := []Record{
		{File: TableFile{Module: "Common", Lang: "en", Path: "b/en/Common"}, Entries: []Entry{{Key: "x", Value: "B"}}},
		{File: TableFile{Module: "Common", Lang: "en", Path: "a/en/Common"}, Entries: []Entry{{Key: "x", Value: "A"}}},
	}
	idx := Build(records, "en")
	tbl, _ := idx.Table("Common", "en")
	if v, _ := tbl.Get("x"); v != "A" {
		t.Errorf("x = %q, want the first table by path", v)
	}
	if idx.Diagnostics() == nil || !strings.Contains(idx.Diagnostics().Error(), "second table") {
		t.Errorf("Diagnostics() = %v", idx.Diagnostics())
	}
}

func TestLoad(t *testing.T) {
	a := fixture()
	a.files["res/en/InfoPlist"] = []Entry{{"CFBundleName", "App", 1}}

	idx, err := Load(context.Background(), a, "res", LoadOptions{Primary: "en", IgnoreModules: []string{"InfoPlist"}, Workers: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := idx.Table("InfoPlist", "en"); ok {
		t.Error("ignored module was loaded")
	}
	if idx.Primary() != "en" {
		t.Errorf("Primary() = %q", idx.Primary())
	}
	if len(idx.DiagnosticList()) != 1 {
		t.Errorf("DiagnosticList() = %v, want 1 entry", idx.DiagnosticList())
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, fixture(), "res", LoadOptions{Primary: "en"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

type recordingGuard struct {
	protected []string
}

func (g *recordingGuard) Protect(path string, fn func() error) error {
	g.protected = append(g.protected, path)
	return fn()
}

func TestWriter_SetRoundTrip(t *testing.T) {
	a := fixture()
	idx, err := Load(context.Background(), a, "res", LoadOptions{Primary: "en"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	guard := &recordingGuard{}
	w := NewWriter(a, idx, "res", guard, nil)

	if err := w.Set("Common", "de", "button.save", "Speichern"); err != nil {
		t.Fatal(err)
	}
	// A language without a table goes next to the module's other tables.
	if err := w.Set("AI", "de", "ai.prompt", "Frag mich"); err != nil {
		t.Fatal(err)
	}
	// A new module goes under the writer's directory.
	if err := w.Set("Billing", "en", "billing.title", "Billing"); err != nil {
		t.Fatal(err)
	}

	if got := w.PathFor("AI", "de"); got != "res/de/AI" {
		t.Errorf("PathFor(AI, de) = %q", got)
	}
	if got, want := guard.protected, []string{"res/de/Common", "res/de/AI", "res/en/Billing"}; !reflect.DeepEqual(got, want) {
		t.Errorf("protected = %v, want %v", got, want)
	}

	// Reloading yields the same pairs.
	again, err := Load(context.Background(), a, "res", LoadOptions{Primary: "en"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct{ module, lang, key, want string }{
		{"Common", "de", "button.save", "Speichern"},
		{"AI", "de", "ai.prompt", "Frag mich"},
		{"Billing", "en", "billing.title", "Billing"},
	} {
		tbl, ok := again.Table(c.module, c.lang)
		if !ok {
			t.Fatalf("Table(%s, %s) missing after reload", c.module, c.lang)
		}
		if v, _ := tbl.Get(c.key); v != c.want {
			t.Errorf("%s/%s %s = %q, want %q", c.module, c.lang, c.key, v, c.want)
		}
		// The in-memory index was updated too.
		live, _ := idx.Table(c.module, c.lang)
		if v, _ := live.Get(c.key); v != c.want {
			t.Errorf("index %s/%s %s = %q, want %q", c.module, c.lang, c.key, v, c.want)
		}
	}
}

func TestWriter_FailedWriteLeavesIndex(t *testing.T) {
	a := fixture()
	idx, _ := Load(context.Background(), a, "res", LoadOptions{Primary: "en"}, nil)
	a.failOn = "res/de/Common"
	w := NewWriter(a, idx, "res", nil, nil)

	err := w.Set("Common", "de", "button.save", "Speichern")
	var ioErr *diag.IOError
	if !errors.As(err, &ioErr) || ioErr.Path != "res/de/Common" {
		t.Fatalf("Set() error = %v, want *diag.IOError for res/de/Common", err)
	}
	tbl, _ := idx.Table("Common", "de")
	if tbl.Has("button.save") {
		t.Error("index changed although the write failed")
	}

	// Other tables can still be written.
	if err := w.Set("Common", "en", "extra", "Extra"); err != nil {
		t.Fatalf("Set() on another table = %v", err)
	}
}

func TestWriter_Remove(t *testing.T) {
	a := fixture()
	idx, _ := Load(context.Background(), a, "res", LoadOptions{Primary: "en"}, nil)
	w := NewWriter(a, idx, "res", nil, nil)

	if err := w.Remove("Common", "en", "button.save"); err != nil {
		t.Fatal(err)
	}
	tbl, _ := idx.Table("Common", "en")
	if tbl.Has("button.save") || tbl.Len() != 1 {
		t.Errorf("Keys() = %v after Remove", tbl.Keys())
	}
	var lnf *diag.LanguageNotFoundError
	if err := w.Remove("Common", "fr", "x"); !errors.As(err, &lnf) {
		t.Errorf("Remove(fr) error = %v, want *diag.LanguageNotFoundError", err)
	}
}

func TestWriter_ConcurrentSameTable(t *testing.T) {
	a := fixture()
	idx, _ := Load(context.Background(), a, "res", LoadOptions{Primary: "en"}, nil)
	w := NewWriter(a, idx, "res", nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.Set("Common", "en", "k"+string(rune('a'+i)), "v")
		}(i)
	}
	wg.Wait()
	if n := len(a.files["res/en/Common"]); n != 22 {
		t.Fatalf("table has %d entries, want 22", n)
	}
}
