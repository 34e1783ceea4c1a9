// Package keytable holds the in-memory key tables of a project: one Table
// per (module, language) pair, the Index over all of them, the Loader that
// builds the Index from parsed files, and the Writer, the only way tables
// are mutated.
package keytable

import (
	"sort"
	"sync"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/extract"
)

// Entry is one parsed key/value pair.
type Entry struct {
	Key   string
	Value string
	Line  int
}

// TableFile locates one table on disk.
type TableFile struct {
	Module string
	Lang   string
	Path   string
}

// Adapter is the capability a string-table format provides.
type Adapter interface {
	// ListKeyFiles finds every table below root.
	ListKeyFiles(root string) ([]TableFile, error)
	// ParseTable reads one table; malformed input yields a *diag.ParseError.
	ParseTable(path string) ([]Entry, error)
	// WriteEntry adds or updates one key, creating the file when needed.
	WriteEntry(path, key, text string) error
	// RemoveEntry deletes one key.
	RemoveEntry(path, key string) error
	// TablePath returns where the table for lang and module lives under dir.
	TablePath(dir, lang, module string) string
	// CallSyntax describes how source code references keys.
	CallSyntax() extract.CallSyntax
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

// Table maps keys to text for one module and language. Keys keep their
// insertion order.
type Table struct {
	Module string
	Lang   string
	Path   string

	keys   []string
	values map[string]string
	lines  map[string]int
}

// NewTable builds a table from entries. Later duplicates overwrite earlier
// values but keep the first position.
func NewTable(module, lang, path string, entries []Entry) *Table {
	t := &Table{
		Module: module,
		Lang:   lang,
		Path:   path,
		values: make(map[string]string, len(entries)),
		lines:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		t.set(e.Key, e.Value)
		t.lines[e.Key] = e.Line
	}
	return t
}

// Get returns the text for key.
func (t *Table) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Has reports whether key is present.
func (t *Table) Has(key string) bool {
	_, ok := t.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of keys.
func (t *Table) Len() int { return len(t.keys) }

// Line returns the source line of key, or 0 when unknown.
func (t *Table) Line(key string) int { return t.lines[key] }

// Filled returns the number of keys with non-empty text.
func (t *Table) Filled() int {
	n := 0
	for _, k := range t.keys {
		if t.values[k] != "" {
			n++
		}
	}
	return n
}

func (t *Table) set(key, value string) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

func (t *Table) remove(key string) {
	if _, ok := t.values[key]; !ok {
		return
	}
	delete(t.values, key)
	delete(t.lines, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// ---------------------------------------------------------------------------
// Index
// ---------------------------------------------------------------------------

// Index holds every table of a project keyed by module and language.
// It is read-only during analysis; only a Writer changes it.
type Index struct {
	primary string

	mu     sync.RWMutex
	tables map[string]map[string]*Table // module → lang → table
	diags  diag.Collector
}

func newIndex(primary string) *Index {
	return &Index{primary: primary, tables: make(map[string]map[string]*Table)}
}

// Primary returns the primary language.
func (x *Index) Primary() string { return x.primary }

// Table returns the table for module and lang.
func (x *Index) Table(module, lang string) (*Table, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	t, ok := x.tables[module][lang]
	return t, ok
}

// Path returns the file of the table for module and lang, or "".
func (x *Index) Path(module, lang string) string {
	if t, ok := x.Table(module, lang); ok {
		return t.Path
	}
	return ""
}

// Modules returns all module names, sorted.
func (x *Index) Modules() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.tables))
	for m := range x.tables {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Languages returns every language with at least one table, sorted.
func (x *Index) Languages() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set := make(map[string]bool)
	for _, langs := range x.tables {
		for l := range langs {
			set[l] = true
		}
	}
	return sortedKeys(set)
}

// LanguagesOf returns the languages that have a table for module, sorted.
func (x *Index) LanguagesOf(module string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set := make(map[string]bool)
	for l := range x.tables[module] {
		set[l] = true
	}
	return sortedKeys(set)
}

// HasLanguage reports whether any module has a table for lang.
func (x *Index) HasLanguage(lang string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, langs := range x.tables {
		if _, ok := langs[lang]; ok {
			return true
		}
	}
	return false
}

// Owners returns the modules whose lang table contains key, sorted.
func (x *Index) Owners(key, lang string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []string
	for m, langs := range x.tables {
		if t, ok := langs[lang]; ok && t.Has(key) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Owner returns the first module (by name) whose lang table contains key.
func (x *Index) Owner(key, lang string) (string, bool) {
	owners := x.Owners(key, lang)
	if len(owners) == 0 {
		return "", false
	}
	return owners[0], true
}

// Diagnostics returns the aggregated load problems, or nil.
func (x *Index) Diagnostics() error { return x.diags.Err() }

// DiagnosticList returns the load problems sorted by message.
func (x *Index) DiagnosticList() []error { return x.diags.Errors() }

// ensure returns the table for module and lang, creating an empty one at
// path when missing.
func (x *Index) ensure(module, lang, path string) *Table {
	x.mu.Lock()
	defer x.mu.Unlock()
	langs, ok := x.tables[module]
	if !ok {
		langs = make(map[string]*Table)
		x.tables[module] = langs
	}
	t, ok := langs[lang]
	if !ok {
		t = NewTable(module, lang, path, nil)
		langs[lang] = t
	}
	return t
}

// drop forgets the table for module and lang.
func (x *Index) drop(module, lang string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.tables[module], lang)
	if len(x.tables[module]) == 0 {
		delete(x.tables, module)
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
