// Package reconcile cross-references scanned source occurrences against the
// key index. It reports hardcoded strings, keys used in code but missing
// from a table, keys no code refers to, and the dynamic (interpolated) key
// patterns seen in code.
//
// Reconcile is single-threaded and pure: it needs the complete index and
// the complete set of occurrences, never mutates either, and sorts every
// list it returns so identical inputs give identical results.
package reconcile

import (
	"regexp"
	"sort"
	"strings"

	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/keygen"
	"github.com/minios-linux/lokscan/keytable"
)

// DefaultModule is the table Swift reads when a call names none.
const DefaultModule = "Localizable"

// ModuleResolver maps a source file to the module its calls read from.
// ModuleFor returns "" when no mapping applies.
type ModuleResolver interface {
	ModuleFor(path string) string
}

// Options configures Reconcile.
type Options struct {
	// Resolver maps source files to modules; nil disables path mapping.
	Resolver ModuleResolver
	// DefaultModule is used when nothing else resolves a call's module.
	// Empty means DefaultModule.
	DefaultModule string
	// Languages are the languages every key must exist in. Empty means
	// every language that has at least one table.
	Languages []string
}

// Hardcoded is a user-facing literal not routed through localization.
type Hardcoded struct {
	extract.Occurrence
	SuggestedKey string `json:"suggested_key"`
	Priority     int    `json:"priority"`
}

// MissingKey is a key absent from one language table of a module.
type MissingKey struct {
	Module string `json:"module"`
	Lang   string `json:"lang"`
	Key    string `json:"key"`
	// Files lists the source files referring to the key. It is empty for
	// a key that exists in the primary language but not in this target.
	Files []string `json:"files,omitempty"`
}

// Referenced reports whether code refers to the key.
func (m MissingKey) Referenced() bool { return len(m.Files) > 0 }

// DeadKey is a primary-language key no occurrence resolves to.
type DeadKey struct {
	Module string `json:"module"`
	Key    string `json:"key"`
}

// DynamicKey is one distinct interpolated key seen in code.
type DynamicKey struct {
	Module  string   `json:"module"`
	Prefix  string   `json:"prefix"`
	Pattern string   `json:"pattern"`
	Matches int      `json:"matches"`
	Files   []string `json:"files"`
}

// Unmatched reports whether no concrete key matches the pattern, which
// often means a typo in the call.
func (d DynamicKey) Unmatched() bool { return d.Matches == 0 }

// Location is a source position.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Duplicate is hardcoded text that appears at two or more places.
type Duplicate struct {
	Text      string     `json:"text"`
	Locations []Location `json:"locations"`
}

// FileStat tallies one source file.
type FileStat struct {
	File      string `json:"file"`
	Localized int    `json:"localized"`
	Hardcoded int    `json:"hardcoded"`
}

// Counts are the totals the health score is computed from.
type Counts struct {
	// LocalizedCalls counts literal and dynamic localized calls.
	LocalizedCalls int `json:"localized_calls"`
	DynamicCalls   int `json:"dynamic_calls"`
	Hardcoded      int `json:"hardcoded"`
	// Checks is the number of distinct (module, language, key) lookups made
	// for keys used in code; MissingReferenced is how many of them failed.
	Checks            int `json:"checks"`
	MissingReferenced int `json:"missing_referenced"`
	PrimaryKeys       int `json:"primary_keys"`
	// RequiredPairs is primary keys times target languages; PresentPairs is
	// how many of those exist.
	RequiredPairs int `json:"required_pairs"`
	PresentPairs  int `json:"present_pairs"`
	UsedKeys      int `json:"used_keys"`
	Dead          int `json:"dead"`
	Files         int `json:"files"`
}

// Result is the outcome of one reconciliation.
type Result struct {
	Primary    string       `json:"primary"`
	Languages  []string     `json:"languages"`
	Hardcoded  []Hardcoded  `json:"hardcoded"`
	Missing    []MissingKey `json:"missing"`
	Dead       []DeadKey    `json:"dead"`
	Dynamic    []DynamicKey `json:"dynamic"`
	Duplicates []Duplicate  `json:"duplicates"`
	Files      []FileStat   `json:"files"`
	Counts     Counts       `json:"counts"`
}

// MissingReferenced returns the missing entries for keys used in code.
func (r *Result) MissingReferenced() []MissingKey {
	var out []MissingKey
	for _, m := range r.Missing {
		if m.Referenced() {
			out = append(out, m)
		}
	}
	return out
}

// UnmatchedDynamic returns the dynamic keys no concrete key matches.
func (r *Result) UnmatchedDynamic() []DynamicKey {
	var out []DynamicKey
	for _, d := range r.Dynamic {
		if d.Unmatched() {
			out = append(out, d)
		}
	}
	return out
}

type missingID struct{ module, lang, key string }

type dynamicID struct{ module, pattern string }

type dynamicEntry struct {
	DynamicKey
	re    *regexp.Regexp
	files map[string]bool
}

// reconciler carries the state of one Reconcile call.
type reconciler struct {
	idx     *keytable.Index
	opts    Options
	primary string
	langs   []string
	modules map[string]string // lower-case name → module

	dynamics map[dynamicID]*dynamicEntry
	missing  map[missingID]map[string]bool
	checked  map[missingID]bool
	used     map[string]map[string]bool // module → key
	files    map[string]*FileStat
	counts   Counts
}

// Reconcile classifies occurrences against idx.
func Reconcile(idx *keytable.Index, occs []extract.Occurrence, opts Options) *Result {
	r := &reconciler{
		idx:      idx,
		opts:     opts,
		primary:  idx.Primary(),
		modules:  make(map[string]string),
		dynamics: make(map[dynamicID]*dynamicEntry),
		missing:  make(map[missingID]map[string]bool),
		checked:  make(map[missingID]bool),
		used:     make(map[string]map[string]bool),
		files:    make(map[string]*FileStat),
	}
	if r.opts.DefaultModule == "" {
		r.opts.DefaultModule = DefaultModule
	}
	for _, m := range idx.Modules() {
		r.modules[strings.ToLower(m)] = m
	}
	r.langs = r.languages()

	sorted := append([]extract.Occurrence(nil), occs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Offset < sorted[j].Offset
	})

	// Dynamic patterns first: they suppress literal keys in every module.
	for _, o := range sorted {
		if o.Kind == extract.DynamicLocalizedCall {
			r.addDynamic(o)
		}
	}
	for _, o := range sorted {
		if o.Kind == extract.LocalizedCall {
			r.addLiteral(o)
		}
	}

	res := &Result{Primary: r.primary, Languages: r.langs}
	res.Hardcoded, res.Duplicates = r.hardcoded(sorted)
	r.targetGaps()
	res.Missing = r.missingList()
	res.Dead = r.deadKeys()
	res.Dynamic = r.dynamicList()
	res.Files = r.fileStats()

	r.counts.Hardcoded = len(res.Hardcoded)
	r.counts.Dead = len(res.Dead)
	r.counts.Files = len(res.Files)
	for _, keys := range r.used {
		r.counts.UsedKeys += len(keys)
	}
	res.Counts = r.counts
	return res
}

// languages returns the primary language followed by the sorted targets.
func (r *reconciler) languages() []string {
	src := r.opts.Languages
	if len(src) == 0 {
		src = r.idx.Languages()
	}
	seen := map[string]bool{r.primary: true}
	var targets []string
	for _, l := range src {
		if !seen[l] {
			seen[l] = true
			targets = append(targets, l)
		}
	}
	sort.Strings(targets)
	return append([]string{r.primary}, targets...)
}

// explicitModule resolves the table named at a call site or mapped from
// its file. A table name matching no module is kept as written.
func (r *reconciler) explicitModule(o extract.Occurrence) string {
	if o.Table != "" {
		if m, ok := r.modules[strings.ToLower(o.Table)]; ok {
			return m
		}
		return o.Table
	}
	if r.opts.Resolver != nil {
		return r.opts.Resolver.ModuleFor(o.File)
	}
	return ""
}

func (r *reconciler) stat(file string) *FileStat {
	s, ok := r.files[file]
	if !ok {
		s = &FileStat{File: file}
		r.files[file] = s
	}
	return s
}

func (r *reconciler) addDynamic(o extract.Occurrence) {
	r.counts.LocalizedCalls++
	r.counts.DynamicCalls++
	r.stat(o.File).Localized++

	re, err := regexp.Compile(o.Pattern)
	if err != nil {
		return
	}
	module := r.explicitModule(o)
	if module == "" {
		module = r.firstMatchingModule(re)
	}
	if module == "" {
		module = r.opts.DefaultModule
	}

	id := dynamicID{module, o.Pattern}
	d, ok := r.dynamics[id]
	if !ok {
		d = &dynamicEntry{
			DynamicKey: DynamicKey{Module: module, Prefix: o.Prefix, Pattern: o.Pattern},
			re:         re,
			files:      make(map[string]bool),
		}
		r.dynamics[id] = d
	}
	d.files[o.File] = true
}

// firstMatchingModule returns the first module (by name) whose primary
// table has a key matching re.
func (r *reconciler) firstMatchingModule(re *regexp.Regexp) string {
	for _, m := range r.idx.Modules() {
		t, ok := r.idx.Table(m, r.primary)
		if !ok {
			continue
		}
		for _, k := range t.Keys() {
			if re.MatchString(k) {
				return m
			}
		}
	}
	return ""
}

// dynamicMatch reports whether any dynamic pattern matches key.
func (r *reconciler) dynamicMatch(key string) bool {
	for _, d := range r.dynamics {
		if d.re.MatchString(key) {
			return true
		}
	}
	return false
}

func (r *reconciler) addLiteral(o extract.Occurrence) {
	r.counts.LocalizedCalls++
	r.stat(o.File).Localized++

	key := o.Key
	module := r.explicitModule(o)
	if module == "" {
		if owner, ok := r.idx.Owner(key, r.primary); ok {
			module = owner
		} else {
			module = r.opts.DefaultModule
		}
	}
	if r.used[module] == nil {
		r.used[module] = make(map[string]bool)
	}
	r.used[module][key] = true

	if r.dynamicMatch(key) {
		return
	}
	for _, lang := range r.langs {
		id := missingID{module, lang, key}
		if !r.checked[id] {
			r.checked[id] = true
			r.counts.Checks++
		}
		if t, ok := r.idx.Table(module, lang); ok && t.Has(key) {
			continue
		}
		files := r.missing[id]
		if files == nil {
			files = make(map[string]bool)
			r.missing[id] = files
			r.counts.MissingReferenced++
		}
		files[o.File] = true
	}
}

// targetGaps records every primary key a target language lacks.
func (r *reconciler) targetGaps() {
	targets := r.langs[1:]
	for _, m := range r.idx.Modules() {
		primary, ok := r.idx.Table(m, r.primary)
		if !ok {
			continue
		}
		keys := primary.Keys()
		r.counts.PrimaryKeys += len(keys)
		r.counts.RequiredPairs += len(keys) * len(targets)
		for _, lang := range targets {
			t, _ := r.idx.Table(m, lang)
			for _, k := range keys {
				if t != nil && t.Has(k) {
					r.counts.PresentPairs++
					continue
				}
				id := missingID{m, lang, k}
				if _, ok := r.missing[id]; !ok {
					r.missing[id] = nil
				}
			}
		}
	}
}

func (r *reconciler) missingList() []MissingKey {
	out := make([]MissingKey, 0, len(r.missing))
	for id, files := range r.missing {
		out = append(out, MissingKey{Module: id.module, Lang: id.lang, Key: id.key, Files: sortedSet(files)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Lang != b.Lang {
			return a.Lang < b.Lang
		}
		return a.Key < b.Key
	})
	return out
}

func (r *reconciler) deadKeys() []DeadKey {
	var out []DeadKey
	for _, m := range r.idx.Modules() {
		t, ok := r.idx.Table(m, r.primary)
		if !ok {
			continue
		}
		for _, k := range t.Keys() {
			if r.used[m][k] || r.dynamicMatch(k) {
				continue
			}
			out = append(out, DeadKey{Module: m, Key: k})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (r *reconciler) dynamicList() []DynamicKey {
	out := make([]DynamicKey, 0, len(r.dynamics))
	for _, d := range r.dynamics {
		dk := d.DynamicKey
		dk.Files = sortedSet(d.files)
		for _, m := range r.idx.Modules() {
			t, ok := r.idx.Table(m, r.primary)
			if !ok {
				continue
			}
			for _, k := range t.Keys() {
				if d.re.MatchString(k) {
					dk.Matches++
				}
			}
		}
		out = append(out, dk)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Prefix != b.Prefix {
			return a.Prefix < b.Prefix
		}
		return a.Pattern < b.Pattern
	})
	return out
}

// hardcoded deduplicates hardcoded occurrences by file and text, and
// groups every occurrence by text to find duplicates.
func (r *reconciler) hardcoded(sorted []extract.Occurrence) ([]Hardcoded, []Duplicate) {
	type fileText struct{ file, text string }
	seen := make(map[fileText]bool)
	byText := make(map[string][]Location)
	var out []Hardcoded
	for _, o := range sorted {
		if o.Kind != extract.Hardcoded {
			continue
		}
		byText[o.Text] = append(byText[o.Text], Location{File: o.File, Line: o.Line})
		id := fileText{o.File, o.Text}
		if seen[id] {
			continue
		}
		seen[id] = true
		r.stat(o.File).Hardcoded++
		out = append(out, Hardcoded{
			Occurrence:   o,
			SuggestedKey: keygen.SuggestKey(o.Context, o.Text),
			Priority:     keygen.Priority(o.Context, o.Text),
		})
	}

	var dups []Duplicate
	for text, locs := range byText {
		if len(locs) >= 2 {
			dups = append(dups, Duplicate{Text: text, Locations: locs})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Text < dups[j].Text })
	return out, dups
}

func (r *reconciler) fileStats() []FileStat {
	out := make([]FileStat, 0, len(r.files))
	for _, s := range r.files {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
