package merge

import (
	"fmt"
	"sort"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/keytable"
)

// keyFilter matches keys against '.'-separated globs, so "settings.*"
// matches "settings.title" but not "settings.privacy.title".
type keyFilter struct {
	globs []glob.Glob
}

func compileKeyFilter(patterns []string) (*keyFilter, error) {
	f := &keyFilter{}
	var errs *multierror.Error
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%q: %w", p, err))
			continue
		}
		f.globs = append(f.globs, g)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, &diag.ConfigError{Source: "keys", Reason: "invalid key filter", Err: err}
	}
	return f, nil
}

// Match reports whether key passes the filter. An empty filter passes
// everything.
func (f *keyFilter) Match(key string) bool {
	if f == nil || len(f.globs) == 0 {
		return true
	}
	for _, g := range f.globs {
		if g.Match(key) {
			return true
		}
	}
	return false
}

// DiffOptions configures Diff.
type DiffOptions struct {
	Source string
	Target string
	// Module limits the comparison; empty compares every module that has
	// a table in either language.
	Module string
	// Values reports keys whose texts differ.
	Values bool
	// Keys are glob filters on keys; empty means all keys.
	Keys []string
}

// DiffEntry is one key in a diff.
type DiffEntry struct {
	Module string `json:"module"`
	Key    string `json:"key"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// DiffResult compares two languages.
type DiffResult struct {
	Source string `json:"source"`
	Target string `json:"target"`
	// OnlyInSource are keys the target lacks.
	OnlyInSource []DiffEntry `json:"only_in_source"`
	// OnlyInTarget are keys the source lacks.
	OnlyInTarget []DiffEntry `json:"only_in_target"`
	// ValueDifferences are keys with different text; set only when
	// requested.
	ValueDifferences []DiffEntry `json:"value_differences,omitempty"`
	// Untranslated are keys whose non-empty text is the same in both.
	Untranslated []DiffEntry `json:"untranslated"`
}

// Total returns the number of keys present in only one language.
func (d *DiffResult) Total() int { return len(d.OnlyInSource) + len(d.OnlyInTarget) }

// Diff compares the tables of two languages. Every module in scope must
// have a table in both languages, otherwise the result is a
// *diag.LanguageNotFoundError.
func Diff(idx *keytable.Index, opts DiffOptions) (*DiffResult, error) {
	filter, err := compileKeyFilter(opts.Keys)
	if err != nil {
		return nil, err
	}
	for _, l := range []string{opts.Source, opts.Target} {
		if !idx.HasLanguage(l) {
			return nil, &diag.LanguageNotFoundError{Lang: l}
		}
	}

	modules := []string{opts.Module}
	if opts.Module == "" {
		modules = nil
		for _, m := range idx.Modules() {
			_, okS := idx.Table(m, opts.Source)
			_, okT := idx.Table(m, opts.Target)
			if okS || okT {
				modules = append(modules, m)
			}
		}
	}

	res := &DiffResult{Source: opts.Source, Target: opts.Target}
	for _, m := range modules {
		src, ok := idx.Table(m, opts.Source)
		if !ok {
			return nil, &diag.LanguageNotFoundError{Lang: opts.Source, Module: m}
		}
		tgt, ok := idx.Table(m, opts.Target)
		if !ok {
			return nil, &diag.LanguageNotFoundError{Lang: opts.Target, Module: m}
		}
		for _, k := range src.Keys() {
			if !filter.Match(k) {
				continue
			}
			sv, _ := src.Get(k)
			tv, ok := tgt.Get(k)
			switch {
			case !ok:
				res.OnlyInSource = append(res.OnlyInSource, DiffEntry{Module: m, Key: k, Source: sv})
			case sv == tv && sv != "":
				res.Untranslated = append(res.Untranslated, DiffEntry{Module: m, Key: k, Source: sv, Target: tv})
			case sv != tv && opts.Values:
				res.ValueDifferences = append(res.ValueDifferences, DiffEntry{Module: m, Key: k, Source: sv, Target: tv})
			}
		}
		for _, k := range tgt.Keys() {
			if !filter.Match(k) || src.Has(k) {
				continue
			}
			tv, _ := tgt.Get(k)
			res.OnlyInTarget = append(res.OnlyInTarget, DiffEntry{Module: m, Key: k, Target: tv})
		}
	}
	for _, list := range [][]DiffEntry{res.OnlyInSource, res.OnlyInTarget, res.ValueDifferences, res.Untranslated} {
		sortEntries(list)
	}
	return res, nil
}

func sortEntries(list []DiffEntry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Module != list[j].Module {
			return list[i].Module < list[j].Module
		}
		return list[i].Key < list[j].Key
	})
}
