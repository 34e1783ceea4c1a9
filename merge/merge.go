// Package merge brings target-language tables in line with the primary
// language, the way msgmerge brings a PO file in line with its template:
// keys new in the primary table are added to each target, existing
// translations are kept, and keys only the target has are left alone
// unless pruning is requested.
package merge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/workpool"
)

// Translator translates one text between two languages.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// TableWriter is the table mutation contract Sync writes through.
type TableWriter interface {
	Set(module, lang, key, value string) error
	Remove(module, lang, key string) error
}

// Mode selects what Sync does with a missing key.
type Mode int

const (
	// DryRun only reports what would change.
	DryRun Mode = iota
	// CopySource writes the primary-language text.
	CopySource
	// Translate writes a machine translation of the primary-language text.
	Translate
)

func (m Mode) String() string {
	switch m {
	case DryRun:
		return "dry-run"
	case CopySource:
		return "copy"
	case Translate:
		return "translate"
	}
	return "unknown"
}

// Status of one language after Sync.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

// SyncOptions configures Sync.
type SyncOptions struct {
	// Targets are the languages to sync; empty means every language with a
	// table except the primary.
	Targets []string
	// Modules limits the sync; empty means all modules.
	Modules []string
	// Keys are glob filters on keys ('.' separated); empty means all keys.
	Keys []string
	Mode Mode
	// Prune removes keys that exist only in the target.
	Prune bool
	// Workers bounds concurrent translation requests per language.
	Workers int
	// Delay is the pause between launching translation requests.
	Delay time.Duration
}

// Change is one key added to or removed from a target table.
type Change struct {
	Module string `json:"module"`
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
}

// LangResult is the outcome of syncing one language.
type LangResult struct {
	Lang       string   `json:"lang"`
	Status     Status   `json:"status"`
	Added      []Change `json:"added"`
	Pruned     []Change `json:"pruned,omitempty"`
	Translated int      `json:"translated"`
	Copied     int      `json:"copied"`
	Failed     []string `json:"failed,omitempty"`
	// Errors holds translation and write errors, one per key.
	Errors []error `json:"-"`
}

// SyncSummary is the outcome of Sync.
type SyncSummary struct {
	Source    string       `json:"source"`
	Mode      string       `json:"mode"`
	Languages []LangResult `json:"languages"`
}

// Completed returns the languages that finished.
func (s *SyncSummary) Completed() []string { return s.withStatus(StatusCompleted) }

// Interrupted returns the languages cancellation stopped.
func (s *SyncSummary) Interrupted() []string { return s.withStatus(StatusInterrupted) }

func (s *SyncSummary) withStatus(st Status) []string {
	var out []string
	for _, l := range s.Languages {
		if l.Status == st {
			out = append(out, l.Lang)
		}
	}
	return out
}

// Totals sums added, translated and failed keys over all languages.
func (s *SyncSummary) Totals() (added, translated, failed int) {
	for _, l := range s.Languages {
		added += len(l.Added)
		translated += l.Translated
		failed += len(l.Failed)
	}
	return added, translated, failed
}

// Err aggregates every per-key error, or nil.
func (s *SyncSummary) Err() error {
	var c diag.Collector
	for _, l := range s.Languages {
		for _, err := range l.Errors {
			c.Add(err)
		}
	}
	return c.Err()
}

// gap is a primary key missing from a target table.
type gap struct {
	module, key, source string
	value               string
	err                 error
}

// plan compares a primary table with a target table (nil when the target
// has none) and returns the keys to add and the keys only the target has.
func plan(primary, target *keytable.Table, filter *keyFilter) (add []gap, extra []Change) {
	matched := make(map[string]bool)
	for _, k := range primary.Keys() {
		if !filter.Match(k) {
			continue
		}
		if target != nil && target.Has(k) {
			matched[k] = true
			continue
		}
		text, _ := primary.Get(k)
		add = append(add, gap{module: primary.Module, key: k, source: text})
	}
	if target == nil {
		return add, nil
	}
	for _, k := range target.Keys() {
		if !filter.Match(k) || matched[k] || primary.Has(k) {
			continue
		}
		extra = append(extra, Change{Module: target.Module, Key: k})
	}
	return add, extra
}

// Sync adds every primary key a target lacks. Translations of one language
// run concurrently and are joined before that language is written back one
// key at a time through w. Cancellation is checked between languages; a
// language whose translations were cut short is not written. The summary
// is returned even when ctx was cancelled, together with ctx's error.
func Sync(ctx context.Context, idx *keytable.Index, w TableWriter, tr Translator, opts SyncOptions, log *zap.Logger) (*SyncSummary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Mode == Translate && tr == nil {
		return nil, diag.Configf("translation", "sync with translation needs a translation provider")
	}
	filter, err := compileKeyFilter(opts.Keys)
	if err != nil {
		return nil, err
	}
	primary := idx.Primary()
	targets := opts.Targets
	if len(targets) == 0 {
		for _, l := range idx.Languages() {
			if l != primary {
				targets = append(targets, l)
			}
		}
	}
	modules := opts.Modules
	if len(modules) == 0 {
		modules = idx.Modules()
	}

	summary := &SyncSummary{Source: primary, Mode: opts.Mode.String()}
	for _, lang := range targets {
		if ctx.Err() != nil {
			summary.Languages = append(summary.Languages, LangResult{Lang: lang, Status: StatusInterrupted})
			continue
		}
		res := syncLanguage(ctx, idx, w, tr, lang, modules, filter, opts, log)
		summary.Languages = append(summary.Languages, res)
		log.Debug("synced language",
			zap.String("lang", lang),
			zap.String("status", string(res.Status)),
			zap.Int("added", len(res.Added)),
			zap.Int("failed", len(res.Failed)))
	}
	return summary, ctx.Err()
}

func syncLanguage(ctx context.Context, idx *keytable.Index, w TableWriter, tr Translator, lang string, modules []string, filter *keyFilter, opts SyncOptions, log *zap.Logger) LangResult {
	res := LangResult{Lang: lang, Status: StatusCompleted}
	primary := idx.Primary()

	var gaps []gap
	var extra []Change
	for _, m := range modules {
		src, ok := idx.Table(m, primary)
		if !ok {
			continue
		}
		target, _ := idx.Table(m, lang)
		add, ex := plan(src, target, filter)
		gaps = append(gaps, add...)
		extra = append(extra, ex...)
	}

	if opts.Mode == DryRun {
		for _, g := range gaps {
			res.Added = append(res.Added, Change{Module: g.module, Key: g.key, Value: g.source})
		}
		if opts.Prune {
			res.Pruned = extra
		}
		return res
	}

	if opts.Mode == Translate {
		_ = workpool.Run(ctx, indexes(len(gaps)), opts.Workers, opts.Delay, func(ctx context.Context, i int) error {
			g := &gaps[i]
			if g.source == "" {
				return nil
			}
			out, err := tr.Translate(ctx, g.source, primary, lang)
			if err != nil {
				g.err = err
				return nil
			}
			g.value = out
			return nil
		})
		if ctx.Err() != nil {
			res.Status = StatusInterrupted
			return res
		}
	}

	for _, g := range gaps {
		value := g.source
		if opts.Mode == Translate {
			if g.err != nil {
				var te *diag.TranslationError
				switch {
				case !errors.As(g.err, &te):
					g.err = &diag.TranslationError{Key: g.key, Lang: lang, Err: g.err}
				case te.Key == "":
					g.err = &diag.TranslationError{Key: g.key, Lang: te.Lang, Err: te.Err}
				}
				res.Failed = append(res.Failed, g.key)
				res.Errors = append(res.Errors, g.err)
				log.Debug("translation failed", zap.String("lang", lang), zap.String("key", g.key), zap.Error(g.err))
				continue
			}
			if g.source != "" {
				value = g.value
			}
		}
		if err := w.Set(g.module, lang, g.key, value); err != nil {
			res.Failed = append(res.Failed, g.key)
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Added = append(res.Added, Change{Module: g.module, Key: g.key, Value: value})
		if opts.Mode == Translate && g.source != "" {
			res.Translated++
		} else {
			res.Copied++
		}
	}

	if opts.Prune {
		for _, c := range extra {
			if err := w.Remove(c.Module, lang, c.Key); err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}
			res.Pruned = append(res.Pruned, c)
		}
	}
	return res
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
