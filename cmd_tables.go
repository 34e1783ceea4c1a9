package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/i18n"
	"github.com/minios-linux/lokscan/keygen"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/langmeta"
	"github.com/minios-linux/lokscan/lockfile"
	"github.com/minios-linux/lokscan/merge"
	"github.com/minios-linux/lokscan/reconcile"
	"github.com/minios-linux/lokscan/stringsfile"
	"github.com/minios-linux/lokscan/translate"
	"github.com/minios-linux/lokscan/workpool"
)

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

// translateJob is one module table of one language to fill in.
type translateJob struct {
	lang, module string
	target       string // lock file key of the target table
	keys         []string
	texts        []string
	out          []string
	err          error
}

func newTranslateCmd() *cobra.Command {
	var (
		pf      providerFlags
		langs   []string
		modules []string
		keys    []string
		force   bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate empty or stale entries",
		Long: `Translate target-language entries from the primary language.

An entry is translated when it is missing or empty, when it still holds the
primary text unchanged, or when the primary text changed since it was last
translated (tracked in lokscan.lock). --force translates every entry.

Translations are remembered in lokscan.lock, so the same text is never sent
to the provider twice.

Providers:
  google-translate  Google Translate (free, no API key, default)
  google            Google AI (Gemini), API key
  groq              Groq, API key
  opencode          OpenCode Zen, API key
  custom-openai     Any OpenAI-compatible endpoint (--base-url)
  ollama            Local Ollama server

Examples:
  lokscan translate --lang de,fr
  lokscan translate --provider groq --model llama-3.3-70b-versatile
  lokscan translate --key 'settings.*' --force
  lokscan translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()
			ctx := cmd.Context()

			idx, err := p.loadIndex(ctx)
			if err != nil {
				return err
			}
			targets, err := p.targetLanguages(idx, splitList(langs))
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return diag.Configf("--lang", "no target languages (configure supported_languages or pass --lang)")
			}
			filter, err := compileKeyGlobs(splitList(keys))
			if err != nil {
				return err
			}
			lf, err := p.lock()
			if err != nil {
				return err
			}

			w := p.writer(idx, nil)
			jobs := planTranslation(p, idx, w, lf, targets, splitList(modules), filter, force)
			total := 0
			for _, j := range jobs {
				total += len(j.keys)
			}
			if total == 0 {
				logSuccess("Nothing to translate")
				return nil
			}

			if dryRun {
				fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Would translate"), colorReset)
				fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
				for _, j := range jobs {
					fmt.Fprintf(os.Stderr, "  %-10s %-20s %d\n", j.lang, j.module, len(j.keys))
					if verbose {
						for _, k := range j.keys {
							fmt.Fprintf(os.Stderr, "      %s\n", k)
						}
					}
				}
				logInfo("%d entries in %d table(s)", total, len(jobs))
				return nil
			}

			client, err := p.translator(pf, lf)
			if err != nil {
				return err
			}
			guard := p.backups("translate")
			w = p.writer(idx, guard)

			logInfo("Translating %d entries into %s...", total, strings.Join(targets, ", "))
			_ = workpool.Run(ctx, jobs, p.cfg.Translation.MaxConcurrent, p.cfg.Translation.RequestDelay, func(ctx context.Context, j *translateJob) error {
				j.out, j.err = client.TranslateBatch(ctx, j.texts, idx.Primary(), j.lang)
				p.log.Debug("translated table",
					zap.String("lang", j.lang),
					zap.String("module", j.module),
					zap.Int("keys", len(j.keys)),
					zap.Error(j.err))
				return nil
			})

			var c diag.Collector
			translated := map[string]int{}
			for _, j := range jobs {
				if j.err != nil {
					c.Add(j.err)
					continue
				}
				if j.out == nil {
					continue
				}
				for i, k := range j.keys {
					if err := w.Set(j.module, j.lang, k, j.out[i]); err != nil {
						c.Add(err)
						continue
					}
					lf.Update(j.target, k, j.texts[i])
					translated[j.lang]++
				}
			}
			if err := lf.Save(); err != nil {
				c.Add(err)
			}
			p.finishBackups(guard)

			done := 0
			for _, lang := range targets {
				if n := translated[lang]; n > 0 {
					logSuccess("%s: %d translated", langmeta.Label(lang), n)
					done += n
				}
			}
			if ctx.Err() != nil {
				c.Add(ctx.Err())
			}
			if err := c.Err(); err != nil {
				if done == 0 {
					return fmt.Errorf("all translations failed: %w", err)
				}
				logWarning("%d of %d entries translated", done, total)
				return err
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Target languages (comma-separated)")
	cmd.Flags().StringSliceVarP(&modules, "module", "m", nil, "Only these modules (tables)")
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "Only keys matching these globs ('.' separated, e.g. settings.*)")
	cmd.Flags().BoolVar(&force, "force", false, "Translate every entry, even finished ones")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated")

	return cmd
}

// compileKeyGlobs compiles key filters with '.' as the separator.
func compileKeyGlobs(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, diag.Configf("--key", "%q: %v", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, key string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g.Match(key) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// planTranslation collects the entries to translate per table.
func planTranslation(p *project, idx *keytable.Index, w *keytable.Writer, lf *lockfile.LockFile, targets, modules []string, filter []glob.Glob, force bool) []*translateJob {
	var jobs []*translateJob
	for _, lang := range targets {
		for _, module := range idx.Modules() {
			if len(modules) > 0 && !contains(modules, module) {
				continue
			}
			src, ok := idx.Table(module, idx.Primary())
			if !ok {
				continue
			}
			tgt, _ := idx.Table(module, lang)
			j := &translateJob{lang: lang, module: module, target: lockfile.TargetKey(p.root, w.PathFor(module, lang))}

			current := map[string]string{}
			for _, k := range src.Keys() {
				if v, _ := src.Get(k); v != "" {
					current[k] = v
				}
			}
			stale := map[string]bool{}
			for _, k := range lf.Stale(j.target, current) {
				stale[k] = true
			}

			for _, k := range src.Keys() {
				text := current[k]
				if text == "" || !matchAny(filter, k) {
					continue
				}
				var value string
				var have bool
				if tgt != nil {
					value, have = tgt.Get(k)
				}
				needs := force || !have || strings.TrimSpace(value) == "" || stale[k] ||
					(value == text && lf.IsChanged(j.target, k, text))
				if needs {
					j.keys = append(j.keys, k)
					j.texts = append(j.texts, text)
				}
			}
			if len(j.keys) > 0 {
				jobs = append(jobs, j)
			}
		}
	}
	return jobs
}

// ---------------------------------------------------------------------------
// lang (list / add / remove)
// ---------------------------------------------------------------------------

func newLangCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "List, add or remove languages",
	}
	cmd.AddCommand(newLangListCmd(), newLangAddCmd(), newLangRemoveCmd())
	return cmd
}

func newLangListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List languages with tables and configured languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()
			idx, err := p.loadIndex(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			langs := mergeLanguages(append([]string{idx.Primary()}, idx.Languages()...), p.cfg.SupportedLanguages, "")
			for _, lang := range langs {
				n := 0
				for _, m := range idx.Modules() {
					if _, ok := idx.Table(m, lang); ok {
						n++
					}
				}
				var notes []string
				if lang == idx.Primary() {
					notes = append(notes, i18n.T("primary"))
				}
				if n == 0 {
					notes = append(notes, i18n.T("no tables"))
				} else {
					notes = append(notes, i18n.F("%d table(s)", n))
				}
				if len(p.cfg.SupportedLanguages) > 0 && !contains(p.cfg.SupportedLanguages, lang) {
					notes = append(notes, i18n.T("not configured"))
				}
				fmt.Fprintf(out, "  %-10s %-30s %s\n", lang, langmeta.Label(lang), strings.Join(notes, ", "))
			}
			return nil
		},
	}
}

func newLangAddCmd() *cobra.Command {
	var (
		pf          providerFlags
		doTranslate bool
	)

	cmd := &cobra.Command{
		Use:   "add <lang>...",
		Short: "Add languages by creating their tables",
		Long: `Create tables for new languages with every primary key.

Entries are copied from the primary language, or machine translated with
--translate. The languages are added to supported_languages when the
project has a config file.

Examples:
  lokscan lang add de fr
  lokscan lang add ja --translate --provider google --model gemini-2.5-flash`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()
			ctx := cmd.Context()

			idx, err := p.loadIndex(ctx)
			if err != nil {
				return err
			}
			var langs []string
			for _, lang := range splitList(args) {
				if err := langmeta.Validate(lang); err != nil {
					return diag.Configf("lang", "%v", err)
				}
				if idx.HasLanguage(lang) {
					logWarning("%s already has tables, skipping (use 'lokscan sync' to fill gaps)", lang)
					continue
				}
				langs = append(langs, lang)
			}
			if len(langs) == 0 {
				return nil
			}
			if len(idx.Modules()) == 0 {
				return fmt.Errorf("no %s tables found under %s", idx.Primary(), p.rel(p.tablesDir()))
			}

			lf, err := p.lock()
			if err != nil {
				return err
			}
			opts := merge.SyncOptions{
				Targets: langs,
				Mode:    merge.CopySource,
				Workers: p.cfg.Translation.MaxConcurrent,
				Delay:   p.cfg.Translation.RequestDelay,
			}
			var tr merge.Translator
			if doTranslate {
				client, err := p.translator(pf, lf)
				if err != nil {
					return err
				}
				tr = client
				opts.Mode = merge.Translate
			}

			guard := p.backups("lang add")
			w := p.writer(idx, guard)
			summary, err := merge.Sync(ctx, idx, w, tr, opts, p.log)
			if summary == nil {
				return err
			}

			var c diag.Collector
			c.Add(err)
			c.Add(summary.Err())
			for _, l := range summary.Languages {
				if l.Status != merge.StatusCompleted {
					logWarning("%s: interrupted", l.Lang)
					continue
				}
				if opts.Mode == merge.Translate {
					recordChanges(p, lf, w, l.Lang, l.Added)
				}
				logSuccess("%s: %d keys added (%d translated)", langmeta.Label(l.Lang), len(l.Added), l.Translated)
			}
			if err := lf.Save(); err != nil {
				c.Add(err)
			}
			if err := addSupportedLanguages(p, summary.Completed()); err != nil {
				c.Add(err)
			}
			p.finishBackups(guard)
			return c.Err()
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&doTranslate, "translate", false, "Machine translate the new entries")

	return cmd
}

// recordChanges records the primary text of added entries, grouped by
// module.
func recordChanges(p *project, lf *lockfile.LockFile, w *keytable.Writer, lang string, added []merge.Change) {
	byModule := map[string][]string{}
	for _, ch := range added {
		byModule[ch.Module] = append(byModule[ch.Module], ch.Key)
	}
	for module, keys := range byModule {
		p.recordSources(lf, w, lang, module, keys)
	}
}

// addSupportedLanguages appends langs to the config file, if there is one.
func addSupportedLanguages(p *project, langs []string) error {
	if _, err := os.Stat(p.cfg.Path()); err != nil || len(langs) == 0 {
		return nil
	}
	changed := false
	for _, l := range langs {
		if !contains(p.cfg.SupportedLanguages, l) {
			p.cfg.SupportedLanguages = append(p.cfg.SupportedLanguages, l)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return p.cfg.Save()
}

func newLangRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <lang>",
		Short: "Delete every table of a language",
		Long: `Delete the tables of a language and forget its lock file state.

The tables are saved to the backup directory first, so 'lokscan backup
restore' brings them back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang := args[0]
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			idx, err := p.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			if lang == idx.Primary() {
				return diag.Configf("lang", "cannot remove the primary language %s", lang)
			}
			var modules []string
			for _, m := range idx.Modules() {
				if _, ok := idx.Table(m, lang); ok {
					modules = append(modules, m)
				}
			}
			if len(modules) == 0 {
				return &diag.LanguageNotFoundError{Lang: lang}
			}

			if !confirm(cmd, i18n.F("Delete %d table(s) of %s?", len(modules), langmeta.Label(lang)), yes) {
				logInfo("Cancelled")
				return nil
			}

			guard := p.backups("lang remove " + lang)
			if _, err := guard.Snapshot([]string{"**/" + lang + ".lproj/*" + stringsfile.Ext}); err != nil {
				return err
			}
			lf, err := p.lock()
			if err != nil {
				return err
			}
			w := p.writer(idx, guard)

			var c diag.Collector
			dirs := map[string]bool{}
			for _, m := range modules {
				path := w.PathFor(m, lang)
				if err := w.DeleteTable(m, lang); err != nil {
					c.Add(err)
					continue
				}
				lf.RemoveTarget(lockfile.TargetKey(p.root, path))
				dirs[filepath.Dir(path)] = true
				logSuccess("Removed %s", p.rel(path))
			}
			// Leave non-empty .lproj directories alone; they may hold other resources.
			for dir := range dirs {
				_ = os.Remove(dir)
			}
			lf.Forget(lang)
			if err := lf.Save(); err != nil {
				c.Add(err)
			}
			if i := indexOf(p.cfg.SupportedLanguages, lang); i >= 0 {
				if _, err := os.Stat(p.cfg.Path()); err == nil {
					p.cfg.SupportedLanguages = append(p.cfg.SupportedLanguages[:i], p.cfg.SupportedLanguages[i+1:]...)
					c.Add(p.cfg.Save())
				}
			}
			p.finishBackups(guard)
			return c.Err()
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		pf          providerFlags
		langs       []string
		modules     []string
		keys        []string
		dryRun      bool
		doTranslate bool
		prune       bool
		ci          bool
		format      string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Add missing keys to every language",
		Long: `Bring every target language in line with the primary language.

Keys present in the primary table but missing from a target are added with
the primary text, or machine translated with --translate. Existing entries
are never changed. --prune removes keys only the target has.

Languages are processed one at a time; on interrupt (Ctrl+C) the language
in progress is not written and the summary lists it as interrupted.

Examples:
  lokscan sync
  lokscan sync --translate --lang de,fr
  lokscan sync --dry-run --format md --output sync.md
  lokscan sync --ci     # fail when any language lacks keys`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()
			ctx := cmd.Context()

			idx, err := p.loadIndex(ctx)
			if err != nil {
				return err
			}
			opts := merge.SyncOptions{
				Modules: splitList(modules),
				Keys:    splitList(keys),
				Mode:    merge.CopySource,
				Prune:   prune,
				Workers: p.cfg.Translation.MaxConcurrent,
				Delay:   p.cfg.Translation.RequestDelay,
			}
			if l := splitList(langs); len(l) > 0 || len(p.cfg.SupportedLanguages) > 0 {
				if opts.Targets, err = p.targetLanguages(idx, l); err != nil {
					return err
				}
			}

			lf, err := p.lock()
			if err != nil {
				return err
			}
			var tr merge.Translator
			switch {
			case dryRun || ci:
				opts.Mode = merge.DryRun
			case doTranslate:
				client, err := p.translator(pf, lf)
				if err != nil {
					return err
				}
				tr = client
				opts.Mode = merge.Translate
			}

			guard := p.backups("sync")
			w := p.writer(idx, guard)
			summary, syncErr := merge.Sync(ctx, idx, w, tr, opts, p.log)
			if summary == nil {
				return syncErr
			}

			var c diag.Collector
			c.Add(syncErr)
			c.Add(summary.Err())

			out := cmd.OutOrStdout()
			closeOut := func() error { return nil }
			if output != "" {
				f, closeFile, err := outputWriter(output)
				if err != nil {
					return err
				}
				out, closeOut = f, closeFile
			}
			if err := merge.ExportSync(out, summary, format); err != nil {
				return err
			}
			c.Add(closeOut())

			if opts.Mode != merge.DryRun {
				for _, l := range summary.Languages {
					if l.Status == merge.StatusCompleted && opts.Mode == merge.Translate {
						recordChanges(p, lf, w, l.Lang, l.Added)
					}
				}
				c.Add(lf.Save())
				p.finishBackups(guard)
			}

			if done := summary.Completed(); len(done) > 0 {
				logInfo("Completed: %s", strings.Join(done, ", "))
			}
			if stopped := summary.Interrupted(); len(stopped) > 0 {
				logWarning("Interrupted: %s", strings.Join(stopped, ", "))
			}
			if ci {
				added, _, _ := summary.Totals()
				if added > 0 {
					c.Add(thresholdError("%d key(s) missing from target languages", added))
				}
			}
			return c.Err()
		},
	}

	pf.register(cmd)
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Target languages (comma-separated)")
	cmd.Flags().StringSliceVarP(&modules, "module", "m", nil, "Only these modules (tables)")
	cmd.Flags().StringSliceVarP(&keys, "keys", "k", nil, "Only keys matching these globs ('.' separated)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without writing")
	cmd.Flags().BoolVar(&doTranslate, "translate", false, "Machine translate added entries")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove keys that only exist in the target")
	cmd.Flags().BoolVar(&ci, "ci", false, "Dry run that fails when keys are missing")
	cmd.Flags().StringVarP(&format, "format", "f", merge.FormatText, "Summary format: "+strings.Join(merge.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the summary to a file")

	return cmd
}

// ---------------------------------------------------------------------------
// diff
// ---------------------------------------------------------------------------

func newDiffCmd() *cobra.Command {
	var (
		module      string
		values      bool
		keys        []string
		format      string
		output      string
		failOnDiffs bool
	)

	cmd := &cobra.Command{
		Use:   "diff [source] <target>",
		Short: "Compare two languages",
		Long: `Compare the tables of two languages: keys only one side has, entries
still holding the source text, and with --values every key whose text
differs. With one argument the source is the primary language.

Examples:
  lokscan diff de
  lokscan diff en fr --module Settings --format md`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			idx, err := p.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			source, target := idx.Primary(), args[0]
			if len(args) == 2 {
				source, target = args[0], args[1]
			}
			d, err := merge.Diff(idx, merge.DiffOptions{
				Source: source,
				Target: target,
				Module: module,
				Values: values,
				Keys:   splitList(keys),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			closeOut := func() error { return nil }
			if output != "" {
				f, closeFile, err := outputWriter(output)
				if err != nil {
					return err
				}
				out, closeOut = f, closeFile
			}
			if err := merge.ExportDiff(out, d, format); err != nil {
				return err
			}
			if err := closeOut(); err != nil {
				return err
			}
			if n := len(d.OnlyInSource) + len(d.OnlyInTarget); failOnDiffs && n > 0 {
				return thresholdError("%d key(s) exist in only one of %s and %s", n, source, target)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&module, "module", "m", "", "Only this module (table)")
	cmd.Flags().BoolVar(&values, "values", false, "Also list keys whose text differs")
	cmd.Flags().StringSliceVarP(&keys, "keys", "k", nil, "Only keys matching these globs")
	cmd.Flags().StringVarP(&format, "format", "f", merge.FormatText, "Output format: "+strings.Join(merge.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the diff to a file")
	cmd.Flags().BoolVar(&failOnDiffs, "fail-on-missing", false, "Fail when a key exists in only one language")

	return cmd
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func newValidateCmd() *cobra.Command {
	var (
		asJSON     bool
		strict     bool
		errorsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check table syntax and consistency between languages",
		Long: `Check every .strings table for syntax errors and every target language
against the primary language.

Codes:
  E001-E005  syntax errors, unterminated strings, missing semicolons,
             invalid escapes, duplicate keys
  W001       key missing from a target language
  W002       format placeholders differ from the primary text
  W003       empty value
  W004       entry still holds the primary text
  W005       primary text changed since the entry was translated
  I001       key only the target language has
  I002       TODO comment

Errors exit with status 2; --strict also fails on warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			issues, err := p.validate(cmd.Context())
			if err != nil {
				return err
			}
			if errorsOnly {
				kept := issues[:0]
				for _, is := range issues {
					if is.Severity == diag.SeverityError {
						kept = append(kept, is)
					}
				}
				issues = kept
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if issues == nil {
					issues = []diag.Issue{}
				}
				if err := enc.Encode(issues); err != nil {
					return err
				}
			} else {
				writeIssues(out, issues)
			}

			errs, warns, infos := diag.CountIssues(issues)
			if !asJSON {
				if errs+warns+infos == 0 {
					logSuccess("All tables are valid")
				} else {
					logInfo("%d error(s), %d warning(s), %d info", errs, warns, infos)
				}
			}
			if errs > 0 {
				first := firstError(issues)
				return &diag.ParseError{File: first.File, Line: first.Line, Reason: i18n.F("%d error(s) in string tables", errs)}
			}
			if strict && warns > 0 {
				return thresholdError("%d warning(s) in string tables", warns)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print issues as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on warnings too")
	cmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only report errors")

	return cmd
}

func firstError(issues []diag.Issue) diag.Issue {
	for _, is := range issues {
		if is.Severity == diag.SeverityError {
			return is
		}
	}
	return diag.Issue{}
}

func writeIssues(w io.Writer, issues []diag.Issue) {
	for _, is := range issues {
		color := colorBlue
		switch is.Severity {
		case diag.SeverityError:
			color = colorRed
		case diag.SeverityWarning:
			color = colorYellow
		}
		fmt.Fprintf(w, "%s%s%s\n", color, is.String(), colorReset)
	}
}

// validate lints every table file and checks target languages against the
// primary language.
func (p *project) validate(ctx context.Context) ([]diag.Issue, error) {
	files, err := p.adapter.ListKeyFiles(p.tablesDir())
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	var issues []diag.Issue
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, &diag.IOError{Op: "reading", Path: f.Path, Err: err}
		}
		issues = append(issues, stringsfile.Lint(p.rel(f.Path), data)...)
	}

	idx, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	lf, err := p.lock()
	if err != nil {
		return nil, err
	}
	issues = append(issues, p.consistencyIssues(idx, lf)...)
	diag.SortIssues(issues)
	return issues, nil
}

func (p *project) consistencyIssues(idx *keytable.Index, lf *lockfile.LockFile) []diag.Issue {
	var issues []diag.Issue
	primary := idx.Primary()
	for _, module := range idx.Modules() {
		src, ok := idx.Table(module, primary)
		if !ok {
			continue
		}
		for _, lang := range idx.LanguagesOf(module) {
			if lang == primary {
				continue
			}
			tgt, _ := idx.Table(module, lang)
			file := p.rel(tgt.Path)
			current := map[string]string{}
			for _, k := range src.Keys() {
				sv, _ := src.Get(k)
				tv, ok := tgt.Get(k)
				if !ok {
					issues = append(issues, diag.Issue{
						Severity: diag.SeverityWarning, Code: diag.CodeMissingKey, File: file, Key: k,
						Message: fmt.Sprintf("key %q is missing (defined in %s)", k, primary),
					})
					continue
				}
				current[k] = sv
				if tv == "" {
					continue
				}
				if !translate.SamePlaceholders(sv, tv) {
					issues = append(issues, diag.Issue{
						Severity: diag.SeverityWarning, Code: diag.CodePlaceholders, File: file, Line: tgt.Line(k), Key: k,
						Message: fmt.Sprintf("placeholders %v differ from %s %v", translate.Placeholders(tv), primary, translate.Placeholders(sv)),
					})
				}
				if tv == sv && strings.TrimSpace(sv) != "" && langmeta.Canonical(lang) != langmeta.Canonical(primary) {
					issues = append(issues, diag.Issue{
						Severity: diag.SeverityWarning, Code: diag.CodeUntranslated, File: file, Line: tgt.Line(k), Key: k,
						Message: fmt.Sprintf("value is the untranslated %s text", primary),
					})
				}
			}
			for _, k := range tgt.Keys() {
				if !src.Has(k) {
					issues = append(issues, diag.Issue{
						Severity: diag.SeverityInfo, Code: diag.CodeExtraKey, File: file, Line: tgt.Line(k), Key: k,
						Message: fmt.Sprintf("key %q is not in %s", k, primary),
					})
				}
			}
			for _, k := range lf.Stale(lockfile.TargetKey(p.root, tgt.Path), current) {
				issues = append(issues, diag.Issue{
					Severity: diag.SeverityWarning, Code: diag.CodeStale, File: file, Line: tgt.Line(k), Key: k,
					Message: fmt.Sprintf("%s text changed since this entry was translated", primary),
				})
			}
		}
	}
	return issues
}

// ---------------------------------------------------------------------------
// missing
// ---------------------------------------------------------------------------

// missingEntry is one key code uses that some tables lack.
type missingEntry struct {
	Module string   `json:"module"`
	Key    string   `json:"key"`
	Langs  []string `json:"langs"`
	Files  []string `json:"files"`
}

func newMissingCmd() *cobra.Command {
	var (
		pf          providerFlags
		asJSON      bool
		fix         bool
		doTranslate bool
		failOnAny   bool
	)

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List (and add) keys the code uses but tables lack",
		Long: `List localization keys referenced in Swift sources that are missing from
one or more tables.

With --fix the keys are added: the primary language gets a readable text
derived from the key (settings.push_notifications → "Push Notifications"),
the other languages get a copy, or a machine translation with --translate.

Examples:
  lokscan missing
  lokscan missing --fix --translate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()
			ctx := cmd.Context()

			a, err := p.analyze(ctx)
			if err != nil {
				return err
			}
			entries := groupMissingKeys(a.result.MissingReferenced())

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if entries == nil {
					entries = []missingEntry{}
				}
				if err := enc.Encode(entries); err != nil {
					return err
				}
			} else if len(entries) == 0 {
				logSuccess("No missing keys")
			} else {
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "  %s%s%s  [%s]  %s: %s\n", colorRed, e.Key, colorReset, e.Module, strings.Join(e.Langs, ","), strings.Join(e.Files, ", "))
				}
				logInfo("%d missing key(s)", len(entries))
			}

			if fix && len(entries) > 0 {
				if err := p.addMissing(ctx, a.idx, entries, pf, doTranslate); err != nil {
					return err
				}
			}
			if failOnAny && len(entries) > 0 && !fix {
				return thresholdError("%d key(s) used in code are missing from the tables", len(entries))
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print missing keys as JSON")
	cmd.Flags().BoolVar(&fix, "fix", false, "Add the missing keys to the tables")
	cmd.Flags().BoolVar(&doTranslate, "translate", false, "With --fix, machine translate target languages")
	cmd.Flags().BoolVar(&failOnAny, "fail", false, "Fail when keys are missing")

	return cmd
}

func groupMissingKeys(list []reconcile.MissingKey) []missingEntry {
	var out []missingEntry
	pos := map[[2]string]int{}
	for _, m := range list {
		k := [2]string{m.Module, m.Key}
		i, ok := pos[k]
		if !ok {
			i = len(out)
			pos[k] = i
			out = append(out, missingEntry{Module: m.Module, Key: m.Key, Files: m.Files})
		}
		out[i].Langs = append(out[i].Langs, m.Lang)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// addMissing writes the missing keys: the primary language first, then
// every other language that lacks them.
func (p *project) addMissing(ctx context.Context, idx *keytable.Index, entries []missingEntry, pf providerFlags, doTranslate bool) error {
	lf, err := p.lock()
	if err != nil {
		return err
	}
	var client *translate.Client
	if doTranslate {
		if client, err = p.translator(pf, lf); err != nil {
			return err
		}
	}
	guard := p.backups("missing --fix")
	w := p.writer(idx, guard)
	primary := idx.Primary()

	var c diag.Collector
	added := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			c.Add(ctx.Err())
			break
		}
		text := keygen.HumanizeKey(e.Key)
		if t, ok := idx.Table(e.Module, primary); ok {
			if v, ok := t.Get(e.Key); ok && v != "" {
				text = v
			}
		}
		for _, lang := range e.Langs {
			value := text
			if lang != primary && client != nil {
				out, err := client.Translate(ctx, text, primary, lang)
				if err != nil {
					c.Add(&diag.TranslationError{Key: e.Key, Lang: lang, Err: err})
				} else {
					value = out
				}
			}
			if err := w.Set(e.Module, lang, e.Key, value); err != nil {
				c.Add(err)
				continue
			}
			if lang != primary && client != nil && value != text {
				lf.Update(lockfile.TargetKey(p.root, w.PathFor(e.Module, lang)), e.Key, text)
			}
			added++
		}
	}
	c.Add(lf.Save())
	p.finishBackups(guard)
	logSuccess("Added %d entries", added)
	return c.Err()
}
