package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/backup"
	"github.com/minios-linux/lokscan/config"
	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/keygen"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/reconcile"
)

// ---------------------------------------------------------------------------
// fix
// ---------------------------------------------------------------------------

// edit replaces one hardcoded literal with a localized call.
type edit struct {
	h           reconcile.Hardcoded
	module      string
	key         string
	value       string
	replacement string
	newKey      bool
}

func newFixCmd() *cobra.Command {
	var (
		minPriority int
		files       []string
		limit       int
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Replace hardcoded strings with localized calls",
		Long: `Replace hardcoded user-facing strings with localized calls and add the
texts to the tables.

Only strings with a priority at or above --min-priority are changed (see
'lokscan analyze'). Interpolated and multi-line literals are left alone.
A text that already has a key in the module's table reuses that key;
otherwise the suggested key is used, with a numeric suffix when taken.

  Text("Save changes")  →  Text("button.save.changes".localized)

Strings in files mapped to a module other than the default one get the
table argument: "key".localized(from: .settings).

Every changed file is saved to the backup directory first.

Examples:
  lokscan fix --dry-run
  lokscan fix --min-priority 9 --file 'App/Features/Auth/**'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			if !cmd.Flags().Changed("min-priority") {
				minPriority = p.cfg.Fix.MinPriority
			}
			for _, f := range files {
				if !doublestar.ValidatePattern(f) {
					return diag.Configf("--file", "invalid pattern %q", f)
				}
			}

			a, err := p.analyze(cmd.Context())
			if err != nil {
				return err
			}
			edits, skipped := p.planFixes(a, minPriority, files, limit)
			if len(edits) == 0 {
				logSuccess("No hardcoded strings to fix (min priority %d)", minPriority)
				return nil
			}

			out := cmd.OutOrStdout()
			for _, e := range edits {
				fmt.Fprintf(out, "  %s:%d  %q → %s\n", e.h.File, e.h.Line, e.value, e.replacement)
			}
			if skipped > 0 {
				logInfo("%d string(s) skipped (interpolated, multi-line or raw)", skipped)
			}
			if dryRun {
				logInfo("Dry run: %d string(s) would be replaced", len(edits))
				return nil
			}

			guard := p.backups("fix")
			n, err := p.applyFixes(a.idx, guard, edits)
			p.finishBackups(guard)
			if n > 0 {
				logSuccess("Replaced %d string(s)", n)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&minPriority, "min-priority", 8, "Only fix strings with at least this priority (0-10)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "Only files matching these globs (relative to the root)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Fix at most this many strings (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the replacements without changing files")

	return cmd
}

func (p *project) moduleOf(file string) string {
	if m := p.cfg.ModuleFor(file); m != "" {
		return m
	}
	return p.cfg.DefaultModule
}

// localizedCall is the Swift expression replacing a literal.
func (p *project) localizedCall(module, key string) string {
	lit := strconv.Quote(key)
	if module == p.cfg.DefaultModule {
		return lit + ".localized"
	}
	return lit + ".localized(from: ." + keygen.SwiftIdentifier(module) + ")"
}

// keyAssigner hands out keys per module: existing keys are reused for the
// same text and suggested keys get a numeric suffix when taken by another
// text.
type keyAssigner struct {
	idx     *keytable.Index
	byText  map[string]map[string]string // module -> text -> key
	claimed map[string]map[string]string // module -> key -> text
}

func newKeyAssigner(idx *keytable.Index) *keyAssigner {
	return &keyAssigner{idx: idx, byText: map[string]map[string]string{}, claimed: map[string]map[string]string{}}
}

func (ka *keyAssigner) module(m string) {
	if ka.byText[m] != nil {
		return
	}
	ka.byText[m] = map[string]string{}
	ka.claimed[m] = map[string]string{}
	if t, ok := ka.idx.Table(m, ka.idx.Primary()); ok {
		for _, k := range t.Keys() {
			v, _ := t.Get(k)
			ka.claimed[m][k] = v
			if _, seen := ka.byText[m][v]; !seen && v != "" {
				ka.byText[m][v] = k
			}
		}
	}
}

// assign returns the key for text in module and whether it is new.
func (ka *keyAssigner) assign(module, suggested, text, sep string) (string, bool) {
	ka.module(module)
	if k, ok := ka.byText[module][text]; ok {
		return k, false
	}
	key := suggested
	for n := 2; ; n++ {
		v, taken := ka.claimed[module][key]
		if !taken || v == text {
			break
		}
		key = suggested + sep + strconv.Itoa(n)
	}
	ka.claimed[module][key] = text
	ka.byText[module][text] = key
	return key, true
}

func (p *project) planFixes(a *analysis, minPriority int, files []string, limit int) ([]edit, int) {
	ka := newKeyAssigner(a.idx)
	var edits []edit
	skipped := 0
	for _, h := range byPriority(a.result.Hardcoded) {
		if h.Priority < minPriority || !matchFiles(files, h.File) {
			continue
		}
		if h.Multiline || strings.Contains(h.Text, `\(`) {
			skipped++
			continue
		}
		if limit > 0 && len(edits) >= limit {
			break
		}
		module := p.moduleOf(h.File)
		value := extract.Unescape(h.Text)
		key, isNew := ka.assign(module, h.SuggestedKey, value, ".")
		edits = append(edits, edit{
			h:           h,
			module:      module,
			key:         key,
			value:       value,
			replacement: p.localizedCall(module, key),
			newKey:      isNew,
		})
	}
	return edits, skipped
}

func matchFiles(globs []string, file string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, file); ok {
			return true
		}
	}
	return false
}

// applyFixes rewrites the source files and adds new keys to every
// language of the module. It returns the number of replaced literals.
func (p *project) applyFixes(idx *keytable.Index, guard *backup.Manager, edits []edit) (int, error) {
	var c diag.Collector
	byFile := map[string][]edit{}
	newKeys := map[[2]string]bool{}
	var order []string
	for _, e := range edits {
		if e.newKey {
			newKeys[[2]string{e.module, e.key}] = true
		}
		if _, ok := byFile[e.h.File]; !ok {
			order = append(order, e.h.File)
		}
		byFile[e.h.File] = append(byFile[e.h.File], e)
	}
	sort.Strings(order)

	var applied []edit
	for _, file := range order {
		done, err := p.rewriteSource(guard, file, byFile[file])
		c.Add(err)
		applied = append(applied, done...)
	}

	w := p.writer(idx, guard)
	written := map[[2]string]bool{}
	for _, e := range applied {
		if !newKeys[[2]string{e.module, e.key}] || written[[2]string{e.module, e.key}] {
			continue
		}
		written[[2]string{e.module, e.key}] = true
		langs := idx.LanguagesOf(e.module)
		if len(langs) == 0 {
			langs = []string{idx.Primary()}
		}
		for _, lang := range langs {
			c.Add(w.Set(e.module, lang, e.key, e.value))
		}
	}
	return len(applied), c.Err()
}

// rewriteSource applies the edits of one file from the end backwards so
// earlier offsets stay valid. A literal whose bytes changed since the scan
// is skipped.
func (p *project) rewriteSource(guard *backup.Manager, file string, edits []edit) ([]edit, error) {
	path := filepath.Join(p.root, filepath.FromSlash(file))
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &diag.IOError{Op: "reading", Path: path, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &diag.IOError{Op: "reading", Path: path, Err: err}
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].h.Offset > edits[j].h.Offset })
	var applied []edit
	out := src
	for _, e := range edits {
		o, end := e.h.Offset, e.h.End
		if o < 0 || end > len(out) || o >= end || string(out[o:end]) != `"`+e.h.Text+`"` {
			p.log.Warn("literal changed since scan, skipping", zap.String("file", file), zap.Int("line", e.h.Line))
			continue
		}
		var b bytes.Buffer
		b.Grow(len(out) + len(e.replacement))
		b.Write(out[:o])
		b.WriteString(e.replacement)
		b.Write(out[end:])
		out = b.Bytes()
		applied = append(applied, e)
	}
	if len(applied) == 0 {
		return nil, nil
	}
	err = guard.Protect(path, func() error {
		return os.WriteFile(path, out, info.Mode().Perm())
	})
	if err != nil {
		return nil, &diag.IOError{Op: "writing", Path: path, Err: err}
	}
	p.log.Debug("rewrote source", zap.String("file", file), zap.Int("edits", len(applied)))
	return applied, nil
}

// ---------------------------------------------------------------------------
// generate
// ---------------------------------------------------------------------------

// swiftKeywords are identifiers that need backticks as Swift names.
var swiftKeywords = map[string]bool{
	"associatedtype": true, "class": true, "deinit": true, "enum": true, "extension": true,
	"fileprivate": true, "func": true, "import": true, "init": true, "inout": true,
	"internal": true, "let": true, "open": true, "operator": true, "private": true,
	"protocol": true, "public": true, "rethrows": true, "static": true, "struct": true,
	"subscript": true, "typealias": true, "var": true, "break": true, "case": true,
	"continue": true, "default": true, "defer": true, "do": true, "else": true,
	"fallthrough": true, "for": true, "guard": true, "if": true, "in": true,
	"repeat": true, "return": true, "switch": true, "where": true, "while": true,
	"as": true, "catch": true, "false": true, "is": true, "nil": true, "self": true,
	"super": true, "throw": true, "throws": true, "true": true, "try": true,
}

func swiftName(id string) string {
	if swiftKeywords[id] {
		return "`" + id + "`"
	}
	return id
}

func newGenerateCmd() *cobra.Command {
	var (
		output      string
		enumName    string
		minPriority int
		enumOnly    bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Add table entries for hardcoded strings and emit a Swift enum",
		Long: `Add every hardcoded string to the table of its module, keyed by its
text (camelCase), and write a Swift enum with one constant per key:

  enum L10n {
      enum Settings {
          static let pushNotifications = "pushNotifications".localized(from: .settings)
      }
  }

The enum covers every key of the primary language, not only the new ones.
--enum-only skips the table update. --dry-run prints the enum instead of
writing any file.

Examples:
  lokscan generate
  lokscan generate --output App/Generated/L10n.swift --enum-name Strings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			if !cmd.Flags().Changed("output") {
				output = p.cfg.Generate.Output
			}
			if !cmd.Flags().Changed("enum-name") {
				enumName = p.cfg.Generate.EnumName
			}

			a, err := p.analyze(cmd.Context())
			if err != nil {
				return err
			}

			var entries []edit
			if !enumOnly {
				entries = p.planEntries(a, minPriority)
			}

			var c diag.Collector
			var guard *backup.Manager
			if !dryRun {
				guard = p.backups("generate")
				added := 0
				w := p.writer(a.idx, guard)
				for _, e := range entries {
					langs := a.idx.LanguagesOf(e.module)
					if len(langs) == 0 {
						langs = []string{a.idx.Primary()}
					}
					for _, lang := range langs {
						if err := w.Set(e.module, lang, e.key, e.value); err != nil {
							c.Add(err)
							continue
						}
					}
					added++
				}
				if added > 0 {
					logSuccess("Added %d key(s) to the tables", added)
				}
			} else {
				for _, e := range entries {
					fmt.Fprintf(os.Stderr, "  + %s/%s = %q\n", e.module, e.key, e.value)
				}
			}

			code := p.swiftEnum(a.idx, enumName, entries, dryRun)
			if dryRun {
				_, err := io.WriteString(cmd.OutOrStdout(), code)
				return err
			}
			path := config.Resolve(p.root, output)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return &diag.IOError{Op: "creating", Path: filepath.Dir(path), Err: err}
			}
			err = guard.Protect(path, func() error {
				return os.WriteFile(path, []byte(code), 0644)
			})
			if err != nil {
				c.Add(&diag.IOError{Op: "writing", Path: path, Err: err})
			} else {
				logSuccess("Wrote %s", p.rel(path))
			}
			p.finishBackups(guard)
			return c.Err()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "L10n.swift", "Swift file to write (relative to the root)")
	cmd.Flags().StringVar(&enumName, "enum-name", "L10n", "Name of the generated enum")
	cmd.Flags().IntVar(&minPriority, "min-priority", 1, "Only add strings with at least this priority")
	cmd.Flags().BoolVar(&enumOnly, "enum-only", false, "Only write the enum, do not add table entries")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the enum and the new entries without writing")

	return cmd
}

// planEntries derives new keys for the hardcoded strings, one per distinct
// text and module.
func (p *project) planEntries(a *analysis, minPriority int) []edit {
	ka := newKeyAssigner(a.idx)
	var out []edit
	seen := map[[2]string]bool{}
	for _, h := range byPriority(a.result.Hardcoded) {
		if h.Priority < minPriority || h.Multiline || strings.Contains(h.Text, `\(`) {
			continue
		}
		module := p.moduleOf(h.File)
		value := extract.Unescape(h.Text)
		key, isNew := ka.assign(module, keygen.NormalizeToKey(value), value, "")
		if !isNew || seen[[2]string{module, key}] {
			continue
		}
		seen[[2]string{module, key}] = true
		out = append(out, edit{h: h, module: module, key: key, value: value, newKey: true})
	}
	return out
}

// swiftEnum renders the enum over every primary key, plus pending entries
// when the tables were not written.
func (p *project) swiftEnum(idx *keytable.Index, name string, pending []edit, includePending bool) string {
	keys := map[string]map[string]string{}
	add := func(module, key, value string) {
		if keys[module] == nil {
			keys[module] = map[string]string{}
		}
		keys[module][key] = value
	}
	for _, m := range idx.Modules() {
		if t, ok := idx.Table(m, idx.Primary()); ok {
			for _, k := range t.Keys() {
				v, _ := t.Get(k)
				add(m, k, v)
			}
		}
	}
	if includePending {
		for _, e := range pending {
			add(e.module, e.key, e.value)
		}
	}

	modules := make([]string, 0, len(keys))
	for m := range keys {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var b strings.Builder
	b.WriteString("// Generated by lokscan. Do not edit.\n")
	b.WriteString("// swiftlint:disable all\n\n")
	b.WriteString("import Foundation\n\n")
	fmt.Fprintf(&b, "enum %s {\n", swiftName(keygen.SwiftTypeName(name)))
	for i, m := range modules {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "    // MARK: - %s\n", m)
		fmt.Fprintf(&b, "    enum %s {\n", swiftName(keygen.SwiftTypeName(m)))

		list := make([]string, 0, len(keys[m]))
		for k := range keys[m] {
			list = append(list, k)
		}
		sort.Strings(list)
		ids := enumMembers(list)
		for i, k := range list {
			id := ids[i]
			if doc := docLine(keys[m][k]); doc != "" {
				fmt.Fprintf(&b, "        /// %s\n", doc)
			}
			fmt.Fprintf(&b, "        static let %s = %s\n", swiftName(id), p.localizedCall(m, k))
		}
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// enumMembers names the constants for sorted keys; identifiers that
// collide get a numeric suffix.
func enumMembers(keys []string) []string {
	ids := make([]string, len(keys))
	used := map[string]int{}
	for i, k := range keys {
		id := keygen.SwiftIdentifier(k)
		used[id]++
		if n := used[id]; n > 1 {
			id += strconv.Itoa(n)
		}
		ids[i] = id
	}
	return ids
}

// docLine shortens a text for a doc comment.
func docLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 80 {
		s = string(r[:77]) + "..."
	}
	return s
}
