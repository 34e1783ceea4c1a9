package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/backup"
	"github.com/minios-linux/lokscan/config"
	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/extract"
	"github.com/minios-linux/lokscan/i18n"
	"github.com/minios-linux/lokscan/keygen"
	"github.com/minios-linux/lokscan/keytable"
)

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

// enumAccess is one use of an enum constant such as L10n.Settings.title.
type enumAccess struct {
	file        string
	line        int
	start, end  int
	pattern     string // the access without arguments
	original    string
	replacement string
	known       bool
}

var swiftIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newMigrateCmd() *cobra.Command {
	var (
		enumName    string
		files       []string
		limit       int
		skipUnknown bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite enum constants into localized calls",
		Long: `Replace uses of a constants enum, such as the one written by
'lokscan generate' or SwiftGen, with direct localized calls:

  L10n.Settings.pushNotifications   →  "push.notifications".localized(from: .settings)
  L10n.Settings.itemsLeft(count)    →  "items.left".localized(from: .settings, with: count)
  L10n.Premium.Feature.title        →  "feature.title".localized(from: .premium)

Each constant is looked up the way 'lokscan generate' names it, so keys
with dots round-trip. Other constants keep their member name as key
(prefixed by the nested type, if any) and are reported as not in the
tables; --skip-unknown leaves those alone.

Accesses inside comments and string literals are not touched, nor is the
generated enum file itself. Every changed file is saved to the backup
directory first.

Examples:
  lokscan migrate --dry-run
  lokscan migrate --enum-name Strings --file 'App/Features/**'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			if !cmd.Flags().Changed("enum-name") {
				enumName = p.cfg.Generate.EnumName
			}
			if !swiftIdent.MatchString(enumName) {
				return diag.Configf("--enum-name", "%q is not a Swift identifier", enumName)
			}
			for _, f := range files {
				if !doublestar.ValidatePattern(f) {
					return diag.Configf("--file", "invalid pattern %q", f)
				}
			}

			idx, err := p.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			sc, err := p.newScanner()
			if err != nil {
				return err
			}
			sources, err := p.sourceFiles()
			if err != nil {
				return err
			}

			m := newMigrator(p, idx, sc, enumName)
			generated := config.Resolve(p.root, p.cfg.Generate.Output)
			var (
				c       diag.Collector
				order   []string
				byFile  = map[string][]enumAccess{}
				all     []enumAccess
				unknown int
			)
			for _, path := range sources {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				rel := p.rel(path)
				if path == generated || !matchFiles(files, rel) {
					continue
				}
				src, err := os.ReadFile(path)
				if err != nil {
					c.Add(&diag.IOError{Op: "reading", Path: path, Err: err})
					continue
				}
				var found []enumAccess
				for _, a := range m.find(rel, src) {
					if !a.known {
						unknown++
						if skipUnknown {
							continue
						}
					}
					found = append(found, a)
				}
				if len(found) > 0 {
					order = append(order, path)
					byFile[path] = found
					all = append(all, found...)
				}
			}
			if m.nested > 0 {
				logWarning("%d call(s) with nested arguments left unchanged", m.nested)
			}
			if len(all) == 0 {
				logSuccess("No %s constants to migrate", enumName)
				return c.Err()
			}

			out := cmd.OutOrStdout()
			list, more := clip(all, limit)
			for _, a := range list {
				mark := ""
				if !a.known {
					mark = "  (not in the tables)"
				}
				fmt.Fprintf(out, "  %s:%d  %s → %s%s\n", a.file, a.line, a.original, a.replacement, mark)
			}
			writeMore(out, more)
			writeTopPatterns(out, all)
			if unknown > 0 {
				if skipUnknown {
					logInfo("%d constant(s) without a table key skipped", unknown)
				} else {
					logWarning("%d constant(s) have no key in the tables; run 'lokscan analyze' afterwards", unknown)
				}
			}
			if dryRun {
				logInfo("Dry run: %d constant(s) in %d file(s) would be replaced", len(all), len(order))
				return c.Err()
			}

			guard := p.backups("migrate")
			replaced, changed := 0, 0
			for _, path := range order {
				n, err := p.applyAccesses(guard, path, byFile[path])
				c.Add(err)
				replaced += n
				if n > 0 {
					changed++
				}
			}
			p.finishBackups(guard)
			if replaced > 0 {
				logSuccess("Replaced %d constant(s) in %d file(s)", replaced, changed)
			}
			return c.Err()
		},
	}

	cmd.Flags().StringVar(&enumName, "enum-name", "L10n", "Name of the constants enum")
	cmd.Flags().StringSliceVar(&files, "file", nil, "Only files matching these globs (relative to the root)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum replacements to list (0 = all)")
	cmd.Flags().BoolVar(&skipUnknown, "skip-unknown", false, "Leave constants whose key is not in the tables")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the replacements without changing files")

	return cmd
}

// writeTopPatterns lists the most replaced constants.
func writeTopPatterns(w io.Writer, all []enumAccess) {
	counts := map[string]int{}
	for _, a := range all {
		counts[a.pattern]++
	}
	if len(counts) < 2 {
		return
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	top, _ := clip(names, 5)
	heading(w, i18n.T("Most Used Constants"))
	for _, n := range top {
		fmt.Fprintf(w, "  %-40s %d\n", n, counts[n])
	}
}

// migrator resolves enum constants against the key tables.
type migrator struct {
	p       *project
	idx     *keytable.Index
	sc      *extract.Scanner
	re      *regexp.Regexp
	modules map[string]string            // Swift type name → module
	members map[string]map[string]string // module → constant → key
	nested  int
}

func newMigrator(p *project, idx *keytable.Index, sc *extract.Scanner, enumName string) *migrator {
	m := &migrator{
		p:       p,
		idx:     idx,
		sc:      sc,
		modules: map[string]string{},
		members: map[string]map[string]string{},
		// Enum.Type[.Nested].member[(args)]
		re: regexp.MustCompile(`\b` + regexp.QuoteMeta(enumName) +
			`\.([A-Za-z_][A-Za-z0-9_]*)\.(?:([A-Z][A-Za-z0-9_]*)\.)?` +
			"(`[A-Za-z_][A-Za-z0-9_]*`|[a-z_][A-Za-z0-9_]*)" +
			`(\([^()\n]*\))?`),
	}
	for _, module := range idx.Modules() {
		m.modules[keygen.SwiftTypeName(module)] = module
		t, ok := idx.Table(module, idx.Primary())
		if !ok {
			continue
		}
		keys := t.Keys()
		sort.Strings(keys)
		m.members[module] = map[string]string{}
		for i, id := range enumMembers(keys) {
			m.members[module][id] = keys[i]
		}
	}
	return m
}

// find returns the constants used in code, in source order.
func (m *migrator) find(file string, src []byte) []enumAccess {
	mask := m.sc.Mask(src)
	var out []enumAccess
	for _, loc := range m.re.FindAllSubmatchIndex(mask, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && mask[start-1] == '.' {
			continue
		}
		group := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return string(src[loc[2*i]:loc[2*i+1]])
		}
		if group(4) == "" && end < len(mask) && mask[end] == '(' {
			m.nested++
			continue
		}
		args := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(group(4), "("), ")"))
		module, key, known := m.resolve(group(1), group(2), strings.Trim(group(3), "`"))
		pattern := string(src[start:end])
		if loc[8] >= 0 {
			pattern = string(src[start:loc[8]])
		}
		out = append(out, enumAccess{
			file:        file,
			line:        1 + bytes.Count(src[:start], []byte("\n")),
			start:       start,
			end:         end,
			pattern:     pattern,
			original:    string(src[start:end]),
			replacement: m.p.localizedCallWith(module, key, args),
			known:       known,
		})
	}
	return out
}

// resolve maps Type[.Nested].member to a module and key.
func (m *migrator) resolve(typ, nested, member string) (module, key string, known bool) {
	module, ok := m.modules[typ]
	if !ok {
		module = typ
	}
	if nested == "" {
		if k, ok := m.members[module][member]; ok {
			return module, k, true
		}
		key = member
	} else {
		key = strcase.ToLowerCamel(nested) + "." + member
	}
	if t, ok := m.idx.Table(module, m.idx.Primary()); ok {
		_, known = t.Get(key)
	}
	return module, key, known
}

// localizedCallWith is localizedCall passing format arguments.
func (p *project) localizedCallWith(module, key, args string) string {
	call := p.localizedCall(module, key)
	if args == "" {
		return call
	}
	if strings.HasSuffix(call, ")") {
		return call[:len(call)-1] + ", with: " + args + ")"
	}
	return call + "(with: " + args + ")"
}

// applyAccesses rewrites one file from the end backwards. An access whose
// text changed since it was found is skipped.
func (p *project) applyAccesses(guard *backup.Manager, path string, accesses []enumAccess) (int, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, &diag.IOError{Op: "reading", Path: path, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, &diag.IOError{Op: "reading", Path: path, Err: err}
	}

	sorted := append([]enumAccess(nil), accesses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start > sorted[j].start })
	out := src
	n := 0
	for _, a := range sorted {
		if a.end > len(out) || string(out[a.start:a.end]) != a.original {
			p.log.Warn("source changed since scan, skipping", zap.String("file", a.file), zap.Int("line", a.line))
			continue
		}
		var b bytes.Buffer
		b.Grow(len(out) + len(a.replacement))
		b.Write(out[:a.start])
		b.WriteString(a.replacement)
		b.Write(out[a.end:])
		out = b.Bytes()
		n++
	}
	if n == 0 {
		return 0, nil
	}
	err = guard.Protect(path, func() error {
		return os.WriteFile(path, out, info.Mode().Perm())
	})
	if err != nil {
		return 0, &diag.IOError{Op: "writing", Path: path, Err: err}
	}
	p.log.Debug("migrated source", zap.String("file", p.rel(path)), zap.Int("replacements", n))
	return n, nil
}
