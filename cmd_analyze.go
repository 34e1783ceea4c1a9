package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/health"
	"github.com/minios-linux/lokscan/i18n"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/langmeta"
	"github.com/minios-linux/lokscan/reconcile"
)

// ---------------------------------------------------------------------------
// analyze
// ---------------------------------------------------------------------------

func newAnalyzeCmd() *cobra.Command {
	var (
		format         string
		output         string
		limit          int
		minScore       float64
		minConsistency float64
		failOnMissing  bool
		noRecord       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Scan sources and tables, report issues and the health score",
		Long: `Scan Swift sources and .strings tables and correlate them.

Reports hardcoded user-facing strings with a suggested key and priority,
keys used in code but missing from a table, unused keys, interpolated key
patterns that match nothing, duplicated hardcoded text and the overall
localization health score (0-100, graded A-F).

The score of each run is stored in lokscan.lock so the next run can show
the trend. Use --no-record in CI jobs that should not touch the lock file.

Examples:
  lokscan analyze
  lokscan analyze --format json --output report.json
  lokscan analyze --format html --output lokscan-report.html
  lokscan analyze --min-score 80 --fail-on-missing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			defer p.close()

			if !cmd.Flags().Changed("min-score") {
				minScore = p.cfg.Thresholds.MinScore
			}
			if !cmd.Flags().Changed("min-consistency") {
				minConsistency = p.cfg.Thresholds.MinConsistency
			}
			if err := checkReportFormat(format); err != nil {
				return err
			}

			a, err := p.analyze(cmd.Context())
			if err != nil {
				return err
			}

			rep := newReport(p, a)
			if !noRecord {
				if err := p.recordHealth(rep); err != nil {
					logWarning("Recording health: %v", err)
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			closeOut := func() error { return nil }
			if output != "" {
				f, closeFile, err := outputWriter(output)
				if err != nil {
					return err
				}
				w, closeOut = f, closeFile
			}
			switch format {
			case "json":
				err = writeReportJSON(w, rep)
			case "md":
				err = writeReportMarkdown(w, rep, limit)
			case "html":
				err = writeReportHTML(w, rep, limit)
			default:
				err = writeReportText(w, rep, limit)
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			if output != "" {
				logSuccess("Report written to %s", output)
			}

			var c diag.Collector
			c.Add(p.reportDiagnostics(a.idx, a.scan))
			s := a.score
			if minScore > 0 && s.Score < minScore {
				c.Add(thresholdError("health score %.1f is below %.1f", s.Score, minScore))
			}
			if minConsistency > 0 && s.ConsistencyRate < minConsistency {
				c.Add(thresholdError("consistency %.1f%% is below %.1f%%", s.ConsistencyRate, minConsistency))
			}
			if failOnMissing && s.Missing > 0 {
				c.Add(thresholdError("%d key(s) used in code are missing from the tables", s.Missing))
			}
			return c.Err()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: text, json, md, html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum items per section in text and md reports (0 = all)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Fail when the health score is below this value")
	cmd.Flags().Float64Var(&minConsistency, "min-consistency", 0, "Fail when the consistency rate is below this percentage")
	cmd.Flags().BoolVar(&failOnMissing, "fail-on-missing", false, "Fail when code uses keys the tables lack")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not store the score in lokscan.lock")
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "md", "html"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func checkReportFormat(format string) error {
	switch format {
	case "text", "json", "md", "html":
		return nil
	}
	return diag.Configf("--format", "unknown format %q (want text, json, md or html)", format)
}

// report is the analyze output; its JSON form is the machine-readable
// report.
type report struct {
	Root            string                 `json:"root"`
	GeneratedAt     time.Time              `json:"generated_at"`
	Health          health.Score           `json:"health"`
	Trend           *trend                 `json:"trend,omitempty"`
	Recommendations []reportRecommendation `json:"recommendations"`
	Result          *reconcile.Result      `json:"result"`
	Modules         map[string][]string    `json:"modules"`
	Diagnostics     []string               `json:"diagnostics,omitempty"`
	missingTargets  []reconcile.MissingKey
	languages       []languageRow
}

type trend struct {
	Since    time.Time    `json:"since"`
	Previous float64      `json:"previous"`
	Delta    health.Delta `json:"delta"`
	Trend    string       `json:"trend"`
}

type reportRecommendation struct {
	Kind  health.RecommendationKind `json:"kind"`
	Count int                       `json:"count,omitempty"`
	Text  string                    `json:"text"`
}

func newReport(p *project, a *analysis) *report {
	rep := &report{
		Root:        p.root,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Health:      a.score,
		Result:      a.result,
		Modules:     map[string][]string{},
		languages:   languageRows(a.idx),
	}
	for _, m := range a.idx.Modules() {
		rep.Modules[m] = a.idx.LanguagesOf(m)
	}
	for _, m := range a.result.Missing {
		if !m.Referenced() {
			rep.missingTargets = append(rep.missingTargets, m)
		}
	}
	for _, r := range health.Recommendations(a.score, len(rep.missingTargets)) {
		rep.Recommendations = append(rep.Recommendations, reportRecommendation{
			Kind:  r.Kind,
			Count: r.Count,
			Text:  recommendationText(r),
		})
	}
	for _, err := range a.idx.DiagnosticList() {
		rep.Diagnostics = append(rep.Diagnostics, err.Error())
	}
	return rep
}

func recommendationText(r health.Recommendation) string {
	if r.Count > 0 {
		return i18n.F(r.Format(), r.Count)
	}
	return i18n.T(r.Format())
}

// recordHealth compares the score with the previous run and stores it.
func (p *project) recordHealth(rep *report) error {
	lf, err := p.lock()
	if err != nil {
		return err
	}
	if prev, ok := lf.LastHealth(); ok {
		d := health.Compare(prev.Score, rep.Health)
		rep.Trend = &trend{Since: prev.Time, Previous: prev.Score.Score, Delta: d, Trend: d.Trend()}
	}
	lf.RecordHealth(rep.Health, rep.GeneratedAt)
	p.log.Debug("recording health", zap.Float64("score", rep.Health.Score), zap.String("lock", lf.Path()))
	return lf.Save()
}

func writeReportJSON(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// clip returns at most limit items; limit <= 0 means all.
func clip[T any](items []T, limit int) ([]T, int) {
	if limit <= 0 || len(items) <= limit {
		return items, 0
	}
	return items[:limit], len(items) - limit
}

// byPriority orders hardcoded strings for fixing: highest priority
// first, then by position.
func byPriority(list []reconcile.Hardcoded) []reconcile.Hardcoded {
	out := append([]reconcile.Hardcoded(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

func gradeColor(grade string) string {
	switch grade {
	case "A", "B":
		return colorGreen
	case "C", "D":
		return colorYellow
	}
	return colorRed
}

func trendArrow(t string) string {
	switch t {
	case "improved":
		return "↑"
	case "declined":
		return "↓"
	}
	return "→"
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, title, colorReset)
	fmt.Fprintln(w, strings.Repeat("─", 60))
}

func writeReportText(w io.Writer, rep *report, limit int) error {
	s := rep.Health
	res := rep.Result

	heading(w, i18n.T("Localization Health"))
	fmt.Fprintf(w, "  %-16s %s%.1f (%s)%s", i18n.T("Score:"), gradeColor(s.Grade), s.Score, s.Grade, colorReset)
	if t := rep.Trend; t != nil {
		fmt.Fprintf(w, "  %s %+.1f %s %s", trendArrow(t.Trend), t.Delta.Score, i18n.T("since"), t.Since.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-16s %.1f%% (%d %s, %d %s)\n", i18n.T("Localization:"), s.LocalizationRate,
		s.Localized, i18n.T("localized"), s.Hardcoded, i18n.T("hardcoded"))
	fmt.Fprintf(w, "  %-16s %.1f%%\n", i18n.T("Consistency:"), s.ConsistencyRate)
	fmt.Fprintf(w, "  %-16s %d\n", i18n.T("Missing keys:"), s.Missing)
	fmt.Fprintf(w, "  %-16s %d\n", i18n.T("Unused keys:"), s.Dead)
	fmt.Fprintf(w, "  %-16s %d\n", i18n.T("Duplicates:"), s.Duplicates)
	fmt.Fprintf(w, "  %-16s %d (%d %s)\n", i18n.T("Dynamic keys:"), len(res.Dynamic), s.Unmatched, i18n.T("unmatched"))
	fmt.Fprintf(w, "  %-16s %d / %d\n", i18n.T("Files:"), res.Counts.Files, len(res.Files))
	fmt.Fprintf(w, "  %-16s %s\n", i18n.T("Languages:"), strings.Join(res.Languages, ", "))

	if len(res.Hardcoded) > 0 {
		heading(w, i18n.T("Hardcoded Strings"))
		list, more := clip(byPriority(res.Hardcoded), limit)
		for _, h := range list {
			fmt.Fprintf(w, "  %s:%d  %s\n", h.File, h.Line, h.Text)
			fmt.Fprintf(w, "      → %s  [%s %d]\n", h.SuggestedKey, i18n.T("priority"), h.Priority)
		}
		writeMore(w, more)
	}

	if missing := res.MissingReferenced(); len(missing) > 0 {
		heading(w, i18n.T("Missing Keys"))
		list, more := clip(missing, limit)
		for _, m := range list {
			fmt.Fprintf(w, "  %s%s%s  %s/%s  (%s)\n", colorRed, m.Key, colorReset, m.Module, m.Lang, strings.Join(m.Files, ", "))
		}
		writeMore(w, more)
	}

	if len(rep.missingTargets) > 0 {
		heading(w, i18n.T("Untranslated Keys"))
		for _, g := range groupMissing(rep.missingTargets) {
			fmt.Fprintf(w, "  %-12s %-20s %d\n", g.lang, g.module, len(g.keys))
		}
	}

	if len(res.Dead) > 0 {
		heading(w, i18n.T("Unused Keys"))
		list, more := clip(res.Dead, limit)
		for _, d := range list {
			fmt.Fprintf(w, "  %s  (%s)\n", d.Key, d.Module)
		}
		writeMore(w, more)
	}

	if unmatched := res.UnmatchedDynamic(); len(unmatched) > 0 {
		heading(w, i18n.T("Unmatched Dynamic Keys"))
		for _, d := range unmatched {
			fmt.Fprintf(w, "  %s  (%s; %s)\n", d.Pattern, d.Module, strings.Join(d.Files, ", "))
		}
	}

	if len(res.Duplicates) > 0 {
		heading(w, i18n.T("Duplicate Strings"))
		list, more := clip(res.Duplicates, limit)
		for _, d := range list {
			locs := make([]string, len(d.Locations))
			for i, l := range d.Locations {
				locs[i] = fmt.Sprintf("%s:%d", l.File, l.Line)
			}
			fmt.Fprintf(w, "  %q  %s\n", d.Text, strings.Join(locs, ", "))
		}
		writeMore(w, more)
	}

	heading(w, i18n.T("Recommendations"))
	for _, r := range rep.Recommendations {
		fmt.Fprintf(w, "  • %s\n", r.Text)
	}
	fmt.Fprintln(w)
	return nil
}

func writeMore(w io.Writer, more int) {
	if more > 0 {
		fmt.Fprintf(w, "  … %s\n", i18n.F("and %d more", more))
	}
}

func writeReportMarkdown(w io.Writer, rep *report, limit int) error {
	s := rep.Health
	res := rep.Result
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", i18n.T("Localization Health"))
	fmt.Fprintf(&b, "**%s** %.1f (%s)", i18n.T("Score:"), s.Score, s.Grade)
	if t := rep.Trend; t != nil {
		fmt.Fprintf(&b, " %s %+.1f", trendArrow(t.Trend), t.Delta.Score)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "| %s | %s |\n|---|---:|\n", i18n.T("Metric"), i18n.T("Value"))
	fmt.Fprintf(&b, "| %s | %.1f%% |\n", i18n.T("Localization rate"), s.LocalizationRate)
	fmt.Fprintf(&b, "| %s | %.1f%% |\n", i18n.T("Consistency rate"), s.ConsistencyRate)
	fmt.Fprintf(&b, "| %s | %d |\n", i18n.T("Localized calls"), s.Localized)
	fmt.Fprintf(&b, "| %s | %d |\n", i18n.T("Hardcoded strings"), s.Hardcoded)
	fmt.Fprintf(&b, "| %s | %d |\n", i18n.T("Missing keys"), s.Missing)
	fmt.Fprintf(&b, "| %s | %d |\n", i18n.T("Unused keys"), s.Dead)
	fmt.Fprintf(&b, "| %s | %d |\n", i18n.T("Duplicate strings"), s.Duplicates)

	if len(res.Hardcoded) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n| %s | %s | %s | %s |\n|---|---|---|---:|\n",
			i18n.T("Hardcoded Strings"), i18n.T("Location"), i18n.T("Text"), i18n.T("Suggested key"), i18n.T("Priority"))
		list, more := clip(byPriority(res.Hardcoded), limit)
		for _, h := range list {
			fmt.Fprintf(&b, "| `%s:%d` | %s | `%s` | %d |\n", h.File, h.Line, mdEscape(h.Text), h.SuggestedKey, h.Priority)
		}
		mdMore(&b, more)
	}
	if missing := res.MissingReferenced(); len(missing) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", i18n.T("Missing Keys"))
		list, more := clip(missing, limit)
		for _, m := range list {
			fmt.Fprintf(&b, "- `%s` (%s/%s): %s\n", m.Key, m.Module, m.Lang, strings.Join(m.Files, ", "))
		}
		mdMore(&b, more)
	}
	if len(res.Dead) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", i18n.T("Unused Keys"))
		list, more := clip(res.Dead, limit)
		for _, d := range list {
			fmt.Fprintf(&b, "- `%s` (%s)\n", d.Key, d.Module)
		}
		mdMore(&b, more)
	}
	fmt.Fprintf(&b, "\n## %s\n\n", i18n.T("Recommendations"))
	for _, r := range rep.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

func mdMore(b *strings.Builder, more int) {
	if more > 0 {
		fmt.Fprintf(b, "\n_%s_\n", i18n.F("and %d more", more))
	}
}

type missingGroup struct {
	lang, module string
	keys         []string
}

// groupMissing groups missing entries by language and module.
func groupMissing(list []reconcile.MissingKey) []missingGroup {
	var out []missingGroup
	pos := map[[2]string]int{}
	for _, m := range list {
		k := [2]string{m.Lang, m.Module}
		i, ok := pos[k]
		if !ok {
			i = len(out)
			pos[k] = i
			out = append(out, missingGroup{lang: m.Lang, module: m.Module})
		}
		out[i].keys = append(out[i].keys, m.Key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].lang != out[j].lang {
			return out[i].lang < out[j].lang
		}
		return out[i].module < out[j].module
	})
	return out
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

// tableStat is the completion of one module in one language.
type tableStat struct {
	Module  string  `json:"module"`
	Lang    string  `json:"lang"`
	Total   int     `json:"total"`
	Done    int     `json:"translated"`
	Missing int     `json:"missing"`
	Empty   int     `json:"empty"`
	Percent float64 `json:"percent"`
	Exists  bool    `json:"exists"`
}

func newStatsCmd() *cobra.Command {
	var (
		asJSON        bool
		minCompletion float64
		langs         []string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion per table and language",
		Long: `Show how complete every language is relative to the primary language,
per module (table) and in total. Does not scan sources or modify files.

Examples:
  lokscan stats
  lokscan stats --lang de,fr --min-completion 95`,
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
			targets, err := p.targetLanguages(idx, splitList(langs))
			if err != nil {
				return err
			}
			if len(langs) == 0 {
				targets = mergeLanguages(targets, idx.Languages(), idx.Primary())
			}
			stats := tableStats(idx, targets)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(stats); err != nil {
					return err
				}
			} else {
				writeStatsTable(cmd.OutOrStdout(), idx, stats)
			}

			var c diag.Collector
			c.Add(p.reportDiagnostics(idx, nil))
			if minCompletion > 0 {
				for _, lang := range targets {
					if pct := languagePercent(stats, lang); pct < minCompletion {
						c.Add(thresholdError("%s is %.1f%% complete, below %.1f%%", lang, pct, minCompletion))
					}
				}
			}
			return c.Err()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")
	cmd.Flags().Float64Var(&minCompletion, "min-completion", 0, "Fail when a language is less complete than this percentage")
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Languages to show (comma-separated)")

	return cmd
}

// mergeLanguages adds the languages found on disk to the configured ones,
// primary excluded.
func mergeLanguages(configured, found []string, primary string) []string {
	seen := map[string]bool{primary: true}
	var out []string
	for _, l := range append(append([]string(nil), configured...), found...) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func tableStats(idx *keytable.Index, langs []string) []tableStat {
	var out []tableStat
	for _, module := range idx.Modules() {
		src, ok := idx.Table(module, idx.Primary())
		if !ok {
			continue
		}
		for _, lang := range langs {
			st := tableStat{Module: module, Lang: lang, Total: src.Len()}
			if tgt, ok := idx.Table(module, lang); ok {
				st.Exists = true
				for _, k := range src.Keys() {
					v, ok := tgt.Get(k)
					switch {
					case !ok:
						st.Missing++
					case strings.TrimSpace(v) == "":
						st.Empty++
					default:
						st.Done++
					}
				}
			} else {
				st.Missing = st.Total
			}
			st.Percent = percent(st.Done, st.Total)
			out = append(out, st)
		}
	}
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(1000*float64(n)/float64(total)) / 10
}

func languagePercent(stats []tableStat, lang string) float64 {
	done, total := 0, 0
	for _, s := range stats {
		if s.Lang == lang {
			done += s.Done
			total += s.Total
		}
	}
	return percent(done, total)
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	color := colorGreen
	switch {
	case pct < 50:
		color = colorRed
	case pct < 90:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset + fmt.Sprintf(" %3d%%", pct)
}

func writeStatsTable(w io.Writer, idx *keytable.Index, stats []tableStat) {
	heading(w, i18n.T("Translation Statistics"))
	fmt.Fprintf(w, "  %s: %s\n", i18n.T("Primary"), langmeta.Label(idx.Primary()))

	byModule := map[string][]tableStat{}
	var modules []string
	for _, s := range stats {
		if _, ok := byModule[s.Module]; !ok {
			modules = append(modules, s.Module)
		}
		byModule[s.Module] = append(byModule[s.Module], s)
	}

	for _, module := range modules {
		list := byModule[module]
		fmt.Fprintf(w, "\n%s%s%s (%d %s)\n", colorBold, module, colorReset, list[0].Total, i18n.T("keys"))
		fmt.Fprintf(w, "  %-10s %-26s %-8s %-8s\n", i18n.T("Lang"), i18n.T("Progress"), i18n.T("Missing"), i18n.T("Empty"))
		for _, s := range list {
			if !s.Exists {
				fmt.Fprintf(w, "  %-10s %s\n", s.Lang, i18n.T("no table"))
				continue
			}
			fmt.Fprintf(w, "  %-10s %s %-8d %-8d\n", s.Lang, progressBar(int(s.Percent), 20), s.Missing, s.Empty)
		}
	}

	seen := map[string]bool{}
	var langs []string
	for _, s := range stats {
		if !seen[s.Lang] {
			seen[s.Lang] = true
			langs = append(langs, s.Lang)
		}
	}
	if len(langs) > 0 {
		heading(w, i18n.T("Total"))
		for _, lang := range langs {
			fmt.Fprintf(w, "  %-10s %s  %s\n", lang, progressBar(int(languagePercent(stats, lang)), 20), langmeta.Resolve(lang).Name)
		}
	}
	fmt.Fprintln(w)
	if len(modules) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", i18n.T("No string tables found."))
	}
}
