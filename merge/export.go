package merge

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minios-linux/lokscan/diag"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatText     = "text"
)

// Formats lists the supported export formats.
var Formats = []string{FormatJSON, FormatMarkdown, FormatText}

func checkFormat(format string) error {
	switch format {
	case FormatJSON, FormatMarkdown, FormatText:
		return nil
	}
	return diag.Configf("--format", "unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ExportDiff writes d to w as json, md or text.
func ExportDiff(w io.Writer, d *DiffResult, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == FormatJSON {
		return writeJSON(w, struct {
			*DiffResult
			Summary map[string]int `json:"summary"`
		}{d, map[string]int{
			"only_in_source":    len(d.OnlyInSource),
			"only_in_target":    len(d.OnlyInTarget),
			"value_differences": len(d.ValueDifferences),
			"untranslated":      len(d.Untranslated),
		}})
	}

	var b strings.Builder
	if format == FormatMarkdown {
		fmt.Fprintf(&b, "# Localization diff: %s → %s\n\n", d.Source, d.Target)
		b.WriteString("| Type | Count |\n|------|-------|\n")
		fmt.Fprintf(&b, "| Missing in %s | %d |\n", d.Target, len(d.OnlyInSource))
		fmt.Fprintf(&b, "| Extra in %s | %d |\n", d.Target, len(d.OnlyInTarget))
		fmt.Fprintf(&b, "| Different values | %d |\n", len(d.ValueDifferences))
		fmt.Fprintf(&b, "| Untranslated | %d |\n", len(d.Untranslated))
		mdSection(&b, "Missing in "+d.Target, d.OnlyInSource, func(e DiffEntry) string { return e.Source })
		mdSection(&b, "Extra in "+d.Target, d.OnlyInTarget, func(e DiffEntry) string { return e.Target })
		mdSection(&b, "Untranslated", d.Untranslated, func(e DiffEntry) string { return e.Source })
	} else {
		fmt.Fprintf(&b, "Localization diff: %s -> %s\n", d.Source, d.Target)
		b.WriteString(strings.Repeat("=", 50) + "\n")
		fmt.Fprintf(&b, "Missing in %s: %d\n", d.Target, len(d.OnlyInSource))
		fmt.Fprintf(&b, "Extra in %s: %d\n", d.Target, len(d.OnlyInTarget))
		fmt.Fprintf(&b, "Different values: %d\n", len(d.ValueDifferences))
		fmt.Fprintf(&b, "Untranslated: %d\n", len(d.Untranslated))
		textSection(&b, "Missing in "+d.Target, d.OnlyInSource)
		textSection(&b, "Extra in "+d.Target, d.OnlyInTarget)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func mdSection(b *strings.Builder, title string, list []DiffEntry, value func(DiffEntry) string) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, e := range list {
		fmt.Fprintf(b, "- `%s` (%s): %q\n", e.Key, e.Module, value(e))
	}
}

func textSection(b *strings.Builder, title string, list []DiffEntry) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(b, "\n--- %s ---\n", title)
	for _, e := range list {
		fmt.Fprintf(b, "  %s/%s\n", e.Module, e.Key)
	}
}

// ExportSync writes s to w as json, md or text.
func ExportSync(w io.Writer, s *SyncSummary, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	added, translated, failed := s.Totals()
	if format == FormatJSON {
		return writeJSON(w, struct {
			*SyncSummary
			Summary map[string]int `json:"summary"`
		}{s, map[string]int{
			"languages":  len(s.Languages),
			"added":      added,
			"translated": translated,
			"failed":     failed,
		}})
	}

	var b strings.Builder
	if format == FormatMarkdown {
		fmt.Fprintf(&b, "# Localization sync (%s)\n\n", s.Mode)
		fmt.Fprintf(&b, "Source language: `%s`\n\n", s.Source)
		b.WriteString("| Language | Status | Added | Translated | Failed | Pruned |\n")
		b.WriteString("|----------|--------|-------|------------|--------|--------|\n")
		for _, l := range s.Languages {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |\n", l.Lang, l.Status, len(l.Added), l.Translated, len(l.Failed), len(l.Pruned))
		}
	} else {
		fmt.Fprintf(&b, "Localization sync (%s), source %s\n", s.Mode, s.Source)
		b.WriteString(strings.Repeat("=", 50) + "\n")
		for _, l := range s.Languages {
			fmt.Fprintf(&b, "%s: %s, +%d keys, %d translated, %d failed, %d pruned\n",
				l.Lang, l.Status, len(l.Added), l.Translated, len(l.Failed), len(l.Pruned))
		}
		fmt.Fprintf(&b, "Total: %d added, %d translated, %d failed\n", added, translated, failed)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
