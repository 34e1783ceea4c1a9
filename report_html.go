package main

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/minios-linux/lokscan/i18n"
	"github.com/minios-linux/lokscan/keytable"
	"github.com/minios-linux/lokscan/langmeta"
	"github.com/minios-linux/lokscan/reconcile"
)

// languageRow is the completion of one language over all modules.
type languageRow struct {
	Lang    string
	Label   string
	Total   int
	Missing int
	Percent float64
}

// htmlReport is the data behind the HTML dashboard.
type htmlReport struct {
	*report
	Lang       string
	Languages  []languageRow
	Hardcoded  []reconcile.Hardcoded
	Missing    []reconcile.MissingKey
	Dead       []reconcile.DeadKey
	Unmatched  []reconcile.DynamicKey
	Duplicates []reconcile.Duplicate
	More       map[string]int
}

// languageRows totals tableStats per language, in index order.
func languageRows(idx *keytable.Index) []languageRow {
	langs := mergeLanguages(nil, idx.Languages(), idx.Primary())
	stats := tableStats(idx, langs)
	var out []languageRow
	for _, lang := range langs {
		row := languageRow{Lang: lang, Label: langmeta.Label(lang)}
		done := 0
		for _, s := range stats {
			if s.Lang == lang {
				row.Total += s.Total
				row.Missing += s.Missing
				done += s.Done
			}
		}
		row.Percent = percent(done, row.Total)
		out = append(out, row)
	}
	return out
}

func writeReportHTML(w io.Writer, rep *report, limit int) error {
	data := htmlReport{
		report:    rep,
		Lang:      i18n.Lang(),
		Languages: rep.languages,
		Unmatched: rep.Result.UnmatchedDynamic(),
		More:      map[string]int{},
	}
	data.Hardcoded, data.More["hardcoded"] = clip(byPriority(rep.Result.Hardcoded), limit)
	data.Missing, data.More["missing"] = clip(rep.Result.MissingReferenced(), limit)
	data.Dead, data.More["dead"] = clip(rep.Result.Dead, limit)
	data.Duplicates, data.More["duplicates"] = clip(rep.Result.Duplicates, limit)
	return reportTemplate.Execute(w, data)
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"T":     i18n.T,
	"F":     func(format string, n int) string { return i18n.F(format, n) },
	"join":  strings.Join,
	"grade": func(g string) string { return strings.ToLower(g) },
	"width": func(pct float64) template.CSS { return template.CSS(fmt.Sprintf("%.0f%%", pct)) },
}).Parse(reportHTML))

const reportHTML = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>lokscan · {{T "Localization Health"}}</title>
<style>
  :root { --ok: #2e9e5b; --warn: #d39b1c; --bad: #c8423b; --muted: #6b7280; --bg: #f6f7f9; --card: #fff; }
  @media (prefers-color-scheme: dark) { :root { --bg: #15171b; --card: #1f2228; --muted: #9aa1ad; } body { color: #e6e8eb; } }
  body { font: 14px/1.5 -apple-system, "Segoe UI", Roboto, sans-serif; background: var(--bg); margin: 0; }
  .container { max-width: 1100px; margin: 0 auto; padding: 24px; }
  header p { color: var(--muted); margin: 4px 0 0; }
  .card { background: var(--card); border-radius: 10px; padding: 16px 20px; margin: 16px 0; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
  .health { display: flex; gap: 32px; align-items: center; flex-wrap: wrap; }
  .score { width: 120px; height: 120px; border-radius: 50%; border: 8px solid var(--muted); display: flex; flex-direction: column; align-items: center; justify-content: center; }
  .score b { font-size: 32px; }
  .grade-a, .grade-b { border-color: var(--ok); }
  .grade-c, .grade-d { border-color: var(--warn); }
  .grade-f { border-color: var(--bad); }
  .stats { display: grid; grid-template-columns: repeat(auto-fill, minmax(140px, 1fr)); gap: 12px; flex: 1; }
  .stat { border-radius: 8px; padding: 8px 12px; background: var(--bg); }
  .stat b { display: block; font-size: 20px; }
  summary { cursor: pointer; font-weight: 600; font-size: 16px; }
  .badge { background: var(--bg); border-radius: 10px; padding: 0 8px; margin-left: 6px; font-size: 12px; }
  table { width: 100%; border-collapse: collapse; margin-top: 12px; }
  th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid var(--bg); vertical-align: top; }
  code { font-family: ui-monospace, Menlo, monospace; font-size: 12px; }
  .bar { background: var(--bg); border-radius: 4px; height: 8px; min-width: 120px; }
  .bar span { display: block; height: 8px; border-radius: 4px; background: var(--ok); }
  .more { color: var(--muted); font-style: italic; }
  .p9, .p10 { color: var(--bad); font-weight: 600; }
  footer { color: var(--muted); text-align: center; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<header>
  <h1>{{T "Localization Health"}}</h1>
  <p><code>{{.Root}}</code> · {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
</header>

<section class="card health">
  <div class="score grade-{{grade .Health.Grade}}"><b>{{printf "%.1f" .Health.Score}}</b><span>{{.Health.Grade}}</span></div>
  <div class="stats">
    <div class="stat"><b>{{printf "%.1f%%" .Health.LocalizationRate}}</b>{{T "Localization rate"}}</div>
    <div class="stat"><b>{{printf "%.1f%%" .Health.ConsistencyRate}}</b>{{T "Consistency rate"}}</div>
    <div class="stat"><b>{{.Health.Localized}}</b>{{T "Localized calls"}}</div>
    <div class="stat"><b>{{.Health.Hardcoded}}</b>{{T "Hardcoded strings"}}</div>
    <div class="stat"><b>{{.Health.Missing}}</b>{{T "Missing keys"}}</div>
    <div class="stat"><b>{{.Health.Dead}}</b>{{T "Unused keys"}}</div>
    <div class="stat"><b>{{.Health.Duplicates}}</b>{{T "Duplicate strings"}}</div>
    {{- with .Trend}}
    <div class="stat"><b>{{printf "%+.1f" .Delta.Score}}</b>{{T "since"}} {{.Since.Format "2006-01-02"}}</div>
    {{- end}}
  </div>
</section>

{{- if .Languages}}
<section class="card"><details open>
  <summary>{{T "Languages:"}}<span class="badge">{{len .Languages}}</span></summary>
  <table>
    <tr><th></th><th>{{T "Missing keys"}}</th><th>%</th><th></th></tr>
    {{- range .Languages}}
    <tr><td>{{.Label}}</td><td>{{.Missing}} / {{.Total}}</td><td>{{printf "%.1f" .Percent}}</td>
      <td><div class="bar"><span style="width: {{width .Percent}}"></span></div></td></tr>
    {{- end}}
  </table>
</details></section>
{{- end}}

{{- if .Hardcoded}}
<section class="card"><details open>
  <summary>{{T "Hardcoded Strings"}}<span class="badge">{{len .Result.Hardcoded}}</span></summary>
  <table>
    <tr><th>{{T "Priority"}}</th><th>{{T "Location"}}</th><th>{{T "Text"}}</th><th>{{T "Suggested key"}}</th></tr>
    {{- range .Hardcoded}}
    <tr><td class="p{{.Priority}}">{{.Priority}}</td><td><code>{{.File}}:{{.Line}}</code></td><td>{{.Text}}</td><td><code>{{.SuggestedKey}}</code></td></tr>
    {{- end}}
  </table>
  {{- with index .More "hardcoded"}}<p class="more">{{F "and %d more" .}}</p>{{end}}
</details></section>
{{- end}}

{{- if .Missing}}
<section class="card"><details open>
  <summary>{{T "Missing Keys"}}<span class="badge">{{.Health.Missing}}</span></summary>
  <table>
    {{- range .Missing}}
    <tr><td><code>{{.Key}}</code></td><td>{{.Module}}/{{.Lang}}</td><td>{{join .Files ", "}}</td></tr>
    {{- end}}
  </table>
  {{- with index .More "missing"}}<p class="more">{{F "and %d more" .}}</p>{{end}}
</details></section>
{{- end}}

{{- if .Dead}}
<section class="card"><details>
  <summary>{{T "Unused Keys"}}<span class="badge">{{len .Result.Dead}}</span></summary>
  <table>
    {{- range .Dead}}
    <tr><td><code>{{.Key}}</code></td><td>{{.Module}}</td></tr>
    {{- end}}
  </table>
  {{- with index .More "dead"}}<p class="more">{{F "and %d more" .}}</p>{{end}}
</details></section>
{{- end}}

{{- if .Unmatched}}
<section class="card"><details>
  <summary>{{T "Unmatched Dynamic Keys"}}<span class="badge">{{len .Unmatched}}</span></summary>
  <table>
    {{- range .Unmatched}}
    <tr><td><code>{{.Pattern}}</code></td><td>{{.Module}}</td><td>{{join .Files ", "}}</td></tr>
    {{- end}}
  </table>
</details></section>
{{- end}}

{{- if .Duplicates}}
<section class="card"><details>
  <summary>{{T "Duplicate Strings"}}<span class="badge">{{len .Result.Duplicates}}</span></summary>
  <table>
    {{- range .Duplicates}}
    <tr><td>{{.Text}}</td><td>{{len .Locations}}</td><td>{{range $i, $l := .Locations}}{{if $i}}, {{end}}<code>{{$l.File}}:{{$l.Line}}</code>{{end}}</td></tr>
    {{- end}}
  </table>
  {{- with index .More "duplicates"}}<p class="more">{{F "and %d more" .}}</p>{{end}}
</details></section>
{{- end}}

<section class="card">
  <h2>{{T "Recommendations"}}</h2>
  <ul>
    {{- range .Recommendations}}
    <li>{{.Text}}</li>
    {{- end}}
  </ul>
</section>

<footer>lokscan</footer>
</div>
</body>
</html>
`
