package collect

import (
	"fmt"
	htmltpl "html/template"
	"strings"
	"text/template"
	"time"
)

// reportData feeds both report templates. Times are preformatted JST
// strings so the templates stay free of time logic.
type reportData struct {
	GeneratedAt     string
	GeneratedAtFull string
	Papers          []Paper
	News            []NewsItem
}

var reportFuncs = map[string]any{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"stars": func(n int) string {
		return strings.Repeat("⭐", n)
	},
	"first": func(n int, s []string) []string {
		if len(s) <= n {
			return s
		}
		return s[:n]
	},
}

var (
	markdownTmpl = template.Must(template.New("markdown").Funcs(template.FuncMap(reportFuncs)).Parse(markdownReport))
	htmlTmpl     = htmltpl.Must(htmltpl.New("html").Funcs(htmltpl.FuncMap(reportFuncs)).Parse(htmlReport))
)

// renderMarkdown renders the Markdown brief, which is also what Discord
// receives.
func renderMarkdown(data reportData) (string, error) {
	var b strings.Builder
	if err := markdownTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("collect: render markdown report: %w", err)
	}
	return b.String(), nil
}

// renderHTML renders the HTML brief used as the email's rich part.
func renderHTML(data reportData) (string, error) {
	var b strings.Builder
	if err := htmlTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("collect: render html report: %w", err)
	}
	return b.String(), nil
}

// reportFilenames returns the Markdown and HTML file names for a brief
// generated at now, which must already be in JST.
func reportFilenames(now time.Time) (md, html string) {
	ts := now.Format("20060102_1504")
	return "report_" + ts + "_JST.md", "report_" + ts + "_JST.html"
}
