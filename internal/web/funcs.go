package web

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/wayfare/internal/api/middleware"
	"github.com/mergestat/timediff"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Funcs returns the template helpers shared by all pages.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"csrfField":  CSRFField,
		"markdown":   Markdown,
		"relTime":    RelativeTime,
		"date":       FormatDate,
		"dateInput":  DateInput,
		"dateRange":  DateRange,
		"bytes":      humanize.IBytes,
		"comma":      humanize.Comma,
		"ago":        humanize.Time,
		"percent":    func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
		"initial":    Initial,
		"pluralize":  Pluralize,
		"hasPrefix":  strings.HasPrefix,
		"trimSpaces": strings.TrimSpace,
		"avatar":     func(string) string { return "" },
	}
}

// CSRFField returns the hidden form input carrying the CSRF token.
func CSRFField(token string) template.HTML {
	return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, //nolint:gosec
		middleware.CSRFFieldName, template.HTMLEscapeString(token)))
}

// Markdown renders user supplied markdown. Raw HTML in the input is not rendered.
func Markdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md)) //nolint:gosec
	}
	return template.HTML(buf.String()) //nolint:gosec
}

// RelativeTime formats t like "in 3 days" or "2 hours ago".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timediff.TimeDiff(t)
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// DateInput formats t for an <input type="date">.
func DateInput(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// DateRange formats the dates of a trip, collapsing the year when both dates share it.
func DateRange(start, end time.Time) string {
	switch {
	case start.IsZero() && end.IsZero():
		return "Dates to be decided"
	case end.IsZero() || end.Equal(start):
		return FormatDate(start)
	case start.IsZero():
		return "Until " + FormatDate(end)
	case start.Year() == end.Year():
		return start.Format("Jan 2") + " – " + FormatDate(end)
	}
	return FormatDate(start) + " – " + FormatDate(end)
}

// Initial returns the upper case first letter of s.
func Initial(s string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// Pluralize returns "1 activity" or "3 activities" style counts.
func Pluralize(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", n, plural)
}
