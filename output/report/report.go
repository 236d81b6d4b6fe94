// Package report renders validation reports as JSON or as a human-readable
// Markdown-style text report.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/c360studio/wfvalidate/workflow/validation"
)

// Format selects a rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// JSON encodes r as indented JSON. Non-ASCII text is kept as is.
func JSON(r *validation.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// FromJSON decodes a report produced by JSON.
func FromJSON(data []byte) (*validation.Report, error) {
	var r validation.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Options controls the text rendering.
type Options struct {
	// Styled enables terminal colors.
	Styled bool
}

// styles used when Options.Styled is set.
var (
	colorPass  = lipgloss.Color("#9ece6a")
	colorFail  = lipgloss.Color("#f7768e")
	colorWarn  = lipgloss.Color("#e0af68")
	colorTitle = lipgloss.Color("#7aa2f7")
	colorMuted = lipgloss.Color("#565f89")

	titleStyle    = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
	headingStyle  = lipgloss.NewStyle().Foreground(colorTitle)
	passStyle     = lipgloss.NewStyle().Foreground(colorPass).Bold(true)
	failStyle     = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	criticalStyle = lipgloss.NewStyle().Foreground(colorFail)
	warnStyle     = lipgloss.NewStyle().Foreground(colorWarn)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

// textWriter wraps a builder and applies styles only when enabled.
type textWriter struct {
	sb     strings.Builder
	styled bool
}

func (w *textWriter) style(s lipgloss.Style, text string) string {
	if !w.styled {
		return text
	}
	return s.Render(text)
}

func (w *textWriter) line(format string, args ...any) {
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *textWriter) heading(level int, title string) {
	st := headingStyle
	if level == 1 {
		st = titleStyle
	}
	w.line("%s", w.style(st, strings.Repeat("#", level)+" "+title))
	w.sb.WriteByte('\n')
}

func (w *textWriter) status(s validation.Status) string {
	if s == validation.StatusPass {
		return w.style(passStyle, string(s))
	}
	return w.style(failStyle, string(s))
}

// Text renders r as a Markdown-style report: summary, stage counts,
// dimension scores and every issue with its location.
func Text(r *validation.Report, opts Options) string {
	w := &textWriter{styled: opts.Styled}

	w.heading(1, "Workflow Validation Report")
	if r.WorkflowDir != "" {
		w.line("%s %s", w.style(mutedStyle, "Directory:"), r.WorkflowDir)
	}
	if r.RunID != "" {
		w.line("%s %s (%s)", w.style(mutedStyle, "Run:"), r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	w.sb.WriteByte('\n')

	w.heading(2, "Summary")
	grade := ""
	if r.Quality != nil {
		grade = " (" + r.Quality.Grade + ")"
	}
	w.line("- **Status**: %s", w.status(r.Summary.OverallStatus))
	w.line("- **Quality score**: %.1f/10.0%s", r.Summary.QualityScore, grade)
	w.line("- **Total issues**: %d", r.Summary.TotalIssues)
	w.line("- **Critical issues**: %d", r.Summary.CriticalIssues)
	w.sb.WriteByte('\n')

	w.heading(2, "Stages")
	for _, st := range []struct {
		title  string
		result validation.StageResult
	}{
		{"Syntax", r.Syntax},
		{"Logic", r.Logic},
		{"Dependencies", r.Dependencies},
	} {
		w.heading(3, st.title)
		w.line("- **Status**: %s", w.status(st.result.Status))
		w.line("- **Passed**: %d", st.result.Passed)
		w.line("- **Failed**: %d", st.result.Failed)
		w.sb.WriteByte('\n')
	}

	if r.Quality != nil {
		writeQuality(w, r)
	}

	issues := r.Issues()
	if len(issues) > 0 {
		w.heading(2, "Issues")
		for _, issue := range issues {
			label := w.style(warnStyle, issue.Type)
			if validation.IsCritical(issue.Type) {
				label = w.style(criticalStyle, issue.Type+" (critical)")
			}
			w.line("- **%s**: %s", label, issue.Message)
			if issue.File != "" {
				w.line("  - file: %s", issue.File)
			}
			if issue.Line != nil {
				w.line("  - line: %d", *issue.Line)
			}
		}
	}

	return w.sb.String()
}

func writeQuality(w *textWriter, r *validation.Report) {
	q := r.Quality
	w.heading(2, "Quality")
	for _, name := range sortedNames(q.DimensionScores) {
		suffix := ""
		for _, o := range q.Overridden {
			if o == name {
				suffix = " " + w.style(mutedStyle, "(overridden)")
			}
		}
		w.line("- **%s**: %.1f/10.0%s", name, q.DimensionScores[name], suffix)
	}
	w.sb.WriteByte('\n')

	if len(q.PluginScores) > 0 {
		w.heading(3, "Extended plugins")
		for _, name := range sortedNames(q.PluginScores) {
			w.line("- **%s**: %.1f/10.0", name, q.PluginScores[name])
		}
		w.sb.WriteByte('\n')
	}

	if len(q.Summary.TopRecommendations) > 0 {
		w.heading(3, "Recommendations")
		for _, rec := range q.Summary.TopRecommendations {
			w.line("- %s", rec)
		}
		w.sb.WriteByte('\n')
	}
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Write renders r in the given format to w.
func Write(out io.Writer, r *validation.Report, format Format, opts Options) error {
	var data []byte
	switch format {
	case FormatJSON:
		b, err := JSON(r)
		if err != nil {
			return err
		}
		data = b
	default:
		data = []byte(Text(r, opts))
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteFile renders r to path, creating parent directories. File output is
// never styled.
func WriteFile(path string, r *validation.Report, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := Write(f, r, format, Options{}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}
