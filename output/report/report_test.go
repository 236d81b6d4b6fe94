package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wfvalidate/quality"
	"github.com/c360studio/wfvalidate/workflow/validation"
)

func line(n int) *int { return &n }

func sampleReport() *validation.Report {
	return &validation.Report{
		RunID:       "0d7d3c1e-6d0e-4f5e-9a55-7c3f2b1e9c10",
		WorkflowDir: "/work/flows/数据整理",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Summary: validation.Summary{
			OverallStatus:  validation.StatusFail,
			TotalIssues:    2,
			CriticalIssues: 1,
			QualityScore:   7.123456789,
		},
		Syntax: validation.StageResult{
			Status: validation.StatusFail, TotalChecks: 3, Passed: 2, Failed: 1,
			Issues: []validation.Issue{
				{File: "tools/a.py", Line: line(3), Type: validation.IssuePythonSyntax, Message: "Python syntax error: invalid syntax"},
			},
		},
		Logic: validation.StageResult{
			Status: validation.StatusPass, TotalChecks: 1, Passed: 1,
			Issues: []validation.Issue{
				{File: "README.md", Type: validation.IssueFewCheckpoints, Message: "found 1 confirmation checkpoints, expected at least 2"},
			},
		},
		Dependencies: validation.StageResult{Status: validation.StatusPass, Issues: []validation.Issue{}},
		Quality: &quality.Assessment{
			OverallScore:    7.123456789,
			Grade:           quality.GradeModerate,
			DimensionScores: map[string]float64{"usability": 6, "completeness": 8.5},
			PluginScores:    map[string]float64{"security": 4},
			Overridden:      []string{"usability"},
			Summary:         quality.Summary{TopRecommendations: []string{"添加使用示例"}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestJSON_RoundTrip(t *testing.T) {
	r := sampleReport()
	data, err := JSON(r)
	require.NoError(t, err)

	assert.Contains(t, string(data), "数据整理")
	assert.Contains(t, string(data), "\n  \"summary\"")

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, r.Summary.QualityScore, back.Summary.QualityScore)
	assert.Equal(t, r.Issues(), back.Issues())
	assert.True(t, r.GeneratedAt.Equal(back.GeneratedAt))
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{"))
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	out := Text(sampleReport(), Options{})

	for _, want := range []string{
		"# Workflow Validation Report",
		"- **Status**: FAIL",
		"- **Quality score**: 7.1/10.0 (moderate)",
		"- **Critical issues**: 1",
		"### Syntax",
		"- **Failed**: 1",
		"- **completeness**: 8.5/10.0",
		"- **usability**: 6.0/10.0 (overridden)",
		"- **security**: 4.0/10.0",
		"- 添加使用示例",
		"- **python_syntax (critical)**: Python syntax error: invalid syntax",
		"  - file: tools/a.py",
		"  - line: 3",
		"- **insufficient_checkpoints**: found 1",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "completeness"), strings.Index(out, "usability**"))
	assert.NotContains(t, out, "\x1b[")
}

func TestText_NoIssuesNoQuality(t *testing.T) {
	r := &validation.Report{Summary: validation.Summary{OverallStatus: validation.StatusPass}}
	out := Text(r, Options{})
	assert.NotContains(t, out, "## Issues")
	assert.NotContains(t, out, "## Quality")
	assert.Contains(t, out, "- **Status**: PASS")
}

func TestWriteAndWriteFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatJSON, Options{}))
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	p := filepath.Join(t.TempDir(), "out", "report.md")
	require.NoError(t, WriteFile(p, sampleReport(), FormatText))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Workflow Validation Report")
}
