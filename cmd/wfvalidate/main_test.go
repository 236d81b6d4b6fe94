package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wfvalidate/output/report"
	"github.com/c360studio/wfvalidate/workflow/validation"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseWeights(t *testing.T) {
	w, err := parseWeights([]string{"completeness=0.4", " usability = 0.1 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"completeness": 0.4, "usability": 0.1}, w)

	w, err = parseWeights(nil)
	require.NoError(t, err)
	assert.Nil(t, w)

	_, err = parseWeights([]string{"completeness"})
	assert.Error(t, err)
	_, err = parseWeights([]string{"completeness=high"})
	assert.Error(t, err)
}

func TestValidateCommandJSON(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Demo\n\n## Usage\n\nRun it.\n"), 0644))

	out, err := execute(t, "validate", dir, "--format", "json")
	require.NoError(t, err, "a failing report is not a command error")

	r, err := report.FromJSON([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, dir, r.WorkflowDir)
	assert.NotEmpty(t, r.RunID)
	require.NotNil(t, r.Quality)
}

func TestValidateCommandOutputFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.md"), []byte("# Flow\n"), 0644))
	target := filepath.Join(t.TempDir(), "reports", "report.md")

	out, err := execute(t, "validate", dir, "--output", target, "--exclude", "drafts/**", "--weight", "completeness=0.5")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Workflow Validation Report")
	assert.NotContains(t, string(data), "\x1b[", "file output is never styled")
}

func TestValidateCommandErrors(t *testing.T) {
	isolate(t)

	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = execute(t, "validate", t.TempDir(), "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "validate", t.TempDir(), "--weight", "bogus")
	assert.Error(t, err)

	_, err = execute(t, "validate")
	assert.Error(t, err)
}

func TestValidateCommandUnreachableNATS(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Demo\n"), 0644))

	out, err := execute(t, "validate", dir, "--format", "json", "--nats-url", "nats://127.0.0.1:1")
	require.NoError(t, err)

	var r validation.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, dir, r.WorkflowDir)
}

func TestPluginsCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "plugins", "--json")
	require.NoError(t, err)

	var listing pluginListing
	require.NoError(t, json.Unmarshal([]byte(out), &listing))
	assert.Len(t, listing.Standard, 5)
	assert.Len(t, listing.Extended, 3)

	out, err = execute(t, "plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "FAMILY")
	assert.Contains(t, out, "standard")
	assert.Contains(t, out, "extended")

	sample := filepath.Join(t.TempDir(), "plugins.yaml")
	out, err = execute(t, "plugins", "--write-sample", sample)
	require.NoError(t, err)
	assert.Contains(t, out, sample)
	assert.FileExists(t, sample)
}

func TestConfigCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	path := filepath.Clean(out[:len(out)-1])
	assert.FileExists(t, path)

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "min_checkpoints: 2")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wfvalidate version "+Version)
}
