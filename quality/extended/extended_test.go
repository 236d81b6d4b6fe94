package extended

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wfvalidate/quality"
	"github.com/c360studio/wfvalidate/source"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestSecurity(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, ".gitignore", "*.pyc\n")
		writeFile(t, root, "config.yaml", "security:\n  strict: true\n")
		writeFile(t, root, "tool.py", "def run(x):\n    assert isinstance(x, str)\n    password = os.environ['PW']\n")
		writeFile(t, root, "requirements.txt", "requests==2.31.0\npyyaml==6.0\nrich==13.7.0\n")

		score, err := NewSecurity(nil, nil).Assess(root)
		require.NoError(t, err)
		assert.InDelta(t, 10.0, score, 1e-9)
	})

	t.Run("hard-coded secret and loose pins", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "tool.py", "API_KEY = \"abc123\"\n")
		writeFile(t, root, "requirements.txt", "requests\npyyaml==6.0\n")

		score, err := NewSecurity(nil, nil).Assess(root)
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
	})

	t.Run("no requirements passes dependency check", func(t *testing.T) {
		score, err := NewSecurity(nil, nil).Assess(t.TempDir())
		require.NoError(t, err)
		// no secrets + no requirements.txt
		assert.InDelta(t, 4.0, score, 1e-9)
	})
}

func TestPerformance(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "import asyncio\n")
	score, err := NewPerformance(nil, nil).Assess(root)
	require.NoError(t, err)
	// asyncio counts as optimisation and concurrency.
	assert.InDelta(t, 5.0, score, 1e-9)

	writeFile(t, root, "b.py", "from functools import lru_cache\nwith open('x') as f:\n    pass\n")
	score, err = NewPerformance(nil, nil).Assess(root)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, score, 1e-9)
}

func TestTestCoverage(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  float64
	}{
		{"empty directory counts full ratio", nil, 2.5},
		{"tests with framework and CI", map[string]string{
			"tool.py":                  "x = 1\n",
			"tests/check_tool.py":      "import pytest\n",
			".github/workflows/ci.yml": "on: push\n",
		}, 10.0},
		{"half ratio", map[string]string{
			"a.py":      "x = 1\n",
			"b.py":      "y = 2\n",
			"test_a.py": "assert True\n",
		}, 3.75},
		{"low ratio", map[string]string{
			"a.py":      "x = 1\n",
			"b.py":      "y = 2\n",
			"c.py":      "z = 3\n",
			"d_test.py": "import unittest\n",
		}, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for rel, content := range tt.files {
				writeFile(t, root, rel, content)
			}
			score, err := NewTestCoverage(nil, nil).Assess(root)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, score, 1e-9)
		})
	}
}

func TestPlugins_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	for _, p := range []Plugin{NewSecurity(nil, nil), NewPerformance(nil, nil), NewTestCoverage(nil, nil)} {
		_, err := p.Assess(missing)
		assert.Error(t, err, p.Name())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg := LoadConfig(filepath.Join(dir, "nope.yaml"), nil)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("unparseable file uses defaults", func(t *testing.T) {
		p := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(p, []byte("enabled_plugins: [unclosed\n"), 0644))
		assert.Equal(t, DefaultConfig(), LoadConfig(p, nil))
	})

	t.Run("valid file", func(t *testing.T) {
		p := filepath.Join(dir, "plugins.yaml")
		content := "enabled_plugins: [security]\n" +
			"plugin_weights:\n  security: 2.0\n" +
			"dimension_overrides:\n  maintainability:\n    enabled: true\n    plugins: [security]\n    weights: [1.0]\n"
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))

		cfg := LoadConfig(p, nil)
		assert.Equal(t, []string{"security"}, cfg.EnabledPlugins)
		assert.Equal(t, 2.0, cfg.PluginWeights["security"])
		assert.True(t, cfg.DimensionOverrides["maintainability"].Enabled)
	})

	t.Run("sample round trip", func(t *testing.T) {
		p := filepath.Join(dir, "sample", "plugins.yaml")
		require.NoError(t, SampleConfig().SaveToFile(p))
		cfg := LoadConfig(p, nil)
		assert.Equal(t, 1.5, cfg.PluginWeights["security"])
		assert.Equal(t, []float64{0.6, 0.4}, cfg.DimensionOverrides["maintainability"].Weights)
		assert.Equal(t, 0.7, cfg.PluginSettings["test_coverage"]["minimum_coverage"])
	})
}

type fixedPlugin struct {
	name  string
	score float64
	err   error
}

func (f fixedPlugin) Name() string                   { return f.name }
func (f fixedPlugin) Version() string                { return "2.0.0" }
func (f fixedPlugin) Description() string            { return "fixed" }
func (f fixedPlugin) Weight() float64                { return 1.0 }
func (f fixedPlugin) Assess(string) (float64, error) { return f.score, f.err }

func TestManager_AssessAllAndWeightedScore(t *testing.T) {
	cfg := &Config{PluginWeights: map[string]float64{"a": 3}}
	m := NewManager(cfg, nil, nil)
	assert.Empty(t, m.Plugins())

	m.Register(fixedPlugin{name: "a", score: 15})
	m.Register(fixedPlugin{name: "b", score: 4})
	m.Register(fixedPlugin{name: "c", score: 9, err: errors.New("broken")})

	scores := m.AssessAll(t.TempDir())
	assert.Equal(t, map[string]float64{"a": 10, "b": 4, "c": 0}, scores)

	// (10*3 + 4*1 + 0*1) / 5
	assert.InDelta(t, 6.8, m.WeightedScore(scores), 1e-9)

	infos := m.Plugins()
	require.Len(t, infos, 3)
	assert.Equal(t, 3.0, infos[0].Weight)
	assert.Equal(t, 1.0, infos[1].Weight)
}

func TestManager_DefaultRegistersBuiltins(t *testing.T) {
	m := NewManager(nil, source.NewExcluder(nil, nil), nil)
	var names []string
	for _, info := range m.Plugins() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"security", "performance", "test_coverage"}, names)
}

func TestManager_ApplyOverrides(t *testing.T) {
	cfg := &Config{DimensionOverrides: map[string]DimensionOverride{
		"maintainability": {Enabled: true, Plugins: []string{"a", "b"}, Weights: []float64{0.6, 0.4}},
		"usability":       {Enabled: true, Plugins: []string{"a", "b"}, Weights: []float64{1}},
		"documentation":   {Enabled: false, Plugins: []string{"a"}, Weights: []float64{1}},
		"unknown":         {Enabled: true, Plugins: []string{"a"}, Weights: []float64{1}},
		"extensibility":   {Enabled: true, Plugins: []string{"missing"}, Weights: []float64{1}},
	}}
	m := NewManager(cfg, nil, nil)

	dims := map[string]float64{"maintainability": 1, "usability": 2, "documentation": 3, "extensibility": 4}
	overridden := m.ApplyOverrides(dims, map[string]float64{"a": 10, "b": 5})

	assert.Equal(t, []string{"maintainability"}, overridden)
	assert.InDelta(t, 8.0, dims["maintainability"], 1e-9)
	assert.Equal(t, 2.0, dims["usability"])
	assert.Equal(t, 3.0, dims["documentation"])
	assert.Equal(t, 4.0, dims["extensibility"])
	assert.NotContains(t, dims, "unknown")
}

func TestManager_OverlaysQualityManager(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.pyc\n")

	cfg := DefaultConfig()
	cfg.DimensionOverrides = map[string]DimensionOverride{
		"maintainability": {Enabled: true, Plugins: []string{"security"}, Weights: []float64{1}},
	}
	ext := NewManager(cfg, nil, nil)

	var overlay quality.Overlay = ext
	a, err := quality.NewManager(quality.WithOverlay(overlay)).AssessQuality(root)
	require.NoError(t, err)

	// no secrets, .gitignore, no requirements.txt
	assert.InDelta(t, 6.0, a.DimensionScores["maintainability"], 1e-9)
	assert.Equal(t, []string{"maintainability"}, a.Overridden)
	assert.Contains(t, a.PluginScores, "security")
	assert.Contains(t, a.PluginScores, "test_coverage")
	assert.InDelta(t, 1.5, a.OverallScore, 1e-9)
}
