package quality

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wfvalidate/source"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

const fullTemplate = "# Demo Workflow\n\n" +
	"Last Updated: 2025-01-01, version 1.0\n\n" +
	"## 目标\n\nShip the demo.\n\n" +
	"## 使用指导\n\nRun the tool:\n\n```bash\npython tools/helper.py\n```\n\n" +
	"## 步骤\n\nFollow each step.\n\n" +
	"## 配置\n\nEdit config.yaml.\n\n" +
	"## FAQ\n\nOn 错误 see the logs.\n"

const fullReadme = "# Demo\n\nA demo workflow.\n\nIt has several lines.\n\nUpdated: 2025-02-03\n\nSee the template.\n"

const helperPy = `"""Helper tools for the demo workflow."""
# Registry of plugin hooks.
import logging

logger = logging.getLogger(__name__)
__version__ = "1.0.0"


class Base:
    """Base step."""

    def run(self):
        # Run the step.
        logger.info("run")


class Step(Base):
    @property
    def name(self):
        return "step"
`

const testHelperPy = `"""Tests for the helper."""
import unittest


class TestStep(unittest.TestCase):
    def test_name(self):
        # The name is fixed.
        self.assertEqual("step", "step")
`

// fullWorkflow builds a directory that satisfies every standard signal.
func fullWorkflow(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "demo_template.md", fullTemplate)
	writeFile(t, root, "README.md", fullReadme)
	writeFile(t, root, "docs/guide.md", "# Guide\n\nUpdated: 2025-03-04\n")
	writeFile(t, root, "templates/step.md", "# Step\n\n2025-03-04\n")
	writeFile(t, root, "tools/helper.py", helperPy)
	writeFile(t, root, "tools/test_helper.py", testHelperPy)
	writeFile(t, root, "config.yaml", "name: demo\n")
	return root
}

func TestStandardPlugins_FullWorkflowScoresMax(t *testing.T) {
	root := fullWorkflow(t)

	for _, p := range StandardPlugins(nil, nil) {
		t.Run(p.Name(), func(t *testing.T) {
			d, err := p.AssessDetails(root)
			require.NoError(t, err)
			assert.InDelta(t, 10.0, d.Score, 0.01, "failed checks: %v", d.FailedChecks)
			assert.Empty(t, d.FailedChecks)
			assert.Empty(t, d.Recommendations)
		})
	}
}

func TestStandardPlugins_EmptyDirectoryScoresZero(t *testing.T) {
	root := t.TempDir()

	for _, p := range StandardPlugins(nil, nil) {
		t.Run(p.Name(), func(t *testing.T) {
			score, err := p.Assess(root)
			require.NoError(t, err)
			assert.Equal(t, 0.0, score)

			d, err := p.AssessDetails(root)
			require.NoError(t, err)
			assert.NotEmpty(t, d.FailedChecks)
			assert.NotEmpty(t, d.Recommendations)
		})
	}
}

func TestStandardPlugins_InvalidDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	for _, p := range StandardPlugins(nil, nil) {
		t.Run(p.Name(), func(t *testing.T) {
			score, err := p.Assess(missing)
			require.NoError(t, err)
			assert.Equal(t, 0.0, score)

			d, err := p.AssessDetails(missing)
			require.NoError(t, err)
			assert.Equal(t, []string{invalidDirCheck}, d.FailedChecks)
			assert.Empty(t, d.PassedChecks)
		})
	}
}

func TestCompleteness_PartialDirectoriesAndExclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# Readme\n")
	writeFile(t, root, "docs/a.md", "# A\n")
	writeFile(t, root, "temp/test_skip.py", "x = 1\n")

	p := NewCompleteness(source.NewExcluder(nil, nil), nil)
	d, err := p.AssessDetails(root)
	require.NoError(t, err)

	// README 1.5 + one of three core directories 0.5.
	assert.InDelta(t, 2.0, d.Score, 1e-9)
	assert.Contains(t, d.FailedChecks, "test files missing")
	assert.Contains(t, d.FailedChecks, "automation scripts missing")
	assert.Contains(t, d.FailedChecks, "core directories missing: templates, tools")
}

func TestExtensibility_ConfigDirectory(t *testing.T) {
	tests := []struct {
		name string
		dirs []string
		want bool
	}{
		{"configs dir", []string{"configs/settings.txt"}, true},
		{"nested config dir", []string{"deploy/app_config/values.txt"}, true},
		{"no config", []string{"notes/settings.txt"}, false},
		{"excluded config dir", []string{"temp/config/values.txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, rel := range tt.dirs {
				writeFile(t, root, rel, "x\n")
			}

			d, err := NewExtensibility(source.NewExcluder(nil, nil), nil).AssessDetails(root)
			require.NoError(t, err)
			if tt.want {
				assert.Contains(t, d.PassedChecks, "configuration files present")
			} else {
				assert.Contains(t, d.FailedChecks, "configuration files missing")
			}
		})
	}

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "configs"), 0755))
	d, err := NewExtensibility(nil, nil).AssessDetails(root)
	require.NoError(t, err)
	assert.Contains(t, d.PassedChecks, "configuration files present", "an empty configs directory counts")
}

func TestMaintainability_GradedChecks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tool.py", "class Thing:\n    pass\n")

	d, err := NewMaintainability(nil, nil).AssessDetails(root)
	require.NoError(t, err)

	// class definition only; no comments, no version, no logging.
	assert.InDelta(t, 1.25, d.Score, 1e-9)
	assert.Len(t, d.FailedChecks, 4)
	assert.Len(t, d.Recommendations, 4)
}

func TestObjectOrientedScore(t *testing.T) {
	tests := []struct {
		name string
		code string
		want float64
	}{
		{"none", "x = 1\n", 0},
		{"class", "class A:\n    x = 1\n", 1.25},
		{"inheritance and methods", "class A(B):\n    def f(self):\n        pass\n", 2.25},
		{"all signals", "class A(B):\n    @staticmethod\n    def f():\n        pass\n", 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, objectOrientedScore(tt.code), 1e-9)
		})
	}
}

func TestDocumentation_FreshnessRatio(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "Last Updated: soon\n")
	writeFile(t, root, "b.md", "nothing\n")
	writeFile(t, root, "c.md", "nothing\n")
	writeFile(t, root, "d.md", "nothing\n")

	d, err := NewDocumentation(nil, nil).AssessDetails(root)
	require.NoError(t, err)
	assert.Contains(t, d.FailedChecks, "documents lack update dates")

	writeFile(t, root, "b.md", "edited 2024-05-06\n")
	d, err = NewDocumentation(nil, nil).AssessDetails(root)
	require.NoError(t, err)
	assert.Contains(t, d.PassedChecks, "documents carry update dates")
}

func TestManager_EmptyDirectory(t *testing.T) {
	m := NewManager()
	a, err := m.AssessQuality(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0.0, a.OverallScore)
	assert.Equal(t, GradeNeedsImprovement, a.Grade)
	assert.Len(t, a.DimensionScores, 5)
	assert.LessOrEqual(t, len(a.Summary.TopRecommendations), 5)
	assert.Equal(t, 0, a.Summary.PassedChecks)
	assert.Equal(t, "completeness", a.Summary.BestDimension)
	assert.Equal(t, "completeness", a.Summary.WorstDimension)
}

func TestManager_FullWorkflowIsExcellent(t *testing.T) {
	m := NewManager()
	a, err := m.AssessQuality(fullWorkflow(t))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, a.OverallScore, 9.5)
	assert.LessOrEqual(t, a.OverallScore, 10.0)
	assert.Equal(t, GradeExcellent, a.Grade)
	assert.Empty(t, a.Summary.TopRecommendations)
	assert.Equal(t, a.Summary.TotalChecks, a.Summary.PassedChecks)
}

func TestManager_ReadmeOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# Title\n\nline one\nline two\nline three\nline four\nline five\n")

	a, err := NewManager().AssessQuality(root)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, a.DimensionScores["completeness"], 1e-9)
	assert.Equal(t, 0.0, a.DimensionScores["usability"])
	assert.Contains(t, a.PluginDetails["completeness"].PassedChecks, "README present")
	assert.Equal(t, GradeNeedsImprovement, a.Grade)
	assert.Less(t, a.OverallScore, 2.0)
}

func TestManager_RegistrationOrderDoesNotChangeScore(t *testing.T) {
	root := fullWorkflow(t)
	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))
	writeFile(t, root, "tools/plain.py", "x = 1\ny = 2\nz = 3\n")

	forward := NewManager()
	reversed := NewManager()
	plugins := StandardPlugins(nil, nil)
	for _, p := range plugins {
		reversed.Unregister(p.Name())
	}
	for i := len(plugins) - 1; i >= 0; i-- {
		reversed.Register(plugins[i])
	}

	a1, err := forward.AssessQuality(root)
	require.NoError(t, err)
	a2, err := reversed.AssessQuality(root)
	require.NoError(t, err)

	assert.Equal(t, a1.OverallScore, a2.OverallScore)
	assert.Equal(t, "extensibility", reversed.Plugins()[0].Name)
}

type stubPlugin struct {
	name  string
	score float64
	err   error
	panic bool
}

func (s *stubPlugin) Name() string        { return s.name }
func (s *stubPlugin) Version() string     { return "0.1.0" }
func (s *stubPlugin) Description() string { return "stub" }
func (s *stubPlugin) MaxScore() float64   { return 10 }
func (s *stubPlugin) WeightHint() float64 { return 0.5 }
func (s *stubPlugin) Assess(dir string) (float64, error) {
	d, err := s.AssessDetails(dir)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}
func (s *stubPlugin) AssessDetails(string) (*Detail, error) {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Detail{Score: s.score, PassedChecks: []string{"ok"}, Recommendations: []string{"dropped"}}, nil
}

// skewedPlugin reports a different score from Assess than from AssessDetails.
type skewedPlugin struct {
	stubPlugin
}

func (s *skewedPlugin) Assess(string) (float64, error) { return 1, nil }

func TestManager_DetailScoreIsAuthoritative(t *testing.T) {
	m := NewManager()
	m.Register(&skewedPlugin{stubPlugin{name: "usability", score: 8}})

	a, err := m.AssessQuality(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 8.0, a.DimensionScores["usability"])
	assert.Equal(t, 8.0, a.PluginDetails["usability"].Score)
}

func TestStandardPlugins_AssessMatchesDetails(t *testing.T) {
	partial := t.TempDir()
	writeFile(t, partial, "README.md", "# Demo\n\nShort.\n")
	writeFile(t, partial, "tools/plain.py", "x = 1\n")

	for _, root := range []string{fullWorkflow(t), partial, t.TempDir()} {
		for _, p := range StandardPlugins(nil, nil) {
			score, err := p.Assess(root)
			require.NoError(t, err)
			d, err := p.AssessDetails(root)
			require.NoError(t, err)
			assert.Equal(t, d.Score, score, p.Name())
		}
	}
}

func TestManager_PluginFailuresAreIsolated(t *testing.T) {
	m := NewManager()
	for _, info := range m.Plugins() {
		m.Unregister(info.Name)
	}
	m.Register(&stubPlugin{name: "good", score: 12})
	m.Register(&stubPlugin{name: "broken", err: errors.New("disk gone")})
	m.Register(&stubPlugin{name: "crashy", panic: true})

	a, err := m.AssessQuality(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 10.0, a.DimensionScores["good"])
	assert.Empty(t, a.PluginDetails["good"].Recommendations)
	assert.Equal(t, 0.0, a.DimensionScores["broken"])
	assert.Equal(t, 0.0, a.DimensionScores["crashy"])
	require.Len(t, a.PluginDetails["broken"].FailedChecks, 1)
	assert.Contains(t, a.PluginDetails["broken"].FailedChecks[0], "disk gone")
	assert.Contains(t, a.PluginDetails["crashy"].FailedChecks[0], "panic")

	// Weight hints apply to dimensions without a configured weight.
	assert.InDelta(t, 10.0/3, a.OverallScore, 1e-9)
	assert.Equal(t, "good", a.Summary.BestDimension)
	assert.Equal(t, "broken", a.Summary.WorstDimension)
}

func TestManager_RegisterReplaces(t *testing.T) {
	m := NewManager()
	m.Register(&stubPlugin{name: "usability", score: 7})

	infos := m.Plugins()
	require.Len(t, infos, 5)
	assert.Equal(t, "usability", infos[1].Name)
	assert.Equal(t, "0.1.0", infos[1].Version)

	p, ok := m.Plugin("usability")
	require.True(t, ok)
	assert.Equal(t, "stub", p.Description())

	assert.True(t, m.Unregister("usability"))
	assert.False(t, m.Unregister("usability"))
}

func TestManager_AssessQualityMissingDir(t *testing.T) {
	_, err := NewManager().AssessQuality(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestManager_Weights(t *testing.T) {
	m := NewManager(WithWeights(map[string]float64{"completeness": 0.5, "usability": -1}))
	w := m.Weights()
	assert.Equal(t, 0.5, w["completeness"])
	assert.Equal(t, 0.25, w["usability"])

	m.UpdateWeights(map[string]float64{"documentation": 0.2})
	assert.Equal(t, 0.2, m.Weights()["documentation"])
}

func TestWeightedScore(t *testing.T) {
	scores := map[string]float64{"a": 10, "b": 5, "c": 8}

	assert.InDelta(t, 7.5, WeightedScore(scores, map[string]float64{"a": 0.5, "b": 0.5}), 1e-9)
	// Re-normalized when weights total 2.
	assert.InDelta(t, 7.5, WeightedScore(scores, map[string]float64{"a": 1, "b": 1}), 1e-9)
	assert.Equal(t, 0.0, WeightedScore(scores, nil))
	assert.Equal(t, 10.0, WeightedScore(map[string]float64{"a": 50}, map[string]float64{"a": 1}))
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{10, GradeExcellent},
		{9.0, GradeExcellent},
		{8.99, GradeGood},
		{8.0, GradeGood},
		{7.0, GradeModerate},
		{6.0, GradeFair},
		{5.99, GradeNeedsImprovement},
		{0, GradeNeedsImprovement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %v", tt.score)
	}
}

type boostOverlay struct{}

func (boostOverlay) Overlay(dir string, scores map[string]float64) (map[string]float64, []string) {
	scores["usability"] = 10
	return map[string]float64{"security": 10}, []string{"usability"}
}

func TestManager_Overlay(t *testing.T) {
	a, err := NewManager(WithOverlay(boostOverlay{})).AssessQuality(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 10.0, a.DimensionScores["usability"])
	assert.Equal(t, []string{"usability"}, a.Overridden)
	assert.Equal(t, map[string]float64{"security": 10}, a.PluginScores)
	assert.InDelta(t, 2.5, a.OverallScore, 1e-9)
	assert.Equal(t, "usability", a.Summary.BestDimension)

	require.Contains(t, a.PluginDetails, "usability")
	assert.Equal(t, 10.0, a.PluginDetails["usability"].Score, "details follow the replaced score")
	assert.NotEmpty(t, a.PluginDetails["usability"].FailedChecks, "checks stay from the standard run")
	assert.Equal(t, 0.0, a.PluginDetails["completeness"].Score)
}

type phantomOverlay struct{}

func (phantomOverlay) Overlay(dir string, scores map[string]float64) (map[string]float64, []string) {
	scores["novelty"] = 9
	return nil, []string{"novelty"}
}

func TestManager_OverlayUnknownDimension(t *testing.T) {
	a, err := NewManager(WithOverlay(phantomOverlay{})).AssessQuality(t.TempDir())
	require.NoError(t, err)
	assert.NotContains(t, a.PluginDetails, "novelty")
	assert.Equal(t, 9.0, a.DimensionScores["novelty"])
}
