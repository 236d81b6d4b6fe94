package extended

import (
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/wfvalidate/source"
)

var (
	frameworkKeywords = []string{"pytest", "unittest", "nose", "doctest"}
	ciPatterns        = []string{
		".github/workflows/*.yml",
		".github/workflows/*.yaml",
		".gitlab-ci.yml",
		"Jenkinsfile",
		".travis.yml",
	}
)

// TestCoverage estimates testing maturity from file layout. It does not
// measure real coverage.
type TestCoverage struct {
	meta
}

// NewTestCoverage creates the test coverage plugin.
func NewTestCoverage(excluder *source.Excluder, logger *slog.Logger) *TestCoverage {
	return &TestCoverage{meta: newMeta("test_coverage", "Test presence and testing practice", excluder, logger)}
}

func (p *TestCoverage) Assess(dir string) (float64, error) {
	fs, err := scan(dir, p.excluder)
	if err != nil {
		return 0, err
	}

	var tests, sources int
	for _, f := range fs.withExt(".py") {
		if isTestFile(f) {
			tests++
		} else {
			sources++
		}
	}

	score := 0.0
	if tests > 0 {
		score++
	}
	ratio := 1.0
	if sources > 0 {
		ratio = float64(tests) / float64(sources)
	}
	switch {
	case ratio >= 0.7:
		score++
	case ratio >= 0.5:
		score += 0.5
	}
	if fs.scriptsContain(frameworkKeywords...) {
		score++
	}
	if hasCIConfig(fs) {
		score++
	}

	p.logger.Debug("Test coverage assessed", "tests", tests, "sources", sources, "score", score)
	return ratioScore(score, 4), nil
}

func hasCIConfig(fs *files) bool {
	for _, f := range fs.all {
		for _, pattern := range ciPatterns {
			if ok, _ := doublestar.Match(pattern, f.Rel); ok {
				return true
			}
		}
	}
	return false
}
