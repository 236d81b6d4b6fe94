package quality

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360studio/wfvalidate/source"
)

var (
	docSectionKeywords = []string{"目标", "使用", "步骤"}
	freshnessPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`\b20\d{2}\b`),
		regexp.MustCompile(`更新时间`),
		regexp.MustCompile(`Last Updated`),
		regexp.MustCompile(`Updated:`),
		regexp.MustCompile(`修改时间`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	}
)

const (
	minReadmeLines       = 5
	minDocumentedScripts = 0.5
	minFreshDocs         = 0.3
	minScriptComments    = 10
)

// Documentation checks the presence, structure and freshness of the docs.
type Documentation struct {
	base
}

// NewDocumentation creates the documentation plugin.
func NewDocumentation(excluder *source.Excluder, logger *slog.Logger) *Documentation {
	return &Documentation{base: newBase("documentation", "Documentation presence, structure and freshness", 0.10, excluder, logger)}
}

func (p *Documentation) Assess(dir string) (float64, error) {
	d, err := p.AssessDetails(dir)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}

func (p *Documentation) AssessDetails(dir string) (*Detail, error) {
	return p.evaluate(dir, func(ws *workspace, c *checklist) {
		c.check(readmeHasContent(ws), 2.5,
			"README has substantive content", "README missing or too short",
			"Write a README with at least five lines of content")

		docs := ws.withExt(".md")
		found := 0
		for _, k := range docSectionKeywords {
			if ws.anyContains(docs, k) {
				found++
			}
		}
		c.check(found >= 2, 2.5,
			"documentation covers goals, usage and steps", "documentation structure incomplete",
			"Describe the workflow's goals, usage and steps")

		scripts := ws.withExt(".py")
		c.check(ratioAtLeast(ws, scripts, minDocumentedScripts, scriptDocumented), 2.5,
			"scripts documented", "scripts lack docstrings or comments",
			"Add docstrings or comments to the scripts")

		c.check(ratioAtLeast(ws, docs, minFreshDocs, hasFreshnessMarker), 2.5,
			"documents carry update dates", "documents lack update dates",
			"Record a last-updated date in the documents")
	}), nil
}

func readmeHasContent(ws *workspace) bool {
	readmes := ws.matching("README.md", true)
	if len(readmes) == 0 {
		return false
	}
	content, ok := ws.text(readmes[0])
	if !ok {
		return false
	}
	lines := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return lines >= minReadmeLines
}

// ratioAtLeast reports whether at least ratio of files satisfy pred. It is
// false when there are no files.
func ratioAtLeast(ws *workspace, files []source.File, ratio float64, pred func(string) bool) bool {
	if len(files) == 0 {
		return false
	}
	matched := 0
	for _, f := range files {
		if content, ok := ws.text(f); ok && pred(content) {
			matched++
		}
	}
	return float64(matched) >= float64(len(files))*ratio
}

func scriptDocumented(content string) bool {
	if strings.Contains(content, `"""`) || strings.Contains(content, `'''`) {
		return true
	}
	comments := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			comments++
		}
	}
	return comments >= minScriptComments
}

func hasFreshnessMarker(content string) bool {
	for _, re := range freshnessPatterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}
