package quality

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360studio/wfvalidate/source"
)

var (
	classRe       = regexp.MustCompile(`(?m)^class\s+\w+`)
	inheritanceRe = regexp.MustCompile(`(?m)^class\s+\w+\([^)]+\)`)
	methodRe      = regexp.MustCompile(`(?m)^\s+def\s+\w+`)
	decoratorRe   = regexp.MustCompile(`(?m)^\s*@\w+`)

	docVersionKeywords    = []string{"版本", "version", "v1.", "v2.", "更新日志", "changelog"}
	scriptVersionKeywords = []string{"__version__", "version =", "version:", "v1.", "v2."}
	loggingKeywords       = []string{"logging", "logger", "log(", ".info(", ".debug(", ".warning(", ".error("}
)

// minCommentRatio earns full credit for the comment check.
const minCommentRatio = 0.10

// Maintainability looks for structure that keeps workflow tooling
// maintainable: comments, object-oriented code, versioning and logging.
type Maintainability struct {
	base
}

// NewMaintainability creates the maintainability plugin.
func NewMaintainability(excluder *source.Excluder, logger *slog.Logger) *Maintainability {
	return &Maintainability{base: newBase("maintainability", "Code structure, comments, versioning and logging", 0.25, excluder, logger)}
}

func (p *Maintainability) Assess(dir string) (float64, error) {
	d, err := p.AssessDetails(dir)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}

func (p *Maintainability) AssessDetails(dir string) (*Detail, error) {
	return p.evaluate(dir, func(ws *workspace, c *checklist) {
		scripts := ws.withExt(".py")

		ratio := commentRatio(ws, scripts)
		c.partial(2.5*ratio/minCommentRatio, 2.5,
			fmt.Sprintf("comment ratio %.1f%%", ratio*100),
			fmt.Sprintf("comment ratio %.1f%% below 10%%", ratio*100),
			"Raise the comment ratio of scripts to at least 10%")

		c.partial(objectOrientedScore(ws.joined(scripts)), 2.5,
			"object-oriented design present", "object-oriented design limited",
			"Organise scripts into classes with methods")

		docs := ws.withExt(".md")
		hasVersion := anyContainsLower(ws, docs, docVersionKeywords) || anyContainsLower(ws, scripts, scriptVersionKeywords)
		c.check(hasVersion, 2.5,
			"version information present", "version information missing",
			"Record version information or a changelog")

		c.check(ws.anyContains(scripts, loggingKeywords...), 2.5,
			"logging in use", "logging missing",
			"Add logging to the workflow scripts")
	}), nil
}

func commentRatio(ws *workspace, scripts []source.File) float64 {
	var total, comments int
	for _, f := range scripts {
		content, ok := ws.text(f)
		if !ok {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			total++
			if isCommentLine(line) {
				comments++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(comments) / float64(total)
}

// objectOrientedScore grants most of the credit for any class and smaller
// shares for inheritance, methods and decorators.
func objectOrientedScore(code string) float64 {
	score := 0.0
	if classRe.MatchString(code) {
		score += 1.25
	}
	if inheritanceRe.MatchString(code) {
		score += 0.5
	}
	if methodRe.MatchString(code) {
		score += 0.5
	}
	if decoratorRe.MatchString(code) {
		score += 0.25
	}
	return min(score, 2.5)
}

func anyContainsLower(ws *workspace, files []source.File, keywords []string) bool {
	for _, f := range files {
		content, ok := ws.text(f)
		if ok && containsAny(strings.ToLower(content), keywords...) {
			return true
		}
	}
	return false
}
