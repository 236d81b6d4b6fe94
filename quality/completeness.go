package quality

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/wfvalidate/source"
)

// coreDirs are the top-level directories a complete workflow provides.
var coreDirs = []string{"templates", "docs", "tools"}

// Completeness checks that the files and directories a workflow needs exist.
type Completeness struct {
	base
}

// NewCompleteness creates the completeness plugin.
func NewCompleteness(excluder *source.Excluder, logger *slog.Logger) *Completeness {
	return &Completeness{base: newBase("completeness", "Functional completeness of the workflow layout", 0.30, excluder, logger)}
}

func (p *Completeness) Assess(dir string) (float64, error) {
	d, err := p.AssessDetails(dir)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}

func (p *Completeness) AssessDetails(dir string) (*Detail, error) {
	return p.evaluate(dir, func(ws *workspace, c *checklist) {
		hasTemplate := len(ws.matching("*_template.md", true)) > 0 || len(ws.matching("*_workflow.md", true)) > 0
		c.check(hasTemplate, 1.5,
			"main template file present", "main template file missing",
			"Create the main workflow template (for example *_template.md)")

		c.check(len(ws.matching("README.md", true)) > 0, 1.5,
			"README present", "README missing",
			"Add a README.md describing the workflow's purpose and usage")

		c.check(len(ws.withExt(".py", ".ps1", ".sh")) > 0, 2.5,
			"automation scripts present", "automation scripts missing",
			"Add Python or PowerShell scripts to automate the workflow")

		var present, missing []string
		for _, d := range coreDirs {
			if ws.hasTopDir(d) {
				present = append(present, d)
			} else {
				missing = append(missing, d)
			}
		}
		got := 1.5 * float64(len(present)) / float64(len(coreDirs))
		if len(missing) == 0 {
			c.pass("core directories present: "+strings.Join(present, ", "), got)
		} else {
			c.detail.Score += got
			c.fail(fmt.Sprintf("core directories missing: %s", strings.Join(missing, ", ")),
				"Create the missing core directories: "+strings.Join(missing, ", "))
		}

		c.check(len(ws.matching("test_*.py", false)) > 0, 1.5,
			"test files present", "test files missing",
			"Add test files that exercise the workflow tooling")

		c.check(len(ws.withExt(".json", ".yaml", ".yml")) > 0, 1.5,
			"configuration files present", "configuration files missing",
			"Add a configuration file so the workflow can be customised")
	}), nil
}
