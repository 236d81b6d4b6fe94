package quality

import (
	"log/slog"

	"github.com/c360studio/wfvalidate/source"
)

var (
	usageKeywords  = []string{"使用指导", "快速开始", "Getting Started", "使用方法"}
	errorKeywords  = []string{"错误", "异常", "故障", "Error", "Exception", "Troubleshooting"}
	configKeywords = []string{"配置", "设置", "Configuration", "Settings"}
	faqKeywords    = []string{"FAQ", "故障排除", "常见问题", "Troubleshooting", "问题解答"}
)

// Usability checks that the documentation helps a newcomer use the workflow.
type Usability struct {
	base
}

// NewUsability creates the usability plugin.
func NewUsability(excluder *source.Excluder, logger *slog.Logger) *Usability {
	return &Usability{base: newBase("usability", "How easy the workflow is to pick up and use", 0.25, excluder, logger)}
}

func (p *Usability) Assess(dir string) (float64, error) {
	d, err := p.AssessDetails(dir)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}

func (p *Usability) AssessDetails(dir string) (*Detail, error) {
	return p.evaluate(dir, func(ws *workspace, c *checklist) {
		docs := ws.withExt(".md")

		c.check(ws.anyContains(docs, usageKeywords...), 2,
			"usage guidance present", "usage guidance missing",
			"Add a usage guide or quick start section")

		c.check(ws.anyContains(docs, "```"), 2,
			"example code present", "example code missing",
			"Add fenced code examples to the documentation")

		c.check(ws.anyContains(ws.withExt(".md", ".py", ".ps1"), errorKeywords...), 2,
			"error handling documented", "error handling undocumented",
			"Document error handling and exception cases")

		c.check(ws.anyContains(docs, configKeywords...), 2,
			"configuration documented", "configuration undocumented",
			"Document the available configuration and settings")

		c.check(ws.anyContains(docs, faqKeywords...), 2,
			"FAQ or troubleshooting present", "FAQ or troubleshooting missing",
			"Add an FAQ or troubleshooting section")
	}), nil
}
