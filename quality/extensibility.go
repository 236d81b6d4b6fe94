package quality

import (
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/wfvalidate/source"
)

var (
	configExts     = []string{".json", ".yaml", ".yml", ".toml", ".ini"}
	pluginKeywords = []string{
		"plugin", "Plugin", "extend", "extension", "hook", "Hook",
		"registry", "Registry", "factory", "Factory", "interface", "Interface",
		"abc.ABC", "abstractmethod",
	}
	pluginDirs = []string{"plugins", "extensions", "addons"}
)

// Extensibility checks for configuration, templates and extension points.
type Extensibility struct {
	base
}

// NewExtensibility creates the extensibility plugin.
func NewExtensibility(excluder *source.Excluder, logger *slog.Logger) *Extensibility {
	return &Extensibility{base: newBase("extensibility", "Configuration, templating and extension points", 0.10, excluder, logger)}
}

func (p *Extensibility) Assess(dir string) (float64, error) {
	d, err := p.AssessDetails(dir)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}

func (p *Extensibility) AssessDetails(dir string) (*Detail, error) {
	return p.evaluate(dir, func(ws *workspace, c *checklist) {
		isConfig := func(name string) bool {
			ok, _ := doublestar.Match("*config*", name)
			return ok
		}
		hasConfig := len(ws.withExt(configExts...)) > 0 || len(ws.matching("*config*", false)) > 0 || ws.dirNamed(isConfig)
		c.check(hasConfig, 3.33,
			"configuration files present", "configuration files missing",
			"Add configuration files so behaviour can change without code edits")

		isTemplate := func(name string) bool { return strings.Contains(name, "template") }
		hasTemplates := len(ws.matching("*template*", false)) > 0 || ws.dirNamed(isTemplate)
		c.check(hasTemplates, 3.33,
			"template system present", "template system missing",
			"Provide reusable templates")

		hasPluginDir := false
		for _, d := range pluginDirs {
			if ws.hasTopDir(d) {
				hasPluginDir = true
				break
			}
		}
		c.check(ws.anyContains(ws.withExt(".py"), pluginKeywords...) || hasPluginDir, 3.34,
			"extension points present", "extension points missing",
			"Add plugin or hook points for extension")
	}), nil
}
