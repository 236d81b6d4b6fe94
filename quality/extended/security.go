package extended

import (
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/wfvalidate/source"
)

var secretNames = []string{"password", "secret", "token", "api_key", "private_key"}

var validationKeywords = []string{"validate", "sanitize", "isinstance", "assert"}

// minPinnedRatio is the share of requirements that must pin an exact version.
const minPinnedRatio = 0.7

// Security checks secrets handling, ignore files, permission settings, input
// validation and pinned dependencies.
type Security struct {
	meta
}

// NewSecurity creates the security plugin.
func NewSecurity(excluder *source.Excluder, logger *slog.Logger) *Security {
	return &Security{meta: newMeta("security", "Secrets handling and security configuration", excluder, logger)}
}

func (p *Security) Assess(dir string) (float64, error) {
	fs, err := scan(dir, p.excluder)
	if err != nil {
		return 0, err
	}

	checks := []bool{
		!hasHardcodedSecrets(fs),
		fs.tree.Exists(".gitignore"),
		hasPermissionConfig(fs),
		fs.scriptsContain(validationKeywords...),
		dependenciesPinned(fs),
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	p.logger.Debug("Security assessed", "passed", passed, "total", len(checks))
	return ratioScore(float64(passed), float64(len(checks))), nil
}

func hasHardcodedSecrets(fs *files) bool {
	for _, f := range fs.withExt(".py") {
		content := strings.ToLower(fs.text(f))
		for _, name := range secretNames {
			if strings.Contains(content, name+` = "`) || strings.Contains(content, name+` = '`) {
				return true
			}
		}
	}
	return false
}

func hasPermissionConfig(fs *files) bool {
	f, ok := fs.lookup("config.yaml")
	if !ok {
		return false
	}
	var cfg map[string]any
	if err := yaml.Unmarshal([]byte(fs.text(f)), &cfg); err != nil {
		return false
	}
	_, security := cfg["security"]
	_, permissions := cfg["permissions"]
	return security || permissions
}

// dependenciesPinned passes when there is no requirements.txt.
func dependenciesPinned(fs *files) bool {
	f, ok := fs.lookup("requirements.txt")
	if !ok {
		return true
	}
	content := fs.text(f)
	var total, pinned int
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if strings.Contains(line, "==") {
			pinned++
		}
	}
	if total == 0 {
		return false
	}
	return float64(pinned)/float64(total) >= minPinnedRatio
}
