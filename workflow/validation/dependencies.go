package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/wfvalidate/source"
)

// requirementsFile is the Python dependency manifest at the workflow root.
const requirementsFile = "requirements.txt"

var (
	requirementRe   = regexp.MustCompile(`^[a-zA-Z0-9_-]+([>=<]=?[\d.]+)?$`)
	requirementName = regexp.MustCompile(`^[a-zA-Z0-9_-]+`)
	pythonImportRe  = regexp.MustCompile(`(?m)^(?:from\s+(\w+)|import\s+(\w+))`)
	psModuleRe      = regexp.MustCompile(`Import-Module\s+(\S+)`)
	shellSourceRe   = regexp.MustCompile(`(?m)^\s*(?:source|\.)\s+(\S+)`)

	commandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`subprocess\.run\(["']([^"']+)["']`),
		regexp.MustCompile(`os\.system\(["']([^"']+)["']`),
		regexp.MustCompile(`Invoke-Expression\s+["']([^"']+)["']`),
	}
)

// builtinModules are Python standard modules excluded from the import tally.
var builtinModules = map[string]bool{
	"os": true, "sys": true, "re": true, "json": true, "logging": true,
	"datetime": true, "pathlib": true, "subprocess": true, "argparse": true,
	"unittest": true, "tempfile": true, "shutil": true,
}

// IsBuiltinModule reports whether a Python module is on the built-in list.
func IsBuiltinModule(name string) bool {
	return builtinModules[name]
}

// checkDependencies tallies declared and used dependencies. It only fails
// on malformed manifest lines and unreadable files.
func (r *run) checkDependencies(ctx context.Context) error {
	r.checkRequirements()

	for _, f := range r.withExt(".py") {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.tallyImports(f)
	}
	for _, f := range r.withExt(".ps1", ".sh") {
		r.tallyScriptModules(f)
	}
	for _, f := range r.withExt(".py", ".ps1") {
		r.tallyCommands(f)
	}

	r.logger.Info("Dependency stage finished", "passed", r.dependencies.Passed, "failed", r.dependencies.Failed)
	return nil
}

func (r *run) checkRequirements() {
	if !r.tree.Exists(requirementsFile) || r.v.excluder.Excluded(requirementsFile) {
		return
	}
	content, err := source.ReadText(r.tree.Join(requirementsFile))
	if err != nil {
		r.dependencies.fail(Issue{File: requirementsFile, Type: IssueRequirementsError, Message: fmt.Sprintf("cannot read requirements: %v", err)})
		return
	}

	for i, line := range strings.Split(content, "\n") {
		pkg := strings.TrimSpace(line)
		if pkg == "" || strings.HasPrefix(pkg, "#") {
			continue
		}
		if !requirementRe.MatchString(pkg) {
			r.dependencies.fail(Issue{
				File:    requirementsFile,
				Line:    lineRef(i + 1),
				Type:    IssueInvalidPackage,
				Message: fmt.Sprintf("invalid package specification: %s", pkg),
			})
			continue
		}
		r.dependencies.pass()
		r.inventory.add(&r.inventory.packages, requirementName.FindString(pkg))
	}
}

func (r *run) tallyImports(f source.File) {
	content, err := source.ReadText(f.Path)
	if err != nil {
		r.dependencies.fail(Issue{File: f.Rel, Type: IssueImportCheckError, Message: fmt.Sprintf("cannot scan imports: %v", err)})
		return
	}
	for _, m := range pythonImportRe.FindAllStringSubmatch(content, -1) {
		module := m[1]
		if module == "" {
			module = m[2]
		}
		if module == "" || IsBuiltinModule(module) {
			continue
		}
		r.dependencies.pass()
		r.inventory.add(&r.inventory.imports, module)
	}
}

func (r *run) tallyScriptModules(f source.File) {
	content, err := source.ReadText(f.Path)
	if err != nil {
		r.dependencies.fail(Issue{File: f.Rel, Type: IssueModuleCheckError, Message: fmt.Sprintf("cannot scan module imports: %v", err)})
		return
	}
	re := psModuleRe
	if f.Ext == ".sh" {
		re = shellSourceRe
	}
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		r.dependencies.pass()
		r.inventory.add(&r.inventory.modules, strings.Trim(m[1], `"'`))
	}
}

// tallyCommands records external command invocations. Unreadable files are
// ignored here since the import scan already reported them.
func (r *run) tallyCommands(f source.File) {
	content, err := source.ReadText(f.Path)
	if err != nil {
		return
	}
	for _, re := range commandPatterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			r.dependencies.pass()
			r.inventory.add(&r.inventory.commands, m[1])
		}
	}
}
