package validation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/wfvalidate/source"
)

// DefaultRequiredSections are the headings every main workflow document needs.
var DefaultRequiredSections = []string{"工作流简介", "目录结构", "标准流程", "自动生成区域"}

// DefaultMinCheckpoints is the minimum number of user confirmation checkpoints.
const DefaultMinCheckpoints = 2

var (
	// stepRe matches numbered step headings such as "### 步骤1：" or "### Step 1:".
	stepRe = regexp.MustCompile(`### (?:步骤|Step\s*)(\d+)[：:]`)
	// checkpointRe matches a user confirmation checkpoint marker.
	checkpointRe = regexp.MustCompile(`🤝.*?(?:用户确认检查点|User Confirmation Checkpoint)`)
	// scriptRefRe matches backticked script paths.
	scriptRefRe = regexp.MustCompile("`([^`]+\\.(?:py|ps1|sh))`")
)

// mainDocumentPatterns locate the main workflow document, in priority order.
var mainDocumentPatterns = []string{"*_template.md", "workflow.md", "README.md"}

// SectionRequirement defines a required section of the main document.
type SectionRequirement struct {
	Name        string         // Human-readable name
	Pattern     *regexp.Regexp // Regex matched against the whole document
	Description string         // Description for feedback
}

// LogicConfig tunes the logic stage.
type LogicConfig struct {
	// RequiredSections are section titles that must appear in the main
	// document. Empty means DefaultRequiredSections.
	RequiredSections []string
	// MinCheckpoints is the minimum checkpoint count. Zero means
	// DefaultMinCheckpoints.
	MinCheckpoints int
}

func (c LogicConfig) withDefaults() LogicConfig {
	if len(c.RequiredSections) == 0 {
		c.RequiredSections = append([]string(nil), DefaultRequiredSections...)
	}
	if c.MinCheckpoints <= 0 {
		c.MinCheckpoints = DefaultMinCheckpoints
	}
	return c
}

// Sections compiles the required section titles into literal matchers.
func (c LogicConfig) Sections() []SectionRequirement {
	names := c.withDefaults().RequiredSections
	out := make([]SectionRequirement, 0, len(names))
	for _, name := range names {
		out = append(out, SectionRequirement{
			Name:        name,
			Pattern:     regexp.MustCompile(regexp.QuoteMeta(name)),
			Description: fmt.Sprintf("%s section", name),
		})
	}
	return out
}

// checkLogic verifies the structure of the main workflow document.
func (r *run) checkLogic(_ context.Context) error {
	main, ok := r.mainDocument()
	if !ok {
		r.logic.fail(Issue{Type: IssueMissingMainWorkflow, Message: "main workflow document not found"})
		return nil
	}
	r.logger.Debug("Main workflow document", "file", main.Rel)

	content, err := source.ReadText(main.Path)
	if err != nil {
		r.logic.fail(Issue{File: main.Rel, Type: IssueMissingMainWorkflow, Message: fmt.Sprintf("main workflow document unreadable: %v", err)})
		return nil
	}

	r.checkSections(main, content)
	r.checkSteps(main, content)
	r.checkCheckpoints(main, content)
	r.checkScriptReferences(main, content)

	r.logger.Info("Logic stage finished", "passed", r.logic.Passed, "failed", r.logic.Failed)
	return nil
}

// mainDocument picks the first top-level in-scope file matching the
// priority patterns. Ties within a pattern go to the lexically first name.
func (r *run) mainDocument() (source.File, bool) {
	for _, pattern := range mainDocumentPatterns {
		var matches []source.File
		for _, f := range r.v.excluder.Filter(r.tree.TopLevel()) {
			if ok, _ := doublestar.Match(pattern, f.Name); ok {
				matches = append(matches, f)
			}
		}
		if len(matches) > 0 {
			sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
			return matches[0], true
		}
	}
	return source.File{}, false
}

func (r *run) checkSections(main source.File, content string) {
	for _, req := range r.v.logic.Sections() {
		if req.Pattern.MatchString(content) {
			r.logic.pass()
			continue
		}
		r.logic.fail(Issue{
			File:    main.Rel,
			Type:    IssueMissingSection,
			Message: fmt.Sprintf("missing required section: %s", req.Name),
		})
	}
}

// checkSteps requires numbered steps forming the sequence 1..K in order.
func (r *run) checkSteps(main source.File, content string) {
	matches := stepRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		r.logic.fail(Issue{File: main.Rel, Type: IssueNoSteps, Message: "no workflow steps defined"})
		return
	}

	numbers := make([]int, 0, len(matches))
	contiguous := true
	for i, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n != i+1 {
			contiguous = false
		}
		numbers = append(numbers, n)
	}
	if contiguous {
		r.logic.pass()
		return
	}
	r.logic.fail(Issue{
		File:    main.Rel,
		Type:    IssueStepNumbering,
		Message: fmt.Sprintf("step numbers are not contiguous: %v", numbers),
	})
}

func (r *run) checkCheckpoints(main source.File, content string) {
	found := len(checkpointRe.FindAllString(content, -1))
	if found >= r.v.logic.MinCheckpoints {
		r.logic.pass()
		return
	}
	r.logic.fail(Issue{
		File:    main.Rel,
		Type:    IssueFewCheckpoints,
		Message: fmt.Sprintf("found %d confirmation checkpoints, expected at least %d", found, r.v.logic.MinCheckpoints),
	})
}

// checkScriptReferences resolves backticked script paths against the
// workflow root.
func (r *run) checkScriptReferences(main source.File, content string) {
	for _, m := range scriptRefRe.FindAllStringSubmatch(content, -1) {
		ref := strings.TrimPrefix(strings.ReplaceAll(m[1], "\\", "/"), "./")
		if r.tree.Exists(ref) {
			r.logic.pass()
			continue
		}
		r.logic.fail(Issue{
			File:    main.Rel,
			Type:    IssueMissingScript,
			Message: fmt.Sprintf("referenced script does not exist: %s", m[1]),
		})
	}
}
