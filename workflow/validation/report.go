package validation

import (
	"sort"
	"time"

	"github.com/c360studio/wfvalidate/quality"
)

// Status is the PASS/FAIL verdict of a stage or a whole run.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Issue types. Critical types fail the whole run.
const (
	IssueMarkdownSyntax      = "markdown_syntax"
	IssueHeadingHierarchy    = "heading_hierarchy"
	IssueBrokenLink          = "broken_link"
	IssueBrokenFileLink      = "broken_file_link"
	IssueCodeBlockLanguage   = "code_block_language"
	IssuePythonSyntax        = "python_syntax"
	IssueShellSyntax         = "shell_syntax"
	IssuePowerShellSyntax    = "powershell_syntax"
	IssuePowerShellTimeout   = "powershell_timeout"
	IssueScriptError         = "script_error"
	IssueJSONSyntax          = "json_syntax"
	IssueYAMLSyntax          = "yaml_syntax"
	IssueDataError           = "data_error"
	IssueMissingMainWorkflow = "missing_main_workflow"
	IssueMissingSection      = "missing_section"
	IssueNoSteps             = "no_steps"
	IssueStepNumbering       = "step_numbering"
	IssueFewCheckpoints      = "insufficient_checkpoints"
	IssueMissingScript       = "missing_script"
	IssueInvalidPackage      = "invalid_package"
	IssueRequirementsError   = "requirements_error"
	IssueImportCheckError    = "import_check_error"
	IssueModuleCheckError    = "module_check_error"
)

var criticalTypes = map[string]bool{
	IssueMissingMainWorkflow: true,
	IssuePythonSyntax:        true,
	IssueShellSyntax:         true,
	IssuePowerShellSyntax:    true,
	IssueMissingSection:      true,
	IssueBrokenLink:          true,
}

// IsCritical reports whether an issue type fails the run.
func IsCritical(issueType string) bool {
	return criticalTypes[issueType]
}

// Issue is one finding scoped to a file and, when known, a line.
type Issue struct {
	File    string `json:"file,omitempty"`
	Line    *int   `json:"line,omitempty"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StageResult is the outcome of the syntax, logic or dependency stage.
type StageResult struct {
	Status      Status  `json:"status"`
	TotalChecks int     `json:"total_checks"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Issues      []Issue `json:"issues"`
}

func (s *StageResult) pass() {
	s.Passed++
}

// fail records a failed check together with its issue.
func (s *StageResult) fail(issue Issue) {
	s.Failed++
	s.Issues = append(s.Issues, issue)
}

// note records an issue without counting a failed check.
func (s *StageResult) note(issue Issue) {
	s.Issues = append(s.Issues, issue)
}

func (s StageResult) finish() StageResult {
	s.TotalChecks = s.Passed + s.Failed
	s.Status = StatusPass
	if s.Failed > 0 {
		s.Status = StatusFail
	}
	if s.Issues == nil {
		s.Issues = []Issue{}
	}
	return s
}

// Summary is the headline of a Report.
type Summary struct {
	OverallStatus  Status  `json:"overall_status"`
	TotalIssues    int     `json:"total_issues"`
	CriticalIssues int     `json:"critical_issues"`
	QualityScore   float64 `json:"quality_score"`
}

// Inventory lists the external dependencies found by the dependency stage.
type Inventory struct {
	Packages      []string `json:"packages"`
	Imports       []string `json:"imports"`
	ScriptModules []string `json:"script_modules"`
	Commands      []string `json:"commands"`
}

// Report is the full result of one validation run.
type Report struct {
	RunID        string              `json:"run_id"`
	WorkflowDir  string              `json:"workflow_dir"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Summary      Summary             `json:"summary"`
	Syntax       StageResult         `json:"syntax_validation"`
	Logic        StageResult         `json:"logic_validation"`
	Dependencies StageResult         `json:"dependency_validation"`
	Quality      *quality.Assessment `json:"quality_assessment"`
	Inventory    Inventory           `json:"inventory"`
}

// StageResult returns the result of the named stage. The quality stage has
// no StageResult and yields false.
func (r *Report) StageResult(stage Stage) (StageResult, bool) {
	switch stage {
	case StageSyntax:
		return r.Syntax, true
	case StageLogic:
		return r.Logic, true
	case StageDependencies:
		return r.Dependencies, true
	default:
		return StageResult{}, false
	}
}

// Issues returns every issue in stage order.
func (r *Report) Issues() []Issue {
	out := make([]Issue, 0, len(r.Syntax.Issues)+len(r.Logic.Issues)+len(r.Dependencies.Issues))
	out = append(out, r.Syntax.Issues...)
	out = append(out, r.Logic.Issues...)
	out = append(out, r.Dependencies.Issues...)
	return out
}

// CriticalIssues returns the issues whose type is critical.
func (r *Report) CriticalIssues() []Issue {
	var out []Issue
	for _, issue := range r.Issues() {
		if IsCritical(issue.Type) {
			out = append(out, issue)
		}
	}
	return out
}

// Passed reports whether the run found no critical issue.
func (r *Report) Passed() bool {
	return r.Summary.OverallStatus == StatusPass
}

func summarize(r *Report) Summary {
	s := Summary{
		OverallStatus:  StatusPass,
		TotalIssues:    len(r.Issues()),
		CriticalIssues: len(r.CriticalIssues()),
	}
	if s.CriticalIssues > 0 {
		s.OverallStatus = StatusFail
	}
	if r.Quality != nil {
		s.QualityScore = r.Quality.OverallScore
	}
	return s
}

// inventoryBuilder collects dependency names without duplicates.
type inventoryBuilder struct {
	packages, imports, modules, commands map[string]bool
}

func (b *inventoryBuilder) add(set *map[string]bool, name string) {
	if *set == nil {
		*set = make(map[string]bool)
	}
	(*set)[name] = true
}

func (b *inventoryBuilder) build() Inventory {
	return Inventory{
		Packages:      sortedKeys(b.packages),
		Imports:       sortedKeys(b.imports),
		ScriptModules: sortedKeys(b.modules),
		Commands:      sortedKeys(b.commands),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
