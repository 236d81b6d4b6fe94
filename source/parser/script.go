package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/python"
)

var (
	// ErrNoInterpreter is returned when a language needs an external
	// interpreter that is not installed.
	ErrNoInterpreter = errors.New("interpreter not available")
	// ErrCheckTimeout is returned when an external syntax check exceeds its
	// time budget.
	ErrCheckTimeout = errors.New("syntax check timed out")
)

// DefaultScriptTimeout bounds external interpreter checks.
const DefaultScriptTimeout = 10 * time.Second

// SyntaxError locates the first parse error in a file.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ScriptCheckerConfig configures a ScriptChecker.
type ScriptCheckerConfig struct {
	// PowerShell is the interpreter used for .ps1 files.
	PowerShell string
	// Timeout bounds each external interpreter run.
	Timeout time.Duration
	// Run overrides command execution, mainly for tests.
	Run CommandRunner
	// LookPath overrides interpreter discovery, mainly for tests.
	LookPath func(string) (string, error)
	Logger   *slog.Logger
}

// ScriptChecker performs a full parse of script files. Python and shell
// scripts are parsed in-process with tree-sitter; PowerShell is handed to a
// parse-only interpreter run. A ScriptChecker is not safe for concurrent use.
type ScriptChecker struct {
	python *sitter.Parser
	bash   *sitter.Parser
	cfg    ScriptCheckerConfig
	logger *slog.Logger
}

// NewScriptChecker creates a checker with the given configuration. Zero
// fields fall back to defaults.
func NewScriptChecker(cfg ScriptCheckerConfig) *ScriptChecker {
	if cfg.PowerShell == "" {
		cfg.PowerShell = "pwsh"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScriptTimeout
	}
	if cfg.Run == nil {
		cfg.Run = runCommand
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	py := sitter.NewParser()
	py.SetLanguage(python.GetLanguage())
	sh := sitter.NewParser()
	sh.SetLanguage(bash.GetLanguage())

	return &ScriptChecker{python: py, bash: sh, cfg: cfg, logger: logger}
}

// Check parses content as the script language identified by ext. It returns
// a SyntaxError for invalid scripts and nil for valid ones. The error return
// is reserved for checks that could not run at all (ErrNoInterpreter,
// ErrCheckTimeout or an unsupported extension).
func (c *ScriptChecker) Check(ctx context.Context, path, ext string, content []byte) (*SyntaxError, error) {
	switch strings.ToLower(ext) {
	case ".py":
		return c.parseTree(ctx, c.python, content, checkPythonRules)
	case ".sh", ".bash":
		return c.parseTree(ctx, c.bash, content, nil)
	case ".ps1":
		return c.checkPowerShell(ctx, path)
	default:
		return nil, fmt.Errorf("no script checker for %q", ext)
	}
}

// parseTree reports the first grammar error. When the tree is clean, rules
// (if set) looks for constructs the grammar accepts but the compiler rejects.
func (c *ScriptChecker) parseTree(ctx context.Context, p *sitter.Parser, content []byte, rules func(*sitter.Node) *SyntaxError) (*SyntaxError, error) {
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		if rules != nil {
			return rules(root), nil
		}
		return nil, nil
	}

	node := firstErrorNode(root)
	if node == nil {
		return &SyntaxError{Line: int(root.StartPoint().Row) + 1, Message: "invalid syntax"}, nil
	}

	line := int(node.StartPoint().Row) + 1
	if node.IsMissing() {
		return &SyntaxError{Line: line, Message: fmt.Sprintf("missing %s", node.Type())}, nil
	}
	return &SyntaxError{Line: line, Message: fmt.Sprintf("invalid syntax near %q", snippet(node.Content(content)))}, nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

// psParseScript reports parse errors as "line:message" lines without
// executing the file.
const psParseScript = `$errs = $null; ` +
	`[void][System.Management.Automation.Language.Parser]::ParseFile('%s', [ref]$null, [ref]$errs); ` +
	`foreach ($e in $errs) { Write-Output ("{0}:{1}" -f $e.Extent.StartLineNumber, $e.Message) }`

var psErrorLineRe = regexp.MustCompile(`^(\d+):(.*)$`)

func (c *ScriptChecker) checkPowerShell(ctx context.Context, path string) (*SyntaxError, error) {
	if _, err := c.cfg.LookPath(c.cfg.PowerShell); err != nil {
		c.logger.Debug("Skipping PowerShell syntax check", "path", path, "interpreter", c.cfg.PowerShell)
		return nil, ErrNoInterpreter
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	script := fmt.Sprintf(psParseScript, strings.ReplaceAll(path, "'", "''"))
	out, err := c.cfg.Run(cmdCtx, c.cfg.PowerShell, "-NoProfile", "-NonInteractive", "-Command", script)
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, ErrCheckTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", c.cfg.PowerShell, err)
		}
	}

	for _, line := range strings.Split(string(out), "\n") {
		m := psErrorLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		return &SyntaxError{Line: n, Message: strings.TrimSpace(m[2])}, nil
	}
	if err != nil {
		return &SyntaxError{Message: strings.TrimSpace(string(out))}, nil
	}
	return nil, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}
