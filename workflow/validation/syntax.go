package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/c360studio/wfvalidate/source"
	"github.com/c360studio/wfvalidate/source/parser"
)

// checkSyntax dispatches every in-scope file to the checker for its kind.
func (r *run) checkSyntax(ctx context.Context) error {
	for _, f := range r.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch r.v.registry.KindOf(f.Name) {
		case parser.KindMarkdown:
			r.checkMarkdown(f)
		case parser.KindScript:
			r.checkScript(ctx, f)
		case parser.KindData:
			r.checkData(f)
		}
	}
	r.logger.Info("Syntax stage finished", "passed", r.syntax.Passed, "failed", r.syntax.Failed)
	return nil
}

// checkMarkdown runs the structural checks on one Markdown file. Hierarchy,
// link and fence findings are issues but do not fail the file; only a file
// that cannot be read counts as failed.
func (r *run) checkMarkdown(f source.File) {
	content, err := source.ReadText(f.Path)
	if err != nil {
		r.syntax.fail(Issue{File: f.Rel, Type: IssueMarkdownSyntax, Message: fmt.Sprintf("markdown file unreadable: %v", err)})
		return
	}
	doc := parser.ParseMarkdown(content)

	prev := 0
	for _, h := range doc.Headings {
		if h.Level > prev+1 {
			r.syntax.note(Issue{
				File:    f.Rel,
				Line:    lineRef(h.Line),
				Type:    IssueHeadingHierarchy,
				Message: fmt.Sprintf("heading level jumps from H%d to H%d", prev, h.Level),
			})
		}
		prev = h.Level
	}

	anchors := doc.Anchors()
	for _, l := range doc.InternalLinks {
		if !parser.IsAnchorValid(l.Target, anchors) {
			r.syntax.note(Issue{
				File:    f.Rel,
				Line:    lineRef(l.Line),
				Type:    IssueBrokenLink,
				Message: fmt.Sprintf("broken internal link: [%s](#%s)", l.Text, l.Target),
			})
		}
	}

	for _, l := range doc.FileLinks {
		if !r.fileLinkResolves(f, l.Target) {
			r.syntax.note(Issue{
				File:    f.Rel,
				Line:    lineRef(l.Line),
				Type:    IssueBrokenFileLink,
				Message: fmt.Sprintf("broken file link: [%s](%s)", l.Text, l.Target),
			})
		}
	}

	for _, fence := range doc.Fences {
		if fence.Lang == "" {
			r.syntax.note(Issue{
				File:    f.Rel,
				Line:    lineRef(fence.Line),
				Type:    IssueCodeBlockLanguage,
				Message: "code block has no language tag",
			})
		}
	}

	r.syntax.pass()
}

// fileLinkResolves checks a relative .md link target, and its anchor when
// present, against the file system.
func (r *run) fileLinkResolves(from source.File, target string) bool {
	file, anchor, hasAnchor := strings.Cut(target, "#")
	rel := path.Join(path.Dir(from.Rel), file)
	if !r.tree.Exists(rel) {
		return false
	}
	if !hasAnchor {
		return true
	}

	content, err := source.ReadText(r.tree.Join(rel))
	if err != nil {
		return false
	}
	return parser.IsAnchorValid(anchor, parser.ParseMarkdown(content).Anchors())
}

// checkScript parses one script file. Interpreter-backed checks that cannot
// run are skipped; a timeout is reported without failing the file.
func (r *run) checkScript(ctx context.Context, f source.File) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		r.syntax.fail(Issue{File: f.Rel, Type: IssueScriptError, Message: fmt.Sprintf("script unreadable: %v", err)})
		return
	}

	serr, err := r.v.scripts.Check(ctx, f.Path, f.Ext, content)
	switch {
	case errors.Is(err, parser.ErrNoInterpreter):
		r.logger.Debug("Skipping script check, interpreter not available", "file", f.Rel)
		return
	case errors.Is(err, parser.ErrCheckTimeout):
		r.syntax.note(Issue{File: f.Rel, Type: IssuePowerShellTimeout, Message: "syntax check timed out"})
		return
	case err != nil:
		r.logger.Warn("Script check failed", "file", f.Rel, "error", err)
		r.syntax.note(Issue{File: f.Rel, Type: IssueScriptError, Message: fmt.Sprintf("script check failed: %v", err)})
		return
	}

	if serr == nil {
		r.syntax.pass()
		return
	}
	r.syntax.fail(Issue{
		File:    f.Rel,
		Line:    lineRef(serr.Line),
		Type:    scriptIssueType(f.Ext),
		Message: fmt.Sprintf("%s syntax error: %s", scriptLanguage(f.Ext), serr.Message),
	})
}

func scriptIssueType(ext string) string {
	switch ext {
	case ".py":
		return IssuePythonSyntax
	case ".ps1":
		return IssuePowerShellSyntax
	default:
		return IssueShellSyntax
	}
}

func scriptLanguage(ext string) string {
	switch ext {
	case ".py":
		return "Python"
	case ".ps1":
		return "PowerShell"
	default:
		return "shell"
	}
}

// checkData fully decodes one JSON or YAML file.
func (r *run) checkData(f source.File) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		r.syntax.fail(Issue{File: f.Rel, Type: IssueDataError, Message: fmt.Sprintf("data file unreadable: %v", err)})
		return
	}

	var serr *parser.SyntaxError
	issueType := IssueYAMLSyntax
	if f.Ext == ".json" {
		serr = parser.CheckJSON(content)
		issueType = IssueJSONSyntax
	} else {
		serr = parser.CheckYAML(content)
	}

	if serr == nil {
		r.syntax.pass()
		return
	}
	r.syntax.fail(Issue{
		File:    f.Rel,
		Line:    lineRef(serr.Line),
		Type:    issueType,
		Message: fmt.Sprintf("%s syntax error: %s", strings.ToUpper(strings.TrimPrefix(f.Ext, ".")), serr.Message),
	})
}
