// Package parser provides the per-format checks used by the validator:
// a line-oriented Markdown scanner, heading anchor matching, script syntax
// checks and structured-data syntax checks.
package parser

import (
	"regexp"
	"strings"
)

var (
	// internalLinkRe matches [text](#anchor).
	internalLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(#([^)]+)\)`)
	// fileLinkRe matches [text](path.md) and [text](path.md#anchor).
	fileLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^#)]+\.md[^)]*)\)`)
)

// Heading is a Markdown ATX heading outside of fenced code.
type Heading struct {
	Line  int    `json:"line"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is a Markdown inline link found outside of fenced code.
type Link struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Target string `json:"target"`
}

// Fence is the opening line of a fenced code block.
type Fence struct {
	Line int    `json:"line"`
	Lang string `json:"lang,omitempty"`
}

// MarkdownDoc is the shallow structure of a Markdown document.
type MarkdownDoc struct {
	Headings      []Heading
	InternalLinks []Link
	FileLinks     []Link
	Fences        []Fence
}

// ParseMarkdown scans content line by line. Fenced code blocks are tracked
// with a simple toggle on lines starting with three backticks; nested fences
// are not recognised. Headings and links inside fences or inside a leading
// "---" frontmatter block are ignored.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{}

	lines := strings.Split(content, "\n")
	skip := frontmatterEnd(lines) + 1

	inFence := false
	for i := skip; i < len(lines); i++ {
		lineNo := i + 1
		line := strings.TrimRight(lines[i], "\r")

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if !inFence {
				lang := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "`"))
				doc.Fences = append(doc.Fences, Fence{Line: lineNo, Lang: lang})
			}
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if strings.HasPrefix(line, "#") && strings.Contains(line, " ") {
			level := len(line) - len(strings.TrimLeft(line, "#"))
			doc.Headings = append(doc.Headings, Heading{
				Line:  lineNo,
				Level: level,
				Text:  strings.TrimSpace(strings.TrimLeft(line, "# ")),
			})
		}

		for _, m := range internalLinkRe.FindAllStringSubmatch(line, -1) {
			doc.InternalLinks = append(doc.InternalLinks, Link{Line: lineNo, Text: m[1], Target: m[2]})
		}
		for _, m := range fileLinkRe.FindAllStringSubmatch(line, -1) {
			if strings.Contains(m[2], "://") {
				continue
			}
			doc.FileLinks = append(doc.FileLinks, Link{Line: lineNo, Text: m[1], Target: strings.TrimSpace(m[2])})
		}
	}

	return doc
}

// Anchors returns every anchor spelling produced by the document's headings.
func (d *MarkdownDoc) Anchors() map[string]struct{} {
	anchors := make(map[string]struct{})
	for _, h := range d.Headings {
		for a := range GeneratePossibleAnchors(h.Text) {
			anchors[a] = struct{}{}
		}
	}
	return anchors
}

// frontmatterEnd returns the index of the line closing a frontmatter block
// that opens on the first line, or -1 when there is none.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			return i
		}
	}
	return -1
}
