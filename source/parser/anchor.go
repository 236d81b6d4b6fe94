package parser

import (
	"net/url"
	"regexp"
	"strings"
)

// Renderers disagree on how headings become anchors, so every heading yields
// the union of several slug conventions.
const (
	wordClass  = `\p{L}\p{N}\p{M}_`
	cjkClass   = `\x{4e00}-\x{9fff}`
	emojiClass = `\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}`
)

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	hyphenRunRe     = regexp.MustCompile(`-+`)
	punctuationRe   = regexp.MustCompile(`[：；'".,!?()]`)
	typoraPunctRe   = regexp.MustCompile(`[：；'".,!?]`)
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)
	typoraParenRe   = regexp.MustCompile(`\s*\(([^)]*)\)`)
	githubStripRe   = regexp.MustCompile(`[^` + wordClass + `\s` + cjkClass + emojiClass + `-]`)
	simpleStripRe   = regexp.MustCompile(`[^` + wordClass + `\s` + cjkClass + emojiClass + `]`)
)

// GeneratePossibleAnchors returns every anchor a renderer might produce for
// heading. Leading '#' markers and surrounding spaces are ignored. The result
// never contains the empty string.
func GeneratePossibleAnchors(heading string) map[string]struct{} {
	title := strings.TrimSpace(strings.TrimLeft(heading, "# "))
	anchors := make(map[string]struct{})
	add := func(values ...string) {
		for _, v := range values {
			if v != "" {
				anchors[v] = struct{}{}
			}
		}
	}

	standard := standardSlug(title)
	add(standard, strings.ToLower(standard))

	if noParens := strings.TrimSpace(parentheticalRe.ReplaceAllString(title, "")); noParens != title {
		s := standardSlug(noParens)
		add(s, strings.ToLower(s))
	}

	github := githubStripRe.ReplaceAllString(strings.ToLower(title), "")
	github = whitespaceRe.ReplaceAllString(github, "-")
	github = strings.Trim(hyphenRunRe.ReplaceAllString(github, "-"), "-")
	add(github)

	typora := typoraParenRe.ReplaceAllString(title, "-$1")
	typora = whitespaceRe.ReplaceAllString(typora, "-")
	typora = typoraPunctRe.ReplaceAllString(typora, "")
	typora = strings.Trim(hyphenRunRe.ReplaceAllString(typora, "-"), "-")
	add(typora, strings.ToLower(typora))

	simple := strings.TrimSpace(simpleStripRe.ReplaceAllString(title, ""))
	simple = whitespaceRe.ReplaceAllString(simple, "-")
	add(simple, strings.ToLower(simple))

	return anchors
}

func standardSlug(title string) string {
	s := whitespaceRe.ReplaceAllString(title, "-")
	s = punctuationRe.ReplaceAllString(s, "")
	return strings.Trim(hyphenRunRe.ReplaceAllString(s, "-"), "-")
}

// IsAnchorValid reports whether candidate resolves to one of valid. It tries
// an exact match, then the percent-decoded candidate, then a comparison that
// ignores case and leading or trailing hyphens. A false negative (reporting
// a working link as broken) is considered worse than a false positive.
func IsAnchorValid(candidate string, valid map[string]struct{}) bool {
	if _, ok := valid[candidate]; ok {
		return true
	}

	decoded := unescapeFragment(candidate)
	if _, ok := valid[decoded]; ok {
		return true
	}

	forms := []string{strings.Trim(strings.ToLower(candidate), "-")}
	if decoded != candidate {
		forms = append(forms, strings.Trim(strings.ToLower(decoded), "-"))
	}
	for a := range valid {
		target := strings.Trim(strings.ToLower(a), "-")
		for _, f := range forms {
			if f == target {
				return true
			}
		}
	}
	return false
}

// unescapeFragment percent-decodes s. Malformed escapes are kept literally
// while the valid ones around them are still decoded.
func unescapeFragment(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
