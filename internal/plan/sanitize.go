package plan

import (
	"regexp"
	"strings"
)

// Oracle responses arrive through a browser bridge and pick up transport
// damage along the way: newlines flattened to literal "\n" sequences,
// stray fence lines, bare language labels, page chrome. The helpers here
// repair what is repairable before parsing.

var (
	literalEscapeRe = regexp.MustCompile(`\\[nt]`)

	// Bare labels that some renderings leave above a code block.
	languageLabels = map[string]bool{
		"typescript": true, "javascript": true, "html": true, "css": true,
		"json": true, "bash": true, "sh": true, "shell": true, "python": true,
		"go": true, "ts": true, "js": true, "scss": true, "yaml": true,
		"code": true, "codigo": true, "código": true, "plaintext": true,
		"text": true,
	}

	// Page chrome that indicates the scrape caught UI instead of the answer.
	chromeMarkers = []string{
		"copy code",
		"regenerate response",
		"chatgpt said:",
		"you said:",
	}
)

// normalizeNewlines repairs text whose real newlines were flattened into
// literal backslash escapes in transit. The repair only fires when the text
// clearly lost its line structure; otherwise escaped sequences inside file
// content are left alone.
func normalizeNewlines(text string) string {
	if !strings.Contains(text, `\n`) {
		return text
	}
	if strings.Count(text, "\n") > 2 {
		return text
	}
	return literalEscapeRe.ReplaceAllStringFunc(text, func(m string) string {
		if m == `\n` {
			return "\n"
		}
		return "\t"
	})
}

// contaminated reports whether the response text looks like captured page
// chrome rather than an answer.
func contaminated(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range chromeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// sanitizeContent cleans an extracted file-content block: strips fence and
// blank lines at the block's edges, then a leading bare language label and
// introductory prose. Fence lines inside the content are real content
// (a generated README carries its own code blocks) and stay untouched.
func sanitizeContent(content string) string {
	lines := strings.Split(content, "\n")

	start, end := 0, len(lines)
	for start < end && edgeJunk(lines[start]) {
		start++
	}
	for end > start && edgeJunk(lines[end-1]) {
		end--
	}
	lines = lines[start:end]

	if len(lines) > 0 && languageLabels[strings.ToLower(strings.TrimSpace(lines[0]))] {
		lines = lines[1:]
	}
	for len(lines) > 0 && isIntroProse(strings.TrimSpace(lines[0])) {
		lines = lines[1:]
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

func edgeJunk(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "```")
}

// isIntroProse matches conversational lead-ins the oracle sometimes puts
// ahead of real content.
func isIntroProse(line string) bool {
	if line == "" {
		return false
	}
	lower := strings.ToLower(line)
	prefixes := []string{
		"here is", "here's", "sure", "certainly", "of course",
		"aquí tienes", "aqui tienes", "claro", "por supuesto",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
