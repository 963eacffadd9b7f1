package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	bulletRe        = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	parenRe         = regexp.MustCompile(`\([^)]*\)`)
	cmdDirectiveRe  = regexp.MustCompile(`(?i)^\s*(?:CMD|COMANDO|COMMAND)\s*:\s*(.+)$`)
	fileDirectiveRe = regexp.MustCompile(`(?i)^\s*(?:FILE|ARCHIVO|FICHERO)\s*:\s*(.+?)\s*$`)
	fencedRe        = regexp.MustCompile("(?s)```([\\w+#.\\-]*)[ \\t]*\\n?(.*?)```")
	pathTokenRe     = regexp.MustCompile(`[\w@][\w@./\-]*\.[A-Za-z][\w]*|[\w@][\w@.\-]*/[\w@./\-]+`)
	shellPromptRe   = regexp.MustCompile(`^\s*\$\s+(.+)$`)

	// Commands that would mutate the global toolchain are never executed
	// from an oracle plan.
	blockedCmdRe = regexp.MustCompile(`(?i)^(?:sudo\s+)?(?:npm\s+(?:install|i)\s+(?:-g|--global)\b|yarn\s+global\s+add\b)`)

	// Dev servers block forever; the engine records them as skipped
	// instead of waiting out the timeout.
	serveCmdRe = regexp.MustCompile(`(?i)^(?:ng\s+serve\b|npm\s+start\b|npm\s+run\s+(?:start|dev|serve)\b|yarn\s+(?:start|dev)\b|pnpm\s+(?:start|dev)\b|python3?\s+-m\s+http\.server\b)`)

	commandPrefixes = []string{
		"npm", "npx", "ng", "node", "yarn", "pnpm", "pip", "pip3",
		"python", "python3", "go", "git", "mkdir", "cd", "touch",
		"cargo", "dotnet", "mvn", "gradle", "make", "flutter",
		"composer", "docker", "rails", "bundle",
	}

	fenceCommandLangs = map[string]bool{
		"bash": true, "sh": true, "shell": true, "zsh": true,
		"console": true, "terminal": true, "cmd": true,
	}
)

// ParseRequirements extracts a tool list from a response: one tool per
// list-like line, parenthetical commentary stripped, prose around the
// list ignored. Names come back lower-cased and deduplicated.
func ParseRequirements(text string) ([]string, error) {
	if contaminated(text) {
		return nil, newParseError(ModeRequirementList, Malformed, "response contains page chrome")
	}
	text = normalizeNewlines(text)

	var items []string
	for _, line := range strings.Split(text, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := parenRe.ReplaceAllString(m[1], "")
		item = stripMarkup(item)
		// "Node.js - runtime for the CLI" keeps only the name part.
		if idx := strings.Index(item, " - "); idx > 0 {
			item = item[:idx]
		}
		item = strings.Trim(item, " \t:.,")
		if item != "" {
			items = append(items, item)
		}
	}

	items = NormalizeTools(items)
	if len(items) == 0 {
		return nil, newParseError(ModeRequirementList, EmptyRequirementList, "no list items found")
	}
	return items, nil
}

// ParsePlan extracts an ordered Plan from a response. The primary format is
// the directive form the prompts ask for (CMD:/FILE: lines, file content in
// a fenced block); responses that ignore the format fall back to a natural
// scan of fenced blocks and shell-prompt lines. Step order follows source
// order exactly.
func ParsePlan(text string) (*Plan, error) {
	if contaminated(text) {
		return nil, newParseError(ModePlan, Malformed, "response contains page chrome")
	}
	text = normalizeNewlines(text)

	steps, err := parseStructured(text)
	if err != nil {
		return nil, err
	}
	if steps == nil {
		steps = parseNatural(text)
	}
	steps = dropBlocked(steps)
	if len(steps) == 0 {
		return nil, newParseError(ModePlan, EmptyPlan, "no commands or file writes found")
	}
	return &Plan{Steps: steps}, nil
}

// IsServeCommand reports whether a command starts a long-running dev server.
func IsServeCommand(cmd string) bool {
	return serveCmdRe.MatchString(strings.TrimSpace(cmd))
}

type fenceBlock struct {
	lang     string
	body     string
	start    int
	end      int
	consumed bool
}

func findFences(text string) []*fenceBlock {
	var out []*fenceBlock
	for _, m := range fencedRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, &fenceBlock{
			lang:  strings.ToLower(text[m[2]:m[3]]),
			body:  text[m[4]:m[5]],
			start: m[0],
			end:   m[1],
		})
	}
	return out
}

func insideFence(fences []*fenceBlock, pos int) bool {
	for _, f := range fences {
		if pos >= f.start && pos < f.end {
			return true
		}
	}
	return false
}

func nextFence(fences []*fenceBlock, pos int) *fenceBlock {
	for _, f := range fences {
		if !f.consumed && f.start >= pos {
			return f
		}
	}
	return nil
}

// parseStructured handles the directive format. A nil, nil return means no
// directives were present and the caller should try the natural scan.
func parseStructured(text string) ([]Step, error) {
	fences := findFences(text)
	steps, found, err := scanDirectives(text, fences)
	if err != nil {
		return nil, err
	}
	if found {
		return steps, nil
	}

	// Chat rendering sometimes wraps the whole answer in one code block,
	// so every directive line sits inside a fence. Re-scan plausible
	// wrapper fences before giving up on the directive format.
	for _, f := range fences {
		if !wrapperFence(f) {
			continue
		}
		sub, err := parseStructured(f.body)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			steps = append(steps, sub...)
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return steps, nil
}

// wrapperFence reports whether a fence could be a rendering wrapper around
// the whole answer rather than file content.
func wrapperFence(f *fenceBlock) bool {
	return f.lang == "" || f.lang == "text" || f.lang == "plaintext" || fenceCommandLangs[f.lang]
}

// scanDirectives runs the directive line scan over text, skipping lines
// inside the given fences.
func scanDirectives(text string, fences []*fenceBlock) ([]Step, bool, error) {
	var steps []Step
	found := false
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineStart := offset
		offset += len(line)
		if insideFence(fences, lineStart) {
			continue
		}
		trimmed := strings.TrimRight(line, "\n")

		if m := cmdDirectiveRe.FindStringSubmatch(trimmed); m != nil {
			found = true
			cmd := strings.TrimSpace(stripMarkup(m[1]))
			if cmd != "" {
				steps = append(steps, Step{Kind: RunCommand, Command: cmd})
			}
			continue
		}
		if m := fileDirectiveRe.FindStringSubmatch(trimmed); m != nil {
			found = true
			path := cleanPath(m[1])
			f := nextFence(fences, offset)
			if f == nil {
				return nil, false, newParseError(ModePlan, Malformed,
					fmt.Sprintf("file directive %q has no content block", path))
			}
			f.consumed = true
			steps = append(steps, Step{Kind: WriteFile, Path: path, Content: sanitizeContent(f.body)})
		}
	}
	return steps, found, nil
}

// parseNatural scans free-form responses: fenced blocks become command
// batches or file writes depending on their language tag and any path
// named just above them, and "$ cmd" lines outside fences become commands.
// Fragments that match neither shape are ignored, never guessed into steps.
func parseNatural(text string) []Step {
	fences := findFences(text)
	lines := strings.SplitAfter(text, "\n")

	type located struct {
		pos   int
		steps []Step
	}
	var found []located

	for _, f := range fences {
		if looksLikeCommands(f) {
			var cmds []Step
			for _, l := range strings.Split(f.body, "\n") {
				l = strings.TrimSpace(l)
				if m := shellPromptRe.FindStringSubmatch(l); m != nil {
					l = strings.TrimSpace(m[1])
				}
				// A directive marker carried into the fence is not part
				// of the command.
				if m := cmdDirectiveRe.FindStringSubmatch(l); m != nil {
					l = strings.TrimSpace(stripMarkup(m[1]))
				}
				if l == "" || strings.HasPrefix(l, "#") {
					continue
				}
				cmds = append(cmds, Step{Kind: RunCommand, Command: l})
			}
			if len(cmds) > 0 {
				found = append(found, located{pos: f.start, steps: cmds})
			}
			continue
		}
		if path := pathBefore(text, f.start); path != "" {
			found = append(found, located{pos: f.start, steps: []Step{
				{Kind: WriteFile, Path: path, Content: sanitizeContent(f.body)},
			}})
		}
	}

	offset := 0
	for _, line := range lines {
		lineStart := offset
		offset += len(line)
		if insideFence(fences, lineStart) {
			continue
		}
		if m := shellPromptRe.FindStringSubmatch(strings.TrimRight(line, "\n")); m != nil {
			cmd := strings.TrimSpace(m[1])
			if cmd != "" {
				found = append(found, located{pos: lineStart, steps: []Step{
					{Kind: RunCommand, Command: cmd},
				}})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	var steps []Step
	for _, l := range found {
		steps = append(steps, l.steps...)
	}
	return steps
}

// looksLikeCommands decides whether a fenced block holds shell commands
// rather than file content.
func looksLikeCommands(f *fenceBlock) bool {
	if fenceCommandLangs[f.lang] {
		return true
	}
	if f.lang != "" {
		return false
	}
	any := false
	for _, l := range strings.Split(f.body, "\n") {
		l = strings.TrimSpace(l)
		if m := shellPromptRe.FindStringSubmatch(l); m != nil {
			l = strings.TrimSpace(m[1])
		}
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		if !hasCommandPrefix(l) {
			return false
		}
		any = true
	}
	return any
}

func hasCommandPrefix(line string) bool {
	first := strings.Fields(line)
	if len(first) == 0 {
		return false
	}
	for _, p := range commandPrefixes {
		if first[0] == p {
			return true
		}
	}
	return false
}

// pathBefore looks at the nearest few non-blank lines above a fence for a
// file path the block belongs to.
func pathBefore(text string, fenceStart int) string {
	before := text[:fenceStart]
	lines := strings.Split(before, "\n")
	checked := 0
	for i := len(lines) - 1; i >= 0 && checked < 3; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		checked++
		if len(line) > 120 {
			continue
		}
		if m := pathTokenRe.FindAllString(line, -1); len(m) > 0 {
			return cleanPath(m[len(m)-1])
		}
	}
	return ""
}

func cleanPath(raw string) string {
	p := stripMarkup(raw)
	return strings.Trim(p, " \t:\"'")
}

func stripMarkup(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "`", "")
	return strings.TrimSpace(s)
}

func dropBlocked(steps []Step) []Step {
	var out []Step
	for _, s := range steps {
		if s.Kind == RunCommand && blockedCmdRe.MatchString(strings.TrimSpace(s.Command)) {
			continue
		}
		out = append(out, s)
	}
	return out
}
