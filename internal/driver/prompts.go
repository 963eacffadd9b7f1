package driver

import (
	"fmt"
	"strings"

	"github.com/sonnylabs/sonny/internal/engine"
)

// The prompts pin the oracle to a parseable shape. The parser tolerates
// deviation, but asking for the exact format up front is what keeps the
// correction loop short.

const planFormat = `Answer using exactly this format, with no extra prose:
STEP <n>: <short description>
CMD: <shell command>           (for steps that run a command)
FILE: <relative path>          (for steps that create a file, followed by a
fenced code block containing the file's complete content)`

func requirementsPrompt(goal string) string {
	return fmt.Sprintf(`I want to build the following on my local machine:

%s

Which command line tools must be installed first? Reply with only a bullet
list of tool names, one per line. No explanations, no install commands.`, goal)
}

func planPrompt(goal, toolStatus string) string {
	return fmt.Sprintf(`My goal:

%s

My installed tools:
%s
Give me the complete step-by-step plan to build and run this, including
project creation, the full content of every file, and the final command
that runs the result. %s`, goal, toolStatus, planFormat)
}

func correctionPrompt(goal, toolStatus string, f *engine.FailureContext) string {
	stderr := strings.TrimSpace(f.Stderr)
	if stderr == "" {
		stderr = "(no error output)"
	}
	return fmt.Sprintf(`While executing your plan for this goal:

%s

this step failed:

Step: %s
Command: %s
Error output:
%s

My installed tools:
%s
Give me a corrected complete plan. It fully replaces the previous plan, so
repeat every remaining step. %s`, goal, f.FailedStep, f.FailedCommand, stderr, toolStatus, planFormat)
}

// unparseableNote is appended when a correction response could not be parsed, so
// the oracle knows the previous answer was unusable rather than wrong.
func unparseableNote(prompt string) string {
	return prompt + `

Your previous answer contained no usable steps. Answer again using only the
format above.`
}
