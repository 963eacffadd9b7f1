package plan

import "fmt"

// Mode selects what shape the parser should extract from a response.
type Mode string

const (
	ModeRequirementList Mode = "requirement_list"
	ModePlan            Mode = "plan"
)

// Reason classifies why parsing failed.
type Reason string

const (
	EmptyPlan            Reason = "empty_plan"
	EmptyRequirementList Reason = "empty_requirement_list"
	Malformed            Reason = "malformed"
)

// ParseError reports what the parser expected and what it found instead.
type ParseError struct {
	Mode   Mode
	Reason Reason
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parse %s: %s: %s", e.Mode, e.Reason, e.Detail)
	}
	return fmt.Sprintf("parse %s: %s", e.Mode, e.Reason)
}

func newParseError(mode Mode, reason Reason, detail string) *ParseError {
	return &ParseError{Mode: mode, Reason: reason, Detail: detail}
}
